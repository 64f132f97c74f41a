package targets

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tphakala/cropguard/internal/backup"
)

// SFTPTarget uploads archives over SSH.
type SFTPTarget struct {
	config SFTPTargetConfig
}

var _ backup.Target = (*SFTPTarget)(nil)

// SFTPTargetConfig holds configuration for the SFTP target
type SFTPTargetConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	KeyFile  string
	// KnownHostsFile verifies the server key; empty accepts any key.
	KnownHostsFile string
	BasePath       string
	Timeout        time.Duration
	Retry          RetryConfig
}

// NewSFTPTarget validates config and fills in defaults.
func NewSFTPTarget(config *SFTPTargetConfig) (*SFTPTarget, error) {
	cfg := *config
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	t := &SFTPTarget{config: cfg}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if cfg.KnownHostsFile == "" {
		GetLogger().Warn("sftp host key verification disabled",
			logString("host", cfg.Host))
	}
	return t, nil
}

func (t *SFTPTarget) Name() string { return "sftp" }

func (t *SFTPTarget) Validate() error {
	switch {
	case t.config.Host == "":
		return configError("sftp", "host is required")
	case t.config.Username == "":
		return configError("sftp", "username is required")
	case t.config.Password == "" && t.config.KeyFile == "":
		return configError("sftp", "password or key_file is required")
	case t.config.BasePath == "":
		return configError("sftp", "base path is required")
	}
	return nil
}

func (t *SFTPTarget) Store(ctx context.Context, sourcePath string) error {
	start := time.Now()
	err := WithRetry(ctx, t.config.Retry, t.Name(), func() error {
		client, closeFn, err := t.connect(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		return storeSFTP(client, t.config.BasePath, sourcePath)
	})
	if err != nil {
		return err
	}
	GetLogger().Info("archive stored",
		logString("target", t.Name()),
		logString("host", t.config.Host),
		logInt64("elapsed_ms", time.Since(start).Milliseconds()))
	return nil
}

func (t *SFTPTarget) clientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:    t.config.Username,
		Timeout: t.config.Timeout,
	}

	if t.config.KnownHostsFile != "" {
		cb, err := knownhosts.New(t.config.KnownHostsFile)
		if err != nil {
			return nil, configError("sftp", fmt.Sprintf("known_hosts: %v", err))
		}
		cfg.HostKeyCallback = cb
	} else {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via empty known_hosts_file
	}

	if t.config.KeyFile != "" {
		key, err := os.ReadFile(t.config.KeyFile)
		if err != nil {
			return nil, configError("sftp", fmt.Sprintf("read private key: %v", err))
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, configError("sftp", fmt.Sprintf("parse private key: %v", err))
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if t.config.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(t.config.Password))
	}
	return cfg, nil
}

func (t *SFTPTarget) connect(ctx context.Context) (*sftp.Client, func(), error) {
	cfg, err := t.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	d := net.Dialer{Timeout: t.config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("sftp: failed to connect: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("sftp: %w", err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("sftp: failed to create client: %w", err)
	}
	return client, func() {
		_ = client.Close()
		_ = sshClient.Close()
	}, nil
}

// storeSFTP writes sourcePath into dir through client using a temporary
// name and a rename.
func storeSFTP(client *sftp.Client, dir, sourcePath string) error {
	if err := client.MkdirAll(dir); err != nil {
		return fmt.Errorf("sftp: failed to create directory %s: %w", dir, err)
	}

	src, err := os.Open(sourcePath) //nolint:gosec // G304 - sourcePath is an export archive we created
	if err != nil {
		return fmt.Errorf("sftp: open %s: %w", sourcePath, err)
	}
	defer func() { _ = src.Close() }()

	base := filepath.Base(sourcePath)
	tmp := path.Join(dir, tempName(base))
	dst, err := client.Create(tmp)
	if err != nil {
		return fmt.Errorf("sftp: failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: failed to close file: %w", err)
	}
	if err := client.Rename(tmp, path.Join(dir, base)); err != nil {
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: rename: %w", err)
	}
	return nil
}
