package targets

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tphakala/cropguard/internal/backup"
)

// FTPTarget uploads archives to an FTP server.
type FTPTarget struct {
	config FTPTargetConfig
}

var _ backup.Target = (*FTPTarget)(nil)

// FTPTargetConfig holds configuration for the FTP target
type FTPTargetConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
	Timeout  time.Duration
	Retry    RetryConfig
}

// NewFTPTarget validates config and fills in defaults.
func NewFTPTarget(config *FTPTargetConfig) (*FTPTarget, error) {
	cfg := *config
	if cfg.Port == 0 {
		cfg.Port = DefaultFTPPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")

	t := &FTPTarget{config: cfg}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FTPTarget) Name() string { return "ftp" }

func (t *FTPTarget) Validate() error {
	if t.config.Host == "" {
		return configError("ftp", "host is required")
	}
	if t.config.BasePath == "" {
		return configError("ftp", "base path is required")
	}
	return nil
}

// Store uploads to a temporary name and renames it so readers never see a
// partial archive.
func (t *FTPTarget) Store(ctx context.Context, sourcePath string) error {
	start := time.Now()
	err := WithRetry(ctx, t.config.Retry, t.Name(), func() error {
		conn, err := t.connect(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Quit() }()
		return t.upload(conn, sourcePath)
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

func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(t.config.Timeout))
	if err != nil {
		return nil, fmt.Errorf("ftp: connection failed: %w", err)
	}
	if t.config.Username != "" {
		if err := conn.Login(t.config.Username, t.config.Password); err != nil {
			_ = conn.Quit()
			return nil, fmt.Errorf("ftp: login failed: %w", err)
		}
	}
	return conn, nil
}

func (t *FTPTarget) upload(conn *ftp.ServerConn, sourcePath string) error {
	t.makeDirs(conn)

	f, err := os.Open(sourcePath) //nolint:gosec // G304 - sourcePath is an export archive we created
	if err != nil {
		return fmt.Errorf("ftp: open %s: %w", sourcePath, err)
	}
	defer func() { _ = f.Close() }()

	base := filepath.Base(sourcePath)
	tmp := path.Join(t.config.BasePath, tempName(base))
	if err := conn.Stor(tmp, f); err != nil {
		_ = conn.Delete(tmp)
		return fmt.Errorf("ftp: store: %w", err)
	}
	if err := conn.Rename(tmp, path.Join(t.config.BasePath, base)); err != nil {
		_ = conn.Delete(tmp)
		return fmt.Errorf("ftp: rename: %w", err)
	}
	return nil
}

// makeDirs creates each component of the base path. Errors are ignored
// because FTP servers report existing directories as failures.
func (t *FTPTarget) makeDirs(conn *ftp.ServerConn) {
	current := ""
	if strings.HasPrefix(t.config.BasePath, "/") {
		current = "/"
	}
	for part := range strings.SplitSeq(strings.Trim(t.config.BasePath, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		_ = conn.MakeDir(current)
	}
}
