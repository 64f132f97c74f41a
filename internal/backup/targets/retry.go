// Package targets uploads export archives to a local directory, an FTP
// server or an SFTP server.
package targets

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
)

const (
	PermDir  = 0o750
	PermFile = 0o640

	DefaultTimeout = 30 * time.Second
	DefaultFTPPort = 21
	DefaultSSHPort = 22
)

// RetryConfig bounds WithRetry. Attempt n waits n*Backoff before the next.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, Backoff: time.Second}
}

// FTP and SSH libraries often flatten socket errors into text.
var transientText = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"broken pipe",
	"timeout",
	"no route to host",
	"handshake failed",
	"temporarily unavailable",
}

// IsTransientError reports whether a retry of the same upload may succeed.
func IsTransientError(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, syscall.ECONNRESET) || stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transientText {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WithRetry calls op until it succeeds, returns a permanent error or runs
// out of attempts.
func WithRetry(ctx context.Context, cfg RetryConfig, target string, op func() error) error {
	attempts := max(cfg.MaxRetries, 1)
	log := GetLogger().With(logger.String("target", target))

	var err error
	for n := 1; n <= attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return uploadError(ctxErr, target, "canceled")
		}
		if err = op(); err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return uploadError(err, target, "store")
		}
		if n == attempts {
			break
		}
		log.Debug("upload attempt failed, retrying", logger.Int("attempt", n), logger.Error(err))

		wait := time.NewTimer(cfg.Backoff * time.Duration(n))
		select {
		case <-ctx.Done():
			wait.Stop()
			return uploadError(ctx.Err(), target, "canceled")
		case <-wait.C:
		}
	}
	return uploadError(fmt.Errorf("gave up after %d attempts: %w", attempts, err), target, "store")
}

func uploadError(err error, target, operation string) error {
	return errors.New(err).
		Component("upload").
		Category(errors.CategoryUpload).
		Context("target", target).
		Context("operation", operation).
		Build()
}

func configError(target, msg string) error {
	return errors.Newf("%s: %s", target, msg).
		Component("upload").
		Category(errors.CategoryConfiguration).
		Build()
}

// tempName hides partial uploads from anything listing the destination.
func tempName(base string) string {
	return fmt.Sprintf(".upload-%d-%s", time.Now().UnixNano(), base)
}
