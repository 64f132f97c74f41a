package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/cropguard/internal/logger"
)

// ShoutrrrProvider sends to every configured service URL (telegram://,
// smtp://, ntfy:// and so on) through one shoutrrr router.
type ShoutrrrProvider struct {
	name    string
	urls    []string
	timeout time.Duration
	sender  *router.ServiceRouter
}

// NewShoutrrrProvider keeps a copy of urls. Validate must run before Send.
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) *ShoutrrrProvider {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "shoutrrr"
	}
	return &ShoutrrrProvider{name: name, urls: slices.Clone(urls), timeout: timeout}
}

func (s *ShoutrrrProvider) Name() string { return s.name }
func (s *ShoutrrrProvider) Enabled() bool { return len(s.urls) > 0 }

// Validate builds the router. Parse errors are redacted because service
// URLs embed credentials.
func (s *ShoutrrrProvider) Validate() error {
	if !s.Enabled() {
		return nil
	}
	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return fmt.Errorf("invalid shoutrrr url: %s", logger.RedactSensitiveData(err.Error()))
	}
	if s.timeout > 0 {
		sender.Timeout = s.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	s.sender = sender
	return nil
}

// Send returns the first service error. The router applies its own
// timeout, so ctx is only checked before sending.
func (s *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if s.sender == nil {
		return fmt.Errorf("shoutrrr provider %s not validated", s.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			return fmt.Errorf("shoutrrr send: %s", logger.RedactSensitiveData(err.Error()))
		}
	}
	return nil
}
