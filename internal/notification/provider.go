package notification

import "context"

// Provider delivers admin notifications to one backend. Implementations
// must be safe for concurrent use.
type Provider interface {
	Name() string
	// Enabled reports whether the provider has anything to send to.
	// Disabled providers are skipped without validation.
	Enabled() bool
	// Validate parses the configuration once at startup.
	Validate() error
	Send(ctx context.Context, n *Notification) error
}
