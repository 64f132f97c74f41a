// Package buildinfo carries build-time metadata that is not user configurable.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/tphakala/cropguard/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context holds the version and build date of the running binary.
type Context struct {
	Version   string
	BuildDate string
}

// NewContext returns a Context with the given values.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// Current returns the metadata linked into the binary.
func Current() *Context {
	return NewContext(version, buildDate)
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release is the identifier used for error reports, e.g. cropguard@1.2.0.
func (c *Context) Release() string {
	return "cropguard@" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}
