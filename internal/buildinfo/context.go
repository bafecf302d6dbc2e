// Package buildinfo holds build-time metadata kept apart from user configuration.
package buildinfo

import (
	"os"
	"strings"
)

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata. It is injected at startup and is
// never part of the saved settings.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// SystemID identifies this device in telemetry and MQTT client IDs
	SystemID string
}

// NewContext returns build metadata with the host name as system ID.
func NewContext(version, buildDate string) *Context {
	host, _ := os.Hostname()
	return &Context{Version: version, BuildDate: buildDate, SystemID: host}
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

// GetSystemID returns the system ID or UnknownValue.
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return UnknownValue
	}
	return c.SystemID
}

// Release is the release name reported with errors, e.g. "boxrec@1.2.0".
func (c *Context) Release() string {
	return "boxrec@" + c.GetVersion()
}

// ClientID is the default MQTT client ID. Brokers drop an older session
// when a second client connects with the same ID, so it carries the system ID.
func (c *Context) ClientID() string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, c.GetSystemID())
	return "boxrec-" + id
}
