// Package tier defines subscription tiers and the per-tenant effective
// configuration derived from them.
package tier

import "fmt"

// Name identifies a subscription tier.
type Name string

// Known tiers, lowest to highest.
const (
	Free Name = "free"
	Pro  Name = "pro"
	Team Name = "team"
)

// Config is the effective resource configuration for one tenant.
// It is resolved once from a Request and read on every inbound request.
type Config struct {
	// MaxRequestSize is the request body ceiling in bytes.
	MaxRequestSize int64 `json:"maxRequestSize"`

	// MaxDelayMs caps the configured response delay.
	MaxDelayMs int `json:"maxDelayMs"`

	// DefaultEndpointRateLimit applies to endpoints without an explicit
	// limit, in requests per minute.
	DefaultEndpointRateLimit int `json:"defaultEndpointRateLimit"`

	// MaxEndpointRateLimit clamps any configured endpoint limit.
	MaxEndpointRateLimit int `json:"maxEndpointRateLimit"`

	// LogRetentionDays bounds how long request log entries are kept.
	LogRetentionDays int `json:"logRetentionDays"`
}

// limits is the tier lookup table.
var limits = map[Name]Config{
	Free: {
		MaxRequestSize:           64 * 1024,
		MaxDelayMs:               5000,
		DefaultEndpointRateLimit: 30,
		MaxEndpointRateLimit:     60,
		LogRetentionDays:         1,
	},
	Pro: {
		MaxRequestSize:           1024 * 1024,
		MaxDelayMs:               30000,
		DefaultEndpointRateLimit: 60,
		MaxEndpointRateLimit:     300,
		LogRetentionDays:         7,
	},
	Team: {
		MaxRequestSize:           5 * 1024 * 1024,
		MaxDelayMs:               60000,
		DefaultEndpointRateLimit: 150,
		MaxEndpointRateLimit:     1500,
		LogRetentionDays:         30,
	},
}

// Lookup returns the configuration for a named tier.
func Lookup(name Name) (Config, bool) {
	c, ok := limits[name]
	return c, ok
}

// Default returns the free tier configuration. A tenant with no stored
// config is treated as free.
func Default() Config {
	return limits[Free]
}

// Request is a configuration update from a trusted caller: either a tier
// name, explicit values, or both. When both are supplied the tier name
// wins and the explicit values are ignored.
type Request struct {
	Tier                     string `json:"tier,omitempty"`
	MaxRequestSize           *int64 `json:"maxRequestSize,omitempty"`
	MaxDelayMs               *int   `json:"maxDelayMs,omitempty"`
	DefaultEndpointRateLimit *int   `json:"defaultEndpointRateLimit,omitempty"`
	MaxEndpointRateLimit     *int   `json:"maxEndpointRateLimit,omitempty"`
	LogRetentionDays         *int   `json:"logRetentionDays,omitempty"`
}

// Resolve converts a Request into a concrete Config, starting from the
// current effective config. Downstream code only ever sees the resolved
// struct; the tier-or-override duality stops here.
func (r Request) Resolve(current Config) (Config, error) {
	if r.Tier != "" {
		c, ok := Lookup(Name(r.Tier))
		if !ok {
			return Config{}, fmt.Errorf("unknown tier %q", r.Tier)
		}
		return c, nil
	}

	out := current
	if r.MaxRequestSize != nil {
		out.MaxRequestSize = *r.MaxRequestSize
	}
	if r.MaxDelayMs != nil {
		out.MaxDelayMs = *r.MaxDelayMs
	}
	if r.DefaultEndpointRateLimit != nil {
		out.DefaultEndpointRateLimit = *r.DefaultEndpointRateLimit
	}
	if r.MaxEndpointRateLimit != nil {
		out.MaxEndpointRateLimit = *r.MaxEndpointRateLimit
	}
	if r.LogRetentionDays != nil {
		out.LogRetentionDays = *r.LogRetentionDays
	}
	return out, nil
}

// EndpointRateLimit returns the effective per-endpoint limit in requests
// per minute: the endpoint's own limit when set, else the tier default,
// clamped to the tier maximum either way.
func (c Config) EndpointRateLimit(endpointLimit int) int {
	limit := endpointLimit
	if limit <= 0 {
		limit = c.DefaultEndpointRateLimit
	}
	if c.MaxEndpointRateLimit > 0 && limit > c.MaxEndpointRateLimit {
		limit = c.MaxEndpointRateLimit
	}
	return limit
}
