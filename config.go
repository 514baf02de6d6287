package jwtsession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/jwtsession/identity"
	"github.com/MrEthical07/jwtsession/jwt"
)

// Config is the full engine configuration. Start from [DefaultConfig] and
// override what differs; the zero value does not validate.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Identity IdentityConfig
	Throttle ThrottleConfig
	Report   ReportConfig
	Metrics  MetricsConfig
	Result   ResultConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects how bearer tokens are verified. The engine never signs.
type JWTConfig struct {
	SigningMethod string // "rs256" (default), "es256", "ed25519", "hs256"
	VerifyKey     []byte // PEM public key, raw ed25519 key, or hs256 secret
	VerifyKeys    map[string][]byte
	KeyID         string
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls Redis session storage.
//
// MaxTTL caps every session lifetime; a token valid for longer still gets
// at most MaxTTL.
type SessionConfig struct {
	RedisPrefix string
	MaxTTL      time.Duration
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig bounds identity resolution.
type IdentityConfig struct {
	MaxCreateAttempts int
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits authentication failures per client IP. The client
// IP is taken from [WithClientIP]; requests without one are never
// throttled.
type ThrottleConfig struct {
	Enabled     bool
	MaxFailures int
	Window      time.Duration
}

/*
====================================
REPORT CONFIG
====================================
*/

// ReportConfig controls asynchronous delivery of failure reports.
type ReportConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
RESULT CONFIG
====================================
*/

// ResultConfig shapes [AuthResult]. With ReturnIdentity unset only the
// email is returned.
type ResultConfig struct {
	ReturnIdentity bool
}

// DefaultConfig returns a configuration with every field but the JWT key
// material filled in.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodRS256),
			Leeway:        0,
			MaxFutureIAT:  10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "jws",
			MaxTTL:      24 * time.Hour,
		},
		Identity: IdentityConfig{
			MaxCreateAttempts: identity.DefaultMaxAttempts,
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxFailures: 20,
			Window:      time.Minute,
		},
		Report: ReportConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Result: ResultConfig{
			ReturnIdentity: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.VerifyKey = cloneBytes(cfg.JWT.VerifyKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) verifierConfig() jwt.Config {
	return jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(strings.TrimSpace(c.JWT.SigningMethod))),
		Key:           c.JWT.VerifyKey,
		VerifyKeys:    c.JWT.VerifyKeys,
		KeyID:         c.JWT.KeyID,
		Issuer:        c.JWT.Issuer,
		Audience:      c.JWT.Audience,
		Leeway:        c.JWT.Leeway,
		MaxFutureIAT:  c.JWT.MaxFutureIAT,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks structural constraints. Key material is parsed later by
// Build.
func (c *Config) Validate() error {
	// JWT
	switch jwt.SigningMethod(strings.ToLower(strings.TrimSpace(c.JWT.SigningMethod))) {
	case jwt.MethodHS256, jwt.MethodRS256, jwt.MethodES256, jwt.MethodEd25519:
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.VerifyKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
		return errors.New("JWT VerifyKey or VerifyKeys required")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}
	if c.Session.MaxTTL < time.Second {
		return errors.New("Session MaxTTL must be >= 1s")
	}

	// Identity
	if c.Identity.MaxCreateAttempts < 1 || c.Identity.MaxCreateAttempts > 10 {
		return errors.New("Identity MaxCreateAttempts must be between 1 and 10")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxFailures < 1 {
			return errors.New("Throttle MaxFailures must be >= 1 when enabled")
		}
		if c.Throttle.Window < time.Second {
			return errors.New("Throttle Window must be >= 1s when enabled")
		}
	}

	// Report
	if c.Report.Enabled && c.Report.BufferSize <= 0 {
		return errors.New("Report BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
