// Package config loads the jwtsessiond process configuration from the
// environment, reading a local .env file first when one exists.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/jwtsession"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrParsingConfig = errors.New("parse configuration")

// Server is everything the daemon reads at startup.
type Server struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass   string `env:"REDIS_PASSWORD"`

	JWTSigningMethod string        `env:"JWT_SIGNING_METHOD" envDefault:"rs256"`
	JWTKeyFile       string        `env:"JWT_VERIFY_KEY_FILE"`
	JWTKeyBase64     string        `env:"JWT_VERIFY_KEY_BASE64"`
	JWTIssuer        string        `env:"JWT_ISSUER"`
	JWTAudience      string        `env:"JWT_AUDIENCE"`
	JWTLeeway        time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`

	SessionPrefix string        `env:"SESSION_REDIS_PREFIX" envDefault:"jws"`
	SessionMaxTTL time.Duration `env:"SESSION_MAX_TTL" envDefault:"24h"`

	IdentityMaxCreateAttempts int    `env:"IDENTITY_MAX_CREATE_ATTEMPTS" envDefault:"3"`
	IdentitySchema            string `env:"IDENTITY_SCHEMA" envDefault:"public"`

	ThrottleEnabled     bool          `env:"THROTTLE_ENABLED" envDefault:"false"`
	ThrottleMaxFailures int           `env:"THROTTLE_MAX_FAILURES" envDefault:"20"`
	ThrottleWindow      time.Duration `env:"THROTTLE_WINDOW" envDefault:"1m"`

	ReportBufferSize int  `env:"REPORT_BUFFER_SIZE" envDefault:"1024"`
	ReportDropIfFull bool `env:"REPORT_DROP_IF_FULL" envDefault:"true"`

	MetricsLatency bool `env:"METRICS_LATENCY" envDefault:"true"`
	ReturnIdentity bool `env:"RETURN_IDENTITY" envDefault:"false"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
}

// Load reads .env (if present) then the process environment.
func Load() (Server, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return Parse(nil)
}

// Parse reads configuration from environ, or from the process environment
// when environ is nil.
func Parse(environ map[string]string) (Server, error) {
	var cfg Server
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// Engine converts the process configuration into an engine configuration,
// loading the verification key.
func (s Server) Engine() (jwtsession.Config, error) {
	key, err := s.verifyKey()
	if err != nil {
		return jwtsession.Config{}, err
	}

	cfg := jwtsession.DefaultConfig()
	cfg.JWT.SigningMethod = s.JWTSigningMethod
	cfg.JWT.VerifyKey = key
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience
	cfg.JWT.Leeway = s.JWTLeeway
	cfg.Session.RedisPrefix = s.SessionPrefix
	cfg.Session.MaxTTL = s.SessionMaxTTL
	cfg.Identity.MaxCreateAttempts = s.IdentityMaxCreateAttempts
	cfg.Throttle.Enabled = s.ThrottleEnabled
	cfg.Throttle.MaxFailures = s.ThrottleMaxFailures
	cfg.Throttle.Window = s.ThrottleWindow
	cfg.Report.BufferSize = s.ReportBufferSize
	cfg.Report.DropIfFull = s.ReportDropIfFull
	cfg.Metrics.EnableLatencyHistograms = s.MetricsLatency
	cfg.Result.ReturnIdentity = s.ReturnIdentity

	return cfg, cfg.Validate()
}

func (s Server) verifyKey() ([]byte, error) {
	switch {
	case s.JWTKeyFile != "" && s.JWTKeyBase64 != "":
		return nil, errors.New("set only one of JWT_VERIFY_KEY_FILE and JWT_VERIFY_KEY_BASE64")
	case s.JWTKeyFile != "":
		b, err := os.ReadFile(s.JWTKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read verify key: %w", err)
		}
		return b, nil
	case s.JWTKeyBase64 != "":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s.JWTKeyBase64))
		if err != nil {
			return nil, fmt.Errorf("decode verify key: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("verify key required: set JWT_VERIFY_KEY_FILE or JWT_VERIFY_KEY_BASE64")
	}
}
