package jwtsession

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.VerifyKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"defaults with key", func(*Config) {}, true},
		{"signing method case insensitive", func(c *Config) { c.JWT.SigningMethod = "HS256" }, true},
		{"signing method unknown", func(c *Config) { c.JWT.SigningMethod = "none" }, false},
		{"missing key", func(c *Config) { c.JWT.VerifyKey = nil }, false},
		{"key set instead of key", func(c *Config) {
			c.JWT.VerifyKey = nil
			c.JWT.VerifyKeys = map[string][]byte{"k1": []byte("0123456789abcdef0123456789abcdef")}
		}, true},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, false},
		{"leeway negative", func(c *Config) { c.JWT.Leeway = -time.Second }, false},
		{"future iat negative", func(c *Config) { c.JWT.MaxFutureIAT = -time.Second }, false},
		{"empty prefix", func(c *Config) { c.Session.RedisPrefix = " " }, false},
		{"prefix with space", func(c *Config) { c.Session.RedisPrefix = "a b" }, false},
		{"max ttl too small", func(c *Config) { c.Session.MaxTTL = 500 * time.Millisecond }, false},
		{"zero attempts", func(c *Config) { c.Identity.MaxCreateAttempts = 0 }, false},
		{"too many attempts", func(c *Config) { c.Identity.MaxCreateAttempts = 11 }, false},
		{"throttle disabled ignores budget", func(c *Config) { c.Throttle.MaxFailures = 0 }, true},
		{"throttle zero budget", func(c *Config) {
			c.Throttle.Enabled = true
			c.Throttle.MaxFailures = 0
		}, false},
		{"throttle short window", func(c *Config) {
			c.Throttle.Enabled = true
			c.Throttle.Window = 100 * time.Millisecond
		}, false},
		{"report buffer zero", func(c *Config) { c.Report.BufferSize = 0 }, false},
		{"report disabled buffer zero", func(c *Config) {
			c.Report.Enabled = false
			c.Report.BufferSize = 0
		}, true},
		{"latency without metrics", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.EnableLatencyHistograms = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := validTestConfig()
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": []byte("0123456789abcdef0123456789abcdef")}

	out := cloneConfig(cfg)
	cfg.JWT.VerifyKey[0] = 'X'
	cfg.JWT.VerifyKeys["k1"][0] = 'X'
	cfg.JWT.VerifyKeys["k2"] = []byte("added")

	if out.JWT.VerifyKey[0] == 'X' || out.JWT.VerifyKeys["k1"][0] == 'X' {
		t.Fatal("clone shares key bytes with source")
	}
	if _, ok := out.JWT.VerifyKeys["k2"]; ok {
		t.Fatal("clone shares key map with source")
	}
}
