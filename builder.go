package jwtsession

import (
	"errors"

	"github.com/MrEthical07/jwtsession/identity"
	"github.com/MrEthical07/jwtsession/internal/rate"
	"github.com/MrEthical07/jwtsession/internal/report"
	"github.com/MrEthical07/jwtsession/jwt"
	"github.com/MrEthical07/jwtsession/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config        Config
	redis         *redis.Client
	identityStore identity.Store
	reportSink    ReportSink
	logger        *zap.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing session storage. Required. The session
// scripts touch keys outside KEYS, so this is a single-node client.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the durable identity store. Required; use
// [identity.NewMemoryStore] for tests and single-process setups.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identityStore = store
	return b
}

// WithReportSink sets where failure causes are delivered. Defaults to a
// zap sink on the builder's logger.
func (b *Builder) WithReportSink(sink ReportSink) *Builder {
	b.reportSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, parses key material and starts the
// report dispatcher. No network I/O happens here.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identityStore == nil {
		return nil, errors.New("identity store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- VERIFIER --------
	verifier, err := jwt.NewVerifier(cfg.verifierConfig())
	if err != nil {
		return nil, err
	}

	// -------- METRICS --------
	metrics := NewMetrics(cfg.Metrics)

	// -------- IDENTITY RESOLVER --------
	resolver, err := identity.NewResolver(
		b.identityStore,
		identity.WithMaxAttempts(cfg.Identity.MaxCreateAttempts),
		identity.WithConflictHook(func(_ string, attempt int) {
			metrics.Inc(MetricIdentityCreateConflict)
			logger.Debug("identity create conflict, re-reading",
				zap.Int("attempt", attempt),
			)
		}),
		identity.WithCreateHook(func(*identity.Identity) {
			metrics.Inc(MetricIdentityCreated)
		}),
	)
	if err != nil {
		return nil, err
	}

	// -------- SESSION MANAGER --------
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix)
	sessions, err := session.NewManager(store, cfg.Session.MaxTTL)
	if err != nil {
		return nil, err
	}

	// -------- THROTTLE --------
	var throttle *rate.Limiter
	if cfg.Throttle.Enabled {
		throttle = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Session.RedisPrefix,
			MaxFailures: cfg.Throttle.MaxFailures,
			Window:      cfg.Throttle.Window,
		})
	}

	// -------- REPORTS --------
	sink := b.reportSink
	if sink == nil {
		sink = report.NewZapSink(logger)
	}
	reports := report.NewDispatcher(report.Config{
		Enabled:    cfg.Report.Enabled,
		BufferSize: cfg.Report.BufferSize,
		DropIfFull: cfg.Report.DropIfFull,
	}, sink)

	b.built = true

	return &Engine{
		config:   cfg,
		verifier: verifier,
		resolver: resolver,
		sessions: sessions,
		store:    store,
		throttle: throttle,
		reports:  reports,
		metrics:  metrics,
		logger:   logger.Named("jwtsession"),
	}, nil
}
