package jwtsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/jwtsession/identity"
	"github.com/MrEthical07/jwtsession/internal/rate"
	"github.com/MrEthical07/jwtsession/internal/report"
	"github.com/MrEthical07/jwtsession/jwt"
	"github.com/MrEthical07/jwtsession/session"
	"go.uber.org/zap"
)

const (
	opAuthenticate    = "authenticate"
	opCreateSession   = "create_session"
	opDestroySessions = "destroy_sessions"
)

var errMissingToken = errors.New("token is blank")

// Engine verifies tokens, resolves identities and manages sessions.
//
// Engine instances are built once by [Builder.Build] and are safe for
// concurrent use.
type Engine struct {
	config   Config
	verifier *jwt.Verifier
	resolver *identity.Resolver
	sessions *session.Manager
	store    *session.Store
	throttle *rate.Limiter
	reports  *report.Dispatcher
	metrics  *Metrics
	logger   *zap.Logger
}

// Close stops the report dispatcher after draining queued reports. The
// Redis client and identity store stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.reports != nil {
		e.reports.Close()
	}
}

// ReportDropped returns how many failure reports were discarded because the
// buffer was full.
func (e *Engine) ReportDropped() uint64 {
	if e == nil || e.reports == nil {
		return 0
	}
	return e.reports.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

func (e *Engine) ready() bool {
	return e != nil && e.verifier != nil && e.resolver != nil && e.sessions != nil
}

// Authenticate verifies token and resolves it to an identity, creating the
// identity on first sight.
//
// Any failure is an [*AuthError]. The email is always returned; the full
// identity only when [ResultConfig.ReturnIdentity] is set.
func (e *Engine) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, ident, err := e.authenticate(ctx, opAuthenticate, token)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricAuthSuccess)

	res := &AuthResult{
		Email:  ident.Email,
		Claims: claims,
	}
	if e.config.Result.ReturnIdentity {
		res.Identity = ident
	}
	return res, nil
}

// CreateSession authenticates token and replaces every live session of the
// resolved identity with a new one. The session lives for the token's
// remaining validity, capped by [SessionConfig.MaxTTL].
//
// Authentication failures are [*AuthError]. A token that expires before
// the session can be written yields [ErrSessionInvalidTTL]; a Redis failure
// yields [ErrSessionBackend]. In both cases no new session exists.
func (e *Engine) CreateSession(ctx context.Context, token string) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, ident, err := e.authenticate(ctx, opCreateSession, token)
	if err != nil {
		return nil, err
	}

	created, err := e.sessions.Create(ctx, ident.ID, time.Until(claims.Expiry()))
	if err != nil {
		return nil, e.sessionFailure(ctx, opCreateSession, err)
	}
	e.metricInc(MetricSessionCreated)
	e.metricAdd(MetricSessionReplaced, created.Replaced)

	rec := created.Record
	return &SessionResult{
		SessionID:  rec.SessionID,
		IdentityID: rec.IdentityID,
		TTL:        created.TTL,
		ExpiresAt:  rec.Expires(),
		Replaced:   created.Replaced,
	}, nil
}

// DestroySessions authenticates token and removes every session of the
// resolved identity. It returns the number removed, which is 0 when none
// existed.
func (e *Engine) DestroySessions(ctx context.Context, token string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	_, ident, err := e.authenticate(ctx, opDestroySessions, token)
	if err != nil {
		return 0, err
	}

	n, err := e.sessions.Destroy(ctx, ident.ID)
	if err != nil {
		return 0, e.sessionFailure(ctx, opDestroySessions, err)
	}
	e.metricAdd(MetricSessionDestroyed, n)
	return n, nil
}

// SessionIDs lists the live session ids of identityID.
func (e *Engine) SessionIDs(ctx context.Context, identityID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ids, err := e.sessions.IDs(ctx, identityID)
	if err != nil {
		e.logger.Error("session ids lookup failed", zap.String("identity_id", identityID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSessionBackend, err)
	}
	return ids, nil
}

// LookupSession returns the live session with id sessionID. Missing,
// expired and malformed ids yield [ErrSessionNotFound].
func (e *Engine) LookupSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	rec, err := e.sessions.Lookup(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return nil, ErrSessionNotFound
		}
		e.logger.Error("session lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSessionBackend, err)
	}
	return &SessionInfo{
		SessionID:  rec.SessionID,
		IdentityID: rec.IdentityID,
		CreatedAt:  time.UnixMilli(rec.CreatedAt),
		ExpiresAt:  rec.Expires(),
	}, nil
}

// Ping checks Redis reachability.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if _, err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionBackend, err)
	}
	return nil
}

// authenticate runs verification then resolution. Every failure except a
// canceled context or a throttled client becomes an AuthError after the
// cause is reported.
func (e *Engine) authenticate(ctx context.Context, op, token string) (*Claims, *Identity, error) {
	if err := e.checkThrottle(ctx, op); err != nil {
		return nil, nil, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		e.metricInc(MetricTokenInvalid)
		return nil, nil, e.authFailure(ctx, op, ErrTokenInvalid, errMissingToken)
	}

	start := time.Now()
	claims, err := e.verifier.Verify(token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricTokenInvalid)
		return nil, nil, e.authFailure(ctx, op, ErrTokenInvalid, err)
	}

	ident, err := e.resolver.Resolve(ctx, identity.Attributes{
		Email: claims.Email,
		UID:   claims.UID,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, nil, err
		case errors.Is(err, identity.ErrAttributeInvalid):
			e.metricInc(MetricIdentityAttributeInvalid)
			return nil, nil, e.authFailure(ctx, op, ErrIdentityAttributeInvalid, err)
		case errors.Is(err, identity.ErrCreateConflictExhausted):
			e.metricInc(MetricIdentityCreateConflictExhausted)
			return nil, nil, e.authFailure(ctx, op, ErrIdentityCreateConflictExhausted, err)
		default:
			e.logger.Error("identity resolution failed", zap.String("operation", op), zap.Error(err))
			return nil, nil, e.authFailure(ctx, op, ErrIdentityBackend, err)
		}
	}
	return claims, ident, nil
}

func (e *Engine) authFailure(ctx context.Context, op string, kind, detail error) error {
	e.metricInc(MetricAuthFailure)
	e.report(ctx, op, kind, detail)
	if kind == ErrTokenInvalid || kind == ErrIdentityAttributeInvalid {
		e.recordThrottleFailure(ctx)
	}
	return newAuthError(kind, detail)
}

// checkThrottle fails open when Redis is unreachable.
func (e *Engine) checkThrottle(ctx context.Context, op string) error {
	ip := clientIPFromContext(ctx)
	if e.throttle == nil || ip == "" {
		return nil
	}
	err := e.throttle.Check(ctx, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricThrottled)
		e.report(ctx, op, ErrThrottled, err)
		return ErrThrottled
	default:
		e.logger.Warn("throttle check failed", zap.String("operation", op), zap.Error(err))
		return nil
	}
}

func (e *Engine) recordThrottleFailure(ctx context.Context) {
	ip := clientIPFromContext(ctx)
	if e.throttle == nil || ip == "" {
		return
	}
	if _, err := e.throttle.RecordFailure(ctx, ip); err != nil {
		e.logger.Warn("throttle record failed", zap.Error(err))
	}
}

func (e *Engine) sessionFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, session.ErrInvalidTTL) {
		e.metricInc(MetricSessionInvalidTTL)
		e.report(ctx, op, ErrSessionInvalidTTL, err)
		return fmt.Errorf("%w: %v", ErrSessionInvalidTTL, err)
	}
	e.metricInc(MetricSessionBackendError)
	e.logger.Error("session store failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrSessionBackend, err)
}
