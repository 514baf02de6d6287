package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/jwtsession"
	"github.com/MrEthical07/jwtsession/identity"
	"github.com/MrEthical07/jwtsession/jwt"
	"github.com/MrEthical07/jwtsession/middleware"
	"github.com/alicebob/miniredis/v2"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

var routerTestSecret = []byte("0123456789abcdef0123456789abcdef")

func newRouterTest(t *testing.T, mutate func(*jwtsession.Config), opts Options) (http.Handler, *jwtsession.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := jwtsession.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.VerifyKey = routerTestSecret
	cfg.Report.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := jwtsession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(identity.NewMemoryStore()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	})
	return NewRouter(engine, opts), engine, mr
}

func signedToken(t *testing.T, email string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.Claims{
		Email: email,
		RegisteredClaims: gjwt.RegisteredClaims{
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(routerTestSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func postSession(h http.Handler, token string) *httptest.ResponseRecorder {
	form := url.Values{}
	if token != "" {
		form.Set("token", token)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v2/sessions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func deleteSession(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/api/v2/sessions", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	h, engine, _ := newRouterTest(t, nil, Options{})
	ctx := context.Background()
	token := signedToken(t, "member@example.com", time.Minute)

	if rec := postSession(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("POST without token: expected 401, got %d", rec.Code)
	}

	rec := postSession(h, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cookie := sessionCookie(t, rec)
	if cookie.Value != body.SessionID || !cookie.HttpOnly {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
	if cookie.MaxAge < 55 || cookie.MaxAge > 60 || body.ExpiresIn != int64(cookie.MaxAge) {
		t.Fatalf("cookie max age %d / expires_in %d outside [55,60]", cookie.MaxAge, body.ExpiresIn)
	}

	info, err := engine.LookupSession(ctx, body.SessionID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	identityID := info.IdentityID
	assertSessionCount(t, engine, identityID, 1)

	if rec := postSession(h, token); rec.Code != http.StatusCreated {
		t.Fatalf("repeat POST: expected 201, got %d", rec.Code)
	}
	assertSessionCount(t, engine, identityID, 1)

	rec = deleteSession(h, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE: expected 200, got %d", rec.Code)
	}
	if c := sessionCookie(t, rec); c.MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got max age %d", c.MaxAge)
	}
	assertSessionCount(t, engine, identityID, 0)

	if rec := deleteSession(h, token); rec.Code != http.StatusOK {
		t.Fatalf("DELETE without session: expected 200, got %d", rec.Code)
	}
	if rec := deleteSession(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("DELETE without token: expected 401, got %d", rec.Code)
	}
}

func assertSessionCount(t *testing.T, engine *jwtsession.Engine, identityID string, want int) {
	t.Helper()
	ids, err := engine.SessionIDs(context.Background(), identityID)
	if err != nil {
		t.Fatalf("session ids: %v", err)
	}
	if len(ids) != want {
		t.Fatalf("expected %d session ids, got %d", want, len(ids))
	}
}

func TestInvalidTokenGets401WithFixedBody(t *testing.T) {
	h, _, _ := newRouterTest(t, nil, Options{})

	for _, token := range []string{"garbage", signedToken(t, "x@example.com", -time.Minute), signedToken(t, "", time.Minute)} {
		rec := postSession(h, token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"unauthorized"}` {
			t.Fatalf("unexpected body %q", rec.Body.String())
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatal("no cookie may be set on failure")
		}
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	h, _, _ := newRouterTest(t, func(c *jwtsession.Config) { c.Result.ReturnIdentity = true }, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/me", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "Me@Example.com", time.Minute))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body meResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Email != "me@example.com" || body.Identity == nil || body.Identity.ID == "" {
		t.Fatalf("unexpected body %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v2/me", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	h, _, _ := newRouterTest(t, nil, Options{})

	created := postSession(h, signedToken(t, "cookie@example.com", time.Minute))
	cookie := sessionCookie(t, created)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session cookie, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v2/session", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "AAAAAAAAAAAAAAAAAAAAAA"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown session, got %d", rec.Code)
	}
}

func TestSessionBackendDownIs503(t *testing.T) {
	h, _, mr := newRouterTest(t, nil, Options{})
	token := signedToken(t, "down@example.com", time.Minute)
	mr.Close()

	if rec := postSession(h, token); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: expected 503, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "probe"}))
	h, _, _ := newRouterTest(t, nil, Options{Gatherer: reg})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "probe_total") {
		t.Fatalf("unexpected metrics response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestThrottledClientGets429(t *testing.T) {
	h, _, _ := newRouterTest(t, func(c *jwtsession.Config) {
		c.Throttle.Enabled = true
		c.Throttle.MaxFailures = 2
	}, Options{})

	send := func(token string) int {
		form := url.Values{"token": {token}}
		req := httptest.NewRequest(http.MethodPost, "/api/v2/sessions", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("garbage"); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, code)
		}
	}
	if code := send(signedToken(t, "late@example.com", time.Minute)); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}
