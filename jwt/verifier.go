package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the algorithm a [Verifier] accepts. Exactly one
// method is accepted per verifier; tokens signed with anything else are
// rejected before key lookup.
type SigningMethod string

const (
	// MethodHS256 verifies HMAC-SHA256 tokens against a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodRS256 verifies RSASSA-PKCS1-v1_5 SHA-256 tokens against an RSA public key.
	MethodRS256 SigningMethod = "rs256"
	// MethodES256 verifies ECDSA P-256 tokens against an EC public key.
	MethodES256 SigningMethod = "es256"
	// MethodEd25519 verifies EdDSA tokens against an Ed25519 public key.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrMissingExpiry is returned when a token carries no exp claim.
	ErrMissingExpiry = errors.New("token has no expiry")
	// ErrIATInFuture is returned when iat is further ahead than MaxFutureIAT.
	ErrIATInFuture = errors.New("token iat too far in the future")
)

// Config holds verification settings. Key material is either a single
// Key (secret bytes for hs256, PEM or raw bytes otherwise) or a kid-indexed
// VerifyKeys map for rotation.
type Config struct {
	SigningMethod SigningMethod
	Key           []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Verifier validates signed claim sets. It is immutable after construction
// and safe for concurrent use.
type Verifier struct {
	config Config
	method jwt.SigningMethod
	key    interface{}
	keys   map[string]interface{}
	parser *jwt.Parser
}

// Claims is the decoded payload of a bearer token.
type Claims struct {
	Email string `json:"email"`
	UID   string `json:"uid,omitempty"`
	Level int    `json:"level,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// NewVerifier validates cfg and pre-parses its key material.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	v := &Verifier{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		v.method = jwt.SigningMethodHS256
	case MethodRS256:
		v.method = jwt.SigningMethodRS256
	case MethodES256:
		v.method = jwt.SigningMethodES256
	case MethodEd25519:
		v.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	if len(cfg.VerifyKeys) == 0 && len(cfg.Key) == 0 {
		return nil, fmt.Errorf("%s requires a key or verify key set", cfg.SigningMethod)
	}
	if len(cfg.Key) > 0 {
		key, err := parseVerifyKey(cfg.SigningMethod, cfg.Key)
		if err != nil {
			return nil, err
		}
		v.key = key
	}
	if len(cfg.VerifyKeys) > 0 {
		v.keys = make(map[string]interface{}, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			key, err := parseVerifyKey(cfg.SigningMethod, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			v.keys[kid] = key
		}
		if cfg.KeyID != "" {
			if _, ok := v.keys[cfg.KeyID]; !ok {
				return nil, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(options...)

	return v, nil
}

// Method reports the configured signing method.
func (v *Verifier) Method() SigningMethod {
	return v.config.SigningMethod
}

// Verify decodes tokenStr and checks signature, algorithm, expiry and the
// optional issuer/audience constraints. The returned error keeps the
// library's fine-grained cause; callers decide how much of it to expose.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenStr, &Claims{}, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
			return nil, errors.Join(ErrMissingExpiry, err)
		}
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && v.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(v.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, ErrIATInFuture
		}
	}

	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != v.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(v.keys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			if v.key != nil {
				return v.key, nil
			}
			return nil, errors.New("missing kid")
		}
		key, ok := v.keys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if v.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != v.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return v.key, nil
}

// minHS256KeyLen is the HMAC-SHA256 key size from RFC 7518 section 3.2.
const minHS256KeyLen = 32

func parseVerifyKey(method SigningMethod, key []byte) (interface{}, error) {
	switch method {
	case MethodHS256:
		if len(key) < minHS256KeyLen {
			return nil, errors.New("hs256 secret must be at least 32 bytes")
		}
		return key, nil
	case MethodRS256:
		return parseRSAPublicKey(key)
	case MethodES256:
		return parseECPublicKey(key)
	default:
		return parseEdPublicKey(key)
	}
}

func parseRSAPublicKey(key []byte) (*rsa.PublicKey, error) {
	parsed, err := jwt.ParseRSAPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid rsa public key")
	}
	return parsed, nil
}

func parseECPublicKey(key []byte) (*ecdsa.PublicKey, error) {
	parsed, err := jwt.ParseECPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ecdsa public key")
	}
	return parsed, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
