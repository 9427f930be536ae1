package jwt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinKeyBytes is the shortest accepted HMAC secret (256 bits).
const MinKeyBytes = 32

var (
	// ErrMalformed is returned for input that is not a structurally valid token.
	ErrMalformed = errors.New("malformed token")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when a correctly signed token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrWrongKind is returned by DecodeKind when the token kind does not match.
	ErrWrongKind = errors.New("token kind mismatch")
	// ErrKeyTooShort is returned by NewCodec when a signing or verify key is below MinKeyBytes.
	ErrKeyTooShort = errors.New("signing key shorter than 256 bits")
)

// SigningMethod selects the HMAC variant.
type SigningMethod string

const (
	MethodHS256 SigningMethod = "hs256"
	MethodHS384 SigningMethod = "hs384"
	MethodHS512 SigningMethod = "hs512"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Config holds codec settings. It is copied by NewCodec and never mutated afterwards.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	// Leeway extends the expiry check by this much. A token issued with
	// ttl <= 0 decodes as expired only once Leeway has also elapsed.
	Leeway time.Duration
	// KeyID is stamped into the "kid" header. When VerifyKeys is set it must
	// name one of its entries.
	KeyID string
	// VerifyKeys maps kid to secret for tokens signed by rotated-out keys.
	VerifyKeys map[string][]byte
	Now        func() time.Time
}

// Claims is the decoded content of a session token.
type Claims struct {
	Kind        Kind     `json:"knd"`
	Authorities []string `json:"auth,omitempty"`
	jwt.RegisteredClaims
}

// Token is a freshly issued token together with the claims it carries.
type Token struct {
	Value  string
	Claims Claims
}

// Codec signs and verifies session tokens. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
}

// NewCodec validates cfg and returns a ready codec. It fails fast on short
// keys so a misconfigured process never issues weak tokens.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case MethodHS256:
		method = jwt.SigningMethodHS256
	case MethodHS384:
		method = jwt.SigningMethodHS384
	case MethodHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.New("unsupported signing method")
	}

	if len(cfg.Secret) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if len(cfg.VerifyKeys) > 0 {
		keys := make(map[string][]byte, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < MinKeyBytes {
				return nil, fmt.Errorf("verify key %q: %w", kid, ErrKeyTooShort)
			}
			keys[kid] = append([]byte(nil), key...)
		}
		if cfg.KeyID == "" {
			return nil, errors.New("KeyID is required when VerifyKeys is set")
		}
		if _, ok := keys[cfg.KeyID]; !ok {
			keys[cfg.KeyID] = cfg.Secret
		}
		cfg.VerifyKeys = keys
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{config: cfg, method: method}, nil
}

// AccessTTL returns the default lifetime of access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL returns the default lifetime of refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// IssueAccess issues an access token with the configured access TTL.
func (c *Codec) IssueAccess(subject string, authorities []string) (Token, error) {
	return c.Issue(subject, KindAccess, authorities, c.config.AccessTTL)
}

// IssueRefresh issues a refresh token with the configured refresh TTL.
func (c *Codec) IssueRefresh(subject string, authorities []string) (Token, error) {
	return c.Issue(subject, KindRefresh, authorities, c.config.RefreshTTL)
}

// Issue signs a new token. A non-positive ttl is accepted and produces a
// token that Decode reports as expired.
func (c *Codec) Issue(subject string, kind Kind, authorities []string, ttl time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("empty subject")
	}
	if !kind.valid() {
		return Token{}, fmt.Errorf("unknown token kind %q", kind)
	}

	now := c.config.Now()
	claims := Claims{
		Kind:        kind,
		Authorities: normalizeAuthorities(authorities),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signed, err := token.SignedString(c.config.Secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, Claims: claims}, nil
}

// Decode verifies the signature, then the expiry, and returns the claims.
// Errors wrap exactly one of ErrMalformed, ErrBadSignature or ErrExpired.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	parser := c.parser()

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, c.keyFunc)
	if err != nil {
		return nil, c.classify(parser, tokenStr, err)
	}
	if !token.Valid {
		return nil, ErrBadSignature
	}
	if claims.Subject == "" || claims.ID == "" || !claims.Kind.valid() {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}

	return claims, nil
}

// DecodeKind decodes the token and requires it to be of the given kind.
func (c *Codec) DecodeKind(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrWrongKind, kind, claims.Kind)
	}
	return claims, nil
}

func (c *Codec) parser() *jwt.Parser {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}
	return jwt.NewParser(options...)
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return c.config.Secret, nil
}

// classify maps parser errors onto the codec's three failure kinds. A token
// whose header and payload decode but whose signature segment does not is a
// signature failure, not a structural one.
func (c *Codec) classify(parser *jwt.Parser, tokenStr string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		if strings.Count(tokenStr, ".") == 2 {
			if _, _, uerr := parser.ParseUnverified(tokenStr, &Claims{}); uerr == nil {
				return fmt.Errorf("%w: %v", ErrBadSignature, err)
			}
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func normalizeAuthorities(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
