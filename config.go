package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Config is the complete engine configuration. Build copies it; later
// changes to the caller's value have no effect.
type Config struct {
	Token      TokenConfig
	Lockout    LockoutConfig
	Revocation RevocationConfig
	Password   PasswordConfig
	Store      StoreConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures token signing and lifetimes.
type TokenConfig struct {
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	Secret        []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	// Leeway tolerates clock skew between issuing and verifying instances
	// by accepting tokens up to Leeway past exp. It applies to every token,
	// so one issued with a zero or negative TTL is still accepted until
	// Leeway has passed. Zero (the default) rejects at exp exactly.
	Leeway time.Duration
	KeyID  string
	// VerifyKeys holds rotated-out secrets by kid; tokens they signed still verify.
	VerifyKeys map[string][]byte
	// RotateRefresh revokes a refresh token when it is used and returns a new one.
	RotateRefresh bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// Lockout state backends.
const (
	LockoutBackendUserStore = "userstore"
	LockoutBackendRedis     = "redis"
)

// LockoutConfig configures the failed-login lockout.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
	// Backend selects where lockout state lives: the user store (default) or
	// a Redis hash per account.
	Backend     string
	RedisPrefix string
	// RedisIdleTTL expires a Redis lockout hash that holds failures but no
	// lock after this long without another failure. Zero keeps partial
	// counters until success or unlock. Locked hashes always expire shortly
	// after the lock.
	RedisIdleTTL time.Duration
	Stripes      int
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// Revocation store backends.
const (
	RevocationBackendMemory = "memory"
	RevocationBackendRedis  = "redis"
)

// RevocationConfig configures the token revocation store.
type RevocationConfig struct {
	Backend     string
	RedisPrefix string
	Shards      int
	// SweepInterval enables background cleanup of expired in-memory entries.
	// Zero disables the sweeper.
	SweepInterval time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// Password schemes.
const (
	PasswordSchemeArgon2id = "argon2id"
	PasswordSchemeBcrypt   = "bcrypt"
)

// PasswordConfig configures password hashing.
type PasswordConfig struct {
	Scheme      string
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int
	// AcceptLegacyBcrypt verifies bcrypt hashes when Scheme is argon2id.
	AcceptLegacyBcrypt bool
	MinPasswordBytes   int
	MaxPasswordBytes   int
}

/*
====================================
STORE / AUDIT / METRICS CONFIG
====================================
*/

// StoreConfig bounds calls to the user store and shared backends.
type StoreConfig struct {
	Timeout time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// DeliveryTimeout bounds each sink call. Zero means unbounded.
	DeliveryTimeout time.Duration
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Token.Secret is left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: string(jwt.MethodHS256),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold:    5,
			Duration:     15 * time.Minute,
			Backend:      LockoutBackendUserStore,
			RedisPrefix:  "alo",
			RedisIdleTTL: 24 * time.Hour,
			Stripes:      256,
		},
		Revocation: RevocationConfig{
			Backend:       RevocationBackendMemory,
			RedisPrefix:   "arv",
			Shards:        32,
			SweepInterval: time.Minute,
		},
		Password: PasswordConfig{
			Scheme:           PasswordSchemeArgon2id,
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			BcryptCost:       12,
			MinPasswordBytes: 10,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
		},
		Store: StoreConfig{
			Timeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:         false,
			BufferSize:      1024,
			DropIfFull:      true,
			DeliveryTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
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

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
// Build calls it; errors name the offending field.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.Secret) < jwt.MinKeyBytes {
		return fmt.Errorf("Token.Secret: %w", jwt.ErrKeyTooShort)
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token.AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token.RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token.RefreshTTL must exceed Token.AccessTTL")
	}
	switch jwt.SigningMethod(c.Token.SigningMethod) {
	case jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
	default:
		return fmt.Errorf("Token.SigningMethod %q unsupported", c.Token.SigningMethod)
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token.Leeway must be within [0, 2m]")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout.Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout.Duration must be > 0")
	}
	switch c.Lockout.Backend {
	case LockoutBackendUserStore, LockoutBackendRedis:
	default:
		return fmt.Errorf("Lockout.Backend %q unsupported", c.Lockout.Backend)
	}
	if c.Lockout.RedisIdleTTL < 0 {
		return errors.New("Lockout.RedisIdleTTL must be >= 0")
	}
	if c.Lockout.Stripes < 0 {
		return errors.New("Lockout.Stripes must be >= 0")
	}

	// Revocation
	switch c.Revocation.Backend {
	case RevocationBackendMemory, RevocationBackendRedis:
	default:
		return fmt.Errorf("Revocation.Backend %q unsupported", c.Revocation.Backend)
	}
	if c.Revocation.SweepInterval < 0 {
		return errors.New("Revocation.SweepInterval must be >= 0")
	}
	if c.Revocation.Shards < 0 {
		return errors.New("Revocation.Shards must be >= 0")
	}

	// Password
	switch c.Password.Scheme {
	case PasswordSchemeArgon2id:
		if err := c.argon2Config().Validate(); err != nil {
			return fmt.Errorf("Password: %w", err)
		}
	case PasswordSchemeBcrypt:
	default:
		return fmt.Errorf("Password.Scheme %q unsupported", c.Password.Scheme)
	}

	// Store
	if c.Store.Timeout < 0 {
		return errors.New("Store.Timeout must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.DeliveryTimeout < 0 {
		return errors.New("Audit.DeliveryTimeout must be >= 0")
	}

	return nil
}

func (c *Config) argon2Config() password.Argon2Config {
	return password.Argon2Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MinPasswordBytes: c.Password.MinPasswordBytes,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func (c *Config) codecConfig(now func() time.Time) jwt.Config {
	return jwt.Config{
		SigningMethod: jwt.SigningMethod(c.Token.SigningMethod),
		Secret:        c.Token.Secret,
		AccessTTL:     c.Token.AccessTTL,
		RefreshTTL:    c.Token.RefreshTTL,
		Issuer:        c.Token.Issuer,
		Audience:      c.Token.Audience,
		Leeway:        c.Token.Leeway,
		KeyID:         c.Token.KeyID,
		VerifyKeys:    c.Token.VerifyKeys,
		Now:           now,
	}
}
