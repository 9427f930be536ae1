package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/revocation"
)

// dummyPassword is hashed once at Build. Logins for unknown usernames verify
// against it so they cost about as much as a real mismatch.
const dummyPassword = "authcore-unknown-account"

// Builder assembles an Engine. A Builder is single-use: Build may succeed
// only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users        UserStore
	revocations  revocation.Store
	lockoutStore lockout.StateStore
	hasher       PasswordHasher
	auditSink    AuditSink
	logger       zerolog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the account store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithRedis sets the client used by the "redis" revocation and lockout
// backends.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRevocationStore overrides Config.Revocation.Backend with a custom store.
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.revocations = store
	return b
}

// WithLockoutStore overrides Config.Lockout.Backend with a custom store. A
// store that also implements lockout.AtomicStateStore is used atomically.
func (b *Builder) WithLockoutStore(store lockout.StateStore) *Builder {
	b.lockoutStore = store
	return b
}

// WithPasswordHasher overrides the hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets the sink that receives audit events when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for token timestamps and lock deadlines.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
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

// Build validates the configuration and wires every component. It fails
// fast on a short signing key, a missing user store, or a redis backend
// without a client.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(cfg.codecConfig(now))
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	// -------- REVOCATION STORE --------
	revocations := b.revocations
	if revocations == nil {
		switch cfg.Revocation.Backend {
		case RevocationBackendRedis:
			if b.redis == nil {
				return nil, errors.New("redis revocation backend requires a redis client")
			}
			revocations = revocation.NewRedisStore(b.redis, revocation.RedisConfig{
				Prefix: cfg.Revocation.RedisPrefix,
				Now:    now,
			})
		default:
			revocations = revocation.NewMemoryStore(revocation.MemoryConfig{
				Shards: cfg.Revocation.Shards,
				Now:    now,
			})
		}
	}

	// -------- LOCKOUT --------
	lockoutStore := b.lockoutStore
	if lockoutStore == nil {
		switch cfg.Lockout.Backend {
		case LockoutBackendRedis:
			if b.redis == nil {
				return nil, errors.New("redis lockout backend requires a redis client")
			}
			lockoutStore = lockout.NewRedisStore(b.redis, lockout.RedisConfig{
				Prefix:  cfg.Lockout.RedisPrefix,
				IdleTTL: cfg.Lockout.RedisIdleTTL,
				Now:     now,
			})
		default:
			lockoutStore = b.users
		}
	}
	manager, err := lockout.NewManager(lockoutStore, lockout.Config{
		Policy: lockout.Policy{
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
		},
		Stripes: cfg.Lockout.Stripes,
		Now:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("lockout: %w", err)
	}

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		hasher, err = buildHasher(&cfg)
		if err != nil {
			return nil, fmt.Errorf("password hasher: %w", err)
		}
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	// -------- METRICS / AUDIT --------
	m := metrics.New(metrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:         cfg.Audit.Enabled,
		BufferSize:      cfg.Audit.BufferSize,
		DropIfFull:      cfg.Audit.DropIfFull,
		DeliveryTimeout: cfg.Audit.DeliveryTimeout,
		OnDrop: func(ev audit.Event) {
			logger.Debug().Str("event", ev.EventType).Str("account_id", ev.AccountID).Msg("audit event dropped")
		},
	}, b.auditSink)

	engine := &Engine{
		config:  cfg,
		metrics: m,
		audit:   dispatcher,
		deps: &flows.Deps{
			Codec:          codec,
			Revocations:    revocations,
			Lockout:        manager,
			Users:          b.users,
			VerifyPassword: hasher.Verify,
			DummyHash:      dummyHash,
			StoreTimeout:   cfg.Store.Timeout,
			RotateRefresh:  cfg.Token.RotateRefresh,
			Now:            now,
			Logger:         logger,
			Metrics:        m,
			Audit:          dispatcher,
		},
	}

	if cfg.Revocation.SweepInterval > 0 {
		if _, inProcess := revocations.(*revocation.MemoryStore); inProcess {
			sw := revocation.NewSweeper(revocations, cfg.Revocation.SweepInterval, logger)
			sw.OnSweep = func(removed int) {
				m.Add(metrics.RevocationsSwept, uint64(removed))
			}
			sw.Start()
			engine.sweeper = sw
		}
	}

	b.built = true

	return engine, nil
}

func buildHasher(cfg *Config) (PasswordHasher, error) {
	switch cfg.Password.Scheme {
	case PasswordSchemeBcrypt:
		return password.NewBcrypt(password.BcryptConfig{
			Cost:             cfg.Password.BcryptCost,
			MinPasswordBytes: cfg.Password.MinPasswordBytes,
		})
	default:
		primary, err := password.NewArgon2(cfg.argon2Config())
		if err != nil {
			return nil, err
		}
		if !cfg.Password.AcceptLegacyBcrypt {
			return primary, nil
		}
		legacy, err := password.NewBcrypt(password.BcryptConfig{Cost: cfg.Password.BcryptCost})
		if err != nil {
			return nil, err
		}
		return password.Chain{Primary: primary, Legacy: []password.Scheme{legacy}}, nil
	}
}
