package authcore

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix is used by ConfigFromEnv when prefix is empty.
const DefaultEnvPrefix = "AUTHCORE"

// envKeys lists every key ConfigFromEnv reads. With prefix AUTHCORE the key
// "token.access_ttl" is read from AUTHCORE_TOKEN_ACCESS_TTL.
var envKeys = []string{
	"token.signing_method",
	"token.secret",
	"token.access_ttl",
	"token.refresh_ttl",
	"token.issuer",
	"token.audience",
	"token.leeway",
	"token.key_id",
	"token.rotate_refresh",

	"lockout.threshold",
	"lockout.duration",
	"lockout.backend",
	"lockout.redis_prefix",
	"lockout.redis_idle_ttl",

	"revocation.backend",
	"revocation.redis_prefix",
	"revocation.shards",
	"revocation.sweep_interval",

	"password.scheme",
	"password.memory",
	"password.time",
	"password.parallelism",
	"password.bcrypt_cost",
	"password.accept_legacy_bcrypt",

	"store.timeout",

	"audit.enabled",
	"audit.buffer_size",
	"audit.drop_if_full",
	"audit.delivery_timeout",

	"metrics.enabled",
	"metrics.latency_histograms",
}

// ConfigFromEnv returns DefaultConfig with any values present in the
// environment applied on top. Durations use time.ParseDuration syntax.
// The result is validated.
func ConfigFromEnv(prefix string) (Config, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := DefaultConfig()
	applyEnv(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(v *viper.Viper, cfg *Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}

	str("token.signing_method", &cfg.Token.SigningMethod)
	if v.IsSet("token.secret") {
		cfg.Token.Secret = []byte(v.GetString("token.secret"))
	}
	if v.IsSet("token.access_ttl") {
		cfg.Token.AccessTTL = v.GetDuration("token.access_ttl")
	}
	if v.IsSet("token.refresh_ttl") {
		cfg.Token.RefreshTTL = v.GetDuration("token.refresh_ttl")
	}
	str("token.issuer", &cfg.Token.Issuer)
	str("token.audience", &cfg.Token.Audience)
	if v.IsSet("token.leeway") {
		cfg.Token.Leeway = v.GetDuration("token.leeway")
	}
	str("token.key_id", &cfg.Token.KeyID)
	if v.IsSet("token.rotate_refresh") {
		cfg.Token.RotateRefresh = v.GetBool("token.rotate_refresh")
	}

	if v.IsSet("lockout.threshold") {
		cfg.Lockout.Threshold = v.GetInt("lockout.threshold")
	}
	if v.IsSet("lockout.duration") {
		cfg.Lockout.Duration = v.GetDuration("lockout.duration")
	}
	str("lockout.backend", &cfg.Lockout.Backend)
	str("lockout.redis_prefix", &cfg.Lockout.RedisPrefix)
	if v.IsSet("lockout.redis_idle_ttl") {
		cfg.Lockout.RedisIdleTTL = v.GetDuration("lockout.redis_idle_ttl")
	}

	str("revocation.backend", &cfg.Revocation.Backend)
	str("revocation.redis_prefix", &cfg.Revocation.RedisPrefix)
	if v.IsSet("revocation.shards") {
		cfg.Revocation.Shards = v.GetInt("revocation.shards")
	}
	if v.IsSet("revocation.sweep_interval") {
		cfg.Revocation.SweepInterval = v.GetDuration("revocation.sweep_interval")
	}

	str("password.scheme", &cfg.Password.Scheme)
	if v.IsSet("password.memory") {
		cfg.Password.Memory = v.GetUint32("password.memory")
	}
	if v.IsSet("password.time") {
		cfg.Password.Time = v.GetUint32("password.time")
	}
	if v.IsSet("password.parallelism") {
		cfg.Password.Parallelism = uint8(v.GetUint("password.parallelism"))
	}
	if v.IsSet("password.bcrypt_cost") {
		cfg.Password.BcryptCost = v.GetInt("password.bcrypt_cost")
	}
	if v.IsSet("password.accept_legacy_bcrypt") {
		cfg.Password.AcceptLegacyBcrypt = v.GetBool("password.accept_legacy_bcrypt")
	}

	if v.IsSet("store.timeout") {
		cfg.Store.Timeout = v.GetDuration("store.timeout")
	}

	if v.IsSet("audit.enabled") {
		cfg.Audit.Enabled = v.GetBool("audit.enabled")
	}
	if v.IsSet("audit.buffer_size") {
		cfg.Audit.BufferSize = v.GetInt("audit.buffer_size")
	}
	if v.IsSet("audit.drop_if_full") {
		cfg.Audit.DropIfFull = v.GetBool("audit.drop_if_full")
	}
	if v.IsSet("audit.delivery_timeout") {
		cfg.Audit.DeliveryTimeout = v.GetDuration("audit.delivery_timeout")
	}

	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
	if v.IsSet("metrics.latency_histograms") {
		cfg.Metrics.EnableLatencyHistograms = v.GetBool("metrics.latency_histograms")
	}
}
