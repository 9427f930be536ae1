package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces lockout keys.
const DefaultRedisPrefix = "alo"

const applyFailureScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local duration = tonumber(ARGV[3])
local margin = tonumber(ARGV[4])
local idle = tonumber(ARGV[5])

local failed = tonumber(redis.call("HGET", key, "f") or "0") or 0
local locked_until = tonumber(redis.call("HGET", key, "u") or "0") or 0

if locked_until > now then
  return {failed, locked_until}
end
if locked_until > 0 or failed < 0 then
  failed = 0
end
failed = failed + 1
locked_until = 0
if failed >= threshold then
  locked_until = now + duration
end
redis.call("HSET", key, "f", failed, "u", locked_until)
if locked_until > 0 then
  redis.call("PEXPIRE", key, duration + margin)
elseif idle > 0 then
  redis.call("PEXPIRE", key, idle)
else
  redis.call("PERSIST", key)
end
return {failed, locked_until}
`

var applyFailureLua = redis.NewScript(applyFailureScript)

// lockKeyMargin keeps a locked hash alive a little past its lock so that
// instances with skewed clocks still read the lock until it has expired for
// all of them. A missing key and an expired lock are the same state.
const lockKeyMargin = time.Minute

// RedisConfig tunes a RedisStore.
type RedisConfig struct {
	Prefix string
	// IdleTTL expires a hash holding failures but no lock after this long
	// without a further failure, so partial counters decay. Zero keeps them
	// until the next success or unlock.
	IdleTTL time.Duration
	Now     func() time.Time
}

// RedisStore keeps lockout state in a Redis hash per account: field "f" is
// the failure count and "u" the lock expiry in unix milliseconds (0 = none).
// ApplyFailure runs as a single script, so concurrent failures from several
// instances are counted exactly once each. A locked hash expires shortly
// after its lock, so Redis never holds a key per account forever.
type RedisStore struct {
	redis   redis.UniversalClient
	prefix  string
	idleTTL time.Duration
	now     func() time.Time
}

// NewRedisStore creates a Redis-backed AtomicStateStore.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.IdleTTL < 0 {
		cfg.IdleTTL = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RedisStore{redis: client, prefix: cfg.Prefix, idleTTL: cfg.IdleTTL, now: cfg.Now}
}

func (s *RedisStore) key(accountID string) string {
	return s.prefix + ":" + accountID
}

// GetLockoutState reads the state; a missing key is the zero state.
func (s *RedisStore) GetLockoutState(ctx context.Context, accountID string) (State, error) {
	vals, err := s.redis.HMGet(ctx, s.key(accountID), "f", "u").Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	failed, err := hashInt(vals[0])
	if err != nil {
		return State{}, err
	}
	untilMs, err := hashInt(vals[1])
	if err != nil {
		return State{}, err
	}
	return stateFromRaw(failed, untilMs), nil
}

// SetLockoutState overwrites the state. The zero state deletes the key.
func (s *RedisStore) SetLockoutState(ctx context.Context, accountID string, state State) error {
	key := s.key(accountID)
	if state.IsZero() {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	var untilMs int64
	if state.LockedUntil != nil {
		untilMs = state.LockedUntil.UnixMilli()
	}
	ttl := s.ttlFor(state)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "f", state.FailedAttempts, "u", untilMs)
		if ttl > 0 {
			pipe.PExpire(ctx, key, ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ttlFor returns the key lifetime for state, or zero to keep it.
func (s *RedisStore) ttlFor(state State) time.Duration {
	if state.LockedUntil != nil {
		if remaining := state.LockedUntil.Sub(s.now()); remaining > 0 {
			return remaining + lockKeyMargin
		}
	}
	return s.idleTTL
}

// ApplyFailure applies NextFailureState atomically inside Redis.
func (s *RedisStore) ApplyFailure(ctx context.Context, accountID string, now time.Time, policy Policy) (State, error) {
	res, err := applyFailureLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID)},
		now.UnixMilli(),
		policy.Threshold,
		policy.Duration.Milliseconds(),
		lockKeyMargin.Milliseconds(),
		s.idleTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return State{}, errors.New("lockout: unexpected script result")
	}
	return stateFromRaw(res[0], res[1]), nil
}

func stateFromRaw(failed, untilMs int64) State {
	st := State{FailedAttempts: int(failed)}
	if untilMs > 0 {
		until := time.UnixMilli(untilMs)
		st.LockedUntil = &until
	}
	return st
}

func hashInt(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("lockout: unexpected hash value %T", v)
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("lockout: corrupt hash value: %w", err)
	}
	return n, nil
}
