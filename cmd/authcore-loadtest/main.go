package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/userstore"
)

const loadPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		logins      = flag.Int("logins", 2000, "logins in the login phase (password hashing dominates)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		fastHash    = flag.Bool("fast-hash", true, "use minimal argon2 parameters")
		showMetrics = flag.Bool("metrics", false, "print engine metrics in Prometheus format at the end")
	)
	flag.Parse()

	_ = godotenv.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *logins <= 0 {
		logger.Fatal().Msg("accounts, concurrency, ops and logins must be > 0")
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start miniredis")
		}
		defer mr.Close()
		addr = mr.Addr()
		logger.Info().Str("addr", addr).Msg("using miniredis")
	} else {
		logger.Info().Str("addr", addr).Msg("using redis")
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	if os.Getenv("AUTHCORE_TOKEN_SECRET") == "" {
		_ = os.Setenv("AUTHCORE_TOKEN_SECRET", randomSecret())
	}
	cfg, err := authcore.ConfigFromEnv(authcore.DefaultEnvPrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.Revocation.Backend = authcore.RevocationBackendRedis
	cfg.Lockout.Backend = authcore.LockoutBackendRedis
	cfg.Lockout.Threshold = 1 << 20
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	if *fastHash {
		cfg.Password.Scheme = authcore.PasswordSchemeArgon2id
		cfg.Password.Memory = 8 * 1024
		cfg.Password.Time = 1
		cfg.Password.Parallelism = 1
	}

	store, err := seedAccounts(ctx, &cfg, *accounts)
	if err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(store).
		WithRedis(client).
		WithLogger(logger.Level(zerolog.WarnLevel)).
		Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("build failed")
	}
	defer engine.Close()

	loginOps := *logins
	if loginOps < *accounts {
		loginOps = *accounts
	}
	tokens := make([]string, *accounts)
	loginStats := runPhase(loginOps, *concurrency, func(i int, _ *mrand.Rand) error {
		res, err := engine.Login(ctx, username(i%*accounts), loadPassword)
		if err != nil {
			return err
		}
		// The first pass over the accounts keeps its tokens for later phases.
		if i < len(tokens) {
			tokens[i] = res.AccessToken
		}
		return nil
	})

	authStats := runPhase(*ops, *concurrency, func(_ int, r *mrand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})

	logoutStats := runPhase(len(tokens), *concurrency, func(i int, _ *mrand.Rand) error {
		engine.Logout(ctx, tokens[i])
		_, err := engine.Authenticate(ctx, tokens[i])
		if err == nil {
			return fmt.Errorf("token %d still valid after logout", i)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("logout", logoutStats)

	if *showMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(engine).Render())
	}
}

func seedAccounts(ctx context.Context, cfg *authcore.Config, n int) (*userstore.MemoryStore, error) {
	hasher, err := password.NewArgon2(password.Argon2Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinPasswordBytes,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	// Accounts share one hash; seeding cost stays flat.
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	store := userstore.NewMemoryStore()
	for i := 0; i < n; i++ {
		err := store.Create(ctx, userstore.Account{
			ID:           fmt.Sprintf("acct-%d", i),
			Username:     username(i),
			PasswordHash: hash,
			Authorities:  []string{"ROLE_USER"},
		})
		if err != nil {
			return nil, err
		}
	}
	return store, nil
}

func username(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// runPhase spreads ops calls of fn over concurrency workers. fn receives the
// operation index and a per-worker random source.
func runPhase(ops, concurrency int, fn func(i int, r *mrand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
