// Command jwtsession-loadtest drives the engine against Redis (or an
// in-process miniredis) and prints latency percentiles per phase.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/jwtsession"
	"github.com/MrEthical07/jwtsession/identity"
	"github.com/MrEthical07/jwtsession/jwt"
	"github.com/alicebob/miniredis/v2"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var secret = []byte("loadtest-secret-loadtest-secret-")

func main() {
	var (
		identities  = flag.Int("identities", 10000, "distinct token subjects")
		concurrency = flag.Int("concurrency", 256, "concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		racers      = flag.Int("racers", 64, "workers racing on a single identity in the race phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "jwsload", "session key prefix")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := jwtsession.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.VerifyKey = secret
	cfg.Session.RedisPrefix = *prefix
	cfg.Report.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := jwtsession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityStore(identity.NewMemoryStore()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	tokens := make([]string, *identities)
	for i := range tokens {
		if tokens[i], err = mint(fmt.Sprintf("user-%d@load.test", i)); err != nil {
			fmt.Fprintf(os.Stderr, "mint: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	create := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, i int) error {
		_, err := engine.CreateSession(ctx, tokens[i%len(tokens)])
		return err
	})
	auth := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, i int) error {
		_, err := engine.Authenticate(ctx, tokens[i%len(tokens)])
		return err
	})
	leftover, race := runRace(ctx, engine, *racers)

	fmt.Println("---- results ----")
	printStats("create_session", create)
	printStats("authenticate", auth)
	printStats("race", race)
	fmt.Printf("race: live sessions after %d concurrent creates = %d\n", *racers, leftover)
	snap := engine.MetricsSnapshot()
	fmt.Printf("sessions replaced=%d identities created=%d create conflicts=%d\n",
		snap.Counters[jwtsession.MetricSessionReplaced],
		snap.Counters[jwtsession.MetricIdentityCreated],
		snap.Counters[jwtsession.MetricIdentityCreateConflict],
	)
	if leftover != 1 {
		os.Exit(1)
	}
}

func connect(addr string) (*redis.Client, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func mint(email string) (string, error) {
	now := time.Now()
	claims := jwt.Claims{
		Email: email,
		RegisteredClaims: gjwt.RegisteredClaims{
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	return gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
}

// runRace has every racer create a session for one fresh identity at once
// and returns how many sessions survive.
func runRace(ctx context.Context, engine *jwtsession.Engine, racers int) (int, phaseStats) {
	token, err := mint(fmt.Sprintf("racer-%d@load.test", time.Now().UnixNano()))
	if err != nil {
		return -1, phaseStats{}
	}
	var identityID atomic.Value
	stats := runPhase(ctx, racers, racers, func(ctx context.Context, _ int) error {
		res, err := engine.CreateSession(ctx, token)
		if err == nil {
			identityID.Store(res.IdentityID)
		}
		return err
	})
	id, _ := identityID.Load().(string)
	if id == "" {
		return 0, stats
	}
	ids, err := engine.SessionIDs(ctx, id)
	if err != nil {
		return -1, stats
	}
	return len(ids), stats
}

func runPhase(ctx context.Context, ops, concurrency int, op func(context.Context, int) error) phaseStats {
	var (
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	start := time.Now()
	for i := 0; i < ops; i++ {
		i := i
		g.Go(func() error {
			t0 := time.Now()
			err := op(gctx, i)
			d := time.Since(t0)
			if err != nil {
				atomic.AddInt64(&failures, 1)
			}
			mu.Lock()
			latencies = append(latencies, d)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
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
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond),
	)
}
