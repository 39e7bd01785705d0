package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	modeThroughput = "throughput"
	modeGameplay   = "gameplay"
	modeUI         = "ui"
)

func run(ctx context.Context, cfg *Config) error {
	// A human-ish default thinking window; scenarios may tighten it.
	if cfg.thinkMin <= 0 {
		cfg.thinkMin = 500 * time.Millisecond
	}
	if cfg.thinkMax < cfg.thinkMin {
		cfg.thinkMax = 4 * time.Second
	}
	if cfg.thinkMax < cfg.thinkMin {
		cfg.thinkMax = cfg.thinkMin
	}

	switch cfg.mode {
	case modeThroughput:
		return runThroughput(ctx, cfg)
	case modeGameplay:
		return runGameplay(ctx, cfg, cfg.thinkMin, cfg.thinkMax)
	case modeUI:
		return runUI(ctx, cfg, cfg.thinkMin, cfg.thinkMax)
	default:
		return fmt.Errorf("unknown mode %q", cfg.mode)
	}
}

// runThroughput floods every lobby with rate-limited answer messages and
// reports wire throughput once per second.
func runThroughput(ctx context.Context, cfg *Config) error {
	fmt.Printf("Starting throughput test: %d lobbies, %d players each, %.0f msgs/sec per player, %s\n",
		cfg.lobbies, cfg.players, cfg.rate, cfg.duration)

	metrics := &throughputMetrics{}
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()
	go metrics.report(runCtx)

	var wg sync.WaitGroup
	for l := 0; l < cfg.lobbies; l++ {
		admin, joinCode, err := newAdminBot(ctx, cfg)
		if err != nil {
			return err
		}
		defer admin.close()

		for p := 0; p < cfg.players; p++ {
			name := fmt.Sprintf("LobbyPlayer%d", p+1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := floodPlayer(runCtx, cfg, joinCode, name, metrics); err != nil && cfg.verbose {
					fmt.Printf("player %s: %v\n", name, err)
				}
			}()
		}
		if !sleepCtx(ctx, 100*time.Millisecond) {
			break
		}
	}

	wg.Wait()
	metrics.summary(time.Since(start))
	return nil
}

// floodPlayer sends answers as fast as the limiter allows until ctx ends.
func floodPlayer(ctx context.Context, cfg *Config, joinCode, name string, metrics *throughputMetrics) error {
	b, err := newFloodBot(ctx, cfg, joinCode, name, metrics)
	if err != nil {
		return err
	}
	defer b.close()

	limiter := rate.NewLimiter(rate.Limit(cfg.rate), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		if err := b.client.SubmitAnswer("stress_test"); err != nil {
			// The supervisor may be mid-reconnect; skip this tick.
			continue
		}
		metrics.sent.Add(1)
	}
}

// runGameplay plays cfg.lobbies full games in parallel, each with an admin
// driving rounds and cfg.players bots answering questions.
func runGameplay(ctx context.Context, cfg *Config, thinkMin, thinkMax time.Duration) error {
	fmt.Printf("Starting gameplay test: %d games, %d players each, %d rounds\n",
		cfg.lobbies, cfg.players, cfg.rounds)

	metrics := &gameMetrics{}
	start := time.Now()

	reportCtx, stopReport := context.WithCancel(ctx)
	defer stopReport()
	go metrics.report(reportCtx, "games")

	var wg sync.WaitGroup
	for g := 0; g < cfg.lobbies; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			metrics.active.Add(1)
			defer metrics.active.Add(-1)
			if err := runSingleGame(ctx, cfg, g, thinkMin, thinkMax); err != nil {
				metrics.errors.Add(1)
				if cfg.verbose {
					fmt.Printf("game %d: %v\n", g, err)
				}
			}
			metrics.completed.Add(1)
		}(g)
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("Batch complete - Total games: %d, Duration: %.2fs, Games/sec: %.2f, Errors: %d\n",
		cfg.lobbies, elapsed.Seconds(), float64(cfg.lobbies)/elapsed.Seconds(), metrics.errors.Load())
	return nil
}

func runSingleGame(ctx context.Context, cfg *Config, idx int, thinkMin, thinkMax time.Duration) error {
	admin, joinCode, err := newAdminBot(ctx, cfg)
	if err != nil {
		return err
	}
	defer admin.close()

	players := make([]*bot, 0, cfg.players)
	defer func() {
		for _, p := range players {
			p.close()
		}
	}()
	for p := 0; p < cfg.players; p++ {
		name := fmt.Sprintf("Game%dPlayer%d", idx, p+1)
		b, err := newPlayerBot(ctx, cfg, joinCode, name, thinkMin, thinkMax)
		if err != nil {
			return err
		}
		players = append(players, b)
	}

	if !sleepCtx(ctx, 500*time.Millisecond) {
		return ctx.Err()
	}
	if err := admin.driveGame(ctx, cfg.rounds); err != nil {
		return err
	}

	for _, p := range players {
		if err := p.wait(ctx); err != nil {
			return err
		}
	}
	return admin.wait(ctx)
}

// runUI joins bots to an existing, human-driven lobby and lets them play
// along until the game ends.
func runUI(ctx context.Context, cfg *Config, thinkMin, thinkMax time.Duration) error {
	fmt.Printf("Starting ui test: join code %s, %d players\n", cfg.joinCode, cfg.players)

	metrics := &gameMetrics{}
	reportCtx, stopReport := context.WithCancel(ctx)
	defer stopReport()
	go metrics.report(reportCtx, "players")

	var wg sync.WaitGroup
	for p := 0; p < cfg.players; p++ {
		name := fmt.Sprintf("UITestPlayer%d", p+1)
		b, err := newPlayerBot(ctx, cfg, cfg.joinCode, name, thinkMin, thinkMax)
		if err != nil {
			return err
		}
		metrics.active.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer b.close()
			if err := b.wait(ctx); err != nil {
				metrics.errors.Add(1)
			}
			metrics.active.Add(-1)
			metrics.completed.Add(1)
		}()
		if !sleepCtx(ctx, 100*time.Millisecond) {
			break
		}
	}
	fmt.Println("All players joined")
	wg.Wait()
	fmt.Println("UI test complete")
	return nil
}
