package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kottz/spektrum-client-go/spektrum"
	"github.com/kottz/spektrum-client-go/spektrum/rest"
)

// bot is one simulated participant: it joins over HTTP, runs a supervised
// websocket client, and reacts to game events until the game ends.
type bot struct {
	name   string
	client *spektrum.Client
	done   chan struct{}
	once   sync.Once
}

func botClientConfig(cfg *Config) spektrum.Config {
	clientCfg := spektrum.DefaultConfig()
	clientCfg.URL = cfg.wsURL()
	clientCfg.Store = spektrum.NopStore{}
	return clientCfg
}

// newPlayerBot joins an existing lobby and connects. The bot answers
// questions after a random think delay within [thinkMin, thinkMax].
func newPlayerBot(ctx context.Context, cfg *Config, joinCode, name string, thinkMin, thinkMax time.Duration) (*bot, error) {
	api := rest.NewClient(cfg.apiURL())
	joined, err := api.JoinLobby(ctx, rest.JoinLobbyRequest{JoinCode: joinCode, Name: name})
	if err != nil {
		return nil, fmt.Errorf("join lobby: %w", err)
	}

	b := &bot{
		name:   name,
		client: spektrum.NewClient(botClientConfig(cfg)),
		done:   make(chan struct{}),
	}
	b.client.OnGameOver(func(spektrum.GameOverEvent) { b.finish() })
	b.client.OnGameClosed(func(spektrum.GameClosedEvent) { b.finish() })
	b.client.OnKicked(func(spektrum.KickedEvent) { b.finish() })
	b.client.OnStateDelta(func(ev spektrum.StateDeltaEvent) {
		if ev.Phase == nil || *ev.Phase != spektrum.PhaseQuestion || len(ev.Alternatives) == 0 {
			return
		}
		answer := ev.Alternatives[rand.Intn(len(ev.Alternatives))]
		delay := thinkMin
		if thinkMax > thinkMin {
			delay += time.Duration(rand.Int63n(int64(thinkMax - thinkMin)))
		}
		go func() {
			select {
			case <-time.After(delay):
				_ = b.client.SubmitAnswer(answer)
			case <-b.done:
			}
		}()
	})

	cred := spektrum.Credential{
		PlayerID:   joined.PlayerID,
		PlayerName: name,
		LobbyID:    joined.LobbyID,
		JoinCode:   joinCode,
		CreatedAt:  time.Now(),
	}
	if err := b.client.Connect(ctx, cred); err != nil {
		b.client.Close()
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return b, nil
}

// newFloodBot joins a lobby with traffic counters instead of gameplay
// behavior; throughput mode uses it to measure the wire.
func newFloodBot(ctx context.Context, cfg *Config, joinCode, name string, metrics *throughputMetrics) (*bot, error) {
	api := rest.NewClient(cfg.apiURL())
	joined, err := api.JoinLobby(ctx, rest.JoinLobbyRequest{JoinCode: joinCode, Name: name})
	if err != nil {
		return nil, fmt.Errorf("join lobby: %w", err)
	}

	b := &bot{
		name:   name,
		client: spektrum.NewClient(botClientConfig(cfg)),
		done:   make(chan struct{}),
	}
	b.client.OnGameOver(func(spektrum.GameOverEvent) { b.finish() })
	b.client.OnGameClosed(func(spektrum.GameClosedEvent) { b.finish() })
	b.client.OnKicked(func(spektrum.KickedEvent) { b.finish() })
	b.client.OnAnswered(func(spektrum.AnsweredEvent) { metrics.received.Add(1) })
	b.client.OnStateDelta(func(spektrum.StateDeltaEvent) { metrics.received.Add(1) })

	cred := spektrum.Credential{
		PlayerID:   joined.PlayerID,
		PlayerName: name,
		LobbyID:    joined.LobbyID,
		JoinCode:   joinCode,
		CreatedAt:  time.Now(),
	}
	if err := b.client.Connect(ctx, cred); err != nil {
		b.client.Close()
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return b, nil
}

// newAdminBot creates a lobby and connects as its admin. The returned join
// code is what player bots use to join.
func newAdminBot(ctx context.Context, cfg *Config) (*bot, string, error) {
	api := rest.NewClient(cfg.apiURL())
	lobby, err := api.CreateLobby(ctx, rest.CreateLobbyRequest{RoundDuration: 60})
	if err != nil {
		return nil, "", fmt.Errorf("create lobby: %w", err)
	}

	b := &bot{
		name:   "admin-" + lobby.JoinCode,
		client: spektrum.NewClient(botClientConfig(cfg)),
		done:   make(chan struct{}),
	}
	b.client.OnGameOver(func(spektrum.GameOverEvent) { b.finish() })
	b.client.OnGameClosed(func(spektrum.GameClosedEvent) { b.finish() })

	cred := spektrum.Credential{
		PlayerID:  lobby.AdminID,
		LobbyID:   lobby.LobbyID,
		JoinCode:  lobby.JoinCode,
		Admin:     true,
		CreatedAt: time.Now(),
	}
	if err := b.client.Connect(ctx, cred); err != nil {
		b.client.Close()
		return nil, "", fmt.Errorf("connect admin: %w", err)
	}
	return b, lobby.JoinCode, nil
}

// driveGame runs the admin's side of one game: start, a fixed number of
// rounds, then a deliberate end.
func (b *bot) driveGame(ctx context.Context, rounds int) error {
	if err := b.client.StartGame(); err != nil {
		return err
	}
	for i := 0; i < rounds; i++ {
		if err := b.client.StartRound(nil); err != nil {
			return err
		}
		if !sleepCtx(ctx, 5*time.Second) {
			return ctx.Err()
		}
		if err := b.client.EndRound(); err != nil {
			return err
		}
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
	return b.client.EndGame("stress run complete")
}

// wait blocks until the game ends or ctx is cancelled.
func (b *bot) wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *bot) finish() {
	b.once.Do(func() { close(b.done) })
}

func (b *bot) close() {
	b.finish()
	b.client.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
