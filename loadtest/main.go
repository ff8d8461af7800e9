package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-social/internal/config"
	"go-social/internal/logger"
	"go-social/internal/user"

	"github.com/gorilla/websocket"
)

type counters struct {
	sent     atomic.Int64
	received atomic.Int64
	failed   atomic.Int64
}

func main() {
	base := flag.String("ws", "ws://localhost:8080", "websocket base URL")
	pairs := flag.Int("pairs", 50, "conversation pairs (postgres mode)")
	msgs := flag.Int("msgs", 20, "messages per user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg)

	ctx := context.Background()
	issuer, err := user.NewIssuer(ctx, cfg)
	if err != nil {
		log.Error("loadtest - open - failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer issuer.Close()

	// In memory mode only the server's seeded users exist, so pair them up.
	var names [][2]string
	if cfg.UseMemoryStore() {
		seeds := cfg.Service.SeedUsers
		for i := 0; i+1 < len(seeds); i += 2 {
			names = append(names, [2]string{seeds[i], seeds[i+1]})
		}
	} else {
		for i := 0; i < *pairs; i++ {
			names = append(names, [2]string{fmt.Sprintf("u_%d_a", i), fmt.Sprintf("u_%d_b", i)})
		}
	}
	if len(names) == 0 {
		log.Error("loadtest - setup - no users; set SEED_USERS or DB_DSN")
		os.Exit(1)
	}

	log.Info("loadtest - run - starting", slog.Int("users", len(names)*2), slog.Int("msgs", *msgs))
	start := time.Now()
	var c counters
	var wg sync.WaitGroup
	for _, pair := range names {
		wg.Add(1)
		go func(a, b string) {
			defer wg.Done()
			runPair(ctx, issuer, *base, a, b, *msgs, &c, log)
		}(pair[0], pair[1])
	}
	wg.Wait()

	log.Info("loadtest - run - done",
		slog.Int64("sent", c.sent.Load()),
		slog.Int64("received", c.received.Load()),
		slog.Int64("failed", c.failed.Load()),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func runPair(ctx context.Context, issuer *user.Issuer, base, a, b string, msgs int, c *counters, log *slog.Logger) {
	tokenA, _, err := issuer.Token(ctx, a)
	if err != nil {
		log.Error("loadtest - token - failed", slog.Any("error", err))
		c.failed.Add(1)
		return
	}
	tokenB, _, err := issuer.Token(ctx, b)
	if err != nil {
		log.Error("loadtest - token - failed", slog.Any("error", err))
		c.failed.Add(1)
		return
	}

	connA, err := dial(base, a, b, tokenA)
	if err != nil {
		log.Error("loadtest - dial - failed", slog.String("user", a), slog.Any("error", err))
		c.failed.Add(1)
		return
	}
	defer connA.Close()
	connB, err := dial(base, b, a, tokenB)
	if err != nil {
		log.Error("loadtest - dial - failed", slog.String("user", b), slog.Any("error", err))
		c.failed.Add(1)
		return
	}
	defer connB.Close()

	// Each side sees its own messages and the friend's.
	expect := 2 * msgs
	var wg sync.WaitGroup
	for _, conn := range []*websocket.Conn{connA, connB} {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			drain(conn, expect, c)
		}(conn)
	}

	var senders sync.WaitGroup
	senders.Add(2)
	go spamChat(&senders, connA, a, b, msgs, c, log)
	go spamChat(&senders, connB, b, a, msgs, c, log)
	senders.Wait()
	wg.Wait()
}

func dial(base, viewer, friend, token string) (*websocket.Conn, error) {
	u := strings.TrimRight(base, "/") + "/ws/chat/" + url.PathEscape(friend) + "?token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", viewer, err)
	}
	return conn, nil
}

func spamChat(wg *sync.WaitGroup, conn *websocket.Conn, from, friend string, msgs int, c *counters, log *slog.Logger) {
	defer wg.Done()
	for i := 0; i < msgs; i++ {
		err := conn.WriteJSON(map[string]any{
			"command": "new_message",
			"from":    from,
			"friend":  friend,
			"message": fmt.Sprintf("LoadTest Msg %d from %s", i, from),
		})
		if err != nil {
			log.Warn("loadtest - send - failed", slog.String("user", from), slog.Any("error", err))
			c.failed.Add(1)
			return
		}
		c.sent.Add(1)
		// Simulate real network pacing.
		time.Sleep(10 * time.Millisecond)
	}
}

func drain(conn *websocket.Conn, expect int, c *counters) {
	for n := 0; n < expect; n++ {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var event map[string]any
		if err := conn.ReadJSON(&event); err != nil {
			c.failed.Add(1)
			return
		}
		if event["command"] == "new_message" {
			c.received.Add(1)
		}
	}
}
