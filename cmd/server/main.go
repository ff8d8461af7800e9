package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go-social/internal/chat"
	"go-social/internal/config"
	"go-social/internal/db"
	"go-social/internal/friends"
	"go-social/internal/hub"
	"go-social/internal/logger"
	myMiddleware "go-social/internal/middleware"
	"go-social/internal/notify"
	"go-social/internal/telemetry"
	"go-social/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// stores groups the persistence backends selected by configuration.
type stores struct {
	users   user.Store
	chat    *chatStore
	friends friends.Store
	notify  notify.Store
	close   func()
}

type chatStore struct {
	chat.RoomStore
	chat.MessageStore
}

func main() {
	if err := run(); err != nil {
		slog.Error("server - run - failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// 1. Config & Flags
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := flag.String("addr", cfg.Service.Addr, "http service address")
	flag.Parse()
	cfg.Service.Addr = *addr

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("server - telemetry - shutdown failed", slog.Any("error", err))
		}
	}()

	// 2. Storage
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	userService := user.NewService(st.users, cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if len(cfg.Service.SeedUsers) > 0 {
		seeded, err := userService.Seed(ctx, cfg.Service.SeedUsers...)
		if err != nil {
			return err
		}
		log.Info("server - seed - done", slog.Int("users", len(seeded)))
	}
	dir := userService.Directory()

	// 3. Connection registry, optionally relayed through Redis
	opts := []hub.Option{hub.WithSendBuffer(cfg.Chat.SendBuffer)}
	if cfg.RelayEnabled() {
		client, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, hub.WithRelay(hub.NewRedisRelay(client, cfg.Redis.Channel, log)))
		log.Info("server - redis - connected", slog.String("channel", cfg.Redis.Channel))
	}
	registry := hub.NewRegistry(log, opts...)

	// 4. Features
	router := chat.NewRouter(chat.NewRooms(st.chat), st.chat, dir, registry, log, chat.Options{
		HistoryLimit:    cfg.Chat.HistoryLimit,
		MaxMessageBytes: cfg.Chat.MaxMessageBytes,
	})
	ident := myMiddleware.IdentityFrom
	chatHandler := chat.NewHandler(router, registry, ident)

	friendService := friends.NewService(st.friends, dir)
	friendDispatcher := notify.NewDispatcher(notify.KindFriendRequests, registry, friendService, log)
	friendHandler := friends.NewHandler(friendService, friendDispatcher, dir, ident)

	notifyService := notify.NewService(st.notify, cfg.Chat.NotificationLimit)
	notifyDispatcher := notify.NewDispatcher(notify.KindCommentLikes, registry, notifyService, log)
	notifyHandler := notify.NewHandler(notifyService, notifyDispatcher, dir, ident)

	userHandler := user.NewHandler(userService, ident)
	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 5. Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(myMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(myMiddleware.Tracer(cfg.Service.Name))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats, err := registry.Stats(r.Context())
		if err != nil {
			http.Error(w, "registry stopped", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	// Notification streams answer anonymous callers themselves.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Optional)
		r.Get("/ws/friend-requests", notify.ServeWs(friendDispatcher, registry, ident))
		r.Get("/ws/notifications", notify.ServeWs(notifyDispatcher, registry, ident))
	})

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/ws/chat/{friend}", chatHandler.ServeWs)

		r.Get("/api/me", userHandler.Me)
		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Post("/api/conversations", chatHandler.StartConversation)
		r.Get("/api/messages", chatHandler.GetChatHistory)
		r.Route("/api/friends", friendHandler.Routes)
		r.Get("/api/notifications", notifyHandler.List)
		r.Post("/api/notifications", notifyHandler.Create)
		r.Post("/api/notifications/read", notifyHandler.MarkRead)
	})

	srv := &http.Server{
		Addr:    cfg.Service.Addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// 6. Run until signalled
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error {
		log.Info("server - http - listening", slog.String("addr", cfg.Service.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		log.Info("server - http - shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.UseMemoryStore() {
		log.Warn("server - storage - DB_DSN not set, using in-memory stores")
		mem := chat.NewMemoryStore()
		return &stores{
			users:   user.NewMemoryDirectory(),
			chat:    &chatStore{RoomStore: mem, MessageStore: mem},
			friends: friends.NewMemoryStore(),
			notify:  notify.NewMemoryStore(),
			close:   func() {},
		}, nil
	}

	database, err := db.NewDatabase(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.AutoMigrate(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	log.Info("server - storage - postgres ready")

	tx := db.NewTxManager(database.Conn)
	chatRepo := chat.NewRepository(database.Conn, tx)
	return &stores{
		users:   user.NewRepository(database.Conn),
		chat:    &chatStore{RoomStore: chatRepo, MessageStore: chatRepo},
		friends: friends.NewRepository(database.Conn, tx),
		notify:  notify.NewRepository(database.Conn),
		close:   func() { _ = database.Close() },
	}, nil
}

func openRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
