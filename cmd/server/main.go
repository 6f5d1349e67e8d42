// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/manhunt/internal/auth"
	"github.com/jason-s-yu/manhunt/internal/cache"
	"github.com/jason-s-yu/manhunt/internal/channel"
	"github.com/jason-s-yu/manhunt/internal/config"
	"github.com/jason-s-yu/manhunt/internal/database"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/handlers"
	"github.com/jason-s-yu/manhunt/internal/middleware"
	"github.com/jason-s-yu/manhunt/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	authn, err := newAuthenticator(cfg.Auth, logger)
	if err != nil {
		return err
	}

	repo, closeRepo, err := newRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	layer := channel.NewLayer(logger)
	settings := game.Settings{
		MinPlayers:        cfg.Game.MinPlayers,
		CatchRadiusMeters: cfg.Game.CatchRadiusMeters,
		ShrinkFactor:      cfg.Game.AreaShrinkFactor,
		ShrinkInterval:    cfg.Game.AreaShrinkInterval,
	}
	gameStore := game.NewGameStore(repo, layer, settings, logger)

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		queue := cache.NewActionQueue(rdb, cfg.Redis.QueueName)
		gameStore.Actions = queue
		logger.Infof("publishing game actions to Redis list %s", queue.Name())
	} else {
		logger.Info("REDIS_ADDR not set, action log disabled")
	}

	restored, err := gameStore.Restore(ctx)
	if err != nil {
		return err
	}
	logger.Infof("restored %d active games", restored)

	go game.NewScheduler(gameStore, cfg.Game.SchedulerResolution, logger).Run(ctx)

	gs := handlers.NewGameServer(gameStore, layer, repo, authn, logger)
	gs.PublicURL = cfg.PublicURL
	gs.WS = handlers.WSOptions{
		SendBuffer: cfg.WebSocket.SendBuffer,
		RatePerSec: cfg.WebSocket.RatePerSec,
		RateBurst:  cfg.WebSocket.RateBurst,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.LogMiddleware(logger)(handlers.Routes(gs)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newAuthenticator(cfg config.Auth, logger *logrus.Logger) (*auth.Authenticator, error) {
	ttl, err := auth.ParseTokenExpireTime(cfg.TokenExpire)
	if err != nil {
		return nil, err
	}
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.LoadAuthenticator(cfg.PrivateKeyPath, cfg.PublicKeyPath, ttl)
	}
	logger.Warn("JWT key paths not set, using an ephemeral key pair")
	return auth.GenerateAuthenticator(ttl)
}

// newRepository opens the configured session store and returns a function releasing it.
func newRepository(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (game.Repository, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, games do not survive a restart")
		return store.NewMemory(), func() {}, nil
	}

	p := cfg.Postgres
	pool, err := database.Connect(ctx, database.DSN(p.User, p.Password, p.Host, p.Port, p.Database))
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Infof("connected to Postgres at %s:%s/%s", p.Host, p.Port, p.Database)
	return database.NewSessionRepo(pool), pool.Close, nil
}
