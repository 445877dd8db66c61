package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/experta/session-engine/auth"
	"github.com/experta/session-engine/internal/config"
	"github.com/experta/session-engine/storage/mongodb"
	"github.com/experta/session-engine/storage/rediscache"
	"github.com/experta/session-engine/token"
	"github.com/experta/session-engine/txn"
)

// The sweeper is the engine's maintenance daemon: it periodically
// reconciles every user's device index against the session store and prunes
// the revoked-token cache. Request-path operations (login, renew, revoke)
// are served by embedding the auth.SessionService behind a transport layer.
func main() {
	_ = godotenv.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("sweeper stopped")
	}
	logger.Info().Msg("sweeper stopped")
}

func run(logger zerolog.Logger) error {
	c := config.New()
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mongoCfg mongodb.Config
	if err := env.Parse(&mongoCfg); err != nil {
		return fmt.Errorf("parse mongodb config: %w", err)
	}
	client, err := mongodb.New(ctx, mongoCfg)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	}()

	db := client.Database(mongoCfg.Database)
	sessionRepo := mongodb.NewSessionRepo(db)
	if err := sessionRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure session indexes: %w", err)
	}
	userRepo := mongodb.NewUserRepo(db)
	coordinator := txn.NewCoordinator(mongodb.NewTxnProvider(client)).WithLogger(logger)

	var redisCfg rediscache.Config
	if err := env.Parse(&redisCfg); err != nil {
		return fmt.Errorf("parse redis config: %w", err)
	}
	var revokedCache token.RevokedTokenCache
	if redisClient, err := rediscache.New(ctx, redisCfg); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory revoked-token cache")
		revokedCache = token.NewInMemoryRevokedTokenCache()
	} else {
		defer redisClient.Close()
		revokedCache = rediscache.NewRevokedTokenCache(redisClient)
	}

	issuer, err := token.NewIssuer(c, token.WithRevokedTokenCache(revokedCache))
	if err != nil {
		return fmt.Errorf("build token issuer: %w", err)
	}

	service, err := auth.NewSessionService(auth.Repos{
		Sessions: sessionRepo,
		Users:    userRepo,
	}, issuer, coordinator, c, auth.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build session service: %w", err)
	}

	sweep(ctx, logger, service)

	interval := c.GetReconcileSweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("sweeper running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweep(ctx, logger, service)
		}
	}
}

func sweep(ctx context.Context, logger zerolog.Logger, service *auth.SessionService) {
	removed, err := service.Reconciler().SweepAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile sweep failed")
		return
	}
	service.CleanupRevokedTokens(ctx)
	logger.Info().Int("removed", removed).Msg("reconcile sweep completed")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
