package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hutechbot/backend/accounts"
	"github.com/hutechbot/backend/bot"
	"github.com/hutechbot/backend/cache"
	"github.com/hutechbot/backend/internal/config"
	"github.com/hutechbot/backend/internal/db"
	"github.com/hutechbot/backend/portal"
	"github.com/hutechbot/backend/sessions"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot exited")
	}
	log.Info().Msg("bot stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// A missing .env is fine in deployed environments
	_ = godotenv.Load()

	c := config.New()
	setupLogging(c)
	displayAppname("HUTECH Bot")

	if err := config.Validate(c); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, c.GetPostgresURL())
	if err != nil {
		return fmt.Errorf("db.NewPostgresPool: %w", err)
	}
	defer pool.Close()

	repo := accounts.NewPostgresRepo(pool)
	if err := repo.InitSchema(ctx); err != nil {
		return fmt.Errorf("repo.InitSchema: %w", err)
	}

	cipher, err := accounts.NewCipher(c.GetCredentialKey())
	if err != nil {
		return fmt.Errorf("accounts.NewCipher: %w", err)
	}

	store, err := newCacheStore(ctx, c)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}

	portalClient := portal.NewClient(c.GetPortalBaseURL(), c.GetHTTPTimeout())

	manager, err := sessions.NewManager(repo, cipher, portalClient,
		sessions.WithFallbackTTL(c.GetTokenFallbackTTL()),
		sessions.WithRetry(c.GetRefreshMaxAttempts(), c.GetRefreshBackoff()),
	)
	if err != nil {
		return fmt.Errorf("sessions.NewManager: %w", err)
	}

	b, err := bot.New(c.GetTelegramBotToken(), repo, cipher, manager, portalClient, store)
	if err != nil {
		return fmt.Errorf("bot.New: %w", err)
	}

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot.Run: %w", err)
	}
	return nil
}

// newCacheStore prefers Redis; without REDIS_URL an in-process cache with a
// periodic sweeper stands in.
func newCacheStore(ctx context.Context, c config.Config) (cache.Store, error) {
	if url := c.GetRedisURL(); url != "" {
		store, err := cache.NewRedisStore(ctx, url)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("using redis cache")
		return store, nil
	}

	store := cache.NewMemoryStore()
	interval := c.GetCacheSweepInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := store.Sweep(); removed > 0 {
					log.Debug().Int("removed", removed).Msg("cache sweep")
				}
			}
		}
	}()
	log.Info().Dur("sweep_interval", interval).Msg("using in-memory cache")
	return store, nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if c.GetLogFormat() == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
