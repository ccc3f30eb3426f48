package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/avelmor/ticket-escrow/internal/asset"
	"github.com/avelmor/ticket-escrow/internal/clock"
	"github.com/avelmor/ticket-escrow/internal/config"
	"github.com/avelmor/ticket-escrow/internal/database"
	"github.com/avelmor/ticket-escrow/internal/handler"
	"github.com/avelmor/ticket-escrow/internal/ledger"
	"github.com/avelmor/ticket-escrow/internal/metrics"
	"github.com/avelmor/ticket-escrow/internal/middleware"
	"github.com/avelmor/ticket-escrow/internal/queue"
	"github.com/avelmor/ticket-escrow/internal/repository"
	"github.com/avelmor/ticket-escrow/internal/router"
	"github.com/avelmor/ticket-escrow/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "ticket-escrow").Logger()
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connection failed")
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, rate limiting and response cache disabled")
	}

	escrow, ok := utils.ParseAddress(cfg.EscrowAddress)
	if !ok {
		log.Fatal().Str("address", cfg.EscrowAddress).Msg("invalid escrow address")
	}

	// The supported-asset set is fixed at startup: the native coin plus any
	// tokens named in ASSET_TOKENS.
	native := asset.NewNative(cfg.NativeSymbol, escrow)
	specs, err := config.LoadTokenSpecs()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ASSET_TOKENS")
	}
	assets := []asset.Asset{native}
	tokens := make([]*asset.Token, 0, len(specs))
	for _, s := range specs {
		addr, ok := utils.ParseAddress(s.Address)
		if !ok || addr == asset.NativeAddress {
			log.Fatal().Str("address", s.Address).Msg("invalid token address")
		}
		t := asset.NewToken(addr, s.Name, s.Symbol, s.Decimals, escrow)
		tokens = append(tokens, t)
		assets = append(assets, t)
	}
	registry := asset.NewRegistry(assets...)

	journal := repository.NewJournalRepo(db)
	publisher := queue.NewPublisher(cfg.AmqpURL, log)
	led := ledger.New(registry, clock.NewSystem(), ledger.WithEmitter(ledger.MultiEmitter{
		publisher,
		repository.NewJournalEmitter(journal, log),
		metrics.Emitter{},
	}))
	// Tokens deliver transfer-and-call purchases straight into the ledger.
	for _, t := range tokens {
		t.SetSink(led)
	}

	go func() {
		if err := queue.StartConsumer(cfg.AmqpURL, log); err != nil {
			log.Error().Err(err).Msg("queue consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}

	authH := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	publicH := handler.NewPublicHandler(led)
	ownerH := handler.NewOwnerHandler(led, log)
	customerH := handler.NewCustomerHandler(led, registry, log)
	adminH := handler.NewAdminHandler(registry, log)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	if rdb != nil {
		router.RegisterPublic(e, publicH, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	} else {
		router.RegisterPublic(e, publicH)
	}
	router.RegisterOwner(e, ownerH, cfg.JWTSecret)
	router.RegisterCustomer(e, customerH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Int("assets", len(assets)).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
