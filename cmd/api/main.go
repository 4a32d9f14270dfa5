package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nftforge/internal/adapter/repo"
	"nftforge/internal/http/handlers"
	"nftforge/internal/http/httpapi"
	"nftforge/internal/imagegen"
	"nftforge/internal/infra"
	"nftforge/internal/ledger"
	"nftforge/internal/metrics"
	"nftforge/internal/mint"
	"nftforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	followers := []mint.Follower{collector}

	var jobs *repo.MintJobRepositoryPG
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: database connection failed")
	}
	if dbpool != nil {
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, logger)
		if err := infra.EnsureSchema(ctx, runner); err != nil {
			logger.Fatal().Err(err).Msg("api: schema setup failed")
		}
		jobs = repo.NewMintJobRepository(runner)
		followers = append(followers, mint.NewJournal(jobs, &logger))
	} else {
		logger.Warn().Msg("api: DATABASE_URL empty, mint journal disabled")
	}

	generator, err := imagegen.FromConfig(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: image generation setup failed")
	}
	store, local, err := storage.FromConfig(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage setup failed")
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	ledgerClient, closeLedger, err := ledger.Dial(dialCtx, cfg, &logger)
	cancelDial()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: ledger setup failed")
	}
	defer closeLedger()
	if contract, err := ledgerClient.Contract(ctx); err != nil {
		logger.Warn().Err(err).Msg("api: nft contract not resolvable yet")
	} else {
		logger.Info().Str("network", contract.Network).Str("address", contract.Address.Hex()).Msg("api: nft contract resolved")
	}

	registry, err := mint.NewRegistry(mint.RegistryOptions{
		Generator:    generator,
		Store:        store,
		Minter:       ledgerClient,
		Followers:    followers,
		MaxWorkflows: cfg.MaxWorkflows,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: workflow registry setup failed")
	}

	app := handlers.NewApp(registry, &logger)
	app.Contract = ledgerClient
	if jobs != nil {
		app.Jobs = jobs
		app.Ping = dbpool.Ping
	}
	if local != nil {
		app.Content = local
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		Metrics:         collector,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go pruneIdle(ctx, registry, cfg.WorkflowIdleTTL)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	registry.Close()
	logger.Info().Msg("api: stopped")
}

// pruneIdle drops workflows nobody has touched for ttl.
func pruneIdle(ctx context.Context, registry *mint.Registry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Prune(ttl)
		}
	}
}
