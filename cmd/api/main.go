package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/app"
	"github.com/mwork/rewards-api/internal/config"
	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/middleware"
	"github.com/mwork/rewards-api/internal/pkg/clock"
	"github.com/mwork/rewards-api/internal/pkg/database"
	"github.com/mwork/rewards-api/internal/pkg/jwt"
	"github.com/mwork/rewards-api/internal/pkg/logger"
	pkgresponse "github.com/mwork/rewards-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Msg("Starting rewards API")

	clk := clock.System{}

	stores, err := app.OpenStores(cfg, clk)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer stores.Close()

	locker, redisClient, err := app.NewLocker(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	rules, err := app.LoadRules(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load claim rules")
	}

	evidence, err := app.NewEvidenceStore(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create evidence storage")
	}

	// ---------- Services ----------
	ledger := wallet.NewLedger(stores.Wallets, clk)

	relocator := claim.NewRelocator(evidence, stores.Claims, claim.RelocatorConfig{Workers: cfg.RelocatorWorkers})
	relocator.Start(context.Background())

	engine := claim.NewEngine(stores.Claims, ledger, rules, clk, relocator).
		WithSweepBatchSize(cfg.SweepBatchSize)

	sweepWorker := claim.NewWorker(engine, locker, clk, cfg.SweepInterval)
	sweepWorker.Start()

	// ---------- Handlers ----------
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	walletHandler := wallet.NewHandler(ledger, wallet.NewPercentPolicy(cfg.SpendLimitPercent))
	claimHandler := claim.NewHandler(engine, sweepWorker.RunOnce)

	r := newRouter(cfg, jwtService, walletHandler, claimHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sweepWorker.Stop()
	relocator.Stop()

	log.Info().Msg("Server exited properly")
}

func newRouter(cfg *config.Config, jwtService *jwt.Service, walletHandler *wallet.Handler, claimHandler *claim.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})

	authMiddleware := middleware.Auth(jwtService)
	adminOnly := middleware.RequireAdmin()

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/claims", claimHandler.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/claims", claimHandler.AdminRoutes(authMiddleware, adminOnly))
		r.Mount("/wallets", walletHandler.AdminRoutes(authMiddleware, adminOnly))
	})

	return r
}
