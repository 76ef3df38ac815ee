package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/database"
	"activity-reward-system/handlers"
	"activity-reward-system/middleware"
	"activity-reward-system/services"
	"activity-reward-system/telemetry"
	"activity-reward-system/utils"
	"activity-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
)

const serviceName = "activity-reward-system"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "activity-reward-system",
		Short:         "Activity sessions and probabilistic rewards",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRollCmd())
	root.AddCommand(newTablesCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.GameServiceToken == "" {
		return errors.New("GAME_SERVICE_TOKEN environment variable not set")
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Otel, serviceName)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("⚠️ Tracing shutdown: %v", err)
		}
	}()

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var fetcher config.ObjectFetcher
	if cfg.R2.Enabled() {
		r2, err := utils.InitR2(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		fetcher = r2
	}
	tables, err := config.LoadTables(ctx, cfg, fetcher)
	if err != nil {
		return err
	}

	roller := services.NewCreatureRoller(services.NewGormCreatureCatalog(db), cfg.CatalogTimeout)
	generator := services.NewRewardGenerator(tables, roller, services.NewGormItemCatalog(db))
	sessionService := services.NewSessionService(db, tables, generator, services.NewRandomSource())
	claimService := services.NewClaimService(db)
	rewardService := services.NewRewardService(db)
	ownerStore := services.NewGormOwnerStore(db)

	app := fiber.New(fiber.Config{AppName: serviceName})

	app.Use(middleware.TracingMiddleware())

	// 🔐❗ GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.GameServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-User-Roles, traceparent",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupActivityRoutes(app, handlers.ActivityServices{
		Sessions: sessionService,
		Cooldown: services.NewCooldownGate(db, tables),
		Claims:   claimService,
		Prompts:  sessionService.Prompts,
	})
	handlers.SetupRewardRoutes(app, rewardService, ownerStore)

	sweeper, err := sessionService.StartSessionSweeper(cfg.SessionSweepInterval, cfg.SessionAbandonAfter)
	if err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	if sweeper != nil {
		defer func() { _ = sweeper.Shutdown() }()
	}

	if cfg.CatalogSyncURL != "" {
		workers.NewCatalogSyncWorker(db, cfg.CatalogSyncURL, cfg.GameServiceToken, cfg.CatalogSyncInterval).Start(ctx)
	} else {
		log.Println("⚠️  CATALOG_SYNC_URL not set, creature and item catalogs will not be refreshed")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ %d locations loaded", len(tables.Locations))
	log.Println("✅ GatewayAuthMiddleware enforced globally, all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
