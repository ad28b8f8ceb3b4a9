package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-bridge/core/loader"
	"crm-bridge/core/logger"
	"crm-bridge/core/middleware/auth"
	"crm-bridge/core/middleware/rayid"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/scheduler"
	"crm-bridge/feature/integrity"
	syncfeature "crm-bridge/feature/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "crm-bridge/docs/swagger"
)

// @title CRM Bridge API
// @version 1.0
// @description API for running and inspecting project system to CRM sync cycles.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync server",
	Long:  `Starts the HTTP server and the cycle scheduler, and initializes all enabled features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 1. Configuration, logger and state store
		rt, err := bootstrap(ctx, setup{Remotes: true})
		if err != nil {
			return err
		}
		defer rt.Close()
		logg := rt.logger
		zap.ReplaceGlobals(logg)

		// 2. Engine and orchestrator
		orch, err := rt.newOrchestrator(orchestrator.NewMetrics())
		if err != nil {
			return err
		}

		// 3. Scheduler. Interval cycles follow sync.dry_run.
		sched := scheduler.New(orch, rt.cfg.Sync.Interval, logg).
			WithDefaults(orchestrator.RunOptions{DryRun: rt.cfg.Sync.DryRun})

		// 4. Feature Loader
		mgr := loader.NewManager()
		mgr.Register(syncfeature.NewFeature(syncfeature.NewService(orch, sched, rt.store, rt.archive, logg)))
		mgr.Register(integrity.NewFeature(integrity.NewService(rt.db, rt.mapper, rt.inspectors(), rt.archive, logg)))

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// RayID must be first to trace everything.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			start := time.Now()
			err := c.Next()
			l.Info("Request",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("duration", time.Since(start)),
			)
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Get("/swagger/*", swagger.HandlerDefault)

		app.Use(auth.New(auth.Config{ApiKey: rt.cfg.Server.ApiKey, Skip: rt.cfg.Server.IsPublic}))
		if rt.cfg.Server.ApiKey == "" {
			logg.Warn("API key is empty, the API is unprotected")
		}

		loaded, err := mgr.LoadAll(app)
		if err != nil {
			return err
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		// 5. Start
		sched.Start(ctx)

		serverErr := make(chan error, 1)
		go func() {
			logg.Info("Starting server", zap.String("port", rt.cfg.Server.Port))
			serverErr <- app.Listen(rt.cfg.Server.Address())
		}()

		// 6. Graceful Shutdown
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			sched.Stop()
			return err
		}
		logg.Info("Shutting down server...")
		sched.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logg.Warn("Server shutdown failed", zap.Error(err))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
