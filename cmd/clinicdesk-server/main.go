package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/admin"
	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/queue"
	"github.com/clinicdesk/clinicdesk/internal/domain/ratecard"
	"github.com/clinicdesk/clinicdesk/internal/domain/referral"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/backup"
	"github.com/clinicdesk/clinicdesk/internal/platform/export"
	"github.com/clinicdesk/clinicdesk/internal/platform/middleware"
	"github.com/clinicdesk/clinicdesk/internal/platform/storage"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicdesk-server",
		Short: "Clinic front-desk API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(backupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the front-desk API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the showcase demo dataset into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, err := setup()
			if err != nil {
				return err
			}
			gw, err := openGateway(cfg, logger)
			if err != nil {
				return err
			}
			defer gw.Close()
			st, err := store.New(gw, clock.System{}, logger)
			if err != nil {
				return err
			}
			if err := st.LoadDemo(); err != nil {
				return err
			}
			fmt.Println("Demo data loaded.")
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a backup of the current state to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			logger, cfg, err := setup()
			if err != nil {
				return err
			}
			gw, err := openGateway(cfg, logger)
			if err != nil {
				return err
			}
			defer gw.Close()
			st, err := store.New(gw, clock.System{}, logger)
			if err != nil {
				return err
			}
			raw, err := backup.Marshal(st.Snapshot())
			if err != nil {
				return err
			}
			if out == "" {
				out = backup.Filename(clock.System{})
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Output file (default: clinicdesk-backup-<date>.json)")
	return cmd
}

func setup() (zerolog.Logger, *config.Config, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") != "production" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	cfg, err := config.Load()
	if err != nil {
		return logger, nil, err
	}
	return logger, cfg, nil
}

func openGateway(cfg *config.Config, logger zerolog.Logger) (storage.Gateway, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		return storage.NewSQLiteStore(cfg.DataDir+"/clinicdesk.db", logger)
	default:
		return storage.NewFileStore(cfg.DataDir+"/clinicdesk.json", logger)
	}
}

func runServer() error {
	logger, cfg, err := setup()
	if err != nil {
		return err
	}

	clk := clock.System{}

	gw, err := openGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer gw.Close()

	st, err := store.New(gw, clk, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load state")
	}
	logger.Info().Str("driver", cfg.StorageDriver).Msg("state loaded")

	// Auth
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		// Dev convenience; Validate rejects this in production.
		secret = []byte("clinicdesk-dev-secret")
		logger.Warn().Msg("JWT_SECRET not set, using development secret")
	}
	authSvc := auth.NewService(secret, clk)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Confirm"},
	}))
	e.Use(auth.Middleware(authSvc))

	// Health check
	e.GET("/health", healthHandler)

	// Live queue feed
	hub := websocket.NewHub(logger)
	feed := queue.NewFeed(st, hub, clk, logger)
	st.Subscribe(feed.Publish)

	// API routes
	apiV1 := e.Group("/api/v1")
	apiV1.GET("/health", healthHandler)

	auth.NewHandler(authSvc).RegisterRoutes(apiV1)
	patient.NewHandler(st, store.ErrNotFound, store.ErrNotToday).RegisterRoutes(apiV1)
	ratecard.NewHandler(st).RegisterRoutes(apiV1)
	expense.NewHandler(st).RegisterRoutes(apiV1)
	queue.NewHandler(st, clk).RegisterRoutes(apiV1)
	billing.NewHandler(st, clk).RegisterRoutes(apiV1)
	referral.NewHandler(st, clk, store.ErrNotFound).RegisterRoutes(apiV1)
	admin.NewHandler(st, clk, logger).RegisterRoutes(apiV1)
	export.NewHandler(st, clk).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(apiV1)

	// Watch for external writes to the state file
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := st.Watch(ctx); err != nil {
		logger.Error().Err(err).Msg("external change watcher unavailable")
	}

	// Daily auto-backup
	if cfg.AutoBackup {
		writer, err := backup.NewDailyWriter(cfg.BackupDir, clk)
		if err != nil {
			logger.Error().Err(err).Msg("auto-backup unavailable")
		} else {
			go runDailyBackup(ctx, writer, st, logger)
		}
	}

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return e.Shutdown(shutdownCtx)
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": "0.1.0",
	})
}

// runDailyBackup takes one backup per business day, checking hourly so a
// server left running overnight backs up again after midnight.
func runDailyBackup(ctx context.Context, w *backup.DailyWriter, st *store.Store, logger zerolog.Logger) {
	run := func() {
		wrote, err := w.Run(st.Snapshot())
		if err != nil {
			logger.Error().Err(err).Msg("daily backup failed")
			return
		}
		if wrote {
			logger.Info().Msg("daily backup written")
		}
	}
	run()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
