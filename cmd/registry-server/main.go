package main

import (
	"context"
	"errors"
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

	"github.com/ehr/registry/internal/barcode"
	"github.com/ehr/registry/internal/config"
	"github.com/ehr/registry/internal/domain/patient"
	"github.com/ehr/registry/internal/label"
	"github.com/ehr/registry/internal/phn"
	"github.com/ehr/registry/internal/platform/auth"
	"github.com/ehr/registry/internal/platform/db"
	"github.com/ehr/registry/internal/platform/metrics"
	"github.com/ehr/registry/internal/platform/middleware"
	"github.com/ehr/registry/internal/typeface"
)

const requestTimeout = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "registry-server",
		Short: "Patient registration and label printing server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(phnCmd())
	rootCmd.AddCommand(labelCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg == nil || cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func newConnector(cfg *config.Config, logger zerolog.Logger) (*db.Connector, error) {
	return db.NewConnector(cfg.DatabaseURL, cfg.DBConnectTimeout,
		db.WithLogger(logger),
		db.WithObserver(metrics.RecordDBOperation),
	)
}

func jwtConfig(cfg *config.Config) (auth.JWTConfig, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return auth.JWTConfig{}, fmt.Errorf("decode signing key: %w", err)
	}
	return auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: key}, nil
}

func newPatientService(cfg *config.Config, connector *db.Connector, logger zerolog.Logger) *patient.Service {
	fonts := func() *typeface.Set { return typeface.Load(cfg.LabelFontBold, cfg.LabelFontRegular) }
	encoder := barcode.NewEncoder(barcode.WithFonts(fonts))

	return patient.NewService(patient.NewPatientRepo(connector),
		patient.WithGenerator(phn.NewGenerator(cfg.FacilityCode)),
		patient.WithBarcodeEncoder(encoder),
		patient.WithCompositor(label.NewCompositor(
			label.WithFacility(cfg.FacilityName),
			label.WithEncoder(encoder),
			label.WithFonts(fonts),
		)),
		patient.WithLogger(logger.With().Str("component", "patient").Logger()),
	)
}

// newServer builds the echo instance with middleware, auth and routes.
func newServer(cfg *config.Config, connector *db.Connector, logger zerolog.Logger) (*echo.Echo, error) {
	jwtCfg, err := jwtConfig(cfg)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "X-Render-Warnings", "Content-Disposition"},
	}))

	// Unauthenticated endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(connector))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		logger.Warn().Msg("using development auth middleware - DO NOT USE IN PRODUCTION")
		authMW = auth.DevAuthMiddleware(jwtCfg)
	} else {
		authMW = auth.JWTMiddleware(jwtCfg)
	}

	apiV1 := e.Group("/api/v1",
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
		}),
		authMW,
		middleware.RequestTimeout(requestTimeout),
	)

	patient.NewHandler(newPatientService(cfg, connector, logger)).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	connector, err := newConnector(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to configure database: %w", err)
	}

	// Connections are opened per operation, so an unreachable database at
	// startup is reported but does not stop the server.
	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectTimeout)
	if err := connector.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("database not reachable at startup")
	} else {
		logger.Info().Msg("connected to database")
	}
	cancel()

	e, err := newServer(cfg, connector, logger)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("facility", cfg.FacilityName).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return e.Shutdown(ctx)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	var migrationsDir string

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := newMigrator(migrationsDir)
			if err != nil {
				return err
			}

			applied, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s)\n", applied)
			return nil
		},
	}
	upCmd.Flags().StringVar(&migrationsDir, "dir", "", "path to migrations directory (default MIGRATIONS_DIR)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := newMigrator(migrationsDir)
			if err != nil {
				return err
			}

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}
			printStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().StringVar(&migrationsDir, "dir", "", "path to migrations directory (default MIGRATIONS_DIR)")

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

func newMigrator(dir string) (*db.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	connector, err := newConnector(cfg, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	return db.NewMigrator(connector, dir), nil
}
