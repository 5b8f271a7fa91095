package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"

	"worktrail/backend/internal/api"
	"worktrail/backend/internal/auth"
	"worktrail/backend/internal/config"
	"worktrail/backend/internal/logging"
	"worktrail/backend/internal/mcp"
	"worktrail/backend/internal/observability"
	"worktrail/backend/internal/repository"
	"worktrail/backend/internal/services"
	"worktrail/backend/internal/storage"
	tlsutil "worktrail/backend/internal/tls"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "worktrail-server",
		Short: "Workflow execution tracking service",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the API server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					return err
				}
				return repository.Migrate(dsn(cfg))
			},
		},
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

func serve(ctx context.Context) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded environment=%s address=%s", cfg.Environment, cfg.Server.Address)

	if cfg.DB.Migrate {
		if err := repository.Migrate(dsn(cfg)); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("database schema up to date")
	}

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer dbPool.Close()
	logger.Info("database connected")

	repo := repository.NewPostgresStore(dbPool)
	files := storage.NewLocalStore(cfg.Uploads.Dir)

	var metrics observability.Sink = observability.Noop{}
	if sink, err := observability.NewOtelSink(); err != nil {
		logger.Warn("metrics disabled: %v", err)
	} else {
		metrics = sink
	}

	workflows := services.NewWorkflowService(repo)
	executions := services.NewExecutionService(repo, files, metrics)
	attachments := services.NewAttachmentService(repo, files, metrics, services.UploadPolicy{
		MaxSizeBytes:  cfg.Uploads.MaxSizeBytes,
		AllowedExts:   cfg.Uploads.AllowedExts,
		BlockedExts:   cfg.Uploads.BlockedExts,
		MaxNameLength: cfg.Uploads.MaxNameLength,
	})
	reviews := services.NewReviewService(repo, files)
	history := services.NewHistoryService(repo)
	logger.Info("service layer initialized")

	authz, err := auth.New(ctx, cfg, repo, logger)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("worktrail"))
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	}

	srv := api.NewServer(authz, workflows, executions, attachments, reviews, history, repo, logger)
	e.HTTPErrorHandler = srv.ErrorHandler
	srv.RegisterRoutes(e)
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(workflows, executions, repo)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
	logger.Info("MCP protocol handlers mounted")

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting address=%s tls=%t", cfg.Server.Address, cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				serverErrors <- fmt.Errorf("tls enabled but cert/key file not provided")
				return
			}
			// generate a self-signed pair on first run if hostnames are given
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) && len(cfg.TLS.Hostnames) > 0 {
				if err := tlsutil.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
					logger.Error("failed to generate self-signed cert: %v", err)
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				logger.Error("server close error: %v", err)
			}
		}
		logger.Info("server stopped gracefully")
	}
	return nil
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
