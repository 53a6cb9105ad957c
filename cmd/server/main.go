// Command qr-server serves the QuoteReality REST API and a gRPC health sidecar.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/and161185/quotereality/internal/auth"
	"github.com/and161185/quotereality/internal/config"
	"github.com/and161185/quotereality/internal/migrate"
	"github.com/and161185/quotereality/internal/repository/postgres"
	grpcserver "github.com/and161185/quotereality/internal/server/grpc"
	httpserver "github.com/and161185/quotereality/internal/server/http"
	"github.com/and161185/quotereality/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownGrace = 5 * time.Second

type flags struct {
	configPath string
	envFile    string
	addr       string
	grpcAddr   string
	dsn        string
	dev        bool
}

var opts flags

var rootCmd = &cobra.Command{
	Use:           "qr-server",
	Short:         "QuoteReality API server",
	Long:          "qr-server serves the QuoteReality REST API backed by PostgreSQL.",
	Version:       fmt.Sprintf("%s (%s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and gRPC health server (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local development",
	RunE:  runToken,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML config file (default $QR_CONFIG)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded when present")
	pf.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (overrides config)")
	pf.BoolVar(&opts.dev, "dev", false, "development mode: debug logs, gRPC reflection")

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides config)")
		c.Flags().StringVar(&opts.grpcAddr, "grpc-addr", "", "gRPC health listen address (overrides config)")
	}

	tokenCmd.Flags().String("user", "", "subject (user id) to embed in the token")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default from config)")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides on top of config.Load.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.grpcAddr != "" {
		cfg.Server.GRPCAddr = opts.grpcAddr
	}
	if opts.dsn != "" {
		cfg.Database.DSN = opts.dsn
	}
	if opts.dev {
		cfg.Server.Dev = true
	}
	return cfg, nil
}

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// runServe runs migrations, then serves HTTP and gRPC until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.Dev)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
		zap.String("grpcAddr", cfg.Server.GRPCAddr),
	)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrateOnStart {
		if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	projectRepo := postgres.NewProjectRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	settingsRepo := postgres.NewSettingsRepo(db)

	// Services
	projectSvc := service.NewProjectService(projectRepo, sessionRepo, settingsRepo)
	sessionSvc := service.NewSessionService(sessionRepo)
	settingsSvc := service.NewSettingsService(settingsRepo)
	exportSvc := service.NewExportService(projectSvc, settingsSvc)

	verifier := auth.NewVerifier([]byte(cfg.Auth.JWTKey), cfg.Auth.Issuer, cfg.Auth.Audience)

	if !cfg.Server.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	api := httpserver.New(projectSvc, sessionSvc, settingsSvc, exportSvc, verifier, db, logger)
	httpSrv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.Router(httpserver.Options{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.RequestTimeout.Duration,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var gs *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		health := grpcserver.NewHealth(db, cfg.Server.HealthInterval.Duration, logger)
		gs = grpcserver.NewServer(logger, health, cfg.Server.Dev)

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Fatal("listen grpc", zap.Error(err))
		}
		go health.Run(ctx)
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if gs != nil {
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			gs.Stop()
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return errors.New("database dsn is required (--dsn or QR_DSN)")
	}
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	ctx := cmd.Context()
	switch action {
	case "up":
		err = migrate.Up(ctx, cfg.Database.DSN)
	case "down":
		err = migrate.Down(ctx, cfg.Database.DSN)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	v, err := migrate.Version(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTKey == "" {
		return errors.New("jwt signing key is required (QR_JWT_KEY)")
	}
	user, _ := cmd.Flags().GetString("user")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL.Duration
	}

	iss := auth.NewIssuer([]byte(cfg.Auth.JWTKey), ttl, cfg.Auth.Issuer, cfg.Auth.Audience)
	tok, exp, err := iss.Issue(user)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
	return nil
}
