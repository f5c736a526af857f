package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/valinor-ai/tipwarden/internal/audit"
	"github.com/valinor-ai/tipwarden/internal/auth"
	"github.com/valinor-ai/tipwarden/internal/export"
	"github.com/valinor-ai/tipwarden/internal/harvest"
	"github.com/valinor-ai/tipwarden/internal/platform/config"
	"github.com/valinor-ai/tipwarden/internal/platform/database"
	"github.com/valinor-ai/tipwarden/internal/platform/server"
	"github.com/valinor-ai/tipwarden/internal/platform/telemetry"
	"github.com/valinor-ai/tipwarden/internal/review"
	"github.com/valinor-ai/tipwarden/internal/sentinel"
	"github.com/valinor-ai/tipwarden/internal/store"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	// setup loads .env (optional), config and the default logger.
	setup := func() (*config.Config, *slog.Logger, error) {
		_ = godotenv.Load()
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
		telemetry.SetDefault(logger)
		return cfg, logger, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review API and the background harvester",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, logger)
		},
	}

	harvestCmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest enabled sources once and ingest the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return harvestOnce(ctx, cfg, logger)
		},
	}

	root := &cobra.Command{
		Use:          "tipwarden",
		Short:        "Curate community tips behind a content safety triage",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serveCmd.RunE,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file (missing files are ignored)")
	root.AddCommand(serveCmd, harvestCmd, newTokenCmd(func() (*config.Config, error) {
		cfg, _, err := setup()
		return cfg, err
	}))
	return root
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	slog.Info("tipwarden starting",
		"version", version,
		"port", cfg.Server.Port,
	)

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	tokenSvc := auth.NewTokenService(
		cfg.Auth.JWT.SigningKey,
		cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.ExpiryHours,
	)

	var (
		reviewHandler *review.Handler
		auditHandler  *audit.Handler
		worker        *harvestWorker
	)
	if pool != nil {
		auditLogger := buildAuditLogger(pool, cfg.Audit)
		defer auditLogger.Close()

		svc := buildReviewService(pool, cfg, auditLogger, logger)
		reviewHandler = review.NewHandler(svc)
		auditHandler = audit.NewHandler(pool)
		worker = buildHarvestWorker(buildHarvester(cfg.Harvest, logger), svc, cfg.Harvest)
	} else {
		slog.Warn("no database configured, review API disabled")
	}

	var devIdentity *auth.Identity
	if cfg.Auth.DevMode {
		slog.Warn("running in dev mode, authentication bypassed with 'Bearer dev'")
		devIdentity = &auth.Identity{
			Subject: "dev-user",
			Name:    "dev",
			Roles:   []string{auth.RoleReviewer},
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		Auth:               tokenSvc,
		ReviewHandler:      reviewHandler,
		AuditHandler:       auditHandler,
		DevMode:            cfg.Auth.DevMode,
		DevIdentity:        devIdentity,
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
	})

	if worker != nil {
		slog.Info("harvest worker enabled", "interval", worker.interval)
	}

	slog.Info("server ready", "addr", addr, "dev_mode", cfg.Auth.DevMode, "oracle", cfg.Scanner.OracleReady())
	return runServices(ctx, srv, worker)
}

type starter interface {
	Start(ctx context.Context) error
}

// runServices runs the server and the harvest worker until ctx is done or
// one of them fails. A failing server stops the worker.
func runServices(ctx context.Context, srv starter, worker *harvestWorker) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}
	return g.Wait()
}

// harvestOnce runs a single harvest and ingest pass, then exits.
func harvestOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	if pool == nil {
		return errors.New("harvest requires database.url")
	}
	defer pool.Close()

	h := buildHarvester(cfg.Harvest, logger)
	if h == nil {
		return errors.New("no harvest sources enabled")
	}

	auditLogger := buildAuditLogger(pool, cfg.Audit)
	defer auditLogger.Close()

	svc := buildReviewService(pool, cfg, auditLogger, logger)
	worker := &harvestWorker{harvester: h, ingester: svc, interval: time.Hour}
	return worker.sweep(ctx)
}

func newTokenCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		sub   string
		name  string
		roles []string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed reviewer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return mintToken(cfg, &auth.Identity{Subject: sub, Name: name, Roles: roles}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "token subject")
	cmd.Flags().StringVar(&name, "name", "", "display name recorded on review decisions")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{auth.RoleReviewer}, "roles to grant")
	return cmd
}

func mintToken(cfg *config.Config, identity *auth.Identity, out io.Writer) error {
	tokenSvc := auth.NewTokenService(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.ExpiryHours)
	token, err := tokenSvc.CreateToken(identity)
	if err != nil {
		return fmt.Errorf("creating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// connect returns a nil pool when no database is configured.
func connect(ctx context.Context, cfg *config.Config) (*database.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}

	slog.Info("connecting to database")
	pool, err := database.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return pool, nil
}

func buildAuditLogger(pool *database.Pool, cfg config.AuditConfig) *audit.AsyncLogger {
	return audit.NewAsyncLogger(pool, audit.NewStore(), audit.LoggerConfig{
		BufferSize:    cfg.BufferSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushInterval) * time.Millisecond,
	})
}

func buildReviewService(pool *database.Pool, cfg *config.Config, auditLog audit.Logger, logger *slog.Logger) *review.Service {
	triager := sentinel.NewTriager(sentinel.TriageConfig{
		OracleEnabled: cfg.Scanner.OracleReady(),
		StrictVerdict: cfg.Scanner.StrictVerdict,
		Concurrency:   cfg.Scanner.Concurrency,
	}, buildOracle(cfg.Scanner))

	return review.NewService(
		pool,
		store.NewStore(),
		triager,
		buildExporter(cfg.Export),
		auditLog,
		telemetry.Component(logger, "review"),
	)
}

// buildOracle returns nil unless the oracle is enabled and credentialed.
func buildOracle(cfg config.ScannerConfig) sentinel.Oracle {
	if !cfg.OracleReady() {
		return nil
	}
	return sentinel.NewAnthropicOracle(sentinel.OracleConfig{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.AnthropicKey,
		Model:    cfg.LLMModel,
		MaxChars: cfg.MaxChars,
		Timeout:  time.Duration(cfg.TimeoutSecs) * time.Second,
	})
}

// buildExporter returns a nil interface when no export directory is set.
func buildExporter(cfg config.ExportConfig) review.Exporter {
	if cfg.Dir == "" {
		return nil
	}
	return export.NewExporter(cfg.Dir, export.Options{IncludeMetadata: cfg.IncludeMetadata})
}

// buildHarvester returns nil when no source is enabled.
func buildHarvester(cfg config.HarvestConfig, logger *slog.Logger) harvest.Harvester {
	var hs []harvest.Harvester
	if cfg.Reddit.Enabled {
		hs = append(hs, harvest.NewReddit(harvest.RedditConfig{
			BaseURL:      cfg.Reddit.BaseURL,
			Mode:         cfg.Reddit.Mode,
			Subreddits:   cfg.Reddit.Subreddits,
			Queries:      cfg.Reddit.Queries,
			MinScore:     cfg.Reddit.MinScore,
			LookbackDays: cfg.Reddit.LookbackDays,
		}, nil))
	}
	if cfg.GitHub.Enabled {
		hs = append(hs, harvest.NewGitHub(harvest.GitHubConfig{
			APIURL:         cfg.GitHub.APIURL,
			RawURL:         cfg.GitHub.RawURL,
			Token:          cfg.GitHub.Token,
			Queries:        cfg.GitHub.Queries,
			MinStars:       cfg.GitHub.MinStars,
			TrustedAuthors: cfg.GitHub.TrustedAuthors,
		}, nil))
	}
	if len(hs) == 0 {
		return nil
	}
	return harvest.NewMulti(telemetry.Component(logger, "harvest"), hs...)
}
