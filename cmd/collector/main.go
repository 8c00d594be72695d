package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/analyze"
	"github.com/apiobserve/collector/pkg/collector"
	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/dashboard"
	"github.com/apiobserve/collector/pkg/logger"
	"github.com/apiobserve/collector/pkg/secrets"
	"github.com/apiobserve/collector/pkg/store"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string

	root := &cobra.Command{
		Use:   "collector",
		Short: "Periodic API data collector",
		Long: `Collector fetches records from a configured HTTP API, upserts them into a
local entity store and optionally generates an AI summary plus a static
status dashboard. Configuration comes from environment variables, with an
optional YAML overlay file.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config overlay (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("collector v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "collect",
		Short: "Run one sync: fetch all pages and upsert into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp("collect", configFile, func(ctx context.Context, app *app) error {
				runner := collector.NewRunner(app.cfg, app.secrets, app.store, app.logger)
				outcome, err := runner.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("fetched %d records: %d new, %d updated, %d failed\n",
					outcome.Fetched, outcome.New, outcome.Updated, outcome.Failed)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "analyze",
		Short: "Summarize recent records with the configured model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp("analyze", configFile, func(ctx context.Context, app *app) error {
				if app.cfg.OpenAI.APIKey == "" && app.cfg.OpenAI.APIKeySecretName != "" {
					key, err := app.secrets.GetSecret(ctx, app.cfg.OpenAI.APIKeySecretName, false)
					if err != nil {
						return err
					}
					app.cfg.OpenAI.APIKey = key
				}
				var summarizer analyze.Summarizer
				if s := analyze.NewChatSummarizer(&app.cfg.OpenAI, &app.cfg.Analysis); s != nil {
					summarizer = s
				}
				a := analyze.NewAnalyzer(&app.cfg.Analysis, app.cfg.Storage.PartitionKey,
					app.cfg.API.TimestampField, app.store, summarizer, app.logger)
				return a.Run(ctx)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "dashboard",
		Short: "Render and publish the status page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp("dashboard", configFile, func(ctx context.Context, app *app) error {
				pub := dashboard.NewFilePublisher(app.cfg.Dashboard.OutputPath)
				b := dashboard.NewBuilder(&app.cfg.Analysis, app.cfg.Storage.PartitionKey,
					app.store, pub, app.logger)
				return b.Run(ctx)
			})
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the shared dependencies built once per invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	secrets secrets.Store
	store   store.EntityStore
}

// withApp builds configuration, logging and the entity store, runs fn
// with a component-scoped context and tears everything down.
func withApp(component, configFile string, fn func(context.Context, *app) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	}); err != nil {
		return err
	}
	ctx := logger.WithComponent(context.Background(), component)
	log := logger.FromContext(ctx, logger.Get())
	defer func() { _ = logger.Sync() }()

	entityStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath, cfg.Storage.TableName)
	if err != nil {
		return err
	}
	defer entityStore.Close()

	if err := entityStore.CreateTableIfAbsent(ctx); err != nil {
		return err
	}

	sec := secrets.NewEnvStore(os.LookupEnv, log)

	return fn(ctx, &app{
		cfg:     cfg,
		logger:  log,
		secrets: sec,
		store:   entityStore,
	})
}
