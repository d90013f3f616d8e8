package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gctaylor/techsubs/internal/bucket"
	"github.com/gctaylor/techsubs/internal/buildinfo"
	"github.com/gctaylor/techsubs/internal/catalog"
	"github.com/gctaylor/techsubs/internal/config"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/overview"
	"github.com/gctaylor/techsubs/internal/reddit"
	"github.com/gctaylor/techsubs/internal/scanner"
	"github.com/gctaylor/techsubs/internal/server"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/internal/tsdb/inmemory"
	"github.com/gctaylor/techsubs/internal/tsdb/monitoring"
	"github.com/gctaylor/techsubs/internal/tsdb/postgres"
	"github.com/gctaylor/techsubs/internal/tsdb/sqlite"
)

func main() {
	buildinfo.PrintBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.NewServerConfig()
	timeout := time.Duration(cfg.ClientTimeout) * time.Second

	var (
		store tsdb.Client
		err   error
	)
	switch {
	case cfg.DatabaseDsn != "":
		store, err = postgres.NewPostgresStore(ctx, cfg.DatabaseDsn)
		if err != nil {
			cfg.Logger.Fatal(err)
		}
	case cfg.SqlitePath != "":
		store, err = sqlite.NewSqliteStore(cfg.SqlitePath)
		if err != nil {
			cfg.Logger.Fatal(err)
		}
	case cfg.MonitoringProject != "":
		store = monitoring.NewClient(cfg.MonitoringBaseURL, cfg.MonitoringProject, cfg.PageSize, timeout)
	default:
		store = inmemory.NewMemStore()
	}

	for _, def := range metrics.All() {
		if err := store.EnsureMetric(ctx, def); err != nil {
			cfg.Logger.Fatalf("register metric %s: %v", def.Name, err)
		}
	}

	cfg.Logger.Infof("Server config: Addr=%s, Environment=%s, PostFetchLimit=%d, DatabaseDSN set=%t, SqlitePath=%q, MonitoringProject=%q",
		cfg.Addr,
		cfg.Environment,
		cfg.PostFetchLimit,
		cfg.DatabaseDsn != "",
		cfg.SqlitePath,
		cfg.MonitoringProject,
	)

	cat := catalog.New()
	source := reddit.NewSource(cfg.RedditBaseURL, cfg.UserAgent, timeout)
	sc := scanner.New(source, store, cfg.Environment, cfg.PostFetchLimit, cfg.Logger)
	ov := overview.NewBuilder(cat, store, cfg.Environment, cfg.Logger)
	uploader := &bucket.FSUploader{Dir: cfg.SnapshotDir}

	srv := server.NewServer(sc, ov, cat, uploader, cfg)
	if err := srv.Run(ctx); err != nil {
		cfg.Logger.Fatal(err)
	}
}
