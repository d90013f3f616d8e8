// Package config provides application configuration structures and helpers.
package config

import (
	"flag"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Environment values for the standard metric label.
const (
	EnvProd = "prod"
	EnvDev  = "dev"
)

// ServerConfig holds the configuration settings for the server.
type ServerConfig struct {
	Addr              string // HTTP listen address
	Environment       string // "prod" or "dev", reported as the standard environment label
	RedditBaseURL     string // Base URL of the community API
	UserAgent         string // Fixed User-Agent for upstream requests
	PostFetchLimit    int    // Max posts fetched per post-stats cycle (one page, no pagination)
	ClientTimeout     int    // Upstream HTTP client timeout (in seconds)
	MonitoringBaseURL string // Base URL of the monitoring API backend
	MonitoringProject string // Project the monitoring backend writes under
	DatabaseDsn       string // Data Source Name for the PostgreSQL backend
	SqlitePath        string // Path to the SQLite backend file
	SnapshotDir       string // Directory the filesystem snapshot sink writes to
	PageSize          int    // Page size for time-series queries
	Logger            *zap.SugaredLogger
}

// NewServerConfig creates a new ServerConfig by applying defaults, then
// flags, then environment variables (environment wins).
func NewServerConfig() *ServerConfig {
	logCfg := zap.NewProductionConfig()
	logger := zap.Must(logCfg.Build())

	cfg := &ServerConfig{}
	flag.StringVar(&cfg.Addr, "a", "localhost:8080", "HTTP server address")
	flag.StringVar(&cfg.Environment, "e", EnvDev, "deployment environment (prod or dev)")
	flag.StringVar(&cfg.RedditBaseURL, "reddit-url", "https://www.reddit.com", "community API base URL")
	flag.IntVar(&cfg.PostFetchLimit, "post-limit", 100, "max posts fetched per post-stats cycle")
	flag.IntVar(&cfg.ClientTimeout, "timeout", 30, "upstream client timeout (seconds)")
	flag.StringVar(&cfg.MonitoringBaseURL, "monitoring-url", "", "monitoring API base URL")
	flag.StringVar(&cfg.MonitoringProject, "monitoring-project", "", "monitoring project id")
	flag.StringVar(&cfg.DatabaseDsn, "d", "", "DB connection string")
	flag.StringVar(&cfg.SqlitePath, "sqlite", "", "path to SQLite backend file")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", "./tmp/snapshots", "snapshot output directory")
	flag.IntVar(&cfg.PageSize, "page-size", 100, "time-series query page size")
	flag.Parse()

	readServerEnvironment(cfg)

	if cfg.Environment != EnvProd && cfg.Environment != EnvDev {
		log.Printf("unknown environment %q, falling back to %q", cfg.Environment, EnvDev)
		cfg.Environment = EnvDev
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "techsubreddits.com by /u/gctaylor"
	}

	cfg.Logger = logger.Sugar()
	return cfg
}

func readServerEnvironment(cfg *ServerConfig) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}

	if u := os.Getenv("REDDIT_BASE_URL"); u != "" {
		cfg.RedditBaseURL = u
	}

	if ua := os.Getenv("USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}

	if limitEnv := os.Getenv("POST_FETCH_LIMIT"); limitEnv != "" {
		v, err := strconv.Atoi(limitEnv)
		if err == nil {
			cfg.PostFetchLimit = v
		} else {
			log.Printf("invalid POST_FETCH_LIMIT env var: %v", err)
		}
	}

	if u := os.Getenv("MONITORING_BASE_URL"); u != "" {
		cfg.MonitoringBaseURL = u
	}

	if p := os.Getenv("MONITORING_PROJECT"); p != "" {
		cfg.MonitoringProject = p
	}

	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}

	if p := os.Getenv("SQLITE_PATH"); p != "" {
		cfg.SqlitePath = p
	}

	if d := os.Getenv("SNAPSHOT_DIR"); d != "" {
		cfg.SnapshotDir = d
	}

	if sizeEnv := os.Getenv("PAGE_SIZE"); sizeEnv != "" {
		v, err := strconv.Atoi(sizeEnv)
		if err == nil {
			cfg.PageSize = v
		} else {
			log.Printf("invalid PAGE_SIZE env var: %v", err)
		}
	}
}
