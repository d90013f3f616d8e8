// Package testutils assembles a fully wired test server over the in-memory
// store and a stubbed community API.
package testutils

import (
	"time"

	"go.uber.org/zap"

	"github.com/gctaylor/techsubs/internal/bucket"
	"github.com/gctaylor/techsubs/internal/catalog"
	"github.com/gctaylor/techsubs/internal/config"
	"github.com/gctaylor/techsubs/internal/overview"
	"github.com/gctaylor/techsubs/internal/reddit"
	"github.com/gctaylor/techsubs/internal/scanner"
	"github.com/gctaylor/techsubs/internal/server"
	"github.com/gctaylor/techsubs/internal/tsdb/inmemory"
)

// Env is a composed server plus the seams tests poke at.
type Env struct {
	Server  *server.Server
	Store   *inmemory.MemStore
	Catalog *catalog.Catalog
}

// NewTestServer wires a server against the given upstream API base URL
// (usually an httptest.Server) and a throwaway snapshot dir.
func NewTestServer(upstreamURL, snapshotDir string) *Env {
	cfg := &config.ServerConfig{
		Environment:    config.EnvDev,
		RedditBaseURL:  upstreamURL,
		UserAgent:      "techsubs-test",
		PostFetchLimit: 100,
		SnapshotDir:    snapshotDir,
		Logger:         zap.NewNop().Sugar(),
	}

	store := inmemory.NewMemStore()
	cat := catalog.New()
	src := reddit.NewSource(cfg.RedditBaseURL, cfg.UserAgent, time.Second)

	sc := scanner.New(src, store, cfg.Environment, cfg.PostFetchLimit, cfg.Logger)
	ov := overview.NewBuilder(cat, store, cfg.Environment, cfg.Logger)
	up := &bucket.FSUploader{Dir: cfg.SnapshotDir}

	return &Env{
		Server:  server.NewServer(sc, ov, cat, up, cfg),
		Store:   store,
		Catalog: cat,
	}
}
