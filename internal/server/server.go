// Package server exposes the pipeline over HTTP: per-entity scan endpoints
// for the external dispatcher, overview generation workers, and the JSON
// API the view layer reads.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gctaylor/techsubs/internal/bucket"
	"github.com/gctaylor/techsubs/internal/catalog"
	"github.com/gctaylor/techsubs/internal/config"
	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/overview"
	"github.com/gctaylor/techsubs/internal/scanner"
	"github.com/gctaylor/techsubs/internal/server/middleware"
)

type Server struct {
	Scanner  *scanner.Scanner
	Overview *overview.Builder
	Catalog  *catalog.Catalog
	Uploader bucket.Uploader
	Config   *config.ServerConfig
}

func NewServer(sc *scanner.Scanner, ov *overview.Builder, cat *catalog.Catalog, up bucket.Uploader, cfg *config.ServerConfig) *Server {
	return &Server{Scanner: sc, Overview: ov, Catalog: cat, Uploader: up, Config: cfg}
}

// Router builds the HTTP routing table. Exposed separately so tests can
// drive it through httptest.
func (srv *Server) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.Config.Logger))

	router.Post("/workers/scanner/{subreddit}/basic", srv.ScanBasicHandler)
	router.Post("/workers/scanner/{subreddit}/posts", srv.ScanPostsHandler)
	router.Get("/workers/scanner/entities", srv.EntitiesHandler)
	router.Post("/workers/overview/{category}", srv.PublishOverviewHandler)

	router.Get("/api/categories", srv.CategoriesHandler)
	router.Get("/api/category/{category}/overview", srv.OverviewHandler)

	return router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{Addr: srv.Config.Addr, Handler: srv.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			srv.Config.Logger.Errorf("shutdown: %v", err)
		}
	}()

	err := httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) ScanBasicHandler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "subreddit")
	if !srv.Catalog.HasEntity(slug) {
		http.NotFound(w, r)
		return
	}

	if err := srv.Scanner.ScanBasicStats(r.Context(), slug); err != nil {
		srv.Config.Logger.Errorf("basic stats scan failed [subreddit=%s]: %v", slug, err)
		srv.writeScanError(w, err)
		return
	}
	fmt.Fprint(w, "OK")
}

func (srv *Server) ScanPostsHandler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "subreddit")
	if !srv.Catalog.HasEntity(slug) {
		http.NotFound(w, r)
		return
	}

	if err := srv.Scanner.ScanPostStats(r.Context(), slug); err != nil {
		srv.Config.Logger.Errorf("post stats scan failed [subreddit=%s]: %v", slug, err)
		srv.writeScanError(w, err)
		return
	}
	fmt.Fprint(w, "OK")
}

// writeScanError maps scan failures onto status codes for the dispatcher:
// upstream trouble is a bad gateway (retriable), anything else is internal.
func (srv *Server) writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrUpstreamStatus), errors.Is(err, errs.ErrMalformedResponse):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// EntitiesHandler lists every tracked sub-Reddit slug. The dispatcher fans
// per-entity scan tasks out from this list.
func (srv *Server) EntitiesHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, map[string]any{"entities": srv.Catalog.Slugs()})
}

func (srv *Server) CategoriesHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, map[string]any{"categories": srv.Catalog.Categories()})
}

func (srv *Server) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	doc, err := srv.Overview.CategoryOverview(r.Context(), category)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCategory) {
			http.NotFound(w, r)
			return
		}
		srv.Config.Logger.Errorf("overview failed [category=%s]: %v", category, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	srv.writeJSON(w, doc)
}

// PublishOverviewHandler generates a category's overview snapshot and hands
// it to the upload sink.
func (srv *Server) PublishOverviewHandler(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	blob, err := srv.Overview.CategoryOverviewJSON(r.Context(), category)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCategory) {
			http.NotFound(w, r)
			return
		}
		srv.Config.Logger.Errorf("overview snapshot failed [category=%s]: %v", category, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	key := bucket.OverviewKey(srv.Config.Environment, category)
	if err := srv.Uploader.Upload(r.Context(), key, "application/json", blob); err != nil {
		srv.Config.Logger.Errorf("snapshot upload failed [key=%s]: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, "OK")
}

func (srv *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		srv.Config.Logger.Errorf("failed to encode response: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
