// Package scanner runs one sub-Reddit's collection cycle: it fetches raw
// data from the community API, derives gauge values, and writes them to the
// time-series store at deterministic instants so that a duplicate run
// within the same hour cannot double-report.
package scanner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gctaylor/techsubs/internal/clock"
	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/model"
)

// Source is the slice of the community API the scanner needs.
type Source interface {
	About(ctx context.Context, slug string) (model.AboutSnapshot, error)
	RecentPosts(ctx context.Context, slug string, limit int) ([]model.PostStub, error)
}

// Scanner collects and reports stats for single sub-Reddits. It holds no
// per-entity state, so one instance serves concurrent cycles.
type Scanner struct {
	source      Source
	store       tsdb.Client
	environment string
	postLimit   int
	logger      *zap.SugaredLogger

	// Now is the clock the scanner derives reporting windows from.
	// Overridable in tests.
	Now clock.Now
}

func New(source Source, store tsdb.Client, environment string, postLimit int, logger *zap.SugaredLogger) *Scanner {
	if postLimit <= 0 {
		postLimit = 100
	}
	return &Scanner{
		source:      source,
		store:       store,
		environment: environment,
		postLimit:   postLimit,
		logger:      logger,
		Now:         time.Now,
	}
}

// ScanBasicStats reports the subscriber and active-account snapshot for the
// sub-Reddit, written at the floor of the current hour. Running it again
// within the same hour is a no-op.
//
// The two writes are independent: if the first succeeds and the second
// fails, the first is not undone. The dispatcher's retry re-attempts both,
// and the idempotent instant makes the re-attempt harmless.
func (s *Scanner) ScanBasicStats(ctx context.Context, slug string) error {
	about, err := s.source.About(ctx, slug)
	if err != nil {
		return err
	}

	window := clock.BasicWindow(s.Now())
	labels := metrics.EntityLabels(s.environment, slug)

	if err := s.write(ctx, metrics.Subscribers, about.Subscribers, labels, window.Report); err != nil {
		return err
	}
	return s.write(ctx, metrics.AccountsActive, about.AccountsActive, labels, window.Report)
}

// ScanPostStats counts the posts created during the previous full clock
// hour and reports the total at that hour's start. The window is always one
// hour behind now so it is complete before it is counted.
//
// The count comes from a single recent-posts page. If upstream caches the
// listing, or more than the page limit of posts landed in the window, this
// undercounts. That approximation is accepted.
func (s *Scanner) ScanPostStats(ctx context.Context, slug string) error {
	window := clock.PostWindow(s.Now())

	posts, err := s.source.RecentPosts(ctx, slug, s.postLimit)
	if err != nil {
		return err
	}

	var count int64
	for _, p := range posts {
		if !p.Created.Before(window.Start) && !p.Created.After(window.End) {
			count++
		}
	}

	labels := metrics.EntityLabels(s.environment, slug)
	return s.write(ctx, metrics.NewPosts, count, labels, window.Report)
}

func (s *Scanner) write(ctx context.Context, def model.MetricDefinition, value int64, labels model.LabelSet, instant time.Time) error {
	err := s.store.WritePoint(ctx, def, value, labels, instant)
	if errors.Is(err, errs.ErrDuplicatePoint) {
		s.logger.Infow("point already reported, skipping",
			"metric", def.Name,
			"subreddit", labels[metrics.LabelSubreddit],
			"instant", metrics.FormatInstant(instant),
		)
		return nil
	}
	return err
}
