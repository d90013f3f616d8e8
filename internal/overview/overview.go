// Package overview reads tracked metrics back out of the time-series store
// and reduces a trailing 24-hour window into the per-category overview
// document served by the API and uploaded as a static snapshot.
package overview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gctaylor/techsubs/internal/catalog"
	"github.com/gctaylor/techsubs/internal/clock"
	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/model"
)

// Window is the trailing interval overview rollups cover.
const Window = 24 * time.Hour

// PeakFold tracks the maximum value seen in a stream. Zero points reduce to
// zero: absence means no activity observed, not an error.
type PeakFold struct {
	peak int64
}

func (f *PeakFold) Add(p model.Point) {
	if p.Value > f.peak {
		f.peak = p.Value
	}
}

func (f *PeakFold) Result() int64 { return f.peak }

// DeltaFold tracks the oldest and youngest points by instant. The stream is
// not assumed to be sorted; the fold keeps its own running min and max.
type DeltaFold struct {
	oldest   model.Point
	youngest model.Point
	seen     bool
}

func (f *DeltaFold) Add(p model.Point) {
	if !f.seen {
		f.oldest, f.youngest, f.seen = p, p, true
		return
	}
	if p.Instant.Before(f.oldest.Instant) {
		f.oldest = p
	}
	if p.Instant.After(f.youngest.Instant) {
		f.youngest = p
	}
}

// Result returns the youngest value and the growth from oldest to youngest.
// With a single point both ends coincide and growth is zero. With no points
// there is nothing to report and the caller decides the fallback policy.
func (f *DeltaFold) Result() (current, growth int64, err error) {
	if !f.seen {
		return 0, 0, errs.ErrInsufficientData
	}
	return f.youngest.Value, f.youngest.Value - f.oldest.Value, nil
}

// SumFold totals every value in a stream. Zero points reduce to zero.
type SumFold struct {
	sum int64
}

func (f *SumFold) Add(p model.Point) { f.sum += p.Value }

func (f *SumFold) Result() int64 { return f.sum }

// Document is the category overview payload.
type Document struct {
	GeneratedTime    string   `json:"generatedTime"`
	Records          []Record `json:"records"`
	QueryRecordCount int      `json:"queryRecordCount"`
	TotalRecordCount int      `json:"totalRecordCount"`
}

// Record is the rollup for one sub-Reddit.
type Record struct {
	Subreddit      string             `json:"subreddit"`
	Subscribers    SubscriberStats    `json:"subscribers"`
	ActiveAccounts ActiveAccountStats `json:"active_accounts"`
	Posts          PostStats          `json:"posts"`
}

type SubscriberStats struct {
	CurrentTotal int64 `json:"current_total"`
	Growth24h    int64 `json:"24_hour_growth"`
}

type ActiveAccountStats struct {
	Peak24h int64 `json:"24_hour_peak"`
}

type PostStats struct {
	Growth24h int64 `json:"24_hour_growth"`
}

// Builder assembles overview documents from the store.
type Builder struct {
	catalog     *catalog.Catalog
	store       tsdb.Client
	environment string
	logger      *zap.SugaredLogger

	// Now anchors the trailing window. Overridable in tests.
	Now clock.Now
}

func NewBuilder(cat *catalog.Catalog, store tsdb.Client, environment string, logger *zap.SugaredLogger) *Builder {
	return &Builder{
		catalog:     cat,
		store:       store,
		environment: environment,
		logger:      logger,
		Now:         time.Now,
	}
}

// CategoryOverview builds the rollup document for every sub-Reddit in the
// category over the trailing 24 hours.
func (b *Builder) CategoryOverview(ctx context.Context, category string) (*Document, error) {
	entities, err := b.catalog.EntitiesInCategory(category)
	if err != nil {
		return nil, err
	}

	end := b.Now().UTC()
	start := end.Add(-Window)

	doc := &Document{
		GeneratedTime:    metrics.FormatInstant(end),
		Records:          make([]Record, 0, len(entities)),
		QueryRecordCount: len(entities),
		TotalRecordCount: len(entities),
	}

	for _, e := range entities {
		rec, err := b.entityRecord(ctx, e.Slug, start, end)
		if err != nil {
			return nil, fmt.Errorf("record for %s: %w", e.Slug, err)
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

// CategoryOverviewJSON renders the document as the snapshot/API byte blob.
func (b *Builder) CategoryOverviewJSON(ctx context.Context, category string) ([]byte, error) {
	doc, err := b.CategoryOverview(ctx, category)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// entityRecord runs the three independent reductions for one sub-Reddit.
// Each is one full pass over its own metric's stream; they share no state.
func (b *Builder) entityRecord(ctx context.Context, slug string, start, end time.Time) (Record, error) {
	filters := metrics.EntityLabels(b.environment, slug)
	rec := Record{Subreddit: slug}

	var peak PeakFold
	err := b.store.QueryPoints(ctx, metrics.AccountsActive, start, end, filters, func(p model.Point) error {
		peak.Add(p)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	rec.ActiveAccounts.Peak24h = peak.Result()

	var delta DeltaFold
	err = b.store.QueryPoints(ctx, metrics.Subscribers, start, end, filters, func(p model.Point) error {
		delta.Add(p)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	current, growth, err := delta.Result()
	if errors.Is(err, errs.ErrInsufficientData) {
		// Display policy: a sub-Reddit with no subscriber points yet (just
		// added to the catalog) shows zeros instead of failing the whole
		// category.
		b.logger.Infow("no subscriber data in window", "subreddit", slug)
	} else if err != nil {
		return Record{}, err
	}
	rec.Subscribers.CurrentTotal = current
	rec.Subscribers.Growth24h = growth

	var sum SumFold
	err = b.store.QueryPoints(ctx, metrics.NewPosts, start, end, filters, func(p model.Point) error {
		sum.Add(p)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	rec.Posts.Growth24h = sum.Result()

	return rec, nil
}
