// Package inmemory is the map-backed store used in dev mode and tests. It
// keeps the same duplicate-write and single-series semantics as the real
// backends so collector behavior can be tested against it faithfully.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/model"
)

type series struct {
	labels model.LabelSet
	points []model.Point
}

// MemStore is an in-process gauge store.
type MemStore struct {
	mu     sync.RWMutex
	defs   map[string]model.MetricDefinition
	series map[string]map[string]*series // metric name -> canonical labels -> series
}

func NewMemStore() *MemStore {
	return &MemStore{
		defs:   make(map[string]model.MetricDefinition),
		series: make(map[string]map[string]*series),
	}
}

func (store *MemStore) EnsureMetric(ctx context.Context, def model.MetricDefinition) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	existing, ok := store.defs[def.Name]
	if !ok {
		store.defs[def.Name] = def
		return nil
	}
	if existing.Kind != def.Kind || len(existing.ExtraLabels) != len(def.ExtraLabels) {
		return fmt.Errorf("%w: %s already registered with a different shape", errs.ErrMetricRegistration, def.Name)
	}
	return nil
}

func (store *MemStore) WritePoint(ctx context.Context, def model.MetricDefinition, value int64, labels model.LabelSet, instant time.Time) error {
	if err := metrics.ValidateLabels(def, labels); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	byLabels, ok := store.series[def.Name]
	if !ok {
		byLabels = make(map[string]*series)
		store.series[def.Name] = byLabels
	}

	key := labels.Canonical()
	sr, ok := byLabels[key]
	if !ok {
		sr = &series{labels: labels.Clone()}
		byLabels[key] = sr
	}

	instant = instant.UTC()
	for _, p := range sr.points {
		if p.Instant.Equal(instant) {
			return fmt.Errorf("%w: %s %s at %s", errs.ErrDuplicatePoint,
				def.Name, key, metrics.FormatInstant(instant))
		}
	}

	sr.points = append(sr.points, model.Point{Instant: instant, Value: value, Labels: sr.labels})
	return nil
}

func (store *MemStore) QueryPoints(ctx context.Context, def model.MetricDefinition, start, end time.Time, filters model.LabelSet, fn tsdb.PointFunc) error {
	store.mu.RLock()
	var matched []*series
	for _, sr := range store.series[def.Name] {
		if sr.labels.Matches(filters) {
			matched = append(matched, sr)
		}
	}

	if len(matched) > 1 {
		store.mu.RUnlock()
		return fmt.Errorf("%w: %s matched %d series", errs.ErrAmbiguousSeries, def.Name, len(matched))
	}

	// Snapshot under the lock, stream outside it.
	var points []model.Point
	if len(matched) == 1 {
		for _, p := range matched[0].points {
			if !p.Instant.Before(start.UTC()) && !p.Instant.After(end.UTC()) {
				points = append(points, p)
			}
		}
	}
	store.mu.RUnlock()

	for _, p := range points {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// PointCount reports how many points exist for one metric across all series.
// Test helper.
func (store *MemStore) PointCount(metricName string) int {
	store.mu.RLock()
	defer store.mu.RUnlock()

	n := 0
	for _, sr := range store.series[metricName] {
		n += len(sr.points)
	}
	return n
}
