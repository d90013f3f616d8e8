// Package tsdb defines the gauge-metric store seam the pipeline writes to
// and reads from. Backends live in the subpackages; all of them honor the
// same contract:
//
//   - WritePoint takes an explicit instant so repeated reports for the same
//     hour collide on the same key. A collision surfaces as
//     errs.ErrDuplicatePoint; callers decide whether that is benign.
//   - QueryPoints streams matching points through the callback, paginating
//     transparently. If the filters match more than one series the call
//     fails with errs.ErrAmbiguousSeries. A failure mid-stream does not
//     roll back points already delivered to the callback.
package tsdb

import (
	"context"
	"time"

	"github.com/gctaylor/techsubs/model"
)

// PointFunc receives one point from a query stream. Returning an error
// aborts the stream and propagates the error to the caller.
type PointFunc func(model.Point) error

// Client is implemented by every store backend.
type Client interface {
	// EnsureMetric idempotently registers the metric descriptor.
	EnsureMetric(ctx context.Context, def model.MetricDefinition) error

	// WritePoint writes one observation at the given instant.
	WritePoint(ctx context.Context, def model.MetricDefinition, value int64, labels model.LabelSet, instant time.Time) error

	// QueryPoints streams points of the single series matching the filters
	// within [start, end], in whatever order the backend returns them.
	QueryPoints(ctx context.Context, def model.MetricDefinition, start, end time.Time, filters model.LabelSet, fn PointFunc) error
}
