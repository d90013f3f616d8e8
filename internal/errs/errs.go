// Package errs defines the sentinel errors shared across the pipeline.
package errs

import "errors"

var (
	// ErrUpstreamStatus means the community API returned a non-success
	// status or was unreachable. The dispatcher owns retry policy.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")

	// ErrMalformedResponse means an upstream response parsed but lacked the
	// expected shape. Retrying won't fix a schema mismatch.
	ErrMalformedResponse = errors.New("upstream response missing expected fields")

	// ErrMetricRegistration means the store rejected a metric descriptor,
	// e.g. a duplicate with an incompatible schema.
	ErrMetricRegistration = errors.New("metric registration rejected")

	// ErrDuplicatePoint means a write collided with an existing point at an
	// identical (metric, labels, instant) key. Collectors treat this as
	// "already reported", not as a failure.
	ErrDuplicatePoint = errors.New("point already reported for this instant")

	// ErrAmbiguousSeries means a query filter matched more than one time
	// series. That is a filter-construction defect, never silently resolved.
	ErrAmbiguousSeries = errors.New("query matched more than one time series")

	// ErrQuery wraps a backend or pagination failure mid-stream. Points
	// already yielded before the failure remain valid.
	ErrQuery = errors.New("time series query failed")

	// ErrInsufficientData means an aggregation that needs at least one point
	// ran over an empty window. Callers decide the fallback policy.
	ErrInsufficientData = errors.New("no points in window")

	// ErrInvalidCategory means an unrecognized category slug was requested.
	ErrInvalidCategory = errors.New("unknown category")
)
