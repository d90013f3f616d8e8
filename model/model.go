// Package model contains core data types for the project.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValueKind defines the value type of a metric. Only 64-bit integers are
// supported for now.
type ValueKind string

const (
	Int64 ValueKind = "INT64" // Int64 represents an int64 gauge value.
)

// MetricDefinition describes one tracked metric. Definitions are created at
// process start and never mutated.
type MetricDefinition struct {
	Name        string    // Stable metric identifier, e.g. "subreddit.subscribers.count".
	Kind        ValueKind // Value type of the metric.
	DisplayName string    // Human-readable name.
	Description string    // Human-readable description.
	ExtraLabels []string  // Required label keys beyond the standard "environment" label.
}

// LabelSet maps label keys to string values.
type LabelSet map[string]string

// Clone returns an independent copy of the label set.
func (ls LabelSet) Clone() LabelSet {
	out := make(LabelSet, len(ls))
	for k, v := range ls {
		out[k] = v
	}
	return out
}

// Canonical renders the label set as a stable, sorted string. Storage
// backends use it as part of a series key.
func (ls LabelSet) Canonical() string {
	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, ls[k]))
	}
	return strings.Join(parts, ",")
}

// Matches reports whether every filter key/value pair is present in the set.
func (ls LabelSet) Matches(filters LabelSet) bool {
	for k, v := range filters {
		if ls[k] != v {
			return false
		}
	}
	return true
}

// Point is a single observation of one metric.
type Point struct {
	Instant time.Time
	Value   int64
	Labels  LabelSet
}

// Entity is a tracked community. The catalog is static, so entities are
// immutable during a process lifetime.
type Entity struct {
	Slug       string   `json:"slug"`
	Categories []string `json:"categories"`
}

// Category groups entities for the overview pages.
type Category struct {
	Slug        string `json:"slug"`
	HumanName   string `json:"human_name"`
	Description string `json:"description"`
}

// AboutSnapshot holds the point-in-time counters from an entity's about page.
type AboutSnapshot struct {
	Subscribers    int64
	AccountsActive int64
}

// PostStub is the creation instant of one recent post.
type PostStub struct {
	Created time.Time
}

// CollectionWindow describes one reporting cycle: the instant the point is
// written at and the interval posts are counted over. Both bounds of the
// interval are inclusive.
type CollectionWindow struct {
	Report time.Time
	Start  time.Time
	End    time.Time
}
