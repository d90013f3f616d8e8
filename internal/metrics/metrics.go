// Package metrics holds the registry of tracked metric definitions and the
// helpers for labeling and instant formatting shared by every store backend.
//
// New metric kinds are added by extending the value handlers and the
// registry below, not by introducing new types.
package metrics

import (
	"fmt"
	"time"

	"github.com/gctaylor/techsubs/model"
)

// Standard label keys.
const (
	LabelEnvironment = "environment" // one of "prod" or "dev"
	LabelSubreddit   = "subreddit"   // the entity slug being tracked
)

// Subscribers tracks the total subscriber count per sub-Reddit.
var Subscribers = model.MetricDefinition{
	Name:        "subreddit.subscribers.count",
	Kind:        model.Int64,
	DisplayName: "Total Subscribers",
	Description: "Total number of subscribers per sub-Reddit.",
	ExtraLabels: []string{LabelSubreddit},
}

// AccountsActive tracks the currently active account count per sub-Reddit.
var AccountsActive = model.MetricDefinition{
	Name:        "subreddit.accounts.active.count",
	Kind:        model.Int64,
	DisplayName: "Currently Active Accounts",
	Description: "Currently active accounts per sub-Reddit.",
	ExtraLabels: []string{LabelSubreddit},
}

// NewPosts tracks hourly new post totals per sub-Reddit.
var NewPosts = model.MetricDefinition{
	Name:        "subreddit.posts.new.count",
	Kind:        model.Int64,
	DisplayName: "New Posts",
	Description: "Hourly totals of new posts per sub-Reddit.",
	ExtraLabels: []string{LabelSubreddit},
}

// All returns every tracked metric definition.
func All() []model.MetricDefinition {
	return []model.MetricDefinition{Subscribers, AccountsActive, NewPosts}
}

// EntityLabels builds the full label set for one entity's data points: the
// standard environment label plus the subreddit label.
func EntityLabels(environment, slug string) model.LabelSet {
	return model.LabelSet{
		LabelEnvironment: environment,
		LabelSubreddit:   slug,
	}
}

// ValidateLabels checks that the standard environment label and every extra
// label the definition requires are present. Store backends call it before
// accepting a write.
func ValidateLabels(def model.MetricDefinition, labels model.LabelSet) error {
	if labels[LabelEnvironment] == "" {
		return fmt.Errorf("metric %s: missing label %q", def.Name, LabelEnvironment)
	}
	for _, key := range def.ExtraLabels {
		if labels[key] == "" {
			return fmt.Errorf("metric %s: missing label %q", def.Name, key)
		}
	}
	return nil
}

// TypedValueField maps a value kind to its wire field name in the
// monitoring API, e.g. INT64 -> "int64Value".
func TypedValueField(kind model.ValueKind) (string, error) {
	switch kind {
	case model.Int64:
		return "int64Value", nil
	default:
		return "", fmt.Errorf("unimplemented value kind: %s", kind)
	}
}

// InstantFormat is the RFC 3339 layout points are written with:
// micro-precision and a literal Z suffix.
const InstantFormat = "2006-01-02T15:04:05.000000Z"

// FormatInstant renders an instant in the wire format. Instants are always
// expressed in UTC.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantFormat)
}

// ParseInstant parses an instant in the wire format.
func ParseInstant(s string) (time.Time, error) {
	return time.Parse(InstantFormat, s)
}
