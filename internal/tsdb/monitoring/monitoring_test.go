package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/model"
	"github.com/stretchr/testify/require"
)

var hour = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func TestBuildFilter(t *testing.T) {
	got := BuildFilter(metrics.Subscribers, model.LabelSet{
		"subreddit":   "python",
		"environment": "prod",
	})
	want := `metric.type="custom.googleapis.com/subreddit.subscribers.count"` +
		` AND metric.label.environment="prod" AND metric.label.subreddit="python"`
	require.Equal(t, want, got)
}

func TestWritePoint(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/techsubs/timeSeries", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "techsubs", 100, time.Second)
	labels := metrics.EntityLabels("dev", "python")
	require.NoError(t, c.WritePoint(context.Background(), metrics.Subscribers, 500000, labels, hour))

	series := got["timeSeries"].([]any)[0].(map[string]any)
	point := series["points"].([]any)[0].(map[string]any)
	interval := point["interval"].(map[string]any)
	require.Equal(t, "2024-03-01T14:00:00.000000Z", interval["startTime"])
	require.Equal(t, interval["startTime"], interval["endTime"])
	require.Equal(t, "500000", point["value"].(map[string]any)["int64Value"])
}

func TestWritePointDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"conflict", http.StatusConflict, ""},
		{"sampling_period", http.StatusBadRequest, `{"error": "points written more frequently than the sampling period"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			c := NewClient(ts.URL, "techsubs", 100, time.Second)
			err := c.WritePoint(context.Background(), metrics.Subscribers, 1, metrics.EntityLabels("dev", "python"), hour)
			require.ErrorIs(t, err, errs.ErrDuplicatePoint)
		})
	}
}

func TestQueryPointsPaginates(t *testing.T) {
	pages := map[string]string{
		"": `{"timeSeries": [{"points": [
			{"interval": {"startTime": "2024-03-01T14:00:00.000000Z"}, "value": {"int64Value": "10"}}
		]}], "nextPageToken": "page2"}`,
		"page2": `{"timeSeries": [{"points": [
			{"interval": {"startTime": "2024-03-01T15:00:00.000000Z"}, "value": {"int64Value": "20"}}
		]}]}`,
	}

	var filters []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filters = append(filters, r.URL.Query().Get("filter"))
		fmt.Fprint(w, pages[r.URL.Query().Get("pageToken")])
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "techsubs", 100, time.Second)
	var values []int64
	err := c.QueryPoints(context.Background(), metrics.Subscribers, hour, hour.Add(24*time.Hour),
		metrics.EntityLabels("prod", "python"), func(p model.Point) error {
			values = append(values, p.Value)
			return nil
		})

	require.NoError(t, err)
	require.Equal(t, []int64{10, 20}, values)
	require.Len(t, filters, 2)
	require.Contains(t, filters[0], `metric.label.subreddit="python"`)
}

func TestQueryPointsAmbiguousSeries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"timeSeries": [{"points": []}, {"points": []}]}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "techsubs", 100, time.Second)
	err := c.QueryPoints(context.Background(), metrics.Subscribers, hour, hour.Add(time.Hour),
		model.LabelSet{"environment": "prod"}, func(model.Point) error { return nil })
	require.ErrorIs(t, err, errs.ErrAmbiguousSeries)
}

func TestQueryPointsPageFailureAfterPrefix(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"timeSeries": [{"points": [
				{"interval": {"startTime": "2024-03-01T14:00:00.000000Z"}, "value": {"int64Value": "10"}}
			]}], "nextPageToken": "page2"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "techsubs", 100, time.Second)
	var values []int64
	err := c.QueryPoints(context.Background(), metrics.Subscribers, hour, hour.Add(time.Hour),
		metrics.EntityLabels("prod", "python"), func(p model.Point) error {
			values = append(values, p.Value)
			return nil
		})

	// The first page's points were delivered before the failure.
	require.ErrorIs(t, err, errs.ErrQuery)
	require.Equal(t, []int64{10}, values)
}

func TestEnsureMetricConflictIsIdempotent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "techsubs", 100, time.Second)
	require.NoError(t, c.EnsureMetric(context.Background(), metrics.NewPosts))
}
