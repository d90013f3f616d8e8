// Package monitoring talks to a cloud-monitoring style REST backend:
// metric descriptors are created under a project, gauge points are written
// with explicit intervals, and queries page through timeSeries.list with a
// filter string and continuation token.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/model"
)

// metricTypePrefix namespaces custom metric identifiers on the backend.
const metricTypePrefix = "custom.googleapis.com/"

// Client is the HTTP adapter to the monitoring backend.
type Client struct {
	baseURL    string
	project    string
	pageSize   int
	httpClient *http.Client
}

func NewClient(baseURL, project string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		project:    project,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// MetricType returns the namespaced wire identifier for a definition.
func MetricType(def model.MetricDefinition) string {
	return metricTypePrefix + def.Name
}

// BuildFilter renders the label-equality filter string for a query:
// metric.type plus one clause per filter label, AND-ed together.
func BuildFilter(def model.MetricDefinition, filters model.LabelSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "metric.type=%q", MetricType(def))

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " AND metric.label.%s=%q", k, filters[k])
	}
	return b.String()
}

type labelDescriptor struct {
	Key         string `json:"key"`
	ValueType   string `json:"valueType"`
	Description string `json:"description,omitempty"`
}

func (c *Client) EnsureMetric(ctx context.Context, def model.MetricDefinition) error {
	mdType := MetricType(def)
	labels := []labelDescriptor{
		{Key: metrics.LabelEnvironment, ValueType: "STRING", Description: "One of 'prod' or 'dev'"},
	}
	for _, key := range def.ExtraLabels {
		labels = append(labels, labelDescriptor{Key: key, ValueType: "STRING"})
	}

	body := map[string]any{
		"name":        fmt.Sprintf("projects/%s/metricDescriptors/%s", c.project, mdType),
		"type":        mdType,
		"labels":      labels,
		"metricKind":  "GAUGE",
		"valueType":   string(def.Kind),
		"unit":        "items",
		"displayName": def.DisplayName,
		"description": def.Description,
	}

	status, respBody, err := c.post(ctx, fmt.Sprintf("/projects/%s/metricDescriptors", c.project), body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrMetricRegistration, def.Name, err)
	}
	// Re-creating an identical descriptor is fine; an incompatible one is not.
	if status == http.StatusConflict {
		return nil
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: %s: status %d: %s", errs.ErrMetricRegistration, def.Name, status, respBody)
	}
	return nil
}

func (c *Client) WritePoint(ctx context.Context, def model.MetricDefinition, value int64, labels model.LabelSet, instant time.Time) error {
	if err := metrics.ValidateLabels(def, labels); err != nil {
		return err
	}
	valueField, err := metrics.TypedValueField(def.Kind)
	if err != nil {
		return err
	}

	// Start and end are the same instant for a gauge point.
	wireInstant := metrics.FormatInstant(instant)
	body := map[string]any{
		"timeSeries": []map[string]any{{
			"metric": map[string]any{
				"type":   MetricType(def),
				"labels": labels,
			},
			"resource":   map[string]any{"type": "global"},
			"metricKind": "GAUGE",
			"valueType":  string(def.Kind),
			"points": []map[string]any{{
				"interval": map[string]string{
					"startTime": wireInstant,
					"endTime":   wireInstant,
				},
				"value": map[string]string{
					valueField: strconv.FormatInt(value, 10),
				},
			}},
		}},
	}

	status, respBody, err := c.post(ctx, fmt.Sprintf("/projects/%s/timeSeries", c.project), body)
	if err != nil {
		return fmt.Errorf("write point %s: %w", def.Name, err)
	}
	if isDuplicateWrite(status, respBody) {
		return fmt.Errorf("%w: %s at %s", errs.ErrDuplicatePoint, def.Name, wireInstant)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("write point %s: status %d: %s", def.Name, status, respBody)
	}
	return nil
}

// isDuplicateWrite recognizes the backend's rejection of a second write to
// an existing (metric, labels, instant) key.
func isDuplicateWrite(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	return status == http.StatusBadRequest &&
		strings.Contains(body, "written more frequently")
}

type listResponse struct {
	TimeSeries []struct {
		Points []struct {
			Interval struct {
				StartTime string `json:"startTime"`
			} `json:"interval"`
			Value map[string]json.Number `json:"value"`
		} `json:"points"`
	} `json:"timeSeries"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *Client) QueryPoints(ctx context.Context, def model.MetricDefinition, start, end time.Time, filters model.LabelSet, fn tsdb.PointFunc) error {
	valueField, err := metrics.TypedValueField(def.Kind)
	if err != nil {
		return err
	}
	filter := BuildFilter(def, filters)

	pageToken := ""
	for {
		page, err := c.listPage(ctx, filter, start, end, pageToken)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
		}

		// Exactly one series must match; more means the filters are buggy.
		if len(page.TimeSeries) > 1 {
			return fmt.Errorf("%w: %s matched %d series (filter: %s)",
				errs.ErrAmbiguousSeries, def.Name, len(page.TimeSeries), filter)
		}

		if len(page.TimeSeries) == 1 {
			for _, raw := range page.TimeSeries[0].Points {
				instant, err := time.Parse(time.RFC3339Nano, raw.Interval.StartTime)
				if err != nil {
					return fmt.Errorf("%w: bad point instant %q", errs.ErrQuery, raw.Interval.StartTime)
				}
				value, err := raw.Value[valueField].Int64()
				if err != nil {
					return fmt.Errorf("%w: bad point value: %v", errs.ErrQuery, err)
				}
				if err := fn(model.Point{Instant: instant.UTC(), Value: value, Labels: filters.Clone()}); err != nil {
					return err
				}
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return nil
		}
	}
}

func (c *Client) listPage(ctx context.Context, filter string, start, end time.Time, pageToken string) (*listResponse, error) {
	q := url.Values{}
	q.Set("filter", filter)
	q.Set("interval.startTime", metrics.FormatInstant(start))
	q.Set("interval.endTime", metrics.FormatInstant(end))
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	reqURL := fmt.Sprintf("%s/projects/%s/timeSeries?%s", c.baseURL, c.project, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (int, string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(respBody), nil
}
