// Package reddit is the adapter to the community API. It fetches the
// "about" snapshot and the recent post listing for one sub-Reddit, using a
// fixed User-Agent, and treats any non-success response as a hard failure.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/model"
)

// DefaultPostLimit bounds one recent-posts page. There is no pagination
// beyond it: if more posts than this land in one hour, the count undercounts.
const DefaultPostLimit = 100

// Source fetches per-entity data from the community API.
// It holds no per-call state, so one instance is safe for concurrent use.
type Source struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewSource creates a Source for the given API base URL.
func NewSource(baseURL, userAgent string, timeout time.Duration) *Source {
	return &Source{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type aboutResponse struct {
	Data struct {
		Subscribers    *json.Number `json:"subscribers"`
		AccountsActive *json.Number `json:"accounts_active"`
	} `json:"data"`
}

// About fetches the current subscriber and active-account counts for the
// sub-Reddit.
func (s *Source) About(ctx context.Context, slug string) (model.AboutSnapshot, error) {
	url := fmt.Sprintf("%s/r/%s/about.json", s.baseURL, slug)

	var body aboutResponse
	if err := s.getJSON(ctx, url, &body); err != nil {
		return model.AboutSnapshot{}, err
	}

	if body.Data.Subscribers == nil || body.Data.AccountsActive == nil {
		return model.AboutSnapshot{}, fmt.Errorf("%w: about.json for %s", errs.ErrMalformedResponse, slug)
	}
	subs, err := body.Data.Subscribers.Int64()
	if err != nil {
		return model.AboutSnapshot{}, fmt.Errorf("%w: subscribers: %v", errs.ErrMalformedResponse, err)
	}
	active, err := body.Data.AccountsActive.Int64()
	if err != nil {
		return model.AboutSnapshot{}, fmt.Errorf("%w: accounts_active: %v", errs.ErrMalformedResponse, err)
	}

	return model.AboutSnapshot{Subscribers: subs, AccountsActive: active}, nil
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				CreatedUTC *float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RecentPosts fetches up to limit most recent posts for the sub-Reddit,
// newest first as the API returns them.
func (s *Source) RecentPosts(ctx context.Context, slug string, limit int) ([]model.PostStub, error) {
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	url := fmt.Sprintf("%s/r/%s/new/.json?limit=%d", s.baseURL, slug, limit)

	var body listingResponse
	if err := s.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}

	posts := make([]model.PostStub, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		if child.Data.CreatedUTC == nil {
			return nil, fmt.Errorf("%w: post without created_utc for %s", errs.ErrMalformedResponse, slug)
		}
		posts = append(posts, model.PostStub{Created: epochToTime(*child.Data.CreatedUTC)})
	}
	return posts, nil
}

func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUpstreamStatus, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d from %s", errs.ErrUpstreamStatus, resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrMalformedResponse, err)
	}
	return nil
}

// epochToTime converts Unix epoch seconds (possibly fractional) to UTC.
func epochToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
}
