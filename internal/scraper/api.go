package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	publicBaseURL   = "https://www.reddit.com"
	oauthBaseURL    = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	maxPageSize     = 100
)

// APIConfig configures the Reddit JSON API client. Without credentials the
// public, unauthenticated endpoints are used.
type APIConfig struct {
	ClientID          string
	ClientSecret      string
	UserAgent         string
	RequestsPerMinute int

	// BaseURL and TokenURL override the Reddit hosts, for tests.
	BaseURL  string
	TokenURL string
}

// APIClient reads listings and comment trees from the Reddit JSON API.
type APIClient struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

func NewAPIClient(ctx context.Context, cfg APIConfig) *APIClient {
	base := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &userAgentTransport{userAgent: cfg.UserAgent, base: http.DefaultTransport},
	}

	client := base
	baseURL := publicBaseURL
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = defaultTokenURL
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		client.Timeout = base.Timeout
		baseURL = oauthBaseURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	return &APIClient{
		http:    client,
		baseURL: baseURL,
		limiter: newLimiter(cfg.RequestsPerMinute),
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// listingResponse is the Reddit "Listing" envelope.
type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string    `json:"kind"`
			Data thingData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// thingData carries the fields read from both posts (t3) and comments (t1).
type thingData struct {
	ID        string `json:"id"`
	Subreddit string `json:"subreddit"`
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Permalink string `json:"permalink"`
	Body      string `json:"body"`
}

func (d thingData) thread() Thread {
	return Thread{
		ID:        d.ID,
		Subreddit: d.Subreddit,
		Title:     d.Title,
		Body:      d.Selftext,
		Permalink: d.Permalink,
	}
}

// Listing pages through /r/{sub}/{mode} until limit threads are collected or
// the listing ends.
func (c *APIClient) Listing(ctx context.Context, subreddit string, listing Listing, limit int) ([]Thread, error) {
	mode := listing.Mode
	if mode == "" {
		mode = "new"
	}

	var threads []Thread
	after := ""
	for len(threads) < limit {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(min(maxPageSize, limit-len(threads))))
		q.Set("raw_json", "1")
		if after != "" {
			q.Set("after", after)
		}
		if mode == "top" && listing.Window != "" {
			q.Set("t", listing.Window)
		}

		var page listingResponse
		if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/%s.json", url.PathEscape(subreddit), mode), q, &page); err != nil {
			return nil, err
		}
		for _, child := range page.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			threads = append(threads, child.Data.thread())
			if len(threads) >= limit {
				break
			}
		}
		if page.Data.After == "" || len(page.Data.Children) == 0 {
			break
		}
		after = page.Data.After
	}
	return threads, nil
}

// Expand reads /comments/{id} sorted by top, one level deep.
func (c *APIClient) Expand(ctx context.Context, thread Thread, limit int) (Thread, error) {
	q := url.Values{}
	q.Set("depth", "1")
	q.Set("sort", "top")
	q.Set("raw_json", "1")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var pages []listingResponse
	if err := c.getJSON(ctx, "/comments/"+url.PathEscape(thread.ID)+".json", q, &pages); err != nil {
		return thread, err
	}
	if len(pages) == 0 {
		return thread, fmt.Errorf("thread %s: %w", thread.ID, ErrNotFound)
	}

	for _, child := range pages[0].Data.Children {
		if child.Kind == "t3" {
			post := child.Data.thread()
			if thread.Title == "" {
				thread.Title = post.Title
			}
			if thread.Body == "" {
				thread.Body = post.Body
			}
			if thread.Permalink == "" {
				thread.Permalink = post.Permalink
			}
			if thread.Subreddit == "" {
				thread.Subreddit = post.Subreddit
			}
			break
		}
	}

	thread.Replies = []string{}
	if len(pages) > 1 {
		for _, child := range pages[1].Data.Children {
			if limit >= 0 && len(thread.Replies) >= limit {
				break
			}
			// "more" children are load-more stubs.
			if child.Kind != "t1" {
				continue
			}
			thread.Replies = append(thread.Replies, child.Data.Body)
		}
	}
	return thread, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func statusError(code int, path string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("GET %s: status %d: %w", path, code, ErrUnauthorized)
	case code == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	default:
		return fmt.Errorf("GET %s: unexpected status %d", path, code)
	}
}
