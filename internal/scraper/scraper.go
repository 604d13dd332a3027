// Package scraper fetches Reddit threads through one of three clients (the
// JSON API, RSS feeds, or a headless browser) and turns them into discussion
// items.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

var (
	ErrUnauthorized = errors.New("reddit rejected the credentials")
	ErrNotFound     = errors.New("subreddit or thread not found")
)

// FetchError wraps any failure that aborted a fetch for one subreddit.
type FetchError struct {
	Subreddit string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch r/%s: %v", e.Subreddit, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Listing selects the subreddit ordering. Window applies to "top" only.
type Listing struct {
	Mode   string
	Window string
}

// DefaultListing is most-recent-first.
var DefaultListing = Listing{Mode: "new"}

// Thread is a post as a client sees it. Replies stays nil until Expand.
type Thread struct {
	ID        string
	Subreddit string
	Title     string
	Body      string
	Permalink string
	Replies   []string
}

// Client reads Reddit. Listing returns threads in the source's own order.
// Expand loads top-level replies (at most limit, "load more" stubs dropped)
// and fills any fields the listing lacked; it accepts a Thread carrying only
// an ID.
type Client interface {
	Listing(ctx context.Context, subreddit string, listing Listing, limit int) ([]Thread, error)
	Expand(ctx context.Context, thread Thread, limit int) (Thread, error)
}

// CandidateLimit is how many raw threads to request for desired new items.
func CandidateLimit(desired int) int {
	return max(50, 3*desired)
}

// Fetcher implements incremental fetch with exclusion on top of a Client.
type Fetcher struct {
	client  Client
	listing Listing
	logger  *zap.Logger
}

func NewFetcher(client Client, listing Listing, logger *zap.Logger) *Fetcher {
	if listing.Mode == "" {
		listing = DefaultListing
	}
	return &Fetcher{client: client, listing: listing, logger: logging.OrNop(logger)}
}

// Fetch returns up to desired threads from subreddit whose ids are not in
// exclude, each with at most replyLimit replies. Any client error aborts the
// whole call.
func (f *Fetcher) Fetch(ctx context.Context, subreddit string, desired, replyLimit int, exclude types.IDSet) ([]types.DiscussionItem, error) {
	if desired <= 0 {
		return nil, nil
	}

	candidates, err := f.client.Listing(ctx, subreddit, f.listing, CandidateLimit(desired))
	if err != nil {
		return nil, &FetchError{Subreddit: subreddit, Err: err}
	}

	items := make([]types.DiscussionItem, 0, desired)
	taken := types.NewIDSet()
	skipped := 0
	for _, t := range candidates {
		if exclude.Has(t.ID) || taken.Has(t.ID) {
			skipped++
			continue
		}
		full, err := f.client.Expand(ctx, t, replyLimit)
		if err != nil {
			return nil, &FetchError{Subreddit: subreddit, Err: fmt.Errorf("expand %s: %w", t.ID, err)}
		}
		items = append(items, toItem(full, subreddit, replyLimit))
		taken.Add(t.ID)
		if len(items) >= desired {
			break
		}
	}

	f.logger.Info("fetched subreddit",
		zap.String("subreddit", subreddit),
		zap.Int("candidates", len(candidates)),
		zap.Int("skipped", skipped),
		zap.Int("items", len(items)))
	return items, nil
}

// FetchThread loads a single thread by id.
func (f *Fetcher) FetchThread(ctx context.Context, id string, replyLimit int) (types.DiscussionItem, error) {
	t, err := f.client.Expand(ctx, Thread{ID: id}, replyLimit)
	if err != nil {
		return types.DiscussionItem{}, &FetchError{Subreddit: t.Subreddit, Err: err}
	}
	return toItem(t, t.Subreddit, replyLimit), nil
}

func toItem(t Thread, subreddit string, replyLimit int) types.DiscussionItem {
	replies := t.Replies
	if replyLimit >= 0 && len(replies) > replyLimit {
		replies = replies[:replyLimit]
	}
	if replies == nil {
		replies = []string{}
	}
	if subreddit == "" {
		subreddit = t.Subreddit
	}
	return types.DiscussionItem{
		ID:         t.ID,
		SourceName: subreddit,
		URL:        CanonicalURL(t.Permalink),
		Title:      t.Title,
		Body:       t.Body,
		Replies:    replies,
	}
}

var postIDPattern = regexp.MustCompile(`/comments/([a-z0-9]+)`)

// ParsePostID extracts the thread id from a Reddit permalink.
func ParsePostID(rawURL string) (string, error) {
	m := postIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return "", fmt.Errorf("no post id in %q", rawURL)
	}
	return m[1], nil
}

// CanonicalURL turns a permalink path or any reddit.com URL into
// https://reddit.com/<path>.
func CanonicalURL(permalink string) string {
	if permalink == "" {
		return ""
	}
	path := permalink
	if u, err := url.Parse(permalink); err == nil && u.Host != "" {
		path = u.Path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://reddit.com" + path
}

var subredditPattern = regexp.MustCompile(`/r/([^/]+)/`)

// subredditOf pulls the subreddit name out of a permalink.
func subredditOf(permalink string) string {
	if m := subredditPattern.FindStringSubmatch(permalink); len(m) > 1 {
		return m[1]
	}
	return ""
}

// stripKind removes a "t3_"/"t1_" fullname prefix.
func stripKind(fullname string) string {
	if len(fullname) > 3 && fullname[0] == 't' && fullname[2] == '_' {
		return fullname[3:]
	}
	return fullname
}
