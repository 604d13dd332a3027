package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

// FeedClient reads the public subreddit and comment feeds. It needs no
// credentials but only sees what the feeds expose.
type FeedClient struct {
	http      *http.Client
	parser    *gofeed.Parser
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

// NewFeedClient builds a feed client; baseURL defaults to www.reddit.com.
func NewFeedClient(baseURL, userAgent string, requestsPerMinute int) *FeedClient {
	if baseURL == "" {
		baseURL = publicBaseURL
	}
	return &FeedClient{
		http:      &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limiter:   newLimiter(requestsPerMinute),
	}
}

func (c *FeedClient) Listing(ctx context.Context, subreddit string, listing Listing, limit int) ([]Thread, error) {
	mode := listing.Mode
	if mode == "" {
		mode = "new"
	}

	var threads []Thread
	after := ""
	for len(threads) < limit {
		pageSize := min(maxPageSize, limit-len(threads))
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		if after != "" {
			q.Set("after", after)
		}
		if mode == "top" && listing.Window != "" {
			q.Set("t", listing.Window)
		}

		feed, err := c.fetch(ctx, fmt.Sprintf("/r/%s/%s/.rss", url.PathEscape(subreddit), mode), q)
		if err != nil {
			return nil, err
		}
		if len(feed.Items) == 0 {
			break
		}
		added := 0
		for _, item := range feed.Items {
			if !strings.HasPrefix(item.GUID, "t3_") {
				continue
			}
			threads = append(threads, feedThread(item))
			after = item.GUID
			added++
			if len(threads) >= limit {
				break
			}
		}
		if added == 0 || len(feed.Items) < pageSize {
			break
		}
	}
	return threads, nil
}

// Expand reads the thread's comment feed. Its first entry is the post itself.
func (c *FeedClient) Expand(ctx context.Context, thread Thread, limit int) (Thread, error) {
	q := url.Values{}
	q.Set("sort", "top")
	q.Set("depth", "1")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	feed, err := c.fetch(ctx, "/comments/"+url.PathEscape(thread.ID)+"/.rss", q)
	if err != nil {
		return thread, err
	}

	thread.Replies = []string{}
	for _, item := range feed.Items {
		switch {
		case strings.HasPrefix(item.GUID, "t3_"):
			post := feedThread(item)
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
		case strings.HasPrefix(item.GUID, "t1_"):
			if limit >= 0 && len(thread.Replies) >= limit {
				continue
			}
			thread.Replies = append(thread.Replies, htmlText(item.Content))
		}
	}
	if thread.Title == "" {
		return thread, fmt.Errorf("thread %s: %w", thread.ID, ErrNotFound)
	}
	return thread, nil
}

func (c *FeedClient) fetch(ctx context.Context, path string, query url.Values) (*gofeed.Feed, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, path); err != nil {
		return nil, err
	}
	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", path, err)
	}
	return feed, nil
}

func feedThread(item *gofeed.Item) Thread {
	permalink := item.Link
	if u, err := url.Parse(item.Link); err == nil && u.Path != "" {
		permalink = u.Path
	}
	return Thread{
		ID:        stripKind(item.GUID),
		Subreddit: subredditOf(permalink),
		Title:     item.Title,
		Body:      htmlText(item.Content),
		Permalink: permalink,
	}
}

// htmlText returns the text of the first div.md in an entry's HTML, which is
// where Reddit puts the markdown-rendered body. Link posts have none.
func htmlText(content string) string {
	if content == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	md := doc.Find("div.md").First()
	if md.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(md.Text())
}
