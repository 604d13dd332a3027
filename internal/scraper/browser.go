package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	browseropts "github.com/ibeckermayer/ideaminer/internal/browser"
)

const oldRedditURL = "https://old.reddit.com"

// BrowserClient drives a headless Chrome against old.reddit.com. Use it when
// the API is unavailable; it is far slower.
type BrowserClient struct {
	headless bool
	cookies  []*network.Cookie
	baseURL  string

	mu       sync.Mutex
	browser  context.Context
	shutdown []context.CancelFunc
}

// NewBrowserClient creates a browser client. cookies may carry a stored
// Reddit session.
func NewBrowserClient(headless bool, cookies []*network.Cookie) *BrowserClient {
	return &BrowserClient{headless: headless, cookies: cookies, baseURL: oldRedditURL}
}

// tab returns a fresh tab in the shared browser, starting it on first use.
func (b *BrowserClient) tab(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), browseropts.Options(b.headless)...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx, injectCookies(b.cookies)); err != nil {
			browserCancel()
			allocCancel()
			return nil, nil, fmt.Errorf("failed to start browser: %w", err)
		}
		b.browser = browserCtx
		b.shutdown = []context.CancelFunc{browserCancel, allocCancel}
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browser)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, timeout)

	// Stop the tab when the caller's context ends.
	stop := context.AfterFunc(ctx, timeoutCancel)
	return timeoutCtx, func() {
		stop()
		timeoutCancel()
		tabCancel()
	}, nil
}

// Close shuts the browser down.
func (b *BrowserClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.shutdown {
		cancel()
	}
	b.browser = nil
	b.shutdown = nil
	return nil
}

// injectCookies sets cookies in the browser context
func injectCookies(cookies []*network.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// rawThing is what the extraction scripts return for a post.
type rawThing struct {
	ID        string `json:"id"`
	Subreddit string `json:"subreddit"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

const listingJS = `
	(function() {
		const out = [];
		document.querySelectorAll(` + "`" + PostThing + "`" + `).forEach(el => {
			if (el.classList.contains('promoted') || el.classList.contains('stickied')) return;
			const title = el.querySelector('a.title');
			out.push({
				id: el.getAttribute('data-fullname') || '',
				subreddit: el.getAttribute('data-subreddit') || '',
				title: title ? title.textContent.trim() : '',
				permalink: el.getAttribute('data-permalink') || ''
			});
		});
		const next = document.querySelector(` + "`" + NextButton + "`" + `);
		return {things: out, next: next ? next.href : ''};
	})()
`

type listingPage struct {
	Things []rawThing `json:"things"`
	Next   string     `json:"next"`
}

func (b *BrowserClient) Listing(ctx context.Context, subreddit string, listing Listing, limit int) ([]Thread, error) {
	tabCtx, cancel, err := b.tab(ctx, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	defer cancel()

	mode := listing.Mode
	if mode == "" {
		mode = "new"
	}
	next := fmt.Sprintf("%s/r/%s/%s/", b.baseURL, url.PathEscape(subreddit), mode)
	if mode == "top" && listing.Window != "" {
		next += "?t=" + url.QueryEscape(listing.Window)
	}

	var threads []Thread
	for next != "" && len(threads) < limit {
		var page listingPage
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(next),
			chromedp.WaitReady(WaitForListing, chromedp.ByQuery),
			chromedp.Evaluate(listingJS, &page),
		); err != nil {
			return nil, fmt.Errorf("failed to load r/%s: %w", subreddit, err)
		}
		for _, t := range page.Things {
			if t.ID == "" {
				continue
			}
			threads = append(threads, Thread{
				ID:        stripKind(t.ID),
				Subreddit: t.Subreddit,
				Title:     t.Title,
				Permalink: t.Permalink,
			})
			if len(threads) >= limit {
				break
			}
		}
		if len(page.Things) == 0 {
			break
		}
		next = page.Next

		// Give the page a human-ish pause before paging on.
		time.Sleep(800 * time.Millisecond)
	}
	return threads, nil
}

const threadJS = `
	(function(limit) {
		const post = document.querySelector(` + "`" + ThreadPost + "`" + `);
		const body = document.querySelector(` + "`" + ThreadBody + "`" + `);
		const replies = [];
		document.querySelectorAll(` + "`" + TopComment + "`" + `).forEach(el => {
			if (limit >= 0 && replies.length >= limit) return;
			const md = el.querySelector(` + "`" + CommentBody + "`" + `);
			if (md) replies.push(md.innerText.trim());
		});
		const title = post ? post.querySelector('a.title') : null;
		return {
			id: post ? (post.getAttribute('data-fullname') || '') : '',
			subreddit: post ? (post.getAttribute('data-subreddit') || '') : '',
			title: title ? title.textContent.trim() : '',
			permalink: post ? (post.getAttribute('data-permalink') || '') : '',
			body: body ? body.innerText.trim() : '',
			replies: replies
		};
	})(%d)
`

type threadPage struct {
	rawThing
	Body    string   `json:"body"`
	Replies []string `json:"replies"`
}

func (b *BrowserClient) Expand(ctx context.Context, thread Thread, limit int) (Thread, error) {
	tabCtx, cancel, err := b.tab(ctx, 2*time.Minute)
	if err != nil {
		return thread, err
	}
	defer cancel()

	target := b.baseURL + "/comments/" + url.PathEscape(thread.ID) + "/?sort=top"
	var page threadPage
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(WaitForThread, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(threadJS, limit), &page),
	); err != nil {
		return thread, fmt.Errorf("failed to load thread %s: %w", thread.ID, err)
	}

	if thread.Title == "" {
		thread.Title = page.Title
	}
	if thread.Subreddit == "" {
		thread.Subreddit = page.Subreddit
	}
	if thread.Permalink == "" {
		thread.Permalink = page.Permalink
	}
	thread.Body = strings.TrimSpace(page.Body)
	thread.Replies = page.Replies
	if thread.Replies == nil {
		thread.Replies = []string{}
	}
	return thread, nil
}
