package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	browseropts "github.com/ibeckermayer/ideaminer/internal/browser"
)

const loginURL = "https://old.reddit.com/login"

// ErrLoginTimeout is returned when the user does not finish logging in.
var ErrLoginTimeout = errors.New("login timeout exceeded")

// Manager handles the Reddit browser session.
type Manager struct {
	cookieStore  *CookieStore
	logger       *zap.Logger
	loginTimeout time.Duration
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cookieStore: cookieStore, logger: logger, loginTimeout: 5 * time.Minute}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Login opens a visible browser on the Reddit login page and stores the
// session cookies once the user has signed in.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, browseropts.Options(false)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	m.logger.Info("waiting for reddit login", zap.Duration("timeout", m.loginTimeout))

	cookies, err := m.waitForLogin(browserCtx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.logger.Info("reddit session stored", zap.String("path", m.cookieStore.Path()))
	return nil
}

// waitForLogin polls until a reddit_session cookie appears.
func (m *Manager) waitForLogin(ctx context.Context) ([]*network.Cookie, error) {
	timeout := time.After(m.loginTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, ErrLoginTimeout
		case <-ticker.C:
			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			if hasSession(cookies) {
				return cookies, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func hasSession(cookies []*network.Cookie) bool {
	for _, c := range cookies {
		if c.Name == SessionCookie && c.Value != "" && isRedditDomain(c.Domain) {
			return true
		}
	}
	return false
}

// extractCookies gets all cookies from the browser
func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// GetCookies returns the stored cookies for use in scraping. A missing store
// yields no cookies.
func (m *Manager) GetCookies() ([]*network.Cookie, error) {
	if !m.cookieStore.IsValid() {
		return nil, nil
	}
	return m.cookieStore.RedditCookies()
}
