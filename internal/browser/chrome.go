package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/chunqiusha/cardforge/internal/assets"
)

// Options configures a Chrome session.
type Options struct {
	// ProfileDir is the durable user data directory.
	ProfileDir string

	// RemoteURL attaches to a running browser instead of launching one.
	RemoteURL string

	// SiteURL is preferred when choosing which open tab to reuse.
	SiteURL string

	Headless  bool
	ExecPath  string
	TypeDelay time.Duration
	Jar       *assets.CookieJar
}

// ChromeSession drives Chrome over the DevTools protocol.
type ChromeSession struct {
	opts    Options
	cancels []context.CancelFunc
	tab     context.Context

	mu     sync.Mutex
	closed bool
}

// Open launches Chrome on the profile directory, creating it if needed, or
// attaches to RemoteURL. It attaches to an existing page target when one is
// open and restores cookies from the jar.
func Open(ctx context.Context, opts Options) (*ChromeSession, error) {
	s := &ChromeSession{opts: opts}

	var allocCtx context.Context
	if opts.RemoteURL != "" {
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
		s.cancels = append(s.cancels, cancel)
		slog.Info("Attaching to remote browser", "url", opts.RemoteURL)
	} else {
		profile, err := filepath.Abs(opts.ProfileDir)
		if err != nil {
			return nil, fmt.Errorf("%w: profile path: %v", ErrUnavailable, err)
		}
		if err := os.MkdirAll(profile, 0700); err != nil {
			return nil, fmt.Errorf("%w: create profile directory: %v", ErrUnavailable, err)
		}

		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserDataDir(profile),
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1280, 900),
		)
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, allocOpts...)
		s.cancels = append(s.cancels, cancel)
		slog.Info("Launching browser", "profile", profile, "headless", opts.Headless)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	s.cancels = append(s.cancels, cancel)

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.tab = browserCtx
	if id := pickTarget(targets, opts.SiteURL); id != "" {
		tabCtx, cancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(id))
		s.cancels = append(s.cancels, cancel)
		s.tab = tabCtx
		slog.Debug("Reusing open tab", "target", id)
	}

	if err := chromedp.Run(s.tab); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := s.restoreCookies(ctx); err != nil {
		slog.Warn("Failed to restore cookies", "err", err)
	}
	return s, nil
}

// pickTarget prefers an open page on the site's host, then any page.
func pickTarget(targets []*target.Info, siteURL string) target.ID {
	host := hostOf(siteURL)
	var first target.ID
	for _, t := range targets {
		if t.Type != "page" || strings.HasPrefix(t.URL, "devtools://") {
			continue
		}
		if host != "" && hostOf(t.URL) == host {
			return t.TargetID
		}
		if first == "" {
			first = t.TargetID
		}
	}
	return first
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Page returns the session's tab. Once Chrome has exited or the tab was
// closed the session reports ErrSessionClosed.
func (s *ChromeSession) Page(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := s.tab.Err(); err != nil {
		return nil, fmt.Errorf("%w: browser tab is gone: %v", ErrSessionClosed, err)
	}
	return &chromePage{tab: s.tab, typeDelay: s.opts.TypeDelay}, nil
}

func (s *ChromeSession) Persist(ctx context.Context) error {
	if s.opts.Jar == nil {
		return nil
	}
	page, err := s.Page(ctx)
	if err != nil {
		return err
	}
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return err
	}
	return s.opts.Jar.Save(cookies)
}

func (s *ChromeSession) restoreCookies(ctx context.Context) error {
	if s.opts.Jar == nil {
		return nil
	}
	stored, err := s.opts.Jar.Load()
	if err != nil || len(stored) == 0 {
		return err
	}
	params := toCookieParams(stored)
	page := &chromePage{tab: s.tab}
	if err := page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	})); err != nil {
		return err
	}
	slog.Debug("Restored cookies", "count", len(params), "path", s.opts.Jar.Path())
	return nil
}

// Close shuts the tab and, for a launched browser, the browser itself.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	return nil
}

type chromePage struct {
	tab       context.Context
	typeDelay time.Duration
}

// run executes actions on the tab while honoring ctx's cancellation and
// deadline.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return n, nil
}

func (p *chromePage) LastAttribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value *string
	expr := fmt.Sprintf(`(() => {
  const els = document.querySelectorAll(%s);
  return els.length ? els[els.length - 1].getAttribute(%s) : null;
})()`, jsString(selector), jsString(name))
	if err := p.run(ctx, chromedp.Evaluate(expr, &value)); err != nil {
		return "", false, fmt.Errorf("failed to read %s of %s: %w", name, selector, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (p *chromePage) Fill(ctx context.Context, selector, text string) error {
	typeText := chromedp.ActionFunc(func(ctx context.Context) error {
		if p.typeDelay <= 0 {
			return input.InsertText(text).Do(ctx)
		}
		for _, r := range text {
			if err := input.InsertText(string(r)).Do(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.typeDelay):
			}
		}
		return nil
	})

	err := p.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		typeText,
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Submit(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to submit %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Cookies(ctx context.Context) ([]assets.Cookie, error) {
	var cookies []assets.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		got, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = fromNetworkCookies(got)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return cookies, nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
