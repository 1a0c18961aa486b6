// Package generation drives a web-based image generator through a browser
// session: it checks sign-in, submits a prompt, waits for the result and
// locates the generated image.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chunqiusha/cardforge/internal/assets"
	"github.com/chunqiusha/cardforge/internal/browser"
	"github.com/chunqiusha/cardforge/internal/config"
)

// DefaultProbe is how often a selector is re-queried while waiting for it.
const DefaultProbe = 250 * time.Millisecond

const signInMessage = "The site is asking to sign in. Sign in in the browser window."

// Opener starts a browser session.
type Opener func(ctx context.Context) (browser.Session, error)

// ImageRef locates a generated image.
type ImageRef struct {
	URL string
	// Selector is the name of the strategy that found the image.
	Selector string
}

// Result describes one generation call.
type Result struct {
	State State
	Ref   ImageRef
	// PromptStrategy is the prompt-input strategy that was used.
	PromptStrategy string
	Trace          []State
	Elapsed        time.Duration
}

func (r *Result) enter(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
	slog.Debug("Generation state", "state", s)
}

// Controller owns one browser session for the whole batch and runs one
// generation at a time on it.
type Controller struct {
	open      Opener
	confirmer Confirmer
	site      config.Site
	selectors config.Selectors
	timeouts  config.Timeouts

	// Probe is the selector re-query interval.
	Probe time.Duration

	mu      sync.Mutex
	session browser.Session
}

// NewController creates a controller. The session is opened on first use.
func NewController(cfg *config.Config, open Opener, confirmer Confirmer) *Controller {
	return &Controller{
		open:      open,
		confirmer: confirmer,
		site:      cfg.Site,
		selectors: cfg.Selectors,
		timeouts:  cfg.Timeouts,
		Probe:     DefaultProbe,
	}
}

// ChromeOpener opens a Chrome session for cfg.
func ChromeOpener(cfg *config.Config, jar *assets.CookieJar) Opener {
	return func(ctx context.Context) (browser.Session, error) {
		return browser.Open(ctx, browser.Options{
			ProfileDir: cfg.Paths.Profile,
			RemoteURL:  cfg.Browser.RemoteURL,
			SiteURL:    cfg.Site.URL,
			Headless:   cfg.Browser.Headless,
			ExecPath:   cfg.Browser.ExecPath,
			TypeDelay:  cfg.Browser.TypeDelay,
			Jar:        jar,
		})
	}
}

// Generate submits prompt prefix plus fragment and returns the image
// reference. A non-nil error wrapping ErrSessionFatal means the session is
// unusable; any other error concerns this call only.
func (c *Controller) Generate(ctx context.Context, fragment string) (res *Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	res = &Result{}
	res.enter(StateInit)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
		if err != nil && !res.State.Terminal() {
			res.enter(StateImageNotFound)
		}
		res.Elapsed = time.Since(start)
	}()

	page, err := c.page(ctx)
	if err != nil {
		return res, err
	}
	res.enter(StateSessionOpened)
	defer c.persist(ctx)

	if err := c.ready(ctx, page); err != nil {
		return res, err
	}
	res.enter(StatePageReady)

	if err := c.checkAuth(ctx, page); err != nil {
		return res, err
	}
	res.enter(StateAuthChecked)

	input, err := Resolve(ctx, page, c.selectors.PromptInput, c.Probe)
	if err != nil {
		return res, fmt.Errorf("prompt input: %w", err)
	}
	res.PromptStrategy = input.Strategy.Name
	if err := page.Fill(ctx, input.Strategy.Selector, c.prompt(fragment)); err != nil {
		return res, err
	}
	if err := page.Submit(ctx, input.Strategy.Selector); err != nil {
		return res, err
	}
	res.enter(StatePromptSubmitted)
	slog.Info("Prompt submitted", "strategy", input.Strategy.Name)

	if _, err := Resolve(ctx, page, c.selectors.Indicator, c.Probe); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		slog.Warn("Generation indicator did not appear", "err", err)
	}
	res.enter(StateGenerating)

	done, err := c.awaitCompletion(ctx, page)
	if err != nil {
		return res, err
	}
	if done {
		res.enter(StateGenerationDone)
	} else {
		res.enter(StateGenerationTimeout)
		slog.Warn("Generation did not finish in time, looking for an image anyway", "max", c.timeouts.MaxGenerate)
	}

	if err := sleep(ctx, c.timeouts.ImageSettle); err != nil {
		return res, err
	}

	ref, err := c.locateImage(ctx, page)
	if err != nil {
		return res, err
	}
	res.Ref = *ref
	res.enter(StateImageLocated)
	slog.Info("Generated image located", "strategy", ref.Selector, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// page returns the active page, opening the session if needed.
func (c *Controller) page(ctx context.Context) (browser.Page, error) {
	if c.session == nil {
		if c.open == nil {
			return nil, fmt.Errorf("%w: no session opener", ErrSessionFatal)
		}
		s, err := c.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionFatal, err)
		}
		c.session = s
	}

	page, err := c.session.Page(ctx)
	if err != nil {
		c.session.Close()
		c.session = nil
		return nil, fmt.Errorf("%w: %v", ErrSessionFatal, err)
	}
	return page, nil
}

// ready navigates to the site unless the page is already there.
func (c *Controller) ready(ctx context.Context, page browser.Page) error {
	current, err := page.URL(ctx)
	if err == nil && onSite(current, c.site.URL) {
		return nil
	}

	navCtx, cancel := context.WithTimeout(ctx, c.timeouts.Navigation)
	defer cancel()
	slog.Info("Navigating to generation site", "url", c.site.URL)
	if err := page.Navigate(navCtx, c.site.URL); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return sleep(ctx, c.timeouts.LoadSettle)
}

// checkAuth looks for a sign-in control once, without waiting for one to
// appear.
func (c *Controller) checkAuth(ctx context.Context, page browser.Page) error {
	if len(c.selectors.SignIn) == 0 {
		return nil
	}
	m, err := Resolve(ctx, page, ProbeOnce(c.selectors.SignIn), c.Probe)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}

	slog.Warn("Sign-in control present", "strategy", m.Strategy.Name)
	if c.confirmer == nil {
		return ErrNotSignedIn
	}
	if err := c.confirmer.Confirm(ctx, signInMessage); err != nil {
		return fmt.Errorf("sign-in confirmation: %w", err)
	}
	return nil
}

// awaitCompletion polls until no indicator is visible. It reports false when
// the generation budget runs out first.
func (c *Controller) awaitCompletion(ctx context.Context, page browser.Page) (bool, error) {
	deadline := time.Now().Add(c.timeouts.MaxGenerate)
	for {
		if !c.indicatorVisible(ctx, page) {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		slog.Debug("Still generating")
		if err := sleep(ctx, c.timeouts.PollInterval); err != nil {
			return false, err
		}
	}
}

func (c *Controller) indicatorVisible(ctx context.Context, page browser.Page) bool {
	for _, s := range c.selectors.Indicator {
		if n, err := page.Count(ctx, s.Selector); err == nil && n > 0 {
			return true
		}
	}
	return false
}

// locateImage takes the src of the last element matched by the first image
// strategy that matches at all. A match without a src is a failure; later
// strategies are looser and may hit older images in the conversation.
func (c *Controller) locateImage(ctx context.Context, page browser.Page) (*ImageRef, error) {
	m, err := Resolve(ctx, page, c.selectors.ImageContainer, c.Probe)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}
	src, ok, err := page.LastAttribute(ctx, m.Strategy.Selector, "src")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return nil, fmt.Errorf("%w: %s matched an image without a src", ErrImageNotFound, m.Strategy.Name)
	}
	return &ImageRef{URL: src, Selector: m.Strategy.Name}, nil
}

func (c *Controller) persist(ctx context.Context) {
	if c.session == nil {
		return
	}
	if err := c.session.Persist(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Failed to persist cookies", "err", err)
	}
}

func (c *Controller) prompt(fragment string) string {
	prefix := strings.TrimSpace(c.site.PromptPrefix)
	if prefix == "" {
		return fragment
	}
	return prefix + " " + fragment
}

// Login opens the site, waits for the person to sign in and confirm, then
// checks that the prompt input is reachable and no sign-in control remains.
// Cookies are saved on success.
func (c *Controller) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, err := c.page(ctx)
	if err != nil {
		return err
	}
	if err := c.ready(ctx, page); err != nil {
		return err
	}
	if c.confirmer != nil {
		if err := c.confirmer.Confirm(ctx, "Sign in in the browser window, then return here."); err != nil {
			return err
		}
	}

	if _, err := Resolve(ctx, page, c.selectors.PromptInput, c.Probe); err != nil {
		return fmt.Errorf("%w: prompt input not reachable: %v", ErrNotSignedIn, err)
	}
	if len(c.selectors.SignIn) > 0 {
		if m, err := Resolve(ctx, page, ProbeOnce(c.selectors.SignIn), c.Probe); err == nil {
			return fmt.Errorf("%w: sign-in control %s still present", ErrNotSignedIn, m.Strategy.Name)
		}
	}

	if err := c.session.Persist(ctx); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	slog.Info("Login verified, cookies saved")
	return nil
}

// Close ends the browser session.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func onSite(current, site string) bool {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.Contains(current, strings.TrimPrefix(u.Host, "www."))
}
