package generation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chunqiusha/cardforge/internal/assets"
	"github.com/chunqiusha/cardforge/internal/browser"
	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	siteURL = "https://copilot.microsoft.com/"

	// only the third prompt strategy (placeholder-en) matches
	chatHTML = `<html><body><textarea placeholder="Message Copilot"></textarea></body></html>`

	signInHTML = `<html><body>
<button data-testid="sign-in-button">Sign in</button>
<textarea placeholder="Message Copilot"></textarea>
</body></html>`

	generatingHTML = `<html><body>
<textarea placeholder="Message Copilot"></textarea>
<img alt="Generated image preview" src="https://th.bing.com/partial.jpg">
</body></html>`

	resultHTML = `<html><body>
<textarea placeholder="Message Copilot"></textarea>
<div class="w-full max-w-96 rounded-2xl">
  <img src="https://th.bing.com/first.jpg">
  <img src="//th.bing.com/second.jpg">
</div>
</body></html>`

	// the newest result has no src yet; an older image is further up the chat
	loadingResultHTML = `<html><body>
<textarea placeholder="Message Copilot"></textarea>
<img alt="Generated earlier" src="https://th.bing.com/OLD-card.jpg">
<div class="w-full max-w-96 rounded-2xl"><img class="loading"></div>
</body></html>`

	emptyResultHTML = `<html><body><textarea placeholder="Message Copilot"></textarea></body></html>`
)

// generatorPage plays a generation: after submit the indicator stays visible
// for busy checks, then the result document is shown.
type generatorPage struct {
	*browser.SnapshotPage
	indicator string
	result    string

	mu        sync.Mutex
	busy      int
	submitted bool
	finished  bool
}

func (p *generatorPage) Submit(ctx context.Context, selector string) error {
	if err := p.SnapshotPage.Submit(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.submitted = true
	p.mu.Unlock()
	return p.LoadHTML(generatingHTML)
}

func (p *generatorPage) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	if p.submitted && selector == p.indicator {
		if p.busy > 0 {
			p.busy--
			p.mu.Unlock()
			return 1, nil
		}
		if !p.finished {
			p.finished = true
			p.mu.Unlock()
			if err := p.LoadHTML(p.result); err != nil {
				return 0, err
			}
			return 0, nil
		}
		p.mu.Unlock()
		return 0, nil
	}
	p.mu.Unlock()
	return p.SnapshotPage.Count(ctx, selector)
}

type fakeSession struct {
	page browser.Page
	jar  *assets.CookieJar
	// tab, when set, plays the browser tab; canceling it kills the browser.
	tab     context.Context
	persist int
	closed  bool
}

func (s *fakeSession) Page(ctx context.Context) (browser.Page, error) {
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	if s.tab != nil && s.tab.Err() != nil {
		return nil, browser.ErrSessionClosed
	}
	return s.page, nil
}

func (s *fakeSession) Persist(ctx context.Context) error {
	s.persist++
	if s.jar == nil {
		return nil
	}
	cookies, err := s.page.Cookies(ctx)
	if err != nil {
		return err
	}
	return s.jar.Save(cookies)
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Timeouts = config.Timeouts{
		Navigation:   time.Second,
		PollInterval: 2 * time.Millisecond,
		MaxGenerate:  100 * time.Millisecond,
		Download:     time.Second,
	}
	for _, chain := range [][]config.Strategy{
		cfg.Selectors.SignIn,
		cfg.Selectors.PromptInput,
		cfg.Selectors.Indicator,
		cfg.Selectors.ImageContainer,
	} {
		for i := range chain {
			chain[i].Timeout = 10 * time.Millisecond
		}
	}
	return cfg
}

func newPage(t *testing.T, url, html, result string, busy int) *generatorPage {
	t.Helper()
	snap, err := browser.NewSnapshotPage(url, html)
	require.NoError(t, err)
	return &generatorPage{
		SnapshotPage: snap,
		indicator:    config.DefaultSelectors().Indicator[0].Selector,
		result:       result,
		busy:         busy,
	}
}

func newController(cfg *config.Config, s *fakeSession, confirmer Confirmer) (*Controller, *int) {
	opens := 0
	c := NewController(cfg, func(ctx context.Context) (browser.Session, error) {
		opens++
		return s, nil
	}, confirmer)
	c.Probe = time.Millisecond
	return c, &opens
}

func TestGenerateLocatesImage(t *testing.T) {
	cfg := testConfig()
	page := newPage(t, siteURL, chatHTML, resultHTML, 3)
	session := &fakeSession{page: page}
	c, opens := newController(cfg, session, nil)

	res, err := c.Generate(context.Background(), "秦国铁骑冲锋")
	require.NoError(t, err)

	assert.Equal(t, StateImageLocated, res.State)
	assert.Equal(t, []State{
		StateInit,
		StateSessionOpened,
		StatePageReady,
		StateAuthChecked,
		StatePromptSubmitted,
		StateGenerating,
		StateGenerationDone,
		StateImageLocated,
	}, res.Trace)
	assert.Equal(t, "placeholder-en", res.PromptStrategy)
	assert.Equal(t, "//th.bing.com/second.jpg", res.Ref.URL)
	assert.Equal(t, "result-card", res.Ref.Selector)

	typed, ok := page.Filled(`textarea[placeholder*="Message"]`)
	require.True(t, ok)
	assert.Equal(t, config.DefaultPromptPrefix+" 秦国铁骑冲锋", typed)
	assert.Empty(t, page.Visited(), "already on the site, no navigation expected")
	assert.Equal(t, 1, *opens)
	assert.Equal(t, 1, session.persist)
}

func TestGenerateReusesSession(t *testing.T) {
	cfg := testConfig()
	page := newPage(t, siteURL, chatHTML, resultHTML, 0)
	session := &fakeSession{page: page}
	c, opens := newController(cfg, session, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), "card")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, *opens)
	assert.Equal(t, 3, session.persist)
}

func TestGenerateNavigatesWhenOffSite(t *testing.T) {
	cfg := testConfig()
	page := newPage(t, "about:blank", chatHTML, resultHTML, 0)
	c, _ := newController(cfg, &fakeSession{page: page}, nil)

	_, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.Site.URL}, page.Visited())
}

func TestGenerateAsksForSignIn(t *testing.T) {
	cfg := testConfig()
	page := newPage(t, siteURL, signInHTML, resultHTML, 0)

	var prompts []string
	confirmer := ConfirmFunc(func(ctx context.Context, msg string) error {
		prompts = append(prompts, msg)
		return nil
	})
	c, _ := newController(cfg, &fakeSession{page: page}, confirmer)

	res, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)
	assert.Equal(t, StateImageLocated, res.State)
	assert.Len(t, prompts, 1)
}

func TestGenerateSignedInDoesNotWaitForSignIn(t *testing.T) {
	cfg := testConfig()
	for i := range cfg.Selectors.SignIn {
		cfg.Selectors.SignIn[i].Timeout = 5 * time.Second
	}
	page := newPage(t, siteURL, chatHTML, resultHTML, 0)
	c, _ := newController(cfg, &fakeSession{page: page}, nil)

	start := time.Now()
	res, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)
	assert.Equal(t, StateImageLocated, res.State)
	assert.Less(t, time.Since(start), 2*time.Second, "sign-in controls are checked once")
}

func TestGenerateSignInFailures(t *testing.T) {
	tests := []struct {
		name      string
		confirmer Confirmer
		want      error
	}{
		{"no confirmer", nil, ErrNotSignedIn},
		{"confirmation aborted", ConfirmFunc(func(ctx context.Context, msg string) error {
			return context.Canceled
		}), context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newPage(t, siteURL, signInHTML, resultHTML, 0)
			c, _ := newController(testConfig(), &fakeSession{page: page}, tt.confirmer)

			res, err := c.Generate(context.Background(), "card")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrSessionFatal)
			assert.Equal(t, StateImageNotFound, res.State)
			assert.Empty(t, page.Submits())
		})
	}
}

func TestGenerateTimeoutStillLooksForImage(t *testing.T) {
	cfg := testConfig()
	page := newPage(t, siteURL, chatHTML, resultHTML, 1<<30)
	c, _ := newController(cfg, &fakeSession{page: page}, nil)

	res, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)
	assert.Contains(t, res.Trace, StateGenerationTimeout)
	assert.NotContains(t, res.Trace, StateGenerationDone)
	assert.Equal(t, "https://th.bing.com/partial.jpg", res.Ref.URL)
	assert.Equal(t, "alt-en", res.Ref.Selector)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		result string
		want   error
	}{
		{"no prompt input", `<html><body><p>maintenance</p></body></html>`, resultHTML, ErrSelectorExhausted},
		{"no image", chatHTML, emptyResultHTML, ErrImageNotFound},
		{"image without src", chatHTML, `<div class="rounded-2xl"><img alt="x"></div>`, ErrImageNotFound},
		{"result still loading", chatHTML, loadingResultHTML, ErrImageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newPage(t, siteURL, tt.html, tt.result, 0)
			session := &fakeSession{page: page}
			c, _ := newController(testConfig(), session, nil)

			res, err := c.Generate(context.Background(), "card")
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrSessionFatal)
			assert.Equal(t, StateImageNotFound, res.State)
			assert.Equal(t, 1, session.persist, "cookies are saved even when a card fails")
		})
	}
}

func TestGenerateSessionFatal(t *testing.T) {
	c := NewController(testConfig(), func(ctx context.Context) (browser.Session, error) {
		return nil, browser.ErrUnavailable
	}, nil)

	res, err := c.Generate(context.Background(), "card")
	assert.ErrorIs(t, err, ErrSessionFatal)
	assert.Equal(t, StateImageNotFound, res.State)

	closed := &fakeSession{closed: true}
	c = NewController(testConfig(), func(ctx context.Context) (browser.Session, error) {
		return closed, nil
	}, nil)
	_, err = c.Generate(context.Background(), "card")
	assert.ErrorIs(t, err, ErrSessionFatal)
}

func TestGenerateBrowserGoneIsFatal(t *testing.T) {
	tab, kill := context.WithCancel(context.Background())
	defer kill()
	first := &fakeSession{page: newPage(t, siteURL, chatHTML, resultHTML, 0), tab: tab}
	second := &fakeSession{page: newPage(t, siteURL, chatHTML, resultHTML, 0)}
	sessions := []*fakeSession{first, second}

	c := NewController(testConfig(), func(ctx context.Context) (browser.Session, error) {
		s := sessions[0]
		sessions = sessions[1:]
		return s, nil
	}, nil)
	c.Probe = time.Millisecond

	_, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)

	kill()
	res, err := c.Generate(context.Background(), "card")
	assert.ErrorIs(t, err, ErrSessionFatal)
	assert.Equal(t, StateImageNotFound, res.State)
	assert.True(t, first.closed, "dead session is closed")

	res, err = c.Generate(context.Background(), "card")
	require.NoError(t, err, "a new session is opened after the old one died")
	assert.Equal(t, StateImageLocated, res.State)
	assert.Empty(t, sessions)
}

type panickyPage struct{ *browser.SnapshotPage }

func (panickyPage) Fill(ctx context.Context, selector, text string) error {
	panic("renderer crashed")
}

func TestGenerateRecoversPanics(t *testing.T) {
	snap, err := browser.NewSnapshotPage(siteURL, chatHTML)
	require.NoError(t, err)
	c, _ := newController(testConfig(), &fakeSession{page: panickyPage{snap}}, nil)

	res, err := c.Generate(context.Background(), "card")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionFatal)
	assert.Equal(t, StateImageNotFound, res.State)
}

func TestGeneratePersistsCookies(t *testing.T) {
	page := newPage(t, siteURL, chatHTML, resultHTML, 0)
	page.SetCookies([]assets.Cookie{{Name: "_U", Value: "v", Domain: ".bing.com", Path: "/"}})
	jar := assets.NewCookieJar(filepath.Join(t.TempDir(), "cookies.json"))
	c, _ := newController(testConfig(), &fakeSession{page: page, jar: jar}, nil)

	_, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)

	saved, err := jar.Load()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "_U", saved[0].Name)
}

func TestLogin(t *testing.T) {
	confirmed := 0
	confirmer := ConfirmFunc(func(ctx context.Context, msg string) error {
		confirmed++
		return nil
	})

	t.Run("verified", func(t *testing.T) {
		page := newPage(t, "about:blank", chatHTML, resultHTML, 0)
		session := &fakeSession{page: page}
		c, _ := newController(testConfig(), session, confirmer)

		require.NoError(t, c.Login(context.Background()))
		assert.Equal(t, 1, session.persist)
		assert.Equal(t, []string{testConfig().Site.URL}, page.Visited())
	})

	t.Run("still signed out", func(t *testing.T) {
		page := newPage(t, siteURL, signInHTML, resultHTML, 0)
		session := &fakeSession{page: page}
		c, _ := newController(testConfig(), session, confirmer)

		err := c.Login(context.Background())
		assert.True(t, errors.Is(err, ErrNotSignedIn))
		assert.Zero(t, session.persist)
	})

	assert.Equal(t, 2, confirmed)
}

func TestCloseEndsSession(t *testing.T) {
	session := &fakeSession{page: newPage(t, siteURL, chatHTML, resultHTML, 0)}
	c, opens := newController(testConfig(), session, nil)

	_, err := c.Generate(context.Background(), "card")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, session.closed)

	session.closed = false
	_, err = c.Generate(context.Background(), "card")
	require.NoError(t, err)
	assert.Equal(t, 2, *opens)
}

func TestOnSite(t *testing.T) {
	tests := []struct {
		current string
		want    bool
	}{
		{"https://copilot.microsoft.com/chats/abc", true},
		{"about:blank", false},
		{"https://www.bing.com/", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			assert.Equal(t, tt.want, onSite(tt.current, "https://copilot.microsoft.com"))
		})
	}
}
