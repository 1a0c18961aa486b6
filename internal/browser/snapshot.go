package browser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/chunqiusha/cardforge/internal/assets"
)

// SnapshotPage is a Page backed by a static HTML document. It answers
// selector queries the way the live page would, which makes it useful for
// checking selector chains against a saved page and for tests.
type SnapshotPage struct {
	mu      sync.Mutex
	url     string
	doc     *goquery.Document
	cookies []assets.Cookie
	filled  map[string]string
	submits []string
	visited []string
}

// NewSnapshotPage parses html as the document currently shown at url.
func NewSnapshotPage(url, html string) (*SnapshotPage, error) {
	p := &SnapshotPage{url: url, filled: make(map[string]string)}
	if err := p.LoadHTML(html); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadSnapshot parses a saved page from r.
func ReadSnapshot(url string, r io.Reader) (*SnapshotPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &SnapshotPage{url: url, doc: doc, filled: make(map[string]string)}, nil
}

// LoadHTML replaces the current document.
func (p *SnapshotPage) LoadHTML(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

// SetCookies sets what Cookies reports.
func (p *SnapshotPage) SetCookies(cookies []assets.Cookie) {
	p.mu.Lock()
	p.cookies = cookies
	p.mu.Unlock()
}

func (p *SnapshotPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *SnapshotPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.visited = append(p.visited, url)
	return nil
}

func (p *SnapshotPage) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m, err := compileSelector(selector)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.FindMatcher(m).Length(), nil
}

func (p *SnapshotPage) LastAttribute(ctx context.Context, selector, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m, err := compileSelector(selector)
	if err != nil {
		return "", false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.FindMatcher(m)
	if sel.Length() == 0 {
		return "", false, nil
	}
	v, ok := sel.Last().Attr(name)
	return v, ok, nil
}

// compileSelector rejects selectors the browser's querySelectorAll would
// throw on; goquery alone treats them as matching nothing.
func compileSelector(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return m, nil
}

func (p *SnapshotPage) Fill(ctx context.Context, selector, text string) error {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	p.mu.Lock()
	p.filled[selector] = text
	p.mu.Unlock()
	return nil
}

func (p *SnapshotPage) Submit(ctx context.Context, selector string) error {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	p.mu.Lock()
	p.submits = append(p.submits, selector)
	p.mu.Unlock()
	return nil
}

func (p *SnapshotPage) Cookies(ctx context.Context) ([]assets.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]assets.Cookie(nil), p.cookies...), nil
}

// Filled returns the text last typed into selector.
func (p *SnapshotPage) Filled(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.filled[selector]
	return v, ok
}

// Submits lists the selectors submitted so far.
func (p *SnapshotPage) Submits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.submits...)
}

// Visited lists navigations in order.
func (p *SnapshotPage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// SnapshotSession wraps a SnapshotPage as a Session.
type SnapshotSession struct {
	Snapshot *SnapshotPage
	Jar      *assets.CookieJar

	mu     sync.Mutex
	closed bool
}

func (s *SnapshotSession) Page(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.Snapshot, nil
}

func (s *SnapshotSession) Persist(ctx context.Context) error {
	if s.Jar == nil {
		return nil
	}
	cookies, err := s.Snapshot.Cookies(ctx)
	if err != nil {
		return err
	}
	return s.Jar.Save(cookies)
}

func (s *SnapshotSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
