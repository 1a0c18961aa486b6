package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chunqiusha/cardforge/internal/assets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatPage = `<html><body>
<main>
  <textarea id="userInput" placeholder="Message Copilot"></textarea>
  <div class="thread">
    <img class="generated" src="https://th.bing.com/first.jpg" alt="first">
    <img class="generated" src="https://th.bing.com/second.jpg" alt="second">
    <img class="generated" alt="pending">
  </div>
</main>
</body></html>`

func TestSnapshotCount(t *testing.T) {
	page, err := NewSnapshotPage("https://copilot.microsoft.com/", chatPage)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		selector string
		want     int
	}{
		{`textarea[data-testid="composer-input"]`, 0},
		{`textarea[placeholder*="Copilot"]`, 1},
		{`#userInput`, 1},
		{`img.generated`, 3},
		{`img[src*="bing.com"]`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			n, err := page.Count(ctx, tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestSnapshotInvalidSelector(t *testing.T) {
	page, err := NewSnapshotPage("", chatPage)
	require.NoError(t, err)

	ctx := context.Background()
	for _, selector := range []string{"div[[", "img[src*=", ":nope(x)"} {
		t.Run(selector, func(t *testing.T) {
			_, err := page.Count(ctx, selector)
			assert.ErrorContains(t, err, "invalid selector")

			_, _, err = page.LastAttribute(ctx, selector, "src")
			assert.ErrorContains(t, err, "invalid selector")

			assert.Error(t, page.Fill(ctx, selector, "text"))
		})
	}

	// escaped class names are valid
	_, err = page.Count(ctx, `.size-3\.5.rounded`)
	assert.NoError(t, err)
}

func TestSnapshotLastAttribute(t *testing.T) {
	page, err := NewSnapshotPage("", chatPage)
	require.NoError(t, err)
	ctx := context.Background()

	v, ok, err := page.LastAttribute(ctx, `img[src*="bing.com"]`, "src")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://th.bing.com/second.jpg", v)

	// last match has no src
	_, ok, err = page.LastAttribute(ctx, "img.generated", "src")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = page.LastAttribute(ctx, "video", "src")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotFillSubmit(t *testing.T) {
	page, err := NewSnapshotPage("", chatPage)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, page.Fill(ctx, "#userInput", "一张卡牌"))
	require.NoError(t, page.Submit(ctx, "#userInput"))

	text, ok := page.Filled("#userInput")
	assert.True(t, ok)
	assert.Equal(t, "一张卡牌", text)
	assert.Equal(t, []string{"#userInput"}, page.Submits())

	err = page.Fill(ctx, "#missing", "x")
	assert.True(t, errors.Is(err, ErrNoMatch))
	err = page.Submit(ctx, "#missing")
	assert.True(t, errors.Is(err, ErrNoMatch))
}

func TestSnapshotLoadHTMLSwapsDocument(t *testing.T) {
	page, err := NewSnapshotPage("", `<div></div>`)
	require.NoError(t, err)
	ctx := context.Background()

	n, _ := page.Count(ctx, "img")
	assert.Equal(t, 0, n)

	require.NoError(t, page.LoadHTML(chatPage))
	n, _ = page.Count(ctx, "img")
	assert.Equal(t, 3, n)
}

func TestSnapshotCanceledContext(t *testing.T) {
	page, err := NewSnapshotPage("", chatPage)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = page.Count(ctx, "img")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, page.Navigate(ctx, "https://example.com"), context.Canceled)
}

func TestSnapshotSessionPersist(t *testing.T) {
	page, err := NewSnapshotPage("https://copilot.microsoft.com/", chatPage)
	require.NoError(t, err)
	page.SetCookies([]assets.Cookie{{Name: "_U", Value: "token", Domain: ".bing.com", Path: "/"}})

	jar := assets.NewCookieJar(filepath.Join(t.TempDir(), "cookies.json"))
	s := &SnapshotSession{Snapshot: page, Jar: jar}
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx))
	got, err := jar.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "_U", got[0].Name)

	require.NoError(t, s.Close())
	_, err = s.Page(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
