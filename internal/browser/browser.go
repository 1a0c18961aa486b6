// Package browser is the port between the generation controller and a real
// or recorded web page.
package browser

import (
	"context"

	"github.com/chunqiusha/cardforge/internal/assets"
)

// Page is the single tab the generation controller drives. Selectors are CSS
// selectors as understood by document.querySelectorAll.
type Page interface {
	// URL is the current location.
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	// Count is the number of elements matching selector right now.
	Count(ctx context.Context, selector string) (int, error)
	// LastAttribute reads an attribute of the last element matching
	// selector. ok is false when nothing matches or the attribute is absent.
	LastAttribute(ctx context.Context, selector, name string) (value string, ok bool, err error)
	// Fill clears the first element matching selector and types text into it.
	Fill(ctx context.Context, selector, text string) error
	// Submit presses Enter in the first element matching selector.
	Submit(ctx context.Context, selector string) error
	Cookies(ctx context.Context) ([]assets.Cookie, error)
}

// Session is a durable browser profile with one active page.
type Session interface {
	// Page returns the active page, reusing an open tab when there is one.
	Page(ctx context.Context) (Page, error)
	// Persist writes the session cookies to the cookie jar.
	Persist(ctx context.Context) error
	Close() error
}
