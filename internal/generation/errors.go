package generation

import "errors"

var (
	// ErrSessionFatal means the browser session cannot be used at all. A
	// batch run stops on it; every other error fails a single card.
	ErrSessionFatal      = errors.New("browser session failed")
	ErrSelectorExhausted = errors.New("no selector in chain matched")
	ErrImageNotFound     = errors.New("generated image not found")
	ErrNotSignedIn       = errors.New("not signed in")
)
