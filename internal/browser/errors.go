package browser

import "errors"

var (
	ErrUnavailable   = errors.New("browser unavailable")
	ErrSessionClosed = errors.New("browser session closed")
	ErrNoMatch       = errors.New("no element matches selector")
)
