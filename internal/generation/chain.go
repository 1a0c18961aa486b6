package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chunqiusha/cardforge/internal/browser"
	"github.com/chunqiusha/cardforge/internal/config"
)

// Match is the strategy that resolved a chain.
type Match struct {
	Strategy config.Strategy
	Count    int
}

// Resolve tries each strategy of chain in order. A strategy is polled every
// probe interval until it matches at least one element or its timeout runs
// out; a non-positive timeout probes once. Query errors count as no match.
func Resolve(ctx context.Context, page browser.Page, chain []config.Strategy, probe time.Duration) (*Match, error) {
	for _, s := range chain {
		n, err := await(ctx, page, s, probe)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			slog.Debug("Selector matched", "strategy", s.Name, "selector", s.Selector, "count", n)
			return &Match{Strategy: s, Count: n}, nil
		}
		slog.Debug("Selector did not match", "strategy", s.Name, "timeout", s.Timeout)
	}
	return nil, fmt.Errorf("%w: tried %d strategies", ErrSelectorExhausted, len(chain))
}

// ProbeOnce returns a copy of chain whose strategies are each queried once.
func ProbeOnce(chain []config.Strategy) []config.Strategy {
	once := make([]config.Strategy, len(chain))
	for i, s := range chain {
		s.Timeout = 0
		once[i] = s
	}
	return once
}

func await(ctx context.Context, page browser.Page, s config.Strategy, probe time.Duration) (int, error) {
	deadline := time.Now().Add(s.Timeout)
	for {
		n, err := page.Count(ctx, s.Selector)
		if err == nil && n > 0 {
			return n, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		if err := sleep(ctx, min(probe, remaining)); err != nil {
			return 0, err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
