// Package pipeline runs a card list through generation, download,
// composition and saving, one card at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/compose"
	"github.com/chunqiusha/cardforge/internal/generation"
	"github.com/chunqiusha/cardforge/internal/images"
	"github.com/google/uuid"
)

// Generator produces an image reference for a prompt fragment.
type Generator interface {
	Generate(ctx context.Context, fragment string) (*generation.Result, error)
}

// Acquirer stages a generated image locally.
type Acquirer interface {
	Acquire(ctx context.Context, raw string) (*images.Staged, error)
}

// Composer renders a card from a staged image.
type Composer interface {
	ComposeFile(card cards.Card, path string) (*compose.Card, error)
}

// Stage names the step a card failed in.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageDownload Stage = "download"
	StageCompose  Stage = "compose"
	StageSave     Stage = "save"
)

// Outcome is the result for one card.
type Outcome struct {
	Index    int           `yaml:"index"`
	Name     string        `yaml:"name"`
	Group    string        `yaml:"group"`
	OK       bool          `yaml:"ok"`
	Stage    Stage         `yaml:"failed_stage,omitempty"`
	Error    string        `yaml:"error,omitempty"`
	State    string        `yaml:"final_state,omitempty"`
	Strategy string        `yaml:"image_strategy,omitempty"`
	Output   string        `yaml:"output,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

// Summary describes a batch run.
type Summary struct {
	RunID     string    `yaml:"run_id"`
	Started   time.Time `yaml:"started"`
	Finished  time.Time `yaml:"finished"`
	Total     int       `yaml:"total"`
	Skipped   int       `yaml:"skipped"`
	Succeeded int       `yaml:"succeeded"`
	Failed    int       `yaml:"failed"`
	Aborted   bool      `yaml:"aborted"`
	Outcomes  []Outcome `yaml:"cards"`
}

// Options selects which cards of the list to process. Card numbers are
// 1-based.
type Options struct {
	// StartFrom skips the cards before it. Zero means 1.
	StartFrom int
	// Only processes a single card when set.
	Only int
}

// Runner processes cards sequentially.
type Runner struct {
	Generator Generator
	Acquirer  Acquirer
	Composer  Composer
	OutputDir string
	// Delay is the pause between two cards.
	Delay time.Duration

	// Sleep waits between cards; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run processes the selected cards. A card failure is recorded in the
// summary and the run continues; a session failure stops the run and is
// returned together with the summary so far.
func (r *Runner) Run(ctx context.Context, list []cards.Card, opts Options) (*Summary, error) {
	first, last, err := opts.bounds(len(list))
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Total:   len(list),
		Skipped: len(list) - (last - first + 1),
	}
	log := slog.With("run", summary.RunID)
	log.Info("Starting batch", "cards", len(list), "from", first, "to", last, "output", r.OutputDir)

	defer func() { summary.Finished = time.Now() }()

	for n := first; n <= last; n++ {
		card := list[n-1]
		log.Info("Processing card", "card", n, "of", len(list), "name", card.Name)

		outcome, err := r.processCard(ctx, n, card)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.OK {
			summary.Succeeded++
			recordSuccess()
			log.Info("Card finished", "card", n, "output", outcome.Output, "duration", outcome.Duration.Round(time.Millisecond))
		} else {
			summary.Failed++
			recordFailure(outcome.Stage)
			log.Error("Card failed", "card", n, "stage", outcome.Stage, "err", outcome.Error)
		}

		if errors.Is(err, generation.ErrSessionFatal) {
			summary.Aborted = true
			log.Error("Browser session lost, stopping run", "err", err)
			return summary, err
		}
		if ctx.Err() != nil {
			summary.Aborted = true
			return summary, ctx.Err()
		}

		if n < last && r.Delay > 0 {
			if err := r.sleep(ctx, r.Delay); err != nil {
				summary.Aborted = true
				return summary, err
			}
		}
	}

	log.Info("Batch complete", "succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

func (r *Runner) processCard(ctx context.Context, n int, card cards.Card) (outcome Outcome, err error) {
	start := time.Now()
	outcome = Outcome{Index: n, Name: card.Name, Group: card.GroupOrDefault()}
	defer func() { outcome.Duration = time.Since(start) }()

	fail := func(stage Stage, e error) (Outcome, error) {
		outcome.Stage = stage
		outcome.Error = e.Error()
		return outcome, e
	}

	res, err := r.Generator.Generate(ctx, card.Prompt)
	if res != nil {
		outcome.State = res.State.String()
		outcome.Strategy = res.Ref.Selector
	}
	if err != nil {
		return fail(StageGenerate, err)
	}
	recordGeneration(res.Elapsed.Seconds())

	staged, err := r.Acquirer.Acquire(ctx, res.Ref.URL)
	if err != nil {
		return fail(StageDownload, err)
	}

	composed, err := r.Composer.ComposeFile(card, staged.Path)
	if err != nil {
		slog.Debug("Keeping staged image of failed card", "path", staged.Path)
		return fail(StageCompose, err)
	}
	if err := staged.Release(); err != nil {
		slog.Warn("Failed to remove staged image", "path", staged.Path, "err", err)
	}

	out := filepath.Join(r.OutputDir, card.FileName())
	if err := composed.Save(out); err != nil {
		return fail(StageSave, err)
	}
	outcome.OK = true
	outcome.Output = out
	return outcome, nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
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

// bounds returns the 1-based inclusive range of cards to process.
func (o Options) bounds(count int) (int, int, error) {
	if count == 0 {
		return 0, 0, errors.New("card list is empty")
	}
	if o.Only != 0 {
		if o.Only < 1 || o.Only > count {
			return 0, 0, fmt.Errorf("card %d is out of range 1..%d", o.Only, count)
		}
		return o.Only, o.Only, nil
	}
	start := o.StartFrom
	if start == 0 {
		start = 1
	}
	if start < 1 || start > count {
		return 0, 0, fmt.Errorf("start-from %d is out of range 1..%d", start, count)
	}
	return start, count, nil
}
