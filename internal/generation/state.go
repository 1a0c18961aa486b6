package generation

import "fmt"

// State is a step of a single generation call.
type State int

const (
	StateInit State = iota
	StateSessionOpened
	StatePageReady
	StateAuthChecked
	StatePromptSubmitted
	StateGenerating
	StateGenerationDone
	StateGenerationTimeout
	StateImageLocated
	StateImageNotFound
)

var stateNames = [...]string{
	StateInit:              "INIT",
	StateSessionOpened:     "SESSION_OPENED",
	StatePageReady:         "PAGE_READY",
	StateAuthChecked:       "AUTH_CHECKED",
	StatePromptSubmitted:   "PROMPT_SUBMITTED",
	StateGenerating:        "GENERATING",
	StateGenerationDone:    "GENERATION_DONE",
	StateGenerationTimeout: "GENERATION_TIMEOUT",
	StateImageLocated:      "IMAGE_LOCATED",
	StateImageNotFound:     "IMAGE_NOT_FOUND",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s ends a generation call.
func (s State) Terminal() bool {
	return s == StateImageLocated || s == StateImageNotFound
}
