package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage names a milestone in a crawl run or in one page's pipeline.
type Stage string

// Run-level and page-level stages. A page moves through Dispatched, Loaded,
// Evaluated, Normalized, Persisted, LinksExpanded and Done; Skipped ends it
// early.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageDispatched    Stage = "DISPATCHED"
	StageLoaded        Stage = "LOADED"
	StageEvaluated     Stage = "EVALUATED"
	StageNormalized    Stage = "NORMALIZED"
	StagePersisted     Stage = "PERSISTED"
	StageLinksExpanded Stage = "LINKS_EXPANDED"
	StageDone          Stage = "DONE"
	StageSkipped       Stage = "SKIPPED"
	StageConsole       Stage = "CONSOLE"
)

// Event is one progress observation.
type Event struct {
	// RunID identifies the crawl run.
	RunID uuid.UUID
	// TS is the UTC time the emitter observed the event.
	TS    time.Time
	Stage Stage
	// Site is the page host; required for page stages.
	Site string
	URL  string
	// Reason is the skip reason for StageSkipped and the console level for
	// StageConsole.
	Reason string
	// Links counts links found (LinksExpanded) or pages visited (RunDone).
	Links int
	// Dur is the time spent in the stage that just finished.
	Dur  time.Duration
	Note string
}

func (s Stage) pageScoped() bool {
	switch s {
	case StageRunStart, StageRunDone:
		return false
	default:
		return true
	}
}

// Validate rejects malformed events.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone,
		StageDispatched, StageLoaded, StageEvaluated, StageNormalized,
		StagePersisted, StageLinksExpanded, StageDone, StageConsole:
	case StageSkipped:
		if e.Reason == "" {
			return errors.New("skipped event requires reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Stage.pageScoped() && e.Site == "" {
		return fmt.Errorf("%s event requires site", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
