package retrieval

import "errors"

// ErrActionDisabled is returned when a user-facing action is invoked while it cannot run
var ErrActionDisabled = errors.New("action is disabled")

// Kind is the resource a retrieval action fetches
type Kind int

const (
	ProfileKind Kind = iota
	ProjectsKind
	ReportsKind
	RunningEntryKind
)

// Kinds lists every resource kind in reporting order
var Kinds = []Kind{ProfileKind, ProjectsKind, ReportsKind, RunningEntryKind}

func (k Kind) String() string {
	switch k {
	case ProfileKind:
		return "profile"
	case ProjectsKind:
		return "projects"
	case ReportsKind:
		return "reports"
	case RunningEntryKind:
		return "running_entry"
	default:
		return "unknown"
	}
}

// State is where one invocation of an action is
type State int

const (
	Idle State = iota
	Executing
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Executing:
		return "executing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// ActivityStatus reports the state of one kind. A Failed status carries the error and
// can re-run the exact fetch that failed.
type ActivityStatus struct {
	Kind  Kind
	State State
	Err   error
	retry func()
}

// Equal ignores the carried error and retry capability
func (s ActivityStatus) Equal(other ActivityStatus) bool {
	return s.Kind == other.Kind && s.State == other.State
}

// CanRetry reports whether Retry will do anything
func (s ActivityStatus) CanRetry() bool {
	return s.State == Failed && s.retry != nil
}

// Retry re-invokes the failed fetch with the input it failed with
func (s ActivityStatus) Retry() bool {
	if !s.CanRetry() {
		return false
	}
	s.retry()
	return true
}
