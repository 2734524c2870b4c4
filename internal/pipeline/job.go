package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/bekovrafik/DreamColor/internal/model"
)

// Status is a state of the generation state machine.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusPlanning     Status = "planning"
	StatusIllustrating Status = "illustrating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Kind tells how a run is paid for.
type Kind string

const (
	KindPaid Kind = "paid"
	KindFree Kind = "free"
)

// Run sizes and prices.
const (
	PaidRunSize      = 6 // five pages and a cover
	FreeRunSize      = 1
	PaidRunCost      = 6
	RegenerationCost = 1
)

// Progress anchors.
const (
	progressPlanning = 10
	progressSpan     = 70
	progressDone     = 100
)

// Request is the input of one run.
type Request struct {
	ChildName  string
	Theme      string
	Transcript []model.ConversationTurn
	Reference  *model.Image
}

// Job is a snapshot of a run.
type Job struct {
	ID       uuid.UUID
	Kind     Kind
	Status   Status
	Progress int
	// Scene is the 1-based scene being illustrated, Total the planned count.
	Scene int
	Total int

	Scenes        []string
	Pages         []model.Image
	MissingScenes []int // 0-based indexes skipped for lack of an image
	RetryCount    int

	// Error is a human-readable failure message; Cause keeps the wrapped sentinel.
	Error string
	Cause error `json:"-"`

	// Refill is raised when a paid run leaves the balance at zero.
	Refill   bool
	Canceled bool

	StartedAt  time.Time
	FinishedAt time.Time
}

func (j Job) clone() Job {
	j.Scenes = append([]string(nil), j.Scenes...)
	j.Pages = append([]model.Image(nil), j.Pages...)
	j.MissingScenes = append([]int(nil), j.MissingScenes...)
	return j
}

func sceneProgress(i, n int) int {
	return progressPlanning + i*progressSpan/n
}

const (
	liveRunning int32 = iota
	liveStopped
	liveCommitted
)

// Liveness is the cancel flag of one run. A run that has committed its charge
// can no longer be stopped.
type Liveness struct{ v atomic.Int32 }

// NewLiveness returns a running flag.
func NewLiveness() *Liveness { return &Liveness{} }

// Alive reports whether the run has not been stopped.
func (l *Liveness) Alive() bool { return l.v.Load() != liveStopped }

// Stop clears the flag. It fails once the run has committed.
func (l *Liveness) Stop() bool { return l.v.CompareAndSwap(liveRunning, liveStopped) }

// Commit marks the run as charging. It fails once the run was stopped.
func (l *Liveness) Commit() bool { return l.v.CompareAndSwap(liveRunning, liveCommitted) }
