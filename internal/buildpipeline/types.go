package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLoad reads and validates the graph file.
	StageLoad Stage = "load"
	// StageOrder indexes targets and sorts them dependency-first.
	StageOrder Stage = "order"
	// StagePropagate visits every target and computes its descriptor.
	StagePropagate Stage = "propagate"
	// StageWrite persists generated modulemaps.
	StageWrite Stage = "write"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageLoad, StageOrder, StagePropagate, StageWrite}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the target is waiting for its dependencies.
	StatusQueued Status = "queued"
	// StatusWorking indicates the target is being visited.
	StatusWorking Status = "working"
	// StatusDone indicates the target is done.
	StatusDone Status = "done"
	// StatusSkipped indicates no module could be derived for the target.
	StatusSkipped Status = "skipped"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a target (or for the overall pipeline when
// Target is empty).
type Event struct {
	Target  string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Run may call OnEvent from several
// goroutines at once.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}

// Total returns the sum over every recorded stage.
func (t Timings) Total() time.Duration {
	return t.Sum(Stages...)
}
