package stage

import (
	"context"
	"errors"
	"fmt"

	"vench/internal/jobs"
)

// Snapshot is the read-only job view handed to a stage.
type Snapshot struct {
	JobID  int64
	UUID   string
	Kind   jobs.Kind
	Input  jobs.Input
	Output jobs.Output
}

// SnapshotOf copies the fields a stage may read from job.
func SnapshotOf(job *jobs.Job) Snapshot {
	return Snapshot{
		JobID:  job.ID,
		UUID:   job.UUID,
		Kind:   job.Kind,
		Input:  job.Input,
		Output: job.Output,
	}
}

// Stage is one ordered, fallible processing step.
type Stage interface {
	// Name is the stable identifier used in logs and level overrides.
	Name() string
	// Label is the progress message published before the stage runs.
	Label() string
	Run(ctx context.Context, snap Snapshot) (jobs.Output, error)
	HealthCheck(ctx context.Context) Health
}

// Guard is a short-circuit predicate. When Trips returns true the job ends in
// Status with Message and no later step runs.
type Guard struct {
	Name    string
	Trips   func(Snapshot) bool
	Status  jobs.Status
	Message string
}

// Evaluate returns a *Halt when the guard trips.
func (g *Guard) Evaluate(snap Snapshot) *Halt {
	if g == nil || g.Trips == nil || !g.Trips(snap) {
		return nil
	}
	return &Halt{Status: g.Status, Message: g.Message, Reason: g.Name}
}

// Step binds a stage to its optional guard.
type Step struct {
	Stage Stage
	// Guard is evaluated before the stage's progress label is written, so a
	// tripped guard never publishes the label of a stage that did not run.
	Guard *Guard
}

// Definition is the ordered pipeline for one job kind.
type Definition struct {
	Kind jobs.Kind
	// Entry guards are evaluated in order before any progress is written or
	// any step runs. The first one that trips ends the job.
	Entry             []*Guard
	Steps             []Step
	CompletionMessage string
	// Keywords, when set, derives the keyword rows committed with COMPLETED.
	Keywords func(jobs.Output) *jobs.KeywordSet
}

// Validate reports structural problems in a definition.
func (d Definition) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("pipeline definition: unknown kind %q", d.Kind)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("pipeline definition %s: no steps", d.Kind)
	}
	seen := make(map[string]struct{}, len(d.Steps))
	for i, step := range d.Steps {
		if step.Stage == nil {
			return fmt.Errorf("pipeline definition %s: step %d has no stage", d.Kind, i)
		}
		if _, dup := seen[step.Stage.Name()]; dup {
			return fmt.Errorf("pipeline definition %s: duplicate stage %s", d.Kind, step.Stage.Name())
		}
		seen[step.Stage.Name()] = struct{}{}
		if err := validateGuard(d.Kind, step.Guard); err != nil {
			return err
		}
	}
	for _, g := range d.Entry {
		if err := validateGuard(d.Kind, g); err != nil {
			return err
		}
	}
	return nil
}

func validateGuard(kind jobs.Kind, g *Guard) error {
	if g != nil && g.Status != jobs.StatusFailed && g.Status != jobs.StatusSkipped {
		return fmt.Errorf("pipeline definition %s: guard %s must end failed or skipped", kind, g.Name)
	}
	return nil
}

// EntryHalt returns the halt of the first entry guard that trips, or nil.
func (d Definition) EntryHalt(snap Snapshot) *Halt {
	for _, g := range d.Entry {
		if halt := g.Evaluate(snap); halt != nil {
			return halt
		}
	}
	return nil
}

// Labels lists the progress labels in execution order.
func (d Definition) Labels() []string {
	labels := make([]string, 0, len(d.Steps))
	for _, step := range d.Steps {
		labels = append(labels, step.Stage.Label())
	}
	return labels
}

// Halt is a declared short-circuit. It is an error so stages can return it,
// but the orchestrator treats it as a terminal outcome rather than a fault.
type Halt struct {
	Status  jobs.Status
	Message string
	Reason  string
}

func (h *Halt) Error() string {
	return fmt.Sprintf("halt (%s): %s", h.Status, h.Message)
}

// Skip builds a Halt that ends the job as skipped.
func Skip(reason, message string) *Halt {
	return &Halt{Status: jobs.StatusSkipped, Message: message, Reason: reason}
}

// AsHalt extracts a Halt from err.
func AsHalt(err error) (*Halt, bool) {
	var h *Halt
	if errors.As(err, &h) && h != nil {
		return h, true
	}
	return nil, false
}
