package journey

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// StepStatus is the progress state of one tracker step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
)

// Step is a labelled milestone of a journey.
type Step struct {
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
}

// Tracker holds the step list of the active journey. Every transition keeps
// the list shaped as completed*, at most one in-progress, pending*.
type Tracker struct {
	steps []Step
}

// NewTracker returns a tracker with every label pending.
func NewTracker(labels []string) *Tracker {
	steps := make([]Step, len(labels))
	for i, l := range labels {
		steps[i] = Step{Label: l, Status: StepPending}
	}
	return &Tracker{steps: steps}
}

// RestoreTracker rebuilds a tracker from persisted steps, rejecting lists that
// break the ordering invariant.
func RestoreTracker(steps []Step) (*Tracker, error) {
	t := &Tracker{steps: append([]Step(nil), steps...)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Steps returns a copy of the step list.
func (t *Tracker) Steps() []Step {
	if t == nil {
		return nil
	}
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// Len reports the number of steps.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.steps)
}

// Current returns the index of the in-progress step, or -1.
func (t *Tracker) Current() int {
	if t == nil {
		return -1
	}
	for i, s := range t.steps {
		if s.Status == StepInProgress {
			return i
		}
	}
	return -1
}

// Done reports whether every step is completed.
func (t *Tracker) Done() bool {
	if t == nil || len(t.steps) == 0 {
		return false
	}
	return t.steps[len(t.steps)-1].Status == StepCompleted
}

// Start marks step i in-progress. Every earlier step must be completed and no
// step may already be in progress.
func (t *Tracker) Start(i int) error {
	if err := t.bounds(i); err != nil {
		return err
	}
	if cur := t.Current(); cur >= 0 {
		return fmt.Errorf("%w: step %d already in progress", errdefs.ErrFailedPrecondition, cur)
	}
	if t.steps[i].Status != StepPending {
		return fmt.Errorf("%w: step %d is %s", errdefs.ErrFailedPrecondition, i, t.steps[i].Status)
	}
	for j := 0; j < i; j++ {
		if t.steps[j].Status != StepCompleted {
			return fmt.Errorf("%w: step %d not completed", errdefs.ErrFailedPrecondition, j)
		}
	}
	t.steps[i].Status = StepInProgress
	return nil
}

// StartAt completes every step before i and starts i. It is used when a
// journey is entered part-way through, with the earlier milestones already
// satisfied elsewhere. Only a fresh tracker can be entered this way.
func (t *Tracker) StartAt(i int) error {
	if err := t.bounds(i); err != nil {
		return err
	}
	for j, s := range t.steps {
		if s.Status != StepPending {
			return fmt.Errorf("%w: step %d is %s", errdefs.ErrFailedPrecondition, j, s.Status)
		}
	}
	for j := 0; j < i; j++ {
		t.steps[j].Status = StepCompleted
	}
	t.steps[i].Status = StepInProgress
	return nil
}

// Complete marks the in-progress step i completed.
func (t *Tracker) Complete(i int) error {
	if err := t.bounds(i); err != nil {
		return err
	}
	if t.steps[i].Status != StepInProgress {
		return fmt.Errorf("%w: step %d is %s, not in progress", errdefs.ErrFailedPrecondition, i, t.steps[i].Status)
	}
	t.steps[i].Status = StepCompleted
	return nil
}

// Advance completes step i and starts step i+1 in one transition. On the
// last step it only completes.
func (t *Tracker) Advance(i int) error {
	if err := t.Complete(i); err != nil {
		return err
	}
	if i+1 < len(t.steps) {
		t.steps[i+1].Status = StepInProgress
	}
	return nil
}

// Validate checks the ordering invariant.
func (t *Tracker) Validate() error {
	phase := StepCompleted
	for i, s := range t.steps {
		switch s.Status {
		case StepCompleted:
			if phase != StepCompleted {
				return fmt.Errorf("%w: step %d completed after an unfinished step", errdefs.ErrInvalidArgument, i)
			}
		case StepInProgress:
			if phase != StepCompleted {
				return fmt.Errorf("%w: step %d in progress after an unfinished step", errdefs.ErrInvalidArgument, i)
			}
			phase = StepPending
		case StepPending:
			phase = StepPending
		default:
			return fmt.Errorf("%w: step %d has unknown status %q", errdefs.ErrInvalidArgument, i, s.Status)
		}
	}
	return nil
}

func (t *Tracker) bounds(i int) error {
	if t == nil {
		return fmt.Errorf("%w: no step tracker", errdefs.ErrFailedPrecondition)
	}
	if i < 0 || i >= len(t.steps) {
		return fmt.Errorf("%w: step %d out of range [0,%d)", errdefs.ErrInvalidArgument, i, len(t.steps))
	}
	return nil
}
