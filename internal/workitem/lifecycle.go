package workitem

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
)

type Status string

// Machine is the label set of one work-item variant. There is no transition
// graph: any known status may be written. Only entering Completed has a side effect.
type Machine struct {
	Initial    Status
	InProgress Status
	Completed  Status
	Statuses   []Status
}

var (
	TaskMachine = Machine{
		Initial:    "nowe",
		InProgress: "w_trakcie",
		Completed:  "zakończone",
		Statuses:   []Status{"nowe", "w_trakcie", "zakończone", "anulowane"},
	}
	DefectMachine = Machine{
		Initial:    "zgłoszona",
		InProgress: "w_trakcie",
		Completed:  "usunięta",
		Statuses:   []Status{"zgłoszona", "w_trakcie", "usunięta", "odrzucona"},
	}
)

func (m Machine) Valid(s Status) bool {
	for _, known := range m.Statuses {
		if known == s {
			return true
		}
	}
	return false
}

func (m Machine) names() []string {
	out := make([]string, len(m.Statuses))
	for i, s := range m.Statuses {
		out[i] = string(s)
	}
	return out
}

// State is the part of a stored item the machine reads.
type State struct {
	Status      Status
	CompletedAt *time.Time
}

// Transition is the outcome of evaluating a status write.
type Transition struct {
	From        Status
	Next        Status
	CompletedAt *time.Time
	// StampCompleted is true only when this write sets CompletedAt for the first time.
	StampCompleted bool
}

func (t Transition) Changed() bool {
	return t.From != t.Next
}

// Evaluate applies a requested status to current. A nil request keeps the status.
// CompletedAt is stamped once, on first entry into Completed, and never cleared.
func (m Machine) Evaluate(current State, requested *Status, now time.Time) (Transition, error) {
	t := Transition{From: current.Status, Next: current.Status, CompletedAt: current.CompletedAt}
	if requested != nil {
		if !m.Valid(*requested) {
			return Transition{}, internal.NewValidationFieldError("status",
				fmt.Sprintf("status must be one of: %s", strings.Join(m.names(), ", ")),
				internal.ErrCodeInvalidStatus)
		}
		t.Next = *requested
	}

	if t.Next == m.Completed && current.CompletedAt == nil {
		stamp := now
		t.CompletedAt = &stamp
		t.StampCompleted = true
	}
	return t, nil
}

// Assign forces the in-progress state whatever the current status is, reopening
// finished items. CompletedAt is kept.
func (m Machine) Assign(current State) Transition {
	return Transition{
		From:        current.Status,
		Next:        m.InProgress,
		CompletedAt: current.CompletedAt,
	}
}
