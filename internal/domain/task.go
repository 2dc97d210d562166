package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus is the sub-status of a ticket task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusSkipped    TaskStatus = "SKIPPED"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCompleted, TaskStatusSkipped},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusSkipped},
	TaskStatusCompleted:  {},
	TaskStatusSkipped:    {},
}

// Valid reports whether s is a defined task status.
func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// IsDone reports whether the task no longer blocks completion.
func (s TaskStatus) IsDone() bool {
	return s == TaskStatusCompleted || s == TaskStatusSkipped
}

// CanMoveTo reports whether the task may move from s to next.
func (s TaskStatus) CanMoveTo(next TaskStatus) bool {
	for _, candidate := range taskTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Task is a sub-step owned by exactly one ticket.
type Task struct {
	ID          string
	TicketID    string
	Sequence    int
	Title       string
	Required    bool
	Status      TaskStatus
	AssigneeID  *string
	Notes       string
	ActualHours decimal.Decimal
	DueAt       *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (t Task) clone() Task {
	t.AssigneeID = cloneString(t.AssigneeID)
	t.DueAt = cloneTime(t.DueAt)
	t.StartedAt = cloneTime(t.StartedAt)
	t.CompletedAt = cloneTime(t.CompletedAt)
	return t
}
