package model

import "time"

type TaskStatus string

const (
	TaskPending         TaskStatus = "pending"
	TaskWaitingApproval TaskStatus = "waiting_for_approval"
	TaskCompleted       TaskStatus = "completed"
)

// Valid reports whether the status is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskWaitingApproval, TaskCompleted:
		return true
	}
	return false
}

// Task is a chore with a monetary reward. CompletedAt is non-nil exactly
// when Status is TaskCompleted.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Reward      int64      `json:"reward"`
	AssignedTo  string     `json:"assigned_to"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
