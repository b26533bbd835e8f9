// Package tasks stores an owner's to-do items in daily buckets at
// tasks/{owner}/dailyTasks/{date}.
package tasks

import (
	"time"

	"github.com/syntrixbase/daybook/internal/bucket"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusCompleted}

// Layout is where tasks are stored.
var Layout = bucket.Layout{
	Entity:        "task",
	Collection:    "tasks",
	Subcollection: "dailyTasks",
	Field:         "tasks",
	OwnerField:    "userId",
}

// Task is one to-do item.
type Task struct {
	ID        string    `json:"id" validate:"required"`
	Date      string    `json:"date" validate:"required"`
	Title     string    `json:"title" validate:"required,max=200"`
	DueDate   string    `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Priority  Priority  `json:"priority" validate:"required,oneof=Low Medium High"`
	Status    Status    `json:"status" validate:"required,oneof='To Do' 'In Progress' Completed"`
	Category  string    `json:"category,omitempty" validate:"max=100"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
}

func (t Task) EntityID() string   { return t.ID }
func (t Task) BucketDate() string { return t.Date }

// Store is the task store.
type Store = bucket.Store[Task]

func NewStore(deps bucket.Deps) (*Store, error) {
	return bucket.NewStore[Task](Layout, deps)
}

// Summary counts tasks per status for the dashboard.
type Summary struct {
	Total      int            `json:"total"`
	ByStatus   map[Status]int `json:"byStatus"`
	Overdue    int            `json:"overdue"`
	Completion float64        `json:"completion"`
}

// Summarize counts tasks per status. A task is overdue when it is not
// completed and its due date is before today's bucket key.
func Summarize(tasks []Task, now time.Time) Summary {
	s := Summary{ByStatus: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	today := bucket.BucketKey(now)
	for _, t := range tasks {
		s.Total++
		s.ByStatus[t.Status]++
		if t.Status != StatusCompleted && t.DueDate != "" && t.DueDate < today {
			s.Overdue++
		}
	}
	if s.Total > 0 {
		s.Completion = float64(s.ByStatus[StatusCompleted]) / float64(s.Total)
	}
	return s
}
