// Package calendar stores an owner's calendar events in daily buckets at
// events/{owner}/dailyEvents/{date}.
package calendar

import (
	"fmt"
	"time"

	"github.com/syntrixbase/daybook/internal/bucket"
)

type Color string

const (
	ColorDanger  Color = "Danger"
	ColorSuccess Color = "Success"
	ColorPrimary Color = "Primary"
	ColorWarning Color = "Warning"
)

var Layout = bucket.Layout{
	Entity:        "event",
	Collection:    "events",
	Subcollection: "dailyEvents",
	Field:         "events",
	OwnerField:    "userId",
}

// Event is one calendar entry. Start and End are RFC 3339 timestamps, or
// plain dates for all-day events.
type Event struct {
	ID        string    `json:"id" validate:"required"`
	Date      string    `json:"date" validate:"required"`
	Title     string    `json:"title" validate:"required,max=200"`
	Start     string    `json:"start" validate:"required"`
	End       string    `json:"end,omitempty"`
	AllDay    bool      `json:"allDay"`
	ColorTag  Color     `json:"colorTag" validate:"required,oneof=Danger Success Primary Warning"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
}

func (e Event) EntityID() string   { return e.ID }
func (e Event) BucketDate() string { return e.Date }

type Store = bucket.Store[Event]

func NewStore(deps bucket.Deps) (*Store, error) {
	return bucket.NewStore[Event](Layout, deps, bucket.WithCheck(checkEvent))
}

// ParseTime reads an event boundary.
func ParseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(bucket.KeyLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 time or a date")
	}
	return t, nil
}

func checkEvent(e Event) error {
	start, err := ParseTime(e.Start)
	if err != nil {
		return bucket.Invalid(Layout.Entity, "start", err.Error())
	}
	if e.End == "" {
		return nil
	}
	end, err := ParseTime(e.End)
	if err != nil {
		return bucket.Invalid(Layout.Entity, "end", err.Error())
	}
	if end.Before(start) {
		return bucket.Invalid(Layout.Entity, "end", "Must not be before start")
	}
	return nil
}

// Between returns the events overlapping [from, to).
func Between(events []Event, from, to time.Time) []Event {
	var out []Event
	for _, e := range events {
		start, err := ParseTime(e.Start)
		if err != nil {
			continue
		}
		end := start
		if e.End != "" {
			if t, err := ParseTime(e.End); err == nil {
				end = t
			}
		}
		if e.AllDay && end.Equal(start) {
			end = start.Add(24 * time.Hour)
		}
		if start.Before(to) && (end.After(from) || start.Equal(from)) {
			out = append(out, e)
		}
	}
	return out
}
