package models

import (
	"time"

	"github.com/google/uuid"
)

// VolunteerStatus is one volunteer's relationship to one task (/tasks/{id}/volunteers/{uid}).
// Completed implies VerificationRequested is false.
type VolunteerStatus struct {
	SignedUpAt            time.Time `json:"signed_up_at"`
	VerificationRequested bool      `json:"verification_requested"`
	Completed             bool      `json:"completed"`
}

// Task is a volunteer task with its embedded volunteer statuses keyed by volunteer uid.
type Task struct {
	ID             uuid.UUID                     `json:"id"`
	Title          string                        `json:"title"`
	Description    string                        `json:"description"`
	Date           time.Time                     `json:"date"`
	Time           string                        `json:"time"`     // HH:MM
	Duration       float64                       `json:"duration"` // hours
	Location       string                        `json:"location"`
	VolunteerSlots int                           `json:"volunteer_slots"`
	CoordinatorID  uuid.UUID                     `json:"coordinator_id"`
	CreatedAt      time.Time                     `json:"created_at"`
	Volunteers     map[uuid.UUID]VolunteerStatus `json:"volunteers"`
}

// SignupCount returns the number of volunteer statuses on the task.
func (t *Task) SignupCount() int {
	return len(t.Volunteers)
}

// IsFull reports whether every slot is taken.
func (t *Task) IsFull() bool {
	return t.SignupCount() >= t.VolunteerSlots
}

// SlotsRemaining never goes below zero.
func (t *Task) SlotsRemaining() int {
	if n := t.VolunteerSlots - t.SignupCount(); n > 0 {
		return n
	}
	return 0
}

// StatusOf returns the volunteer's status and whether they are signed up.
func (t *Task) StatusOf(uid uuid.UUID) (VolunteerStatus, bool) {
	s, ok := t.Volunteers[uid]
	return s, ok
}

// IsPast reports whether the task date falls before the start of now's day.
func (t *Task) IsPast(now time.Time) bool {
	return t.Date.Before(StartOfDay(now))
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
