package tasks

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cosmicconnect/backend/internal/models"
)

// DateLayout is the wire format of a task date.
const DateLayout = "2006-01-02"

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// CreateInput is the body for POST /tasks.
type CreateInput struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Duration       float64 `json:"duration"`
	Location       string  `json:"location"`
	VolunteerSlots int     `json:"volunteer_slots"`
}

// Validate checks the input against today's date in loc and returns per-field messages
// plus the parsed date. A nil map means the input is valid.
func (in *CreateInput) Validate(now time.Time, loc *time.Location) (map[string]string, time.Time) {
	fields := map[string]string{}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Time = strings.TrimSpace(in.Time)

	if len([]rune(in.Title)) < 5 {
		fields["title"] = "Title must be at least 5 characters."
	}
	if len([]rune(in.Description)) < 10 {
		fields["description"] = "Description must be at least 10 characters."
	}
	if len([]rune(in.Location)) < 3 {
		fields["location"] = "Location is required."
	}
	if !timeOfDay.MatchString(in.Time) {
		fields["time"] = "Invalid time format (HH:MM)."
	}
	if in.Duration < 0.5 {
		fields["duration"] = "Duration must be at least 0.5 hours."
	}
	if in.VolunteerSlots < 1 {
		fields["volunteer_slots"] = "At least one volunteer slot is required."
	}
	date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(in.Date), loc)
	switch {
	case err != nil:
		fields["date"] = "A date is required (YYYY-MM-DD)."
	case date.Before(models.StartOfDay(now.In(loc))):
		fields["date"] = "Date cannot be in the past."
	}
	if len(fields) == 0 {
		return nil, date
	}
	return fields, date
}

// Partition splits tasks into upcoming (ascending by date) and past (most recent first).
func Partition(list []*models.Task, now time.Time) (upcoming, past []*models.Task) {
	upcoming, past = []*models.Task{}, []*models.Task{}
	for _, t := range list {
		if t.IsPast(now) {
			past = append(past, t)
		} else {
			upcoming = append(upcoming, t)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return earlier(upcoming[i], upcoming[j]) })
	sort.SliceStable(past, func(i, j int) bool { return earlier(past[j], past[i]) })
	return upcoming, past
}

func earlier(a, b *models.Task) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Time < b.Time
}
