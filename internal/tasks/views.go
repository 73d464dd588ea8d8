package tasks

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/signups"
)

// Listing is the upcoming/past partition returned by every task list.
type Listing struct {
	Upcoming []*models.Task `json:"upcoming"`
	Past     []*models.Task `json:"past"`
}

// NewListing partitions list at now.
func NewListing(list []*models.Task, now time.Time) Listing {
	up, past := Partition(list, now)
	return Listing{Upcoming: up, Past: past}
}

// VolunteerTask is a task seen by one volunteer.
type VolunteerTask struct {
	*models.Task
	State          signups.State           `json:"state"`
	Status         *models.VolunteerStatus `json:"status,omitempty"`
	SlotsRemaining int                     `json:"slots_remaining"`
	FullyBooked    bool                    `json:"fully_booked"`
}

func volunteerTask(t *models.Task, uid uuid.UUID, now time.Time) VolunteerTask {
	vt := VolunteerTask{
		Task:           t,
		State:          signups.Derive(t, uid, now),
		SlotsRemaining: t.SlotsRemaining(),
		FullyBooked:    t.IsFull(),
	}
	if st, ok := t.StatusOf(uid); ok {
		vt.Status = &st
	}
	return vt
}

func volunteerTasks(list []*models.Task, uid uuid.UUID, now time.Time) []VolunteerTask {
	out := make([]VolunteerTask, 0, len(list))
	for _, t := range list {
		out = append(out, volunteerTask(t, uid, now))
	}
	return out
}

// VolunteerDashboard is GET /tasks/mine for a volunteer.
type VolunteerDashboard struct {
	Upcoming       []VolunteerTask `json:"upcoming"`
	Past           []VolunteerTask `json:"past"`
	CompletedCount int             `json:"completed_count"`
	TotalHours     float64         `json:"total_hours"`
}

// BuildVolunteerDashboard summarizes the tasks uid is signed up for.
func BuildVolunteerDashboard(list []*models.Task, uid uuid.UUID, now time.Time) VolunteerDashboard {
	mine := make([]*models.Task, 0, len(list))
	d := VolunteerDashboard{}
	for _, t := range list {
		st, ok := t.StatusOf(uid)
		if !ok {
			continue
		}
		mine = append(mine, t)
		if st.Completed {
			d.CompletedCount++
			d.TotalHours += t.Duration
		}
	}
	up, past := Partition(mine, now)
	d.Upcoming = volunteerTasks(up, uid, now)
	d.Past = volunteerTasks(past, uid, now)
	return d
}

// Available returns upcoming tasks uid could be interested in, soonest first.
func Available(list []*models.Task, uid uuid.UUID, now time.Time) []VolunteerTask {
	up, _ := Partition(list, now)
	out := make([]VolunteerTask, 0, len(up))
	for _, t := range up {
		if t.CoordinatorID == uid {
			continue
		}
		out = append(out, volunteerTask(t, uid, now))
	}
	return out
}

// VolunteerDetail joins a status with its user's address.
type VolunteerDetail struct {
	UID    uuid.UUID              `json:"uid"`
	Email  string                 `json:"email"`
	State  signups.State          `json:"state"`
	Status models.VolunteerStatus `json:"status"`
}

// CoordinatorTask is an owned task with its resolved volunteers.
type CoordinatorTask struct {
	*models.Task
	VolunteerDetails []VolunteerDetail `json:"volunteer_details"`
	SignedUp         int               `json:"signed_up"`
}

// ChartRow is one bar of a signups-per-task chart.
type ChartRow struct {
	TaskID   uuid.UUID `json:"task_id"`
	Title    string    `json:"title"`
	SignedUp int       `json:"signed_up"`
	Slots    int       `json:"slots"`
}

// CoordinatorDashboard is GET /tasks/mine for a coordinator.
type CoordinatorDashboard struct {
	Upcoming []CoordinatorTask `json:"upcoming"`
	Past     []CoordinatorTask `json:"past"`
	Chart    []ChartRow        `json:"chart"`
}

// Volunteers lists the distinct volunteer uids across list, for one batch lookup.
func Volunteers(list []*models.Task) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	out := []uuid.UUID{}
	for _, t := range list {
		for uid := range t.Volunteers {
			if _, ok := seen[uid]; !ok {
				seen[uid] = struct{}{}
				out = append(out, uid)
			}
		}
	}
	return out
}

// BuildCoordinatorDashboard resolves each task's volunteers against users.
// Volunteers whose user record no longer exists are left out.
func BuildCoordinatorDashboard(list []*models.Task, users map[uuid.UUID]*models.User, now time.Time) CoordinatorDashboard {
	up, past := Partition(list, now)
	d := CoordinatorDashboard{
		Upcoming: coordinatorTasks(up, users, now),
		Past:     coordinatorTasks(past, users, now),
		Chart:    make([]ChartRow, 0, len(list)),
	}
	for _, t := range up {
		d.Chart = append(d.Chart, ChartRow{TaskID: t.ID, Title: TruncateTitle(t.Title), SignedUp: t.SignupCount(), Slots: t.VolunteerSlots})
	}
	for _, t := range past {
		d.Chart = append(d.Chart, ChartRow{TaskID: t.ID, Title: TruncateTitle(t.Title), SignedUp: t.SignupCount(), Slots: t.VolunteerSlots})
	}
	return d
}

func coordinatorTasks(list []*models.Task, users map[uuid.UUID]*models.User, now time.Time) []CoordinatorTask {
	out := make([]CoordinatorTask, 0, len(list))
	for _, t := range list {
		ct := CoordinatorTask{Task: t, VolunteerDetails: []VolunteerDetail{}, SignedUp: t.SignupCount()}
		for uid, st := range t.Volunteers {
			u, ok := users[uid]
			if !ok {
				continue
			}
			ct.VolunteerDetails = append(ct.VolunteerDetails, VolunteerDetail{
				UID: uid, Email: u.Email, State: signups.Derive(t, uid, now), Status: st,
			})
		}
		sortDetails(ct.VolunteerDetails)
		out = append(out, ct)
	}
	return out
}

func sortDetails(d []VolunteerDetail) {
	sort.Slice(d, func(i, j int) bool {
		if !d[i].Status.SignedUpAt.Equal(d[j].Status.SignedUpAt) {
			return d[i].Status.SignedUpAt.Before(d[j].Status.SignedUpAt)
		}
		return d[i].Email < d[j].Email
	})
}

// TruncateTitle shortens long titles for chart labels.
func TruncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= 15 {
		return title
	}
	return string(r[:15]) + "..."
}
