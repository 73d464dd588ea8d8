package tasks

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/signups"
)

func TestBuildVolunteerDashboard(t *testing.T) {
	v := uuid.New()
	done := at(5)
	done.Duration = 2.5
	done.Volunteers[v] = models.VolunteerStatus{Completed: true}
	done2 := at(8)
	done2.Duration = 1
	done2.Volunteers[v] = models.VolunteerStatus{Completed: true}
	waiting := at(12)
	waiting.Volunteers[v] = models.VolunteerStatus{VerificationRequested: true}
	next := at(20)
	next.Volunteers[v] = models.VolunteerStatus{}
	other := at(21)

	d := BuildVolunteerDashboard([]*models.Task{done, done2, waiting, next, other}, v, now)

	assert.Equal(t, 2, d.CompletedCount)
	assert.InDelta(t, 3.5, d.TotalHours, 1e-9)
	require.Len(t, d.Upcoming, 1)
	assert.Equal(t, next.ID, d.Upcoming[0].ID)
	assert.Equal(t, signups.StateSignedUp, d.Upcoming[0].State)
	require.Len(t, d.Past, 3)
	assert.Equal(t, waiting.ID, d.Past[0].ID)
	assert.Equal(t, signups.StateVerificationRequested, d.Past[0].State)
}

func TestAvailable(t *testing.T) {
	v := uuid.New()
	own := at(20)
	own.CoordinatorID = v
	full := at(19)
	full.VolunteerSlots = 1
	full.Volunteers[uuid.New()] = models.VolunteerStatus{}
	open := at(18)
	open.VolunteerSlots = 4
	past := at(1)

	list := Available([]*models.Task{own, full, open, past}, v, now)

	require.Len(t, list, 2)
	assert.Equal(t, open.ID, list[0].ID)
	assert.Equal(t, 4, list[0].SlotsRemaining)
	assert.True(t, list[1].FullyBooked)
	assert.Equal(t, 0, list[1].SlotsRemaining)
}

func TestBuildCoordinatorDashboard_SkipsDeletedVolunteers(t *testing.T) {
	alive, gone := uuid.New(), uuid.New()
	tk := at(20)
	tk.Title = "Community Garden Planting Day"
	tk.VolunteerSlots = 5
	tk.Volunteers[alive] = models.VolunteerStatus{SignedUpAt: now}
	tk.Volunteers[gone] = models.VolunteerStatus{SignedUpAt: now}
	users := map[uuid.UUID]*models.User{alive: {UID: alive, Email: "a@example.com"}}

	d := BuildCoordinatorDashboard([]*models.Task{tk}, users, now)

	require.Len(t, d.Upcoming, 1)
	require.Len(t, d.Upcoming[0].VolunteerDetails, 1)
	assert.Equal(t, "a@example.com", d.Upcoming[0].VolunteerDetails[0].Email)
	assert.Equal(t, 2, d.Upcoming[0].SignedUp)
	require.Len(t, d.Chart, 1)
	assert.Equal(t, "Community Garde...", d.Chart[0].Title)
	assert.Equal(t, 5, d.Chart[0].Slots)
}

func TestVolunteers_Distinct(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	t1, t2 := at(1), at(2)
	t1.Volunteers[a] = models.VolunteerStatus{}
	t2.Volunteers[a] = models.VolunteerStatus{}
	t2.Volunteers[b] = models.VolunteerStatus{}

	assert.ElementsMatch(t, []uuid.UUID{a, b}, Volunteers([]*models.Task{t1, t2}))
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "Short", TruncateTitle("Short"))
	assert.Equal(t, "Exactly fifteen", TruncateTitle("Exactly fifteen"))
	assert.Equal(t, "Sixteen charact...", TruncateTitle("Sixteen characte"))
}
