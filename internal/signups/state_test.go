package signups

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cosmicconnect/backend/internal/models"
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func task(date time.Time, slots int) *models.Task {
	return &models.Task{
		ID:             uuid.New(),
		Date:           date,
		VolunteerSlots: slots,
		CoordinatorID:  uuid.New(),
		Volunteers:     map[uuid.UUID]models.VolunteerStatus{},
	}
}

func TestDerive(t *testing.T) {
	v := uuid.New()
	upcoming := task(now.Add(48*time.Hour), 2)
	past := task(now.Add(-48*time.Hour), 2)
	today := task(models.StartOfDay(now), 2)

	assert.Equal(t, StateNotSignedUp, Derive(upcoming, v, now))

	upcoming.Volunteers[v] = models.VolunteerStatus{SignedUpAt: now}
	assert.Equal(t, StateSignedUp, Derive(upcoming, v, now))

	today.Volunteers[v] = models.VolunteerStatus{SignedUpAt: now}
	assert.Equal(t, StateSignedUp, Derive(today, v, now), "a task dated today is still upcoming")

	past.Volunteers[v] = models.VolunteerStatus{SignedUpAt: now}
	assert.Equal(t, StateAwaitingRequest, Derive(past, v, now))

	past.Volunteers[v] = models.VolunteerStatus{VerificationRequested: true}
	assert.Equal(t, StateVerificationRequested, Derive(past, v, now))

	past.Volunteers[v] = models.VolunteerStatus{Completed: true}
	assert.Equal(t, StateCompleted, Derive(past, v, now))
}

func TestCanSignUp(t *testing.T) {
	v := uuid.New()
	tk := task(now.Add(24*time.Hour), 1)

	assert.NoError(t, CanSignUp(tk, v, now))
	assert.ErrorIs(t, CanSignUp(tk, tk.CoordinatorID, now), ErrOwnTask)
	assert.ErrorIs(t, CanSignUp(task(now.Add(-24*time.Hour), 1), v, now), ErrTaskNotUpcoming)

	tk.Volunteers[v] = models.VolunteerStatus{SignedUpAt: now}
	assert.ErrorIs(t, CanSignUp(tk, v, now), models.ErrAlreadySignedUp)
	assert.ErrorIs(t, CanSignUp(tk, uuid.New(), now), models.ErrTaskFull)
}

func TestCanCancel(t *testing.T) {
	v := uuid.New()
	up := task(now.Add(24*time.Hour), 3)
	assert.ErrorIs(t, CanCancel(up, v, now), ErrNotSignedUp)

	up.Volunteers[v] = models.VolunteerStatus{SignedUpAt: now}
	assert.NoError(t, CanCancel(up, v, now))

	past := task(now.Add(-24*time.Hour), 3)
	past.Volunteers[v] = models.VolunteerStatus{}
	assert.ErrorIs(t, CanCancel(past, v, now), ErrTaskDatePassed)
	past.Volunteers[v] = models.VolunteerStatus{VerificationRequested: true}
	assert.ErrorIs(t, CanCancel(past, v, now), ErrVerificationPending)
	past.Volunteers[v] = models.VolunteerStatus{Completed: true}
	assert.ErrorIs(t, CanCancel(past, v, now), ErrAlreadyCompleted)
}

func TestCanRequestVerification(t *testing.T) {
	v := uuid.New()
	up := task(now.Add(24*time.Hour), 3)
	up.Volunteers[v] = models.VolunteerStatus{}
	assert.ErrorIs(t, CanRequestVerification(up, v, now), ErrTaskNotPast)

	past := task(now.Add(-24*time.Hour), 3)
	assert.ErrorIs(t, CanRequestVerification(past, v, now), ErrNotSignedUp)
	past.Volunteers[v] = models.VolunteerStatus{}
	assert.NoError(t, CanRequestVerification(past, v, now))
	past.Volunteers[v] = models.VolunteerStatus{VerificationRequested: true}
	assert.ErrorIs(t, CanRequestVerification(past, v, now), ErrVerificationPending)
}

func TestCanVerify(t *testing.T) {
	v := uuid.New()
	past := task(now.Add(-24*time.Hour), 3)
	past.Volunteers[v] = models.VolunteerStatus{}

	assert.ErrorIs(t, CanVerify(past, uuid.New(), v, now), ErrNotTaskOwner)
	assert.ErrorIs(t, CanVerify(past, past.CoordinatorID, v, now), ErrVerificationNotRequested)
	assert.ErrorIs(t, CanVerify(past, past.CoordinatorID, uuid.New(), now), ErrNotSignedUp)

	past.Volunteers[v] = models.VolunteerStatus{VerificationRequested: true}
	assert.NoError(t, CanVerify(past, past.CoordinatorID, v, now))

	past.Volunteers[v] = models.VolunteerStatus{Completed: true}
	assert.ErrorIs(t, CanVerify(past, past.CoordinatorID, v, now), ErrAlreadyCompleted)
}
