package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/mailer"
)

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (mailer.Result, error) {
	if f.err != nil {
		return mailer.Result{}, f.err
	}
	f.sent = append(f.sent, msg)
	return mailer.Result{MessageID: "msg-1", Message: "Email sent successfully."}, nil
}

type fakeLogs struct {
	rows map[uuid.UUID]*models.EmailLog
}

func newFakeLogs() *fakeLogs { return &fakeLogs{rows: map[uuid.UUID]*models.EmailLog{}} }

func (f *fakeLogs) Create(_ context.Context, el *models.EmailLog) error {
	el.ID = uuid.New()
	el.Status = models.EmailLogStatusPending
	f.rows[el.ID] = el
	return nil
}

func (f *fakeLogs) MarkSent(_ context.Context, id uuid.UUID) error {
	f.rows[id].Status = models.EmailLogStatusSent
	return nil
}

func (f *fakeLogs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.rows[id].Status = models.EmailLogStatusFailed
	f.rows[id].ErrorMessage = reason
	return nil
}

func (f *fakeLogs) GetByID(_ context.Context, id uuid.UUID) (*models.EmailLog, error) {
	el, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return el, nil
}

func TestSendCompletionEmail_RendersAndLogs(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	n := NewNotifier(sender, logs, zap.NewNop())

	out, err := n.SendCompletionEmail(context.Background(), CompletionEmail{
		TaskID:          uuid.New(),
		VolunteerUID:    uuid.New(),
		To:              "vera@example.com",
		TaskTitle:       "Beach Cleanup",
		CoordinatorName: "carla",
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, `Your contribution for "Beach Cleanup" has been verified!`, msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>Beach Cleanup</strong>")
	assert.Contains(t, msg.HTML, "vera")
	assert.Contains(t, msg.HTML, "carla")
	assert.Equal(t, models.EmailLogStatusSent, logs.rows[out.LogID].Status)
}

func TestSendCompletionEmail_MissingParameters(t *testing.T) {
	n := NewNotifier(&fakeSender{}, newFakeLogs(), nil)

	_, err := n.SendCompletionEmail(context.Background(), CompletionEmail{To: "v@example.com", TaskTitle: "x"})
	assert.ErrorIs(t, err, ErrMissingParameters)
}

func TestSendCompletionEmail_DeliveryFailureIsReportedNotReturned(t *testing.T) {
	logs := newFakeLogs()
	n := NewNotifier(&fakeSender{err: errors.New("provider down")}, logs, nil)

	out, err := n.SendCompletionEmail(context.Background(), CompletionEmail{
		To: "v@example.com", TaskTitle: "Food Drive", CoordinatorName: "c",
	})
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, models.EmailLogStatusFailed, logs.rows[out.LogID].Status)
	assert.Equal(t, "provider down", logs.rows[out.LogID].ErrorMessage)
}

func TestRecordUndeliverable_WritesFailedRowWithoutSending(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	n := NewNotifier(sender, logs, nil)
	taskID, uid := uuid.New(), uuid.New()

	out := n.RecordUndeliverable(context.Background(), CompletionEmail{
		TaskID: taskID, VolunteerUID: uid, TaskTitle: "Food Drive", CoordinatorName: "c",
	}, "volunteer lookup failed: not found")

	assert.False(t, out.Success)
	assert.Empty(t, sender.sent)
	row := logs.rows[out.LogID]
	require.NotNil(t, row)
	assert.Equal(t, models.EmailLogStatusFailed, row.Status)
	assert.Equal(t, models.EmailTypeCompletion, row.EmailType)
	assert.Equal(t, taskID, *row.TaskID)
	assert.Equal(t, uid, *row.VolunteerUID)
	assert.Equal(t, "volunteer lookup failed: not found", row.ErrorMessage)
}

func TestRedeliver(t *testing.T) {
	logs := newFakeLogs()
	failing := &fakeSender{err: errors.New("timeout")}
	n := NewNotifier(failing, logs, nil)
	out, err := n.SendVerificationEmail(context.Background(), "v@example.com", "http://localhost:3000/verify-email?token=abc")
	require.NoError(t, err)
	require.False(t, out.Success)

	err = n.Redeliver(context.Background(), out.LogID)
	assert.Error(t, err)

	ok := &fakeSender{}
	n = NewNotifier(ok, logs, nil)
	require.NoError(t, n.Redeliver(context.Background(), out.LogID))
	assert.Len(t, ok.sent, 1)
	assert.Equal(t, models.EmailLogStatusSent, logs.rows[out.LogID].Status)

	// already sent: nothing goes out again
	require.NoError(t, n.Redeliver(context.Background(), out.LogID))
	assert.Len(t, ok.sent, 1)

	assert.ErrorIs(t, n.Redeliver(context.Background(), uuid.New()), models.ErrNotFound)
}

func TestSendPasswordResetEmail_ContainsLink(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, newFakeLogs(), nil)

	_, err := n.SendPasswordResetEmail(context.Background(), "admin@example.com", "http://localhost:3000/admin/reset?token=t1")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].HTML, `href="http://localhost:3000/admin/reset?token=t1"`)
}
