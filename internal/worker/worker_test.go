package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cosmicconnect/backend/pkg/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// chanQueue hands out jobs from a channel and records retries.
type chanQueue struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-q.jobs:
		return j, nil
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (q *chanQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func (q *chanQueue) retries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.retried)
}

type fakeEmails struct {
	mu   sync.Mutex
	done []uuid.UUID
	fail map[uuid.UUID]bool
}

func (f *fakeEmails) Redeliver(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("provider rejected")
	}
	f.done = append(f.done, id)
	return nil
}

func (f *fakeEmails) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.done)
}

func redeliveryJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.EmailRedeliveryPayload{EmailLogID: id, RequestedBy: uuid.New()})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeEmailRedelivery, Payload: body}
}

func TestProcess_RejectsUnknownJob(t *testing.T) {
	p := NewEmailRedeliveryProcessor(&chanQueue{}, &fakeEmails{}, nil)
	err := p.Process(context.Background(), &queue.Job{Type: "report_archive"})
	assert.Error(t, err)
}

func TestRun_DeliversAndRetriesThenStops(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	q := &chanQueue{jobs: make(chan *queue.Job, 2)}
	emails := &fakeEmails{fail: map[uuid.UUID]bool{bad: true}}
	p := NewEmailRedeliveryProcessor(q, emails, nil)
	p.backoff = time.Millisecond

	q.jobs <- redeliveryJob(t, ok)
	q.jobs <- redeliveryJob(t, bad)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return emails.delivered() == 1 && q.retries() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, q.retried[0].Attempt)
}
