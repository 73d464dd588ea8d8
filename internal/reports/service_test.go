package reports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
)

const validReport = `{
  "taskRecap": {"title": "Beach Cleanup", "date": "March 1, 2025", "status": "Completed"},
  "volunteerPerformance": {
    "summary": "Showed up early and kept the team moving.",
    "strengths": ["Teamwork", "Reliability"],
    "suggestions": ["Lead a sorting station next time"]
  }
}`

type memReports struct {
	list     []*models.Report
	archived map[uuid.UUID]string
}

func (m *memReports) Create(_ context.Context, rep *models.Report) error {
	rep.ID = uuid.New()
	rep.GeneratedAt = time.Now()
	m.list = append(m.list, rep)
	return nil
}

func (m *memReports) SetArchiveKey(_ context.Context, id uuid.UUID, key string) error {
	if m.archived == nil {
		m.archived = map[uuid.UUID]string{}
	}
	m.archived[id] = key
	return nil
}

func (m *memReports) GetByID(_ context.Context, id uuid.UUID) (*models.Report, error) {
	for _, r := range m.list {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memReports) Latest(_ context.Context, volunteerUID, taskID uuid.UUID) (*models.Report, error) {
	for i := len(m.list) - 1; i >= 0; i-- {
		r := m.list[i]
		if r.VolunteerUID == volunteerUID && r.TaskID == taskID {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memReports) filter(keep func(*models.Report) bool) []*models.Report {
	var out []*models.Report
	for _, r := range m.list {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memReports) ListByCoordinator(_ context.Context, uid uuid.UUID) ([]*models.Report, error) {
	return m.filter(func(r *models.Report) bool { return r.CoordinatorUID == uid }), nil
}

func (m *memReports) ListByVolunteer(_ context.Context, uid uuid.UUID) ([]*models.Report, error) {
	return m.filter(func(r *models.Report) bool { return r.VolunteerUID == uid }), nil
}

func (m *memReports) List(context.Context) ([]*models.Report, error) {
	return m.list, nil
}

type memTasks map[uuid.UUID]*models.Task

func (m memTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	if t, ok := m[id]; ok {
		return t, nil
	}
	return nil, models.ErrNotFound
}

type memUsers map[uuid.UUID]*models.User

func (m memUsers) GetByID(_ context.Context, uid uuid.UUID) (*models.User, error) {
	if u, ok := m[uid]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type stubGenerator struct {
	out    string
	err    error
	prompt string
}

func (g *stubGenerator) GenerateJSON(_ context.Context, prompt string, schema *genai.Schema) ([]byte, error) {
	g.prompt = prompt
	if g.err != nil {
		return nil, g.err
	}
	return []byte(g.out), nil
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memArchive) PutJSON(_ context.Context, key string, body []byte) error {
	if a.err != nil {
		return a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = body
	return nil
}

func (a *memArchive) PresignedDownloadURL(_ context.Context, key string) (string, error) {
	return "https://example.test/" + key, nil
}

type recorder struct {
	topics []string
}

func (r *recorder) Publish(_ context.Context, topic, event string, _ any) {
	r.topics = append(r.topics, topic+"/"+event)
}

type fixture struct {
	svc         *Service
	store       *memReports
	gen         *stubGenerator
	archive     *memArchive
	events      *recorder
	coordinator uuid.UUID
	volunteer   uuid.UUID
	task        *models.Task
}

func newFixture(t *testing.T, completed bool) *fixture {
	t.Helper()
	f := &fixture{
		store:       &memReports{},
		gen:         &stubGenerator{out: validReport},
		archive:     &memArchive{},
		events:      &recorder{},
		coordinator: uuid.New(),
		volunteer:   uuid.New(),
	}
	f.task = &models.Task{
		ID:            uuid.New(),
		Title:         "Beach Cleanup",
		Description:   "Collect litter along the shore",
		Date:          time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Duration:      3,
		CoordinatorID: f.coordinator,
		Volunteers: map[uuid.UUID]models.VolunteerStatus{
			f.volunteer: {Completed: completed, VerificationRequested: !completed},
		},
	}
	users := memUsers{f.volunteer: {UID: f.volunteer, Email: "vol@example.com", Role: models.RoleVolunteer}}
	f.svc = NewService(f.store, memTasks{f.task.ID: f.task}, users, f.gen, f.archive, f.events, zap.NewNop())
	return f
}

func TestGenerate_PersistsArchivesAndPublishes(t *testing.T) {
	f := newFixture(t, true)

	rep, err := f.svc.Generate(context.Background(), f.coordinator, f.volunteer, f.task.ID)
	require.NoError(t, err)

	assert.Equal(t, "Beach Cleanup", rep.Content.TaskRecap.Title)
	assert.Len(t, rep.Content.VolunteerPerformance.Strengths, 2)
	assert.Len(t, f.store.list, 1)
	assert.NotEmpty(t, rep.ArchiveKey)
	assert.Contains(t, f.archive.objects, rep.ArchiveKey)
	assert.Equal(t, []string{Topic(f.coordinator) + "/report_generated"}, f.events.topics)

	assert.Contains(t, f.gen.prompt, "vol@example.com")
	assert.Contains(t, f.gen.prompt, "March 1, 2025")
	assert.Contains(t, f.gen.prompt, "Duration: 3 hours")
}

func TestGenerate_KeepsEarlierReports(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.Generate(ctx, f.coordinator, f.volunteer, f.task.ID)
	require.NoError(t, err)
	second, err := f.svc.Generate(ctx, f.coordinator, f.volunteer, f.task.ID)
	require.NoError(t, err)

	assert.Len(t, f.store.list, 2)
	latest, err := f.svc.Latest(ctx, &session.Session{UID: f.coordinator, Role: models.RoleCoordinator}, f.volunteer, f.task.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGenerate_MalformedOutputIsNotPersisted(t *testing.T) {
	cases := map[string]string{
		"not json":          "Here is your report!",
		"missing strengths": `{"taskRecap":{"title":"a","date":"b","status":"Completed"},"volunteerPerformance":{"summary":"s","strengths":[],"suggestions":["x"]}}`,
		"missing recap":     `{"volunteerPerformance":{"summary":"s","strengths":["a"],"suggestions":["x"]}}`,
		"blank summary":     `{"taskRecap":{"title":"a","date":"b","status":"Completed"},"volunteerPerformance":{"summary":"   ","strengths":["a"],"suggestions":["x"]}}`,
		"blank strength":    `{"taskRecap":{"title":"a","date":"b","status":"Completed"},"volunteerPerformance":{"summary":"s","strengths":[" \n\t"],"suggestions":["x"]}}`,
		"blank recap title": `{"taskRecap":{"title":"  ","date":"b","status":"Completed"},"volunteerPerformance":{"summary":"s","strengths":["a"],"suggestions":["x"]}}`,
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, true)
			f.gen.out = out

			_, err := f.svc.Generate(context.Background(), f.coordinator, f.volunteer, f.task.ID)
			require.ErrorIs(t, err, ErrGenerationFailed)
			assert.Empty(t, f.store.list)
			assert.Empty(t, f.events.topics)
		})
	}
}

func TestGenerate_UpstreamErrorIsGenerationFailure(t *testing.T) {
	f := newFixture(t, true)
	f.gen.err = errors.New("quota exceeded")

	_, err := f.svc.Generate(context.Background(), f.coordinator, f.volunteer, f.task.ID)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, f.store.list)
}

func TestGenerate_Preconditions(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Generate(context.Background(), f.coordinator, f.volunteer, f.task.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	f = newFixture(t, true)
	_, err = f.svc.Generate(context.Background(), uuid.New(), f.volunteer, f.task.ID)
	assert.ErrorIs(t, err, ErrNotTaskOwner)

	_, err = f.svc.Generate(context.Background(), f.coordinator, uuid.New(), f.task.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestGenerate_ArchiveFailureKeepsReport(t *testing.T) {
	f := newFixture(t, true)
	f.archive.err = errors.New("s3 down")

	rep, err := f.svc.Generate(context.Background(), f.coordinator, f.volunteer, f.task.ID)
	require.NoError(t, err)
	assert.Empty(t, rep.ArchiveKey)
	assert.Len(t, f.store.list, 1)

	_, err = f.svc.DownloadURL(context.Background(), &session.Session{UID: f.coordinator, Role: models.RoleCoordinator}, rep.ID)
	assert.ErrorIs(t, err, ErrNotArchived)
}

func TestListAndAccess_ScopedByRole(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	rep, err := f.svc.Generate(ctx, f.coordinator, f.volunteer, f.task.ID)
	require.NoError(t, err)

	other := &session.Session{UID: uuid.New(), Role: models.RoleCoordinator}
	list, err := f.svc.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.List(ctx, &session.Session{UID: f.volunteer, Role: models.RoleVolunteer})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(ctx, &session.Session{UID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Latest(ctx, other, f.volunteer, f.task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	url, err := f.svc.DownloadURL(ctx, &session.Session{UID: f.volunteer, Role: models.RoleVolunteer}, rep.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".json"))
}

func TestDecodeContent_TrimsFields(t *testing.T) {
	c, err := DecodeContent([]byte(`{"taskRecap":{"title":" Beach Cleanup ","date":"2026-01-10","status":"Completed"},"volunteerPerformance":{"summary":"Steady.\n","strengths":["  punctual"],"suggestions":["lead a team "]}}`))
	require.NoError(t, err)
	assert.Equal(t, "Beach Cleanup", c.TaskRecap.Title)
	assert.Equal(t, "Steady.", c.VolunteerPerformance.Summary)
	assert.Equal(t, []string{"punctual"}, c.VolunteerPerformance.Strengths)
	assert.Equal(t, []string{"lead a team"}, c.VolunteerPerformance.Suggestions)
}
