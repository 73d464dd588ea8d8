package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/gemini"
	"github.com/cosmicconnect/backend/pkg/storage"
)

var (
	ErrGenerationFailed = errors.New("generation failed")
	ErrNotCompleted     = errors.New("volunteer has not completed this task")
	ErrNotTaskOwner     = errors.New("only the task's coordinator can generate reports")
	ErrForbidden        = errors.New("not allowed to view this report")
	ErrNotArchived      = errors.New("report has no archived copy")
)

var validate = validator.New()

// Generator produces schema-constrained JSON.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error)
}

// Store persists reports.
type Store interface {
	Create(ctx context.Context, rep *models.Report) error
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Latest(ctx context.Context, volunteerUID, taskID uuid.UUID) (*models.Report, error)
	ListByCoordinator(ctx context.Context, uid uuid.UUID) ([]*models.Report, error)
	ListByVolunteer(ctx context.Context, uid uuid.UUID) ([]*models.Report, error)
	List(ctx context.Context) ([]*models.Report, error)
}

// Tasks loads task aggregates.
type Tasks interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// Users resolves the volunteer being reviewed.
type Users interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

// Archive keeps a JSON copy of each report. Nil disables archiving.
type Archive interface {
	PutJSON(ctx context.Context, key string, body []byte) error
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
}

// Broadcaster pushes new reports to live subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, topic, event string, payload any)
}

// Topic is the per-coordinator report channel.
func Topic(coordinatorUID uuid.UUID) string {
	return "reports:" + coordinatorUID.String()
}

// Service generates and serves volunteer performance reports.
type Service struct {
	store   Store
	tasks   Tasks
	users   Users
	gen     Generator
	archive Archive
	events  Broadcaster
	logger  *zap.Logger
}

// NewService creates a reports service. archive may be nil.
func NewService(store Store, tasks Tasks, users Users, gen Generator, archive Archive, events Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tasks: tasks, users: users, gen: gen, archive: archive, events: events, logger: logger}
}

const reportPrompt = `You are a Volunteer Coordinator writing a performance review for a volunteer based on their work on a single task.

Volunteer's Email: %s

Task Details:
- Title: %s
- Description: %s
- Duration: %g hours
- Date: %s

Analyze the provided task information and generate a structured performance report focusing ONLY on this task.
1.  **Task Recap:**
    - Restate the task title.
    - Restate the completion date.
    - Set the status to 'Completed'.
2.  **Volunteer Performance Analysis:**
    - Write a brief, positive summary (2-3 sentences) of the volunteer's contribution to this specific mission.
    - Identify 2-3 key strength areas demonstrated during this task (e.g., 'Teamwork', 'Problem-Solving', 'Community Engagement').
    - Provide 1-2 constructive and encouraging suggestions for future roles based on their performance here.

Return the final analysis in the structured JSON format specified. The tone should be encouraging and appreciative.`

// BuildPrompt embeds the task and volunteer into the review prompt.
func BuildPrompt(volunteerEmail string, t *models.Task) string {
	return fmt.Sprintf(reportPrompt, volunteerEmail, t.Title, t.Description, t.Duration, t.Date.Format("January 2, 2006"))
}

// DecodeContent parses and validates model output. Anything that does not
// match the report shape is rejected.
func DecodeContent(raw []byte) (*models.ReportContent, error) {
	var c models.ReportContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrGenerationFailed, err)
	}
	trimContent(&c)
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return &c, nil
}

// trimContent strips surrounding whitespace so blank model output fails validation.
func trimContent(c *models.ReportContent) {
	r := &c.TaskRecap
	r.Title, r.Date, r.Status = strings.TrimSpace(r.Title), strings.TrimSpace(r.Date), strings.TrimSpace(r.Status)
	p := &c.VolunteerPerformance
	p.Summary = strings.TrimSpace(p.Summary)
	for i := range p.Strengths {
		p.Strengths[i] = strings.TrimSpace(p.Strengths[i])
	}
	for i := range p.Suggestions {
		p.Suggestions[i] = strings.TrimSpace(p.Suggestions[i])
	}
}

// Generate writes a new report for a completed (volunteer, task) pair.
// Earlier reports for the pair are kept.
func (s *Service) Generate(ctx context.Context, coordinatorUID, volunteerUID, taskID uuid.UUID) (*models.Report, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.CoordinatorID != coordinatorUID {
		return nil, ErrNotTaskOwner
	}
	st, ok := t.StatusOf(volunteerUID)
	if !ok || !st.Completed {
		return nil, ErrNotCompleted
	}
	volunteer, err := s.users.GetByID(ctx, volunteerUID)
	if err != nil {
		return nil, err
	}

	raw, err := s.gen.GenerateJSON(ctx, BuildPrompt(volunteer.Email, t), gemini.ReportSchema())
	if err != nil {
		if errors.Is(err, gemini.ErrNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	content, err := DecodeContent(raw)
	if err != nil {
		s.logger.Warn("rejected malformed report output", zap.String("task_id", taskID.String()), zap.Error(err))
		return nil, err
	}

	rep := &models.Report{
		VolunteerUID:   volunteerUID,
		TaskID:         taskID,
		CoordinatorUID: coordinatorUID,
		Content:        *content,
	}
	if err := s.store.Create(ctx, rep); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	s.archiveCopy(ctx, rep)
	s.logger.Info("report generated", zap.String("report_id", rep.ID.String()), zap.String("task_id", taskID.String()))
	s.events.Publish(ctx, Topic(coordinatorUID), "report_generated", rep)
	return rep, nil
}

func (s *Service) archiveCopy(ctx context.Context, rep *models.Report) {
	if s.archive == nil {
		return
	}
	body, err := json.Marshal(rep)
	if err != nil {
		s.logger.Error("encode report for archive", zap.Error(err))
		return
	}
	key := storage.ReportKey(rep.TaskID.String(), rep.ID.String())
	if err := s.archive.PutJSON(ctx, key, body); err != nil {
		s.logger.Warn("report archive failed", zap.String("report_id", rep.ID.String()), zap.Error(err))
		return
	}
	if err := s.store.SetArchiveKey(ctx, rep.ID, key); err != nil {
		s.logger.Warn("record archive key failed", zap.String("report_id", rep.ID.String()), zap.Error(err))
		return
	}
	rep.ArchiveKey = key
}

// List returns the reports visible to the session.
func (s *Service) List(ctx context.Context, sess *session.Session) ([]*models.Report, error) {
	switch sess.Role {
	case models.RoleAdmin:
		return s.store.List(ctx)
	case models.RoleCoordinator:
		return s.store.ListByCoordinator(ctx, sess.UID)
	default:
		return s.store.ListByVolunteer(ctx, sess.UID)
	}
}

// Latest returns the newest report for a pair.
func (s *Service) Latest(ctx context.Context, sess *session.Session, volunteerUID, taskID uuid.UUID) (*models.Report, error) {
	rep, err := s.store.Latest(ctx, volunteerUID, taskID)
	if err != nil {
		return nil, err
	}
	if !canView(sess, rep) {
		return nil, ErrForbidden
	}
	return rep, nil
}

// DownloadURL presigns the archived copy of a report.
func (s *Service) DownloadURL(ctx context.Context, sess *session.Session, reportID uuid.UUID) (string, error) {
	rep, err := s.store.GetByID(ctx, reportID)
	if err != nil {
		return "", err
	}
	if !canView(sess, rep) {
		return "", ErrForbidden
	}
	if s.archive == nil || rep.ArchiveKey == "" {
		return "", ErrNotArchived
	}
	return s.archive.PresignedDownloadURL(ctx, rep.ArchiveKey)
}

func canView(sess *session.Session, rep *models.Report) bool {
	switch sess.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCoordinator:
		return rep.CoordinatorUID == sess.UID
	default:
		return rep.VolunteerUID == sess.UID
	}
}
