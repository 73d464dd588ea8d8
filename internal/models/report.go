package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskRecap restates the task in a generated report.
type TaskRecap struct {
	Title  string `json:"title" validate:"required"`
	Date   string `json:"date" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// VolunteerPerformance is the qualitative part of a generated report.
type VolunteerPerformance struct {
	Summary     string   `json:"summary" validate:"required"`
	Strengths   []string `json:"strengths" validate:"required,min=1,dive,required"`
	Suggestions []string `json:"suggestions" validate:"required,min=1,dive,required"`
}

// ReportContent is the structured recap returned by the generative API.
// Field names follow the JSON schema sent with the request.
type ReportContent struct {
	TaskRecap            TaskRecap            `json:"taskRecap" validate:"required"`
	VolunteerPerformance VolunteerPerformance `json:"volunteerPerformance" validate:"required"`
}

// Report is a persisted AI-authored performance summary for one (volunteer, task) pair.
// Reports are append-only; several may exist for the same pair.
type Report struct {
	ID             uuid.UUID     `json:"report_id"`
	VolunteerUID   uuid.UUID     `json:"volunteer_uid"`
	TaskID         uuid.UUID     `json:"task_id"`
	CoordinatorUID uuid.UUID     `json:"coordinator_uid"`
	GeneratedAt    time.Time     `json:"generated_at"`
	Content        ReportContent `json:"report_content"`
	ArchiveKey     string        `json:"archive_key,omitempty"`
}
