package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestNewClient_WithoutKeyIsUnconfigured(t *testing.T) {
	c, err := NewClient(context.Background(), "", "", zap.NewNop())
	require.NoError(t, err)

	assert.False(t, c.Configured())
	assert.Equal(t, DefaultModel, c.model)

	_, err = c.GenerateJSON(context.Background(), "prompt", TaskDraftSchema())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestReportSchema_RequiresBothSections(t *testing.T) {
	s := ReportSchema()

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"taskRecap", "volunteerPerformance"}, s.Required)
	perf := s.Properties["volunteerPerformance"]
	require.NotNil(t, perf)
	assert.Equal(t, genai.TypeArray, perf.Properties["strengths"].Type)
	assert.Equal(t, genai.TypeString, perf.Properties["suggestions"].Items.Type)
}

func TestTaskDraftSchema_Fields(t *testing.T) {
	assert.ElementsMatch(t, []string{"title", "description", "location"}, TaskDraftSchema().Required)
}
