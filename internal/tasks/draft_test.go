package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/cosmicconnect/backend/pkg/gemini"
)

type cannedGenerator struct {
	out    string
	err    error
	calls  int
	prompt string
}

func (g *cannedGenerator) GenerateJSON(_ context.Context, prompt string, _ *genai.Schema) ([]byte, error) {
	g.calls++
	g.prompt = prompt
	return []byte(g.out), g.err
}

func TestGenerateDraft(t *testing.T) {
	gen := &cannedGenerator{out: `{"title":"Riverbank Revival","description":"Help clear invasive plants.","location":"Mill Creek Park"}`}

	d, err := GenerateDraft(context.Background(), gen, "  river cleanup on saturday  ")
	require.NoError(t, err)
	assert.Equal(t, "Riverbank Revival", d.Title)
	assert.Equal(t, "Mill Creek Park", d.Location)
	assert.Contains(t, gen.prompt, "Prompt: river cleanup on saturday\n")
}

func TestGenerateDraft_ShortPromptSkipsModel(t *testing.T) {
	gen := &cannedGenerator{}
	_, err := GenerateDraft(context.Background(), gen, "  park   ")
	assert.ErrorIs(t, err, ErrPromptTooShort)
	assert.Zero(t, gen.calls)
}

func TestGenerateDraft_RejectsIncompleteOutput(t *testing.T) {
	gen := &cannedGenerator{out: `{"title":"Riverbank Revival","description":""}`}
	_, err := GenerateDraft(context.Background(), gen, "river cleanup on saturday")
	assert.ErrorIs(t, err, ErrDraftFailed)

	gen.out = "sure! here's a task"
	_, err = GenerateDraft(context.Background(), gen, "river cleanup on saturday")
	assert.ErrorIs(t, err, ErrDraftFailed)
}

func TestGenerateDraft_NotConfiguredPassesThrough(t *testing.T) {
	gen := &cannedGenerator{err: gemini.ErrNotConfigured}
	_, err := GenerateDraft(context.Background(), gen, "river cleanup on saturday")
	assert.ErrorIs(t, err, gemini.ErrNotConfigured)
}
