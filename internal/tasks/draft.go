package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"

	"github.com/cosmicconnect/backend/pkg/gemini"
)

// ErrPromptTooShort is returned for prompts under ten characters.
var ErrPromptTooShort = errors.New("please describe the task in more detail")

// ErrDraftFailed wraps unusable model output.
var ErrDraftFailed = errors.New("generation failed")

// Generator produces schema-constrained JSON.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error)
}

// Draft is an AI-suggested starting point for a new task.
type Draft struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location" validate:"required"`
}

var validate = validator.New()

const draftPrompt = `You are an expert at creating engaging volunteer opportunities. Based on the user's prompt, generate a creative task title, a detailed description, and a suitable location.

Prompt: %s

Generate a response with:
- title: A creative and engaging title for the volunteer task
- description: A detailed, one-paragraph description of the task, explaining what volunteers will do
- location: A plausible, fictional or real-world location for the event

The tone should be inspiring and community-focused. The location should make sense for the task described.`

// GenerateDraft asks the model for a title, description and location matching prompt.
func GenerateDraft(ctx context.Context, gen Generator, prompt string) (*Draft, error) {
	prompt = strings.TrimSpace(prompt)
	if len([]rune(prompt)) < 10 {
		return nil, ErrPromptTooShort
	}
	raw, err := gen.GenerateJSON(ctx, fmt.Sprintf(draftPrompt, prompt), gemini.TaskDraftSchema())
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDraftFailed, err)
	}
	if err := validate.Struct(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDraftFailed, err)
	}
	return &d, nil
}
