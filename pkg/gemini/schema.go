package gemini

import "google.golang.org/genai"

func stringProp(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func stringList(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: description,
		Items:       &genai.Schema{Type: genai.TypeString},
	}
}

// ReportSchema constrains a volunteer performance report.
func ReportSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"taskRecap": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":  stringProp("The title of the task."),
					"date":   stringProp("The date of the task."),
					"status": stringProp("The completion status, e.g. 'Completed'."),
				},
				Required: []string{"title", "date", "status"},
			},
			"volunteerPerformance": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"summary":     stringProp("A 2-3 sentence summary of the volunteer's contribution."),
					"strengths":   stringList("2-3 key strengths demonstrated."),
					"suggestions": stringList("1-2 constructive suggestions for future tasks."),
				},
				Required: []string{"summary", "strengths", "suggestions"},
			},
		},
		Required: []string{"taskRecap", "volunteerPerformance"},
	}
}

// TaskDraftSchema constrains a generated task draft.
func TaskDraftSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       stringProp("A short, engaging title for the volunteer task."),
			"description": stringProp("A detailed description of what volunteers will do."),
			"location":    stringProp("A plausible location for the task."),
		},
		Required: []string{"title", "description", "location"},
	}
}
