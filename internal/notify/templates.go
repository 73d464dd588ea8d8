package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var (
	completionTmpl = template.Must(template.New("completion").Parse(`# Great work, {{.VolunteerName}}!

Your participation in **{{.TaskTitle}}** has been verified by {{.CoordinatorName}}.

Thank you for your time and effort. Your contribution makes a real difference to the community.

_The CosmicConnect team_
`))

	verificationTmpl = template.Must(template.New("verification").Parse(`# Confirm your email

Welcome to CosmicConnect. Please confirm your address to start using your dashboard:

[Verify my email]({{.Link}})

This link expires in 24 hours.
`))

	resetTmpl = template.Must(template.New("reset").Parse(`# Reset your admin password

A password reset was requested for this admin account.

[Choose a new password]({{.Link}})

This link expires in 1 hour. If you did not request it you can ignore this email.
`))
)

// CompletionSubject is the subject line of the completion email.
func CompletionSubject(taskTitle string) string {
	return fmt.Sprintf(`Your contribution for "%s" has been verified!`, taskTitle)
}

func render(t *template.Template, data any) (string, error) {
	var src bytes.Buffer
	if err := t.Execute(&src, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", t.Name(), err)
	}
	var out strings.Builder
	if err := md.Convert(src.Bytes(), &out); err != nil {
		return "", fmt.Errorf("render %s markdown: %w", t.Name(), err)
	}
	return out.String(), nil
}
