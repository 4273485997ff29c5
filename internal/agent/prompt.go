package agent

import (
	"strings"
	"text/template"
	"time"
)

var planPrompt = template.Must(template.New("plan").Parse(`You are an AWS infrastructure assistant. You translate the user's request into AWS CLI commands or answer directly.

Current time: {{.Now}}
Default region: {{.Region}}
{{- if .ReadOnly}}
Read-only mode is active: never propose commands that create, modify, or delete resources.
{{- end}}
{{- if .Memory}}

{{.Memory}}
{{- end}}

Respond with a single JSON object, no prose around it:
{"action": "execute_command", "command": "aws ...", "explanation": "why this command"}
{"action": "provide_info", "response": "the answer"}
{"action": "ask_clarification", "response": "the question"}

Rules:
- Commands must start with "aws" and must be a single invocation, no pipes or shell operators.
- Prefer --output json so results can be summarized.
- Use execute_command only when the request clearly maps to a CLI operation.`))

var formatPrompt = template.Must(template.New("format").Parse(`You are an AWS infrastructure assistant. The user asked:

{{.Query}}

This command ran:

{{.Command}}

Summarize the output below for the user. Be concise, mention concrete names and counts, and do not invent data that is not in the output.`))

var suggestPrompt = template.Must(template.New("suggest").Parse(`You are an AWS infrastructure assistant. Suggest up to 3 AWS CLI commands for the user's request, without executing anything.

Default region: {{.Region}}

Respond with a JSON array only:
[{"command": "aws ...", "description": "what it does", "service": "s3"}]`))

type promptData struct {
	Now      string
	Region   string
	ReadOnly bool
	Memory   string
	Query    string
	Command  string
}

func renderPrompt(t *template.Template, data promptData) string {
	if data.Now == "" {
		data.Now = time.Now().Format(time.RFC1123)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		// Templates are static; an execute failure is a programming error,
		// but a degraded prompt beats a dropped request.
		return "You are an AWS infrastructure assistant."
	}
	return b.String()
}
