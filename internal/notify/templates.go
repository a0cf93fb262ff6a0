package notify

import (
	"fmt"
	"strings"
	"text/template"
)

// emailTemplate — пара subject/body для одного типа письма.
type emailTemplate struct {
	subject string
	body    string
}

var templates = map[TemplateKey]emailTemplate{
	TemplateNewForm: {
		subject: "{{.title}}",
		body: `Hello,

You have received a form to fill in: {{.title}}.
{{if .description}}
{{.description}}
{{end}}
Please answer here: {{.form_url}}

Thank you.`,
	},
	TemplateReminder: {
		subject: "Reminder {{.seq}}: {{.title}}",
		body: `Hello,

This is reminder {{.seq}} about the form you received: {{.title}}.

It has not been answered yet. Please answer here: {{.form_url}}

Thank you.`,
	},
	TemplateEscalation: {
		subject: "Escalation: {{.title}}",
		body: `Hello,

The form "{{.title}}" sent to {{.user_email}} has not been answered
despite the scheduled reminders.

Form link: {{.form_url}}

This message was sent to you as the escalation contact.`,
	},
}

// Render рендерит шаблон письма. Возвращает subject и body.
func Render(key TemplateKey, data map[string]any) (string, string, error) {
	tpl, ok := templates[key]
	if !ok {
		return "", "", fmt.Errorf("unknown template: %s", key)
	}

	subject, err := render(string(key)+"/subject", tpl.subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := render(string(key)+"/body", tpl.body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func render(name, text string, data map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return sb.String(), nil
}
