package notify

import (
	"strings"
	"testing"
)

func TestRender_NewForm(t *testing.T) {
	subject, body, err := Render(TemplateNewForm, map[string]any{
		"title":       "Expense report Q1",
		"description": "Please fill in your expenses.",
		"form_url":    "http://localhost:8080/forms/abc123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if subject != "Expense report Q1" {
		t.Errorf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "http://localhost:8080/forms/abc123") {
		t.Error("body should contain the form URL")
	}
	if !strings.Contains(body, "Please fill in your expenses.") {
		t.Error("body should contain the description")
	}
}

func TestRender_NewFormWithoutDescription(t *testing.T) {
	_, body, err := Render(TemplateNewForm, map[string]any{
		"title":    "Survey",
		"form_url": "http://localhost:8080/forms/tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(body, "<no value>") {
		t.Errorf("missing description leaked into body: %q", body)
	}
}

func TestRender_ReminderContainsSeq(t *testing.T) {
	subject, body, err := Render(TemplateReminder, map[string]any{
		"title":    "Survey",
		"seq":      2,
		"form_url": "http://localhost:8080/forms/tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if subject != "Reminder 2: Survey" {
		t.Errorf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "reminder 2") {
		t.Errorf("body should mention the reminder number: %q", body)
	}
}

func TestRender_EscalationMentionsRespondent(t *testing.T) {
	_, body, err := Render(TemplateEscalation, map[string]any{
		"title":      "Survey",
		"user_email": "user@example.com",
		"form_url":   "http://localhost:8080/forms/tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "user@example.com") {
		t.Error("escalation body should mention the original respondent")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, _, err := Render(TemplateKey("nope"), nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
