package domain

import (
	"strings"
	"testing"
)

func validDefinition() WorkflowDefinition {
	return WorkflowDefinition{
		Name: "psirt-default",
		Steps: []StepDef{
			{ID: "remind-1", Kind: StepKindReminder, DelayDays: 7},
			{ID: "remind-2", Kind: StepKindReminder, DelayDays: 7},
			{ID: "escalate", Kind: StepKindEscalation, DelayDays: 3},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkflowDefinition)
		wantErr string
	}{
		{
			name:   "valid definition",
			mutate: func(d *WorkflowDefinition) {},
		},
		{
			name:   "empty steps are allowed",
			mutate: func(d *WorkflowDefinition) { d.Steps = nil },
		},
		{
			name:    "missing name",
			mutate:  func(d *WorkflowDefinition) { d.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "missing step id",
			mutate:  func(d *WorkflowDefinition) { d.Steps[1].ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "duplicate step id",
			mutate:  func(d *WorkflowDefinition) { d.Steps[1].ID = "remind-1" },
			wantErr: "duplicate id",
		},
		{
			name:    "unknown kind",
			mutate:  func(d *WorkflowDefinition) { d.Steps[0].Kind = "pigeon" },
			wantErr: "unknown kind",
		},
		{
			name:    "zero delay",
			mutate:  func(d *WorkflowDefinition) { d.Steps[2].DelayDays = 0 },
			wantErr: "delay_days must be >= 1",
		},
		{
			name:    "negative delay",
			mutate:  func(d *WorkflowDefinition) { d.Steps[0].DelayDays = -2 },
			wantErr: "delay_days must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			err := def.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStepKindIsEscalation(t *testing.T) {
	if StepKindReminder.IsEscalation() {
		t.Error("reminder must not be an escalation kind")
	}
	if !StepKindEscalation.IsEscalation() {
		t.Error("escalation must be an escalation kind")
	}
	if !StepKindReminderEscalation.IsEscalation() {
		t.Error("reminder-escalation must be an escalation kind")
	}
}
