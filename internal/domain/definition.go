package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StepKind — тип шага workflow. Закрытое множество,
// валидируется один раз при создании определения.
type StepKind string

const (
	// StepKindReminder — напоминание респонденту.
	StepKindReminder StepKind = "reminder"

	// StepKindEscalation — эскалация менеджеру.
	StepKindEscalation StepKind = "escalation"

	// StepKindReminderEscalation — комбинированный шаг: планируется
	// как эскалация, но только если у контейнера включён Escalate.
	StepKindReminderEscalation StepKind = "reminder-escalation"
)

// IsValid возвращает true для известного типа шага.
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindReminder, StepKindEscalation, StepKindReminderEscalation:
		return true
	default:
		return false
	}
}

// IsEscalation возвращает true, если шаг адресуется менеджеру
// и планируется только при включённом флаге Escalate контейнера.
func (k StepKind) IsEscalation() bool {
	return k == StepKindEscalation || k == StepKindReminderEscalation
}

// StepDef — определение одного шага workflow.
type StepDef struct {
	// ID — уникальный идентификатор шага в рамках определения.
	ID string `json:"id"`

	// Kind — тип шага.
	Kind StepKind `json:"kind"`

	// DelayDays — задержка в днях относительно предыдущего шага.
	// Накапливается при планировании (кумулятивная задержка от старта).
	DelayDays int `json:"delay_days"`
}

// WorkflowDefinition — упорядоченный список шагов с относительными
// задержками.
//
// Определение неизменно, пока на него ссылается хотя бы один
// контейнер: изменение расписания на лету требует создания нового
// определения.
type WorkflowDefinition struct {
	// ID — уникальный идентификатор определения.
	ID uuid.UUID `json:"id"`

	// Name — имя определения (например, "psirt-default").
	Name string `json:"name"`

	// CreatedBy — кто создал определение.
	CreatedBy string `json:"created_by,omitempty"`

	// Steps — упорядоченный список шагов.
	// Пустой список валиден: контейнер просто не получит напоминаний.
	Steps []StepDef `json:"steps"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет определение. Вызывается один раз при создании —
// планировщик полагается на то, что сохранённое определение корректно.
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("definition name is required")
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for i, step := range d.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d: id is required", i)
		}
		if _, ok := seen[step.ID]; ok {
			return fmt.Errorf("step %d: duplicate id %q", i, step.ID)
		}
		seen[step.ID] = struct{}{}

		if !step.Kind.IsValid() {
			return fmt.Errorf("step %q: unknown kind %q", step.ID, step.Kind)
		}
		if step.DelayDays < 1 {
			return fmt.Errorf("step %q: delay_days must be >= 1, got %d", step.ID, step.DelayDays)
		}
	}
	return nil
}
