package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/calendar"
	"github.com/shaiso/Relance/internal/domain"
)

// Resolver вычисляет дату через delayDays рабочих дней после start.
// Реализация: calendar.Resolver.
type Resolver interface {
	Resolve(start time.Time, delayDays int, country string) time.Time
}

// BuildSchedule разворачивает определение workflow в цепочку
// запланированных шагов для формы.
//
// Задержки кумулятивны: шаг с DelayDays=2 после шага с DelayDays=3
// созревает через 5 дней после start. Шаги эскалации (escalation,
// reminder-escalation) включаются только при container.Escalate.
// Seq нумерует напоминания получателю (reminder и reminder-escalation)
// начиная с 1 и попадает в текст письма.
//
// Чистая функция: шаги не сохраняются, ETA зависит только от
// аргументов.
func BuildSchedule(
	def *domain.WorkflowDefinition,
	container *domain.FormContainer,
	form *domain.Form,
	start time.Time,
	resolver Resolver,
) []domain.ScheduledStep {
	var steps []domain.ScheduledStep

	cumulative := 0
	order := 0
	seq := 0

	for _, stepDef := range def.Steps {
		cumulative += stepDef.DelayDays

		if stepDef.Kind.IsEscalation() && !container.Escalate {
			continue
		}

		if stepDef.Kind == domain.StepKindReminder || stepDef.Kind == domain.StepKindReminderEscalation {
			seq++
		}

		var eta time.Time
		if container.UseWorkingDays {
			eta = resolver.Resolve(start, cumulative, container.Country)
		} else {
			eta = calendar.AddCalendarDays(start, cumulative)
		}

		steps = append(steps, domain.ScheduledStep{
			ID:          uuid.New(),
			ContainerID: container.ID,
			FormID:      form.ID,
			StepID:      stepDef.ID,
			Kind:        stepDef.Kind,
			ChainOrder:  order,
			Seq:         seq,
			ETA:         eta,
			Status:      domain.StepStatusPending,
			CreatedAt:   start,
		})
		order++
	}

	return steps
}
