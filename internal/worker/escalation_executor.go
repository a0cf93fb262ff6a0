package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
)

// Timeline-события эскалации.
const (
	eventManualEscalation    = "Manual Escalation"
	eventAutomaticEscalation = "Automatic Escalation"
)

// EscalationExecutor отправляет эскалацию менеджеру.
//
// Обслуживает kind=escalation и kind=reminder-escalation: второй
// дополнительно шлёт напоминание респонденту перед эскалацией.
// Ручные шаги (Manual=true) могут переопределять получателя через
// ManualEmail.
type EscalationExecutor struct {
	store  Storage
	mailer notify.Mailer
	logger *slog.Logger
}

// Execute выполняет шаг эскалации.
func (e *EscalationExecutor) Execute(ctx context.Context, step *domain.ScheduledStep) (*domain.StepOutcome, error) {
	outcome, _, err := claimStep(ctx, e.store, e.logger, step)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return outcome, nil
	}

	container, outcome, err := loadContainer(ctx, e.store, step)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return outcome, nil
	}

	target := e.escalationTarget(step, container)
	if target == "" {
		if failErr := e.store.FailStep(ctx, step.ID, ErrNoRecipient.Error()); failErr != nil {
			return nil, fmt.Errorf("fail step without target: %w", failErr)
		}
		return domain.ErrorOutcome(step, ErrNoRecipient.Error()), nil
	}

	// reminder-escalation: сначала напоминание респонденту
	if step.Kind == domain.StepKindReminderEscalation {
		reminder := notify.Message{
			Sender:      container.MailSender,
			To:          container.UserEmail,
			CC:          container.CCEmails,
			Template:    notify.TemplateReminder,
			AccessToken: container.AccessToken,
			Context: map[string]any{
				"title": container.Title,
				"seq":   step.Seq,
			},
		}
		if err := e.mailer.Send(ctx, reminder); err != nil {
			if relErr := e.store.ReleaseStep(ctx, step.ID, err.Error()); relErr != nil {
				return nil, fmt.Errorf("release step after send failure: %w (send: %v)", relErr, err)
			}
			return nil, fmt.Errorf("send reminder part: %w", err)
		}
	}

	escalation := notify.Message{
		Sender:      container.MailSender,
		To:          target,
		CC:          container.CCEmails,
		Template:    notify.TemplateEscalation,
		AccessToken: container.AccessToken,
		Context: map[string]any{
			"title":      container.Title,
			"user_email": container.UserEmail,
		},
	}
	if err := e.mailer.Send(ctx, escalation); err != nil {
		if relErr := e.store.ReleaseStep(ctx, step.ID, err.Error()); relErr != nil {
			return nil, fmt.Errorf("release step after send failure: %w (send: %v)", relErr, err)
		}
		return nil, fmt.Errorf("send escalation: %w", err)
	}

	event := eventAutomaticEscalation
	if step.Manual {
		event = eventManualEscalation
	}

	complete := repo.CompleteParams{
		StepID:       step.ID,
		FormID:       step.FormID,
		ContainerID:  step.ContainerID,
		WorkflowStep: step.Kind,
		Event:        event,
		Details:      fmt.Sprintf("escalated to %s", target),
	}
	if err := e.store.CompleteStep(ctx, complete); err != nil {
		reason := fmt.Sprintf("completion failed: %v", err)
		if failErr := e.store.FailStep(ctx, step.ID, reason); failErr != nil {
			e.logger.Error("failed to mark step failed",
				"step_id", step.ID,
				"error", failErr,
			)
		}
		return domain.ErrorOutcome(step, reason), nil
	}

	e.logger.Info("escalation sent",
		"step_id", step.ID,
		"container_id", step.ContainerID,
		"form_id", step.FormID,
		"kind", step.Kind,
		"manual", step.Manual,
		"to", target,
	)

	return domain.SuccessOutcome(step), nil
}

// escalationTarget выбирает получателя эскалации: явный адрес ручного
// шага, иначе EscaladeEmail контейнера.
func (e *EscalationExecutor) escalationTarget(step *domain.ScheduledStep, container *domain.FormContainer) string {
	if step.Manual && step.ManualEmail != "" {
		return step.ManualEmail
	}
	return container.EscaladeEmail
}
