package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
)

// ReminderExecutor отправляет напоминание респонденту.
//
// Протокол: условный захват шага → проверка формы → письмо →
// транзакционная фиксация (шаг sent + timeline "Reminder N sent").
type ReminderExecutor struct {
	store  Storage
	mailer notify.Mailer
	logger *slog.Logger
}

// Execute выполняет шаг напоминания.
func (e *ReminderExecutor) Execute(ctx context.Context, step *domain.ScheduledStep) (*domain.StepOutcome, error) {
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

	msg := notify.Message{
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

	if err := e.mailer.Send(ctx, msg); err != nil {
		// Сбой доставки: шаг обратно в pending, очередь повторит
		if relErr := e.store.ReleaseStep(ctx, step.ID, err.Error()); relErr != nil {
			return nil, fmt.Errorf("release step after send failure: %w (send: %v)", relErr, err)
		}
		return nil, fmt.Errorf("send reminder: %w", err)
	}

	event := fmt.Sprintf("Reminder %d sent", step.Seq)
	complete := repo.CompleteParams{
		StepID:       step.ID,
		FormID:       step.FormID,
		ContainerID:  step.ContainerID,
		WorkflowStep: step.Kind,
		Event:        event,
		Details:      fmt.Sprintf("sent to %s", container.UserEmail),
	}
	if err := e.store.CompleteStep(ctx, complete); err != nil {
		// Письмо уже ушло — шаг не повторяется, помечаем failed
		reason := fmt.Sprintf("completion failed: %v", err)
		if failErr := e.store.FailStep(ctx, step.ID, reason); failErr != nil {
			e.logger.Error("failed to mark step failed",
				"step_id", step.ID,
				"error", failErr,
			)
		}
		return domain.ErrorOutcome(step, reason), nil
	}

	e.logger.Info("reminder sent",
		"step_id", step.ID,
		"container_id", step.ContainerID,
		"form_id", step.FormID,
		"seq", step.Seq,
		"to", container.UserEmail,
	)

	return domain.SuccessOutcome(step), nil
}
