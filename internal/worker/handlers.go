package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/mq"
	"github.com/shaiso/Relance/internal/repo"
)

// handleStepDue обрабатывает событие step.due из очереди.
//
// Судьба сообщения:
//   - успех или штатный пропуск — ack
//   - инфраструктурный сбой (шаг возвращён в pending) — nack+requeue
func (w *Worker) handleStepDue(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.StepDuePayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse step.due payload", "error", err)
		// Некорректный payload не станет корректным при повторе
		return delivery.Nack(false)
	}

	w.logger.Debug("received step.due event",
		"step_id", payload.StepID,
		"form_id", payload.FormID,
	)

	step, err := w.store.GetStep(ctx, payload.StepID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			w.logger.Warn("step not found, dropping message", "step_id", payload.StepID)
			return delivery.Ack()
		}
		return err
	}

	if err := w.processStep(ctx, step); err != nil {
		w.logger.Error("failed to process step",
			"step_id", step.ID,
			"error", err,
		)
		return err
	}

	return delivery.Ack()
}

// processStep выполняет один шаг через подходящий executor.
func (w *Worker) processStep(ctx context.Context, step *domain.ScheduledStep) error {
	if step.Status.IsTerminal() {
		// Повторная доставка уже завершённого шага
		w.logger.Debug("step already finished",
			"step_id", step.ID,
			"status", step.Status,
		)
		return nil
	}

	executor, err := w.registry.Get(step.Kind)
	if err != nil {
		// Неизвестный тип не вылечится повтором: закрываем шаг
		if failErr := w.store.FailStep(ctx, step.ID, err.Error()); failErr != nil && !errors.Is(failErr, repo.ErrNotFound) {
			return fmt.Errorf("fail step with unknown kind: %w", failErr)
		}
		w.logger.Error("unknown step kind", "step_id", step.ID, "kind", step.Kind)
		return nil
	}

	outcome, err := executor.Execute(ctx, step)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case domain.OutcomeSuccess:
		w.logger.Debug("step executed", "step_id", step.ID, "kind", step.Kind)
	case domain.OutcomeSkipped:
		w.logger.Debug("step skipped", "step_id", step.ID, "reason", outcome.Message)
	case domain.OutcomeError:
		w.logger.Warn("step failed permanently",
			"step_id", step.ID,
			"kind", step.Kind,
			"error", outcome.Message,
		)
	}

	if w.onOutcome != nil {
		w.onOutcome(step.Kind, outcome.Status)
	}

	return nil
}
