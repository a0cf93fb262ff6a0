package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
)

// Storage — хранилище, необходимое воркеру и executor'ам.
// Реализация: repo.WorkflowStore.
type Storage interface {
	GetStep(ctx context.Context, id uuid.UUID) (*domain.ScheduledStep, error)
	GetContainer(ctx context.Context, id uuid.UUID) (*domain.FormContainer, error)

	ClaimStep(ctx context.Context, stepID, formID uuid.UUID) (*domain.StepClaim, error)
	CompleteStep(ctx context.Context, p repo.CompleteParams) error
	ReleaseStep(ctx context.Context, stepID uuid.UUID, reason string) error
	FailStep(ctx context.Context, stepID uuid.UUID, reason string) error

	ListDue(ctx context.Context, now time.Time, redispatchAfter time.Duration, limit int) ([]domain.ScheduledStep, error)
}

// Executor — интерфейс выполнения одного типа шага.
//
// Реализации: ReminderExecutor, EscalationExecutor.
//
// Два уровня ошибок:
//   - error — инфраструктурный сбой (почта, БД): шаг возвращён в
//     pending, сообщение будет доставлено повторно;
//   - StepOutcome со статусом error — отправка произошла, но фиксация
//     не удалась: шаг помечен failed и не повторяется.
type Executor interface {
	Execute(ctx context.Context, step *domain.ScheduledStep) (*domain.StepOutcome, error)
}

// Registry — реестр executor'ов по типу шага.
type Registry struct {
	executors map[domain.StepKind]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию.
//
// reminder — письмо респонденту; escalation и reminder-escalation —
// EscalationExecutor (второй дополнительно шлёт напоминание).
func NewRegistry(store Storage, mailer notify.Mailer, logger *slog.Logger) *Registry {
	r := &Registry{executors: make(map[domain.StepKind]Executor)}

	escalation := &EscalationExecutor{store: store, mailer: mailer, logger: logger}

	r.Register(domain.StepKindReminder, &ReminderExecutor{store: store, mailer: mailer, logger: logger})
	r.Register(domain.StepKindEscalation, escalation)
	r.Register(domain.StepKindReminderEscalation, escalation)

	return r
}

// Register добавляет executor для типа шага.
func (r *Registry) Register(kind domain.StepKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для типа шага.
func (r *Registry) Get(kind domain.StepKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepKind, kind)
	}
	return executor, nil
}

// claimStep выполняет условный захват шага и переводит результат
// в ранний StepOutcome, если выполнять нечего.
//
// Возвращает (nil, nil, nil) при выигранном захвате.
func claimStep(ctx context.Context, store Storage, logger *slog.Logger, step *domain.ScheduledStep) (*domain.StepOutcome, *domain.StepClaim, error) {
	claim, err := store.ClaimStep(ctx, step.ID, step.FormID)
	if err != nil {
		return nil, nil, fmt.Errorf("claim step: %w", err)
	}

	if claim.FormMissing {
		logger.Warn("form disappeared, step skipped",
			"step_id", step.ID,
			"form_id", step.FormID,
		)
		return domain.SkippedOutcome(step, "form not found"), claim, nil
	}

	if claim.FormStatus.IsTerminal() {
		logger.Info("form is no longer open, chain suppressed",
			"step_id", step.ID,
			"form_id", step.FormID,
			"form_status", claim.FormStatus,
			"suppressed", claim.Suppressed,
		)
		return domain.SkippedOutcome(step, fmt.Sprintf("form is %s", claim.FormStatus)), claim, nil
	}

	if !claim.Claimed {
		// Повторная доставка: шаг уже у другого воркера или завершён
		logger.Debug("step claim lost",
			"step_id", step.ID,
		)
		return domain.SkippedOutcome(step, "already claimed"), claim, nil
	}

	return nil, claim, nil
}

// loadContainer загружает контейнер захваченного шага.
// Отсутствие контейнера — порча данных: шаг помечается failed.
func loadContainer(ctx context.Context, store Storage, step *domain.ScheduledStep) (*domain.FormContainer, *domain.StepOutcome, error) {
	container, err := store.GetContainer(ctx, step.ContainerID)
	if err == nil {
		return container, nil, nil
	}

	if errors.Is(err, repo.ErrNotFound) {
		reason := "container not found"
		if failErr := store.FailStep(ctx, step.ID, reason); failErr != nil {
			return nil, nil, fmt.Errorf("fail orphan step: %w", failErr)
		}
		return nil, domain.ErrorOutcome(step, reason), nil
	}

	// Инфраструктурный сбой БД: возвращаем шаг и пробуем позже
	if relErr := store.ReleaseStep(ctx, step.ID, err.Error()); relErr != nil {
		return nil, nil, fmt.Errorf("release step after load failure: %w (load: %v)", relErr, err)
	}
	return nil, nil, fmt.Errorf("load container: %w", err)
}
