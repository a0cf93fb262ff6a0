package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relance/internal/domain"
)

// WorkflowStore — транзакционный фасад хранилища для движка workflow.
//
// Объединяет репозитории и реализует операции, которые должны
// происходить атомарно: захват шага под блокировкой строки формы и
// фиксацию результата вместе с записью timeline. Через него работают
// WorkflowManager, воркер и диспетчер; индивидуальные репозитории
// остаются для CRUD HTTP-слоя.
type WorkflowStore struct {
	pool *pgxpool.Pool

	containers  *ContainerRepo
	forms       *FormRepo
	definitions *DefinitionRepo
	steps       *StepRepo
	timeline    *TimelineRepo
}

// NewWorkflowStore создаёт новый WorkflowStore.
func NewWorkflowStore(pool *pgxpool.Pool) *WorkflowStore {
	return &WorkflowStore{
		pool:        pool,
		containers:  NewContainerRepo(pool),
		forms:       NewFormRepo(pool),
		definitions: NewDefinitionRepo(pool),
		steps:       NewStepRepo(pool),
		timeline:    NewTimelineRepo(pool),
	}
}

// GetForm возвращает форму по ID.
func (s *WorkflowStore) GetForm(ctx context.Context, id uuid.UUID) (*domain.Form, error) {
	return s.forms.GetByID(ctx, id)
}

// GetContainer возвращает контейнер по ID.
func (s *WorkflowStore) GetContainer(ctx context.Context, id uuid.UUID) (*domain.FormContainer, error) {
	return s.containers.GetByID(ctx, id)
}

// GetDefinition возвращает определение workflow по ID.
func (s *WorkflowStore) GetDefinition(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	return s.definitions.GetByID(ctx, id)
}

// GetStep возвращает запланированный шаг по ID.
func (s *WorkflowStore) GetStep(ctx context.Context, id uuid.UUID) (*domain.ScheduledStep, error) {
	return s.steps.GetByID(ctx, id)
}

// CreateChain сохраняет цепочку шагов в порядке подачи.
func (s *WorkflowStore) CreateChain(ctx context.Context, steps []domain.ScheduledStep) error {
	return s.steps.CreateChain(ctx, steps)
}

// CreateStep сохраняет одиночный шаг (ручная эскалация).
func (s *WorkflowStore) CreateStep(ctx context.Context, step *domain.ScheduledStep) error {
	return s.steps.Create(ctx, step)
}

// ListDue возвращает созревшие pending-шаги для диспетчера.
func (s *WorkflowStore) ListDue(ctx context.Context, now time.Time, redispatchAfter time.Duration, limit int) ([]domain.ScheduledStep, error) {
	return s.steps.ListDue(ctx, now, redispatchAfter, limit)
}

// MarkDispatched проставляет время публикации шага.
func (s *WorkflowStore) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.steps.MarkDispatched(ctx, id, at)
}

// RequeueStale возвращает зависшие processing-шаги в pending.
func (s *WorkflowStore) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.steps.RequeueStale(ctx, olderThan)
}

// CountOverduePending возвращает количество просроченных pending-шагов.
func (s *WorkflowStore) CountOverduePending(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	return s.steps.CountOverduePending(ctx, now, grace)
}

// AppendTimeline добавляет запись аудиторского следа.
func (s *WorkflowStore) AppendTimeline(ctx context.Context, e *domain.TimelineEntry) error {
	return s.timeline.Append(ctx, e)
}

// ClaimStep атомарно захватывает шаг для выполнения.
//
// Одна транзакция:
//  1. Блокирует строку формы (SELECT ... FOR UPDATE) и читает статус.
//  2. Терминальный статус — подавляет оставшиеся pending-шаги формы
//     и выходит без захвата.
//  3. Условный перевод шага pending → processing. Проигранный захват
//     означает повторную доставку — шаг уже у другого воркера или
//     уже завершён.
//
// Блокировка формы держится до commit: конкурентный HTTP-запрос,
// меняющий статус, сериализуется с решением "выполнять или нет".
func (s *WorkflowStore) ClaimStep(ctx context.Context, stepID, formID uuid.UUID) (*domain.StepClaim, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.FormStatus
	err = tx.QueryRow(ctx, `SELECT status FROM forms WHERE id = $1 FOR UPDATE`, formID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		// Форма удалена — шаг закрывается, иначе диспетчер будет
		// переиздавать его вечно
		_, err := tx.Exec(ctx, `
			UPDATE scheduled_steps
			SET status = 'skipped', executed_at = NOW(), error = 'form not found'
			WHERE id = $1 AND status = 'pending'
		`, stepID)
		if err != nil {
			return nil, fmt.Errorf("skip orphan step: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit orphan skip: %w", err)
		}
		return &domain.StepClaim{FormMissing: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock form row: %w", err)
	}

	if status.IsTerminal() {
		result, err := tx.Exec(ctx, `
			UPDATE scheduled_steps
			SET status = 'skipped', executed_at = NOW()
			WHERE form_id = $1 AND status = 'pending'
		`, formID)
		if err != nil {
			return nil, fmt.Errorf("suppress pending steps: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit suppression: %w", err)
		}
		return &domain.StepClaim{
			FormStatus: status,
			Suppressed: result.RowsAffected(),
		}, nil
	}

	result, err := tx.Exec(ctx, `
		UPDATE scheduled_steps
		SET status = 'processing', attempt = attempt + 1, dispatched_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, stepID)
	if err != nil {
		return nil, fmt.Errorf("claim step: %w", err)
	}

	claimed := result.RowsAffected() > 0
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	return &domain.StepClaim{Claimed: claimed, FormStatus: status}, nil
}

// CompleteParams — параметры фиксации успешно выполненного шага.
type CompleteParams struct {
	StepID      uuid.UUID
	FormID      uuid.UUID
	ContainerID uuid.UUID

	// WorkflowStep — тип шага, записывается в Form.WorkflowStep.
	WorkflowStep domain.StepKind

	// Event и Details — запись timeline.
	Event   string
	Details string
}

// CompleteStep фиксирует результат шага одной транзакцией:
// шаг → sent, Form.WorkflowStep обновлён, timeline записан.
// Вызывается после успешной отправки уведомления; сбой здесь —
// принятая несогласованность at-least-once (письмо уже ушло).
func (s *WorkflowStore) CompleteStep(ctx context.Context, p CompleteParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE scheduled_steps
		SET status = 'sent', executed_at = NOW(), error = NULL
		WHERE id = $1 AND status = 'processing'
	`, p.StepID)
	if err != nil {
		return fmt.Errorf("mark step sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("step %s: %w", p.StepID, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE forms SET workflow_step = $2 WHERE id = $1
	`, p.FormID, p.WorkflowStep); err != nil {
		return fmt.Errorf("update form workflow step: %w", err)
	}

	entry := &domain.TimelineEntry{
		ContainerID: p.ContainerID,
		FormID:      p.FormID,
		Event:       p.Event,
		Details:     p.Details,
		Timestamp:   time.Now().UTC(),
	}
	if err := appendTimeline(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

// ReleaseStep возвращает захваченный шаг в pending после сбоя
// доставки: очередь повторит сообщение, захват снова станет возможен.
func (s *WorkflowStore) ReleaseStep(ctx context.Context, stepID uuid.UUID, reason string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE scheduled_steps
		SET status = 'pending', dispatched_at = NULL, error = $2
		WHERE id = $1 AND status = 'processing'
	`, stepID, nullString(reason))
	if err != nil {
		return fmt.Errorf("release step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStep помечает шаг failed (фиксация после отправки не удалась).
// Шаг не повторяется: письмо уже отправлено.
func (s *WorkflowStore) FailStep(ctx context.Context, stepID uuid.UUID, reason string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE scheduled_steps
		SET status = 'failed', executed_at = NOW(), error = $2
		WHERE id = $1 AND status = 'processing'
	`, stepID, nullString(reason))
	if err != nil {
		return fmt.Errorf("fail step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
