package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relance/internal/domain"
)

// StepRepo — репозиторий устойчивого реестра запланированных шагов.
//
// Реестр закрывает две бреши чисто очередной модели: потерянное
// брокером сообщение переотправляется диспетчером (строка остаётся
// pending), а повторная доставка дедуплицируется условным захватом.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

const stepColumns = `
	id, container_id, form_id, step_id, kind, chain_order, seq, eta,
	status, attempt, manual, manual_email, error, dispatched_at,
	executed_at, created_at
`

// CreateChain сохраняет цепочку шагов одной транзакцией в порядке
// подачи. Либо вся цепочка, либо ничего.
func (r *StepRepo) CreateChain(ctx context.Context, steps []domain.ScheduledStep) error {
	if len(steps) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range steps {
		if err := insertStep(ctx, tx, &steps[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chain: %w", err)
	}
	return nil
}

// Create сохраняет один шаг (ручная эскалация вне цепочки определения).
func (r *StepRepo) Create(ctx context.Context, step *domain.ScheduledStep) error {
	return insertStep(ctx, r.pool, step)
}

// dbExecer покрывает и pgxpool.Pool, и pgx.Tx.
type dbExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertStep(ctx context.Context, db dbExecer, step *domain.ScheduledStep) error {
	query := `
		INSERT INTO scheduled_steps (id, container_id, form_id, step_id, kind,
		                             chain_order, seq, eta, status, attempt,
		                             manual, manual_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := db.Exec(ctx, query,
		step.ID,
		step.ContainerID,
		step.FormID,
		step.StepID,
		step.Kind,
		step.ChainOrder,
		step.Seq,
		step.ETA,
		step.Status,
		step.Attempt,
		step.Manual,
		nullString(step.ManualEmail),
		step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled step: %w", err)
	}
	return nil
}

// GetByID возвращает шаг по ID.
func (r *StepRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledStep, error) {
	query := `SELECT ` + stepColumns + ` FROM scheduled_steps WHERE id = $1`
	return scanStep(r.pool.QueryRow(ctx, query, id))
}

// ListByContainer возвращает шаги контейнера в порядке цепочки.
func (r *StepRepo) ListByContainer(ctx context.Context, containerID uuid.UUID) ([]domain.ScheduledStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM scheduled_steps
		WHERE container_id = $1
		ORDER BY chain_order ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("list steps by container: %w", err)
	}
	defer rows.Close()
	return collectSteps(rows)
}

// ListDue возвращает созревшие pending-шаги, которые ещё не
// публиковались либо публиковались давно (redispatch покрывает
// потерянные брокером сообщения).
func (r *StepRepo) ListDue(ctx context.Context, now time.Time, redispatchAfter time.Duration, limit int) ([]domain.ScheduledStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM scheduled_steps
		WHERE status = 'pending'
		  AND eta <= $1
		  AND (dispatched_at IS NULL OR dispatched_at <= $2)
		ORDER BY eta ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, now, now.Add(-redispatchAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("list due steps: %w", err)
	}
	defer rows.Close()
	return collectSteps(rows)
}

// MarkDispatched проставляет время публикации шага в очередь.
func (r *StepRepo) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scheduled_steps SET dispatched_at = $2 WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SkipPending подавляет оставшиеся pending-шаги формы
// (кооперативная отмена цепочки).
func (r *StepRepo) SkipPending(ctx context.Context, formID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE scheduled_steps
		SET status = 'skipped', executed_at = NOW()
		WHERE form_id = $1 AND status = 'pending'
	`, formID)
	if err != nil {
		return 0, fmt.Errorf("skip pending steps: %w", err)
	}
	return result.RowsAffected(), nil
}

// RequeueStale возвращает зависшие processing-шаги обратно в pending.
// Шаг застревает в processing, если воркер упал между захватом и
// фиксацией результата.
func (r *StepRepo) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE scheduled_steps
		SET status = 'pending', dispatched_at = NULL
		WHERE status = 'processing' AND dispatched_at IS NOT NULL AND dispatched_at <= $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("requeue stale steps: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountOverduePending возвращает количество pending-шагов, чей eta
// просрочен больше чем на grace (метрика для sweep).
func (r *StepRepo) CountOverduePending(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_steps WHERE status = 'pending' AND eta <= $1
	`, now.Add(-grace)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count overdue pending steps: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func scanStep(row pgx.Row) (*domain.ScheduledStep, error) {
	s, err := scanStepRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func scanStepRow(row pgx.Row) (*domain.ScheduledStep, error) {
	var s domain.ScheduledStep
	var manualEmail, stepErr *string

	err := row.Scan(
		&s.ID,
		&s.ContainerID,
		&s.FormID,
		&s.StepID,
		&s.Kind,
		&s.ChainOrder,
		&s.Seq,
		&s.ETA,
		&s.Status,
		&s.Attempt,
		&s.Manual,
		&manualEmail,
		&stepErr,
		&s.DispatchedAt,
		&s.ExecutedAt,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan scheduled step: %w", err)
	}

	if manualEmail != nil {
		s.ManualEmail = *manualEmail
	}
	if stepErr != nil {
		s.Error = *stepErr
	}

	return &s, nil
}

func collectSteps(rows pgx.Rows) ([]domain.ScheduledStep, error) {
	var steps []domain.ScheduledStep
	for rows.Next() {
		s, err := scanStepRow(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *s)
	}
	return steps, rows.Err()
}
