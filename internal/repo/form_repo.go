package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relance/internal/domain"
)

// FormRepo — репозиторий для работы с формами.
type FormRepo struct {
	pool *pgxpool.Pool
}

// NewFormRepo создаёт новый FormRepo.
func NewFormRepo(pool *pgxpool.Pool) *FormRepo {
	return &FormRepo{pool: pool}
}

// Create создаёт новую форму.
func (r *FormRepo) Create(ctx context.Context, f *domain.Form) error {
	query := `
		INSERT INTO forms (id, container_id, status, workflow_step, cancel_comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		f.ID,
		f.ContainerID,
		f.Status,
		nullString(string(f.WorkflowStep)),
		nullString(f.CancelComment),
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// GetByID возвращает форму по ID.
func (r *FormRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Form, error) {
	query := `
		SELECT id, container_id, status, workflow_step, cancel_comment, created_at
		FROM forms
		WHERE id = $1
	`
	return scanForm(r.pool.QueryRow(ctx, query, id))
}

// ListByContainer возвращает формы контейнера в порядке создания.
func (r *FormRepo) ListByContainer(ctx context.Context, containerID uuid.UUID) ([]domain.Form, error) {
	query := `
		SELECT id, container_id, status, workflow_step, cancel_comment, created_at
		FROM forms
		WHERE container_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("list forms by container: %w", err)
	}
	defer rows.Close()

	var forms []domain.Form
	for rows.Next() {
		f, err := scanFormRow(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *f)
	}
	return forms, rows.Err()
}

// TransitionStatus переводит форму из одного статуса в другой.
// Условный переход: если форма уже не в статусе from, возвращает
// ErrInvalidState — переходы монотонны к терминальному состоянию.
func (r *FormRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.FormStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE forms SET status = $3 WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("transition form status: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо формы нет, либо статус уже другой.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}

// SetCancelComment записывает причину отмены.
func (r *FormRepo) SetCancelComment(ctx context.Context, id uuid.UUID, comment string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE forms SET cancel_comment = $2 WHERE id = $1
	`, id, comment)
	if err != nil {
		return fmt.Errorf("set cancel comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSuperseded переводит ранее отвеченные формы контейнера в
// unsubstantial: новая форма вытеснила их ответы.
func (r *FormRepo) MarkSuperseded(ctx context.Context, containerID, exceptFormID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE forms
		SET status = 'unsubstantial'
		WHERE container_id = $1 AND id <> $2 AND status = 'answered'
	`, containerID, exceptFormID)
	if err != nil {
		return 0, fmt.Errorf("mark superseded forms: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

func scanForm(row pgx.Row) (*domain.Form, error) {
	f, err := scanFormRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func scanFormRow(row pgx.Row) (*domain.Form, error) {
	var f domain.Form
	var workflowStep, cancelComment *string

	err := row.Scan(
		&f.ID,
		&f.ContainerID,
		&f.Status,
		&workflowStep,
		&cancelComment,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan form: %w", err)
	}

	if workflowStep != nil {
		f.WorkflowStep = domain.StepKind(*workflowStep)
	}
	if cancelComment != nil {
		f.CancelComment = *cancelComment
	}

	return &f, nil
}
