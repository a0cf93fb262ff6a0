package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relance/internal/domain"
)

// DefinitionRepo — репозиторий для определений workflow.
type DefinitionRepo struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepo создаёт новый DefinitionRepo.
func NewDefinitionRepo(pool *pgxpool.Pool) *DefinitionRepo {
	return &DefinitionRepo{pool: pool}
}

// Create создаёт новое определение. Шаги валидируются вызывающей
// стороной до сохранения — здесь только персистентность.
func (r *DefinitionRepo) Create(ctx context.Context, d *domain.WorkflowDefinition) error {
	stepsJSON, err := json.Marshal(d.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (id, name, created_by, steps, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.Name,
		nullString(d.CreatedBy),
		stepsJSON,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow definition: %w", err)
	}
	return nil
}

// GetByID возвращает определение по ID.
func (r *DefinitionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	query := `
		SELECT id, name, created_by, steps, created_at
		FROM workflow_definitions
		WHERE id = $1
	`
	return scanDefinition(r.pool.QueryRow(ctx, query, id))
}

// List возвращает все определения (новые первыми).
func (r *DefinitionRepo) List(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	query := `
		SELECT id, name, created_by, steps, created_at
		FROM workflow_definitions
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workflow definitions: %w", err)
	}
	defer rows.Close()

	var defs []domain.WorkflowDefinition
	for rows.Next() {
		d, err := scanDefinitionRow(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

// Delete удаляет определение. Определение, на которое ссылается
// хотя бы один контейнер, удалить нельзя.
func (r *DefinitionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	var inUse int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM form_containers WHERE definition_id = $1
	`, id).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("check definition usage: %w", err)
	}
	if inUse > 0 {
		return ErrDefinitionInUse
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM workflow_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow definition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanDefinition(row pgx.Row) (*domain.WorkflowDefinition, error) {
	d, err := scanDefinitionRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func scanDefinitionRow(row pgx.Row) (*domain.WorkflowDefinition, error) {
	var d domain.WorkflowDefinition
	var createdBy *string
	var stepsJSON []byte

	err := row.Scan(
		&d.ID,
		&d.Name,
		&createdBy,
		&stepsJSON,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan workflow definition: %w", err)
	}

	if createdBy != nil {
		d.CreatedBy = *createdBy
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &d.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}

	return &d, nil
}
