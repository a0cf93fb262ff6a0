package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relance/internal/domain"
)

// ContainerRepo — репозиторий для работы с form containers.
type ContainerRepo struct {
	pool *pgxpool.Pool
}

// NewContainerRepo создаёт новый ContainerRepo.
func NewContainerRepo(pool *pgxpool.Pool) *ContainerRepo {
	return &ContainerRepo{pool: pool}
}

const containerColumns = `
	id, title, description, user_email, escalade_email, cc_emails,
	access_token, mail_sender, escalate, use_working_days, country,
	validated, archived_at, definition_id, created_at, updated_at
`

// Create создаёт новый контейнер.
func (r *ContainerRepo) Create(ctx context.Context, c *domain.FormContainer) error {
	ccJSON, err := json.Marshal(c.CCEmails)
	if err != nil {
		return fmt.Errorf("marshal cc_emails: %w", err)
	}

	query := `
		INSERT INTO form_containers (id, title, description, user_email, escalade_email,
		                             cc_emails, access_token, mail_sender, escalate,
		                             use_working_days, country, validated, definition_id,
		                             created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.Title,
		nullString(c.Description),
		c.UserEmail,
		nullString(c.EscaladeEmail),
		ccJSON,
		c.AccessToken,
		c.MailSender,
		c.Escalate,
		c.UseWorkingDays,
		nullString(c.Country),
		c.Validated,
		c.DefinitionID,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert form container: %w", err)
	}
	return nil
}

// GetByID возвращает контейнер по ID.
func (r *ContainerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FormContainer, error) {
	query := `SELECT ` + containerColumns + ` FROM form_containers WHERE id = $1`
	return scanContainer(r.pool.QueryRow(ctx, query, id))
}

// GetByAccessToken возвращает контейнер по его access token.
func (r *ContainerRepo) GetByAccessToken(ctx context.Context, token string) (*domain.FormContainer, error) {
	query := `SELECT ` + containerColumns + ` FROM form_containers WHERE access_token = $1`
	return scanContainer(r.pool.QueryRow(ctx, query, token))
}

// List возвращает контейнеры постранично (новые первыми).
func (r *ContainerRepo) List(ctx context.Context, limit, offset int) ([]domain.FormContainer, error) {
	query := `
		SELECT ` + containerColumns + `
		FROM form_containers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list form containers: %w", err)
	}
	defer rows.Close()

	var containers []domain.FormContainer
	for rows.Next() {
		c, err := scanContainerRow(rows)
		if err != nil {
			return nil, err
		}
		containers = append(containers, *c)
	}
	return containers, rows.Err()
}

// SetValidated помечает контейнер проверенным.
func (r *ContainerRepo) SetValidated(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE form_containers SET validated = true, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("set validated: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive проставляет archived_at (отмена контейнера).
func (r *ContainerRepo) Archive(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE form_containers SET archived_at = $2, updated_at = NOW() WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("archive container: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByDefinition возвращает количество контейнеров, ссылающихся
// на определение workflow.
func (r *ContainerRepo) CountByDefinition(ctx context.Context, definitionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM form_containers WHERE definition_id = $1
	`, definitionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count containers by definition: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func scanContainer(row pgx.Row) (*domain.FormContainer, error) {
	c, err := scanContainerRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func scanContainerRow(row pgx.Row) (*domain.FormContainer, error) {
	var c domain.FormContainer
	var description, escaladeEmail, country *string
	var ccJSON []byte

	err := row.Scan(
		&c.ID,
		&c.Title,
		&description,
		&c.UserEmail,
		&escaladeEmail,
		&ccJSON,
		&c.AccessToken,
		&c.MailSender,
		&c.Escalate,
		&c.UseWorkingDays,
		&country,
		&c.Validated,
		&c.ArchivedAt,
		&c.DefinitionID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan form container: %w", err)
	}

	if description != nil {
		c.Description = *description
	}
	if escaladeEmail != nil {
		c.EscaladeEmail = *escaladeEmail
	}
	if country != nil {
		c.Country = *country
	}
	if ccJSON != nil {
		if err := json.Unmarshal(ccJSON, &c.CCEmails); err != nil {
			return nil, fmt.Errorf("unmarshal cc_emails: %w", err)
		}
	}

	return &c, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
