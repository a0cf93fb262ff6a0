package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relance/internal/domain"
)

// TimelineRepo — append-only репозиторий аудиторского следа.
type TimelineRepo struct {
	pool *pgxpool.Pool
}

// NewTimelineRepo создаёт новый TimelineRepo.
func NewTimelineRepo(pool *pgxpool.Pool) *TimelineRepo {
	return &TimelineRepo{pool: pool}
}

// Append добавляет запись. Записи никогда не изменяются и не удаляются.
func (r *TimelineRepo) Append(ctx context.Context, e *domain.TimelineEntry) error {
	return appendTimeline(ctx, r.pool, e)
}

func appendTimeline(ctx context.Context, db dbExecer, e *domain.TimelineEntry) error {
	query := `
		INSERT INTO timeline_entries (container_id, form_id, event, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.Exec(ctx, query,
		e.ContainerID,
		e.FormID,
		e.Event,
		nullString(e.Details),
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert timeline entry: %w", err)
	}
	return nil
}

// ListByContainer возвращает записи контейнера в хронологическом порядке.
func (r *TimelineRepo) ListByContainer(ctx context.Context, containerID uuid.UUID) ([]domain.TimelineEntry, error) {
	query := `
		SELECT id, container_id, form_id, event, details, timestamp
		FROM timeline_entries
		WHERE container_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("list timeline entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimelineEntry
	for rows.Next() {
		var e domain.TimelineEntry
		var details *string
		if err := rows.Scan(&e.ID, &e.ContainerID, &e.FormID, &e.Event, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		if details != nil {
			e.Details = *details
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
