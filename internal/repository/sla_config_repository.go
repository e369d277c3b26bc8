package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// SLAConfigRepository is a key-value store of deadline minutes keyed by priority.
type SLAConfigRepository interface {
	Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error)
	List(ctx context.Context) ([]domain.SLAConfig, error)
	Upsert(ctx context.Context, cfg *domain.SLAConfig) error
	Delete(ctx context.Context, priority domain.TicketPriority) error
}

type slaConfigRepository struct {
	pool *pgxpool.Pool
}

// NewSLAConfigRepository instantiates the repository.
func NewSLAConfigRepository(pool *pgxpool.Pool) SLAConfigRepository {
	return &slaConfigRepository{pool: pool}
}

func (r *slaConfigRepository) Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	const query = `
        SELECT id, priority, first_response_minutes, resolution_minutes, created_at, updated_at
        FROM sla_config WHERE priority=$1`
	var cfg domain.SLAConfig
	if err := r.pool.QueryRow(ctx, query, priority).Scan(
		&cfg.ID,
		&cfg.Priority,
		&cfg.FirstResponseMinutes,
		&cfg.ResolutionMinutes,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &cfg, nil
}

func (r *slaConfigRepository) List(ctx context.Context) ([]domain.SLAConfig, error) {
	const query = `
        SELECT id, priority, first_response_minutes, resolution_minutes, created_at, updated_at
        FROM sla_config ORDER BY priority ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()

	var result []domain.SLAConfig
	for rows.Next() {
		var cfg domain.SLAConfig
		if err := rows.Scan(
			&cfg.ID,
			&cfg.Priority,
			&cfg.FirstResponseMinutes,
			&cfg.ResolutionMinutes,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

func (r *slaConfigRepository) Upsert(ctx context.Context, cfg *domain.SLAConfig) error {
	const query = `
        INSERT INTO sla_config (priority, first_response_minutes, resolution_minutes)
        VALUES ($1,$2,$3)
        ON CONFLICT (priority) DO UPDATE
            SET first_response_minutes=EXCLUDED.first_response_minutes,
                resolution_minutes=EXCLUDED.resolution_minutes,
                updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		cfg.Priority,
		cfg.FirstResponseMinutes,
		cfg.ResolutionMinutes,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
}

func (r *slaConfigRepository) Delete(ctx context.Context, priority domain.TicketPriority) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sla_config WHERE priority=$1`, priority)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
