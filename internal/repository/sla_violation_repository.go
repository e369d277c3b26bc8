package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// ViolationFilter captures listing parameters.
type ViolationFilter struct {
	TicketID *string
	Type     *domain.ViolationType
	Since    *time.Time
	Limit    int
	Offset   int
}

// SLAViolationRepository stores append-only violation records.
type SLAViolationRepository interface {
	// Create inserts the violation unless one of the same type already exists
	// for the ticket; the boolean reports whether a row was written.
	Create(ctx context.Context, violation *domain.SLAViolation) (bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAViolation, error)
	List(ctx context.Context, filter ViolationFilter) ([]domain.SLAViolation, error)
}

type slaViolationRepository struct {
	pool *pgxpool.Pool
}

// NewSLAViolationRepository instantiates the repository.
func NewSLAViolationRepository(pool *pgxpool.Pool) SLAViolationRepository {
	return &slaViolationRepository{pool: pool}
}

func (r *slaViolationRepository) Create(ctx context.Context, violation *domain.SLAViolation) (bool, error) {
	const query = `
        INSERT INTO sla_violations (ticket_id, violation_type, expected_at, violated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (ticket_id, violation_type) DO NOTHING
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		violation.TicketID,
		violation.ViolationType,
		violation.ExpectedAt,
		violation.ViolatedAt,
	).Scan(&violation.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translateError(err)
	}
	return true, nil
}

func (r *slaViolationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAViolation, error) {
	return r.List(ctx, ViolationFilter{TicketID: &ticketID, Limit: 100})
}

func (r *slaViolationRepository) List(ctx context.Context, filter ViolationFilter) ([]domain.SLAViolation, error) {
	base := `SELECT id, ticket_id, violation_type, expected_at, violated_at FROM sla_violations`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("violation_type=$%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, fmt.Sprintf("violated_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY violated_at ASC, violation_type ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()

	var result []domain.SLAViolation
	for rows.Next() {
		var v domain.SLAViolation
		if err := rows.Scan(&v.ID, &v.TicketID, &v.ViolationType, &v.ExpectedAt, &v.ViolatedAt); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
