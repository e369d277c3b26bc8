package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Every state change is a
// conditional update so concurrent writers never need explicit locks.
type TicketRepository interface {
	// Create inserts an open ticket, assigning id, per-conversation sequence and
	// timestamps. Returns ErrDuplicate when the conversation already has an active ticket.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetActiveByConversation(ctx context.Context, conversationID string) (*domain.Ticket, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Ticket, error)
	// ListUnviolatedActive returns open/in-progress tickets without a violation stamp.
	ListUnviolatedActive(ctx context.Context) ([]domain.Ticket, error)
	// MarkFirstResponse applies only to open tickets without a first response.
	MarkFirstResponse(ctx context.Context, id string, at time.Time) (*domain.Ticket, error)
	// Close applies only to tickets that are not closed yet.
	Close(ctx context.Context, id string, at time.Time) (*domain.Ticket, error)
	UpdatePriority(ctx context.Context, id string, priority domain.TicketPriority, at time.Time) (*domain.Ticket, error)
	// StampViolation sets sla_violated_at once; false means the predicate no longer held.
	StampViolation(ctx context.Context, id string, at time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, conversation_id, sequence, priority, status, category, metadata,
               created_at, updated_at, first_response_at, sla_violated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (conversation_id, sequence, priority, status, category, metadata)
        VALUES ($1,
                (SELECT COALESCE(MAX(sequence), 0) + 1 FROM tickets WHERE conversation_id=$1),
                $2, $3, $4, $5)
        RETURNING id, sequence, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.ConversationID,
		ticket.Priority,
		ticket.Status,
		ticket.Category,
		ticket.Metadata,
	).Scan(&ticket.ID, &ticket.Sequence, &ticket.CreatedAt, &ticket.UpdatedAt)
	return translateError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetActiveByConversation(ctx context.Context, conversationID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE conversation_id=$1 AND status <> 'closed'`
	return r.fetchSingle(ctx, query, conversationID)
}

func (r *ticketRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE conversation_id=$1 ORDER BY sequence ASC`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListUnviolatedActive(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE status IN ('open', 'in_progress') AND sla_violated_at IS NULL
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) MarkFirstResponse(ctx context.Context, id string, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET first_response_at=$2, status='in_progress', updated_at=$2
        WHERE id=$1 AND first_response_at IS NULL AND status='open'
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, at)
}

func (r *ticketRepository) Close(ctx context.Context, id string, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status='closed', closed_at=$2, updated_at=$2
        WHERE id=$1 AND status <> 'closed'
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, at)
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, id string, priority domain.TicketPriority, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET priority=$2, updated_at=$3
        WHERE id=$1 AND status <> 'closed'
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, priority, at)
}

func (r *ticketRepository) StampViolation(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET sla_violated_at=$2
        WHERE id=$1 AND sla_violated_at IS NULL AND status IN ('open', 'in_progress')`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, translateError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateError(err)
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ConversationID,
		&ticket.Sequence,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Category,
		&ticket.Metadata,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.SLAViolatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
