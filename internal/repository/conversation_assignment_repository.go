package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// ConversationAssignmentRepository maintains which agent currently owns a conversation.
type ConversationAssignmentRepository interface {
	Set(ctx context.Context, assignment *domain.ConversationAssignment) error
	Get(ctx context.Context, conversationID string) (*domain.ConversationAssignment, error)
}

type conversationAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewConversationAssignmentRepository instantiates the repository.
func NewConversationAssignmentRepository(pool *pgxpool.Pool) ConversationAssignmentRepository {
	return &conversationAssignmentRepository{pool: pool}
}

func (r *conversationAssignmentRepository) Set(ctx context.Context, assignment *domain.ConversationAssignment) error {
	const query = `
        INSERT INTO conversation_assignments (conversation_id, agent_id, escalation_id, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (conversation_id) DO UPDATE
            SET agent_id=EXCLUDED.agent_id, escalation_id=EXCLUDED.escalation_id, updated_at=EXCLUDED.updated_at`
	if assignment.UpdatedAt.IsZero() {
		assignment.UpdatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, query,
		assignment.ConversationID,
		assignment.AgentID,
		assignment.EscalationID,
		assignment.UpdatedAt,
	)
	return translateError(err)
}

func (r *conversationAssignmentRepository) Get(ctx context.Context, conversationID string) (*domain.ConversationAssignment, error) {
	const query = `
        SELECT conversation_id, agent_id, escalation_id, updated_at
        FROM conversation_assignments WHERE conversation_id=$1`
	var a domain.ConversationAssignment
	if err := r.pool.QueryRow(ctx, query, conversationID).Scan(&a.ConversationID, &a.AgentID, &a.EscalationID, &a.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}
