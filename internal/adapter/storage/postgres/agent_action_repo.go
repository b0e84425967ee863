package postgres

import (
	"context"
	"fmt"

	"ap2-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// AgentActionRepo implements ports.AgentActionRepository.
type AgentActionRepo struct {
	pool Pool
}

// NewAgentActionRepo creates a new AgentActionRepo.
func NewAgentActionRepo(pool Pool) *AgentActionRepo {
	return &AgentActionRepo{pool: pool}
}

func (r *AgentActionRepo) Create(ctx context.Context, a *domain.AgentAction) error {
	query := `INSERT INTO agent_actions (id, user_id, agent_id, mandate_id, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.UserID, a.AgentID, a.MandateID, a.Action, a.Details, a.Success, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agent action: %w", err)
	}
	return nil
}

// ListByUser returns the newest actions for a user, capped at limit.
func (r *AgentActionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AgentAction, error) {
	query := `SELECT id, user_id, agent_id, mandate_id, action, details, success, created_at
		FROM agent_actions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.AgentAction
	for rows.Next() {
		a := domain.AgentAction{}
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.AgentID, &a.MandateID, &a.Action, &a.Details, &a.Success, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan agent action row: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent action rows: %w", err)
	}
	return actions, nil
}
