package service

import (
	"context"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AgentActionRepository
	log  zerolog.Logger
}

// NewAuditService creates the agent action trail recorder.
// If repo is nil, actions are only written to the logger.
func NewAuditService(repo ports.AgentActionRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record persists an agent action asynchronously (fire-and-forget). A failed
// write never blocks or fails the operation being audited.
func (s *auditService) Record(ctx context.Context, action *domain.AgentAction) {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	go func() {
		s.log.Info().
			Str("action", string(action.Action)).
			Str("user_id", action.UserID.String()).
			Str("agent_id", action.AgentID).
			Bool("success", action.Success).
			Msg("agent action")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), action); err != nil {
				s.log.Warn().Err(err).Str("action", string(action.Action)).
					Msg("failed to persist agent action")
			}
		}
	}()
}

// ListByUser returns the most recent actions for a user.
func (s *auditService) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AgentAction, error) {
	if s.repo == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
