package service

import (
	"context"
	"fmt"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"

	"github.com/google/uuid"
)

type mandateService struct {
	mandateRepo ports.MandateRepository
	auditSvc    ports.AuditService
}

// NewMandateService creates the user-facing mandate lifecycle service.
func NewMandateService(
	mandateRepo ports.MandateRepository,
	auditSvc ports.AuditService,
) ports.MandateService {
	return &mandateService{
		mandateRepo: mandateRepo,
		auditSvc:    auditSvc,
	}
}

// Create stores a new mandate in pending status after shape-checking its
// constraints against the declared type.
func (s *mandateService) Create(ctx context.Context, req ports.CreateMandateRequest) (*domain.Mandate, error) {
	if err := domain.ValidateConstraintShape(req.Type, req.Constraints); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	now := time.Now().UTC()
	mandate := &domain.Mandate{
		ID:          uuid.New(),
		UserID:      req.UserID,
		AgentID:     req.AgentID,
		AgentName:   req.AgentName,
		Type:        req.Type,
		Status:      domain.MandateStatusPending,
		Constraints: req.Constraints,
		ValidFrom:   now,
		ValidUntil:  req.ValidUntil,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.mandateRepo.Create(ctx, mandate); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create mandate: %w", err))
	}

	s.auditSvc.Record(ctx, &domain.AgentAction{
		ID:        uuid.New(),
		UserID:    req.UserID,
		AgentID:   req.AgentID,
		MandateID: &mandate.ID,
		Action:    domain.ActionCreateMandate,
		Details:   string(req.Constraints),
		Success:   true,
		CreatedAt: now,
	})

	return mandate, nil
}

func (s *mandateService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error) {
	mandate, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	// A read past validUntil flips the mandate to expired before returning.
	if mandate.Status == domain.MandateStatusActive && mandate.IsExpiredAt(time.Now().UTC()) {
		if err := s.mandateRepo.UpdateStatus(ctx, id, domain.MandateStatusExpired); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("expire mandate: %w", err))
		}
		mandate.Status = domain.MandateStatusExpired
	}
	return mandate, nil
}

func (s *mandateService) List(ctx context.Context, userID uuid.UUID) ([]domain.Mandate, error) {
	mandates, err := s.mandateRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return mandates, nil
}

// Approve moves a pending mandate to active.
func (s *mandateService) Approve(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error) {
	mandate, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if mandate.Status != domain.MandateStatusPending {
		return nil, apperror.Validation(fmt.Sprintf("mandate is %s, not pending approval", mandate.Status))
	}

	if err := s.mandateRepo.UpdateStatus(ctx, id, domain.MandateStatusActive); err != nil {
		return nil, apperror.InternalError(err)
	}
	mandate.Status = domain.MandateStatusActive

	s.audit(ctx, mandate, domain.ActionApproveMandate, "")
	return mandate, nil
}

// Suspend pauses an active mandate. Suspension is reversible via Approve's
// counterpart on the repository, but terminal states are off limits.
func (s *mandateService) Suspend(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error) {
	mandate, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if mandate.Status.IsTerminal() {
		return nil, apperror.Validation(fmt.Sprintf("mandate is already %s", mandate.Status))
	}

	if err := s.mandateRepo.UpdateStatus(ctx, id, domain.MandateStatusSuspended); err != nil {
		return nil, apperror.InternalError(err)
	}
	mandate.Status = domain.MandateStatusSuspended

	s.audit(ctx, mandate, domain.ActionSuspendMandate, "")
	return mandate, nil
}

// Revoke terminally disables a mandate with a recorded reason.
func (s *mandateService) Revoke(ctx context.Context, userID, id uuid.UUID, reason string) (*domain.Mandate, error) {
	mandate, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if mandate.Status.IsTerminal() {
		return nil, apperror.Validation(fmt.Sprintf("mandate is already %s", mandate.Status))
	}

	now := time.Now().UTC()
	if err := s.mandateRepo.Revoke(ctx, id, reason, now); err != nil {
		return nil, apperror.InternalError(err)
	}
	mandate.Status = domain.MandateStatusRevoked
	mandate.RevokedAt = &now
	mandate.RevokedReason = &reason

	s.audit(ctx, mandate, domain.ActionRevokeMandate, reason)
	return mandate, nil
}

// ValidateAccess runs the ordered authorization checks for an agent acting
// under a mandate. The order is fixed: existence, agent binding, status,
// expiry, type.
func (s *mandateService) ValidateAccess(ctx context.Context, mandateID uuid.UUID, agentID string, required domain.MandateType) (*domain.Mandate, error) {
	mandate, err := s.mandateRepo.GetByID(ctx, mandateID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if mandate == nil {
		return nil, apperror.ErrMandateNotFound()
	}
	if mandate.AgentID != agentID {
		return nil, apperror.ErrAgentNotAuthorized()
	}
	if mandate.Status != domain.MandateStatusActive {
		return nil, apperror.ErrMandateInactive(string(mandate.Status))
	}
	if mandate.IsExpiredAt(time.Now().UTC()) {
		if err := s.mandateRepo.UpdateStatus(ctx, mandateID, domain.MandateStatusExpired); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("expire mandate: %w", err))
		}
		return nil, apperror.ErrMandateExpired()
	}
	if required != "" && mandate.Type != required {
		return nil, apperror.ErrMandateTypeMismatch(string(required), string(mandate.Type))
	}
	return mandate, nil
}

func (s *mandateService) getOwned(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error) {
	mandate, err := s.mandateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if mandate == nil || mandate.UserID != userID {
		return nil, apperror.ErrMandateNotFound()
	}
	return mandate, nil
}

func (s *mandateService) audit(ctx context.Context, mandate *domain.Mandate, action domain.AgentActionKind, details string) {
	s.auditSvc.Record(ctx, &domain.AgentAction{
		ID:        uuid.New(),
		UserID:    mandate.UserID,
		AgentID:   mandate.AgentID,
		MandateID: &mandate.ID,
		Action:    action,
		Details:   details,
		Success:   true,
		CreatedAt: time.Now().UTC(),
	})
}
