package handler

import (
	"ap2-gateway/internal/adapter/http/dto"
	"ap2-gateway/internal/adapter/http/middleware"
	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"
	"ap2-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MandateHandler handles the user-facing mandate lifecycle endpoints.
type MandateHandler struct {
	mandateSvc ports.MandateService
	auditSvc   ports.AuditService
}

// NewMandateHandler creates a new MandateHandler.
func NewMandateHandler(mandateSvc ports.MandateService, auditSvc ports.AuditService) *MandateHandler {
	return &MandateHandler{mandateSvc: mandateSvc, auditSvc: auditSvc}
}

// Create handles POST /api/v1/mandates.
func (h *MandateHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.CreateMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	mandate, err := h.mandateSvc.Create(c.Request.Context(), ports.CreateMandateRequest{
		UserID:      userID,
		AgentID:     req.AgentID,
		AgentName:   req.AgentName,
		Type:        domain.MandateType(req.Type),
		Constraints: req.Constraints,
		ValidUntil:  req.ValidUntil,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, mandate)
}

// List handles GET /api/v1/mandates.
func (h *MandateHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	mandates, err := h.mandateSvc.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, mandates)
}

// Get handles GET /api/v1/mandates/:mandateId.
func (h *MandateHandler) Get(c *gin.Context) {
	userID, mandateID, ok := requireUserAndMandate(c)
	if !ok {
		return
	}

	mandate, err := h.mandateSvc.Get(c.Request.Context(), userID, mandateID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, mandate)
}

// Approve handles POST /api/v1/mandates/:mandateId/approve.
func (h *MandateHandler) Approve(c *gin.Context) {
	userID, mandateID, ok := requireUserAndMandate(c)
	if !ok {
		return
	}

	mandate, err := h.mandateSvc.Approve(c.Request.Context(), userID, mandateID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, mandate)
}

// Suspend handles POST /api/v1/mandates/:mandateId/suspend.
func (h *MandateHandler) Suspend(c *gin.Context) {
	userID, mandateID, ok := requireUserAndMandate(c)
	if !ok {
		return
	}

	mandate, err := h.mandateSvc.Suspend(c.Request.Context(), userID, mandateID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, mandate)
}

// Revoke handles POST /api/v1/mandates/:mandateId/revoke.
func (h *MandateHandler) Revoke(c *gin.Context) {
	userID, mandateID, ok := requireUserAndMandate(c)
	if !ok {
		return
	}

	var req dto.RevokeMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	mandate, err := h.mandateSvc.Revoke(c.Request.Context(), userID, mandateID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, mandate)
}

// ListActions handles GET /api/v1/agent-actions.
func (h *MandateHandler) ListActions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	actions, err := h.auditSvc.ListByUser(c.Request.Context(), userID, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, actions)
}

// requireUser fetches the authenticated user ID or writes a 401.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

func requireUserAndMandate(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	mandateID, err := uuid.Parse(c.Param("mandateId"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid mandate id"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, mandateID, true
}
