package handler

import (
	"ap2-gateway/internal/adapter/http/dto"
	"ap2-gateway/internal/adapter/http/middleware"
	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"
	"ap2-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// GatewayHandler handles the merchant-facing agent payment endpoints.
type GatewayHandler struct {
	gatewaySvc ports.GatewayService
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(gatewaySvc ports.GatewayService) *GatewayHandler {
	return &GatewayHandler{gatewaySvc: gatewaySvc}
}

// Authorize handles POST /api/v1/gateway/authorize.
func (h *GatewayHandler) Authorize(c *gin.Context) {
	merchant, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.gatewaySvc.AuthorizeRequest(c.Request.Context(), merchant, ports.AuthorizationRequest{
		UserID:          req.UserID,
		AgentID:         req.AgentID,
		MandateID:       req.MandateID,
		TransactionType: domain.TransactionType(req.TransactionType),
		Amount:          req.Amount,
		Metadata:        req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// VerifyMandate handles POST /api/v1/gateway/verify-mandate.
func (h *GatewayHandler) VerifyMandate(c *gin.Context) {
	if _, ok := requireMerchant(c); !ok {
		return
	}

	var req dto.VerifyMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.gatewaySvc.VerifyMandate(c.Request.Context(), ports.VerifyMandateRequest{
		MandateID: req.MandateID,
		AgentID:   req.AgentID,
		Type:      domain.MandateType(req.Type),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Cart handles POST /api/v1/gateway/cart.
func (h *GatewayHandler) Cart(c *gin.Context) {
	merchant, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.CartOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.gatewaySvc.ProcessCartOperation(c.Request.Context(), merchant, ports.CartOperationRequest{
		UserID:    req.UserID,
		MandateID: req.MandateID,
		AgentID:   req.AgentID,
		Operation: req.Operation,
		ItemID:    req.ItemID,
		ItemName:  req.ItemName,
		ItemValue: req.ItemValue,
		Quantity:  req.Quantity,
		Category:  req.Category,
		Reasoning: req.Reasoning,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Intent handles POST /api/v1/gateway/intent.
func (h *GatewayHandler) Intent(c *gin.Context) {
	merchant, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.IntentOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.gatewaySvc.ProcessIntentOperation(c.Request.Context(), merchant, ports.IntentOperationRequest{
		UserID:      req.UserID,
		MandateID:   req.MandateID,
		AgentID:     req.AgentID,
		Operation:   req.Operation,
		IntentID:    req.IntentID,
		Amount:      req.Amount,
		Description: req.Description,
		Reasoning:   req.Reasoning,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Payment handles POST /api/v1/gateway/payment.
func (h *GatewayHandler) Payment(c *gin.Context) {
	merchant, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.gatewaySvc.ProcessPayment(c.Request.Context(), merchant, ports.PaymentRequest{
		UserID:        req.UserID,
		MandateID:     req.MandateID,
		AgentID:       req.AgentID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		CardNumber:    req.CardNumber,
		Description:   req.Description,
		Reasoning:     req.Reasoning,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Refund handles POST /api/v1/gateway/payment/refund.
func (h *GatewayHandler) Refund(c *gin.Context) {
	merchant, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.gatewaySvc.RefundPayment(c.Request.Context(), merchant, req.TransactionID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// requireMerchant fetches the authenticated merchant or writes a 401.
func requireMerchant(c *gin.Context) (*domain.Merchant, bool) {
	merchant, ok := middleware.MerchantFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return nil, false
	}
	return merchant, true
}
