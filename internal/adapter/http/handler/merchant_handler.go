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

// MerchantHandler handles merchant onboarding and self-management endpoints.
type MerchantHandler struct {
	merchantSvc  ports.MerchantService
	reportingSvc ports.ReportingService
}

// NewMerchantHandler creates a new MerchantHandler.
func NewMerchantHandler(merchantSvc ports.MerchantService, reportingSvc ports.ReportingService) *MerchantHandler {
	return &MerchantHandler{merchantSvc: merchantSvc, reportingSvc: reportingSvc}
}

// Register handles POST /api/v1/merchants. Public; the response is the only
// time the API secret (and webhook secret, if any) is shown in plaintext.
func (h *MerchantHandler) Register(c *gin.Context) {
	var req dto.RegisterMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	tier := domain.MerchantTier(req.Tier)
	if tier == "" {
		tier = domain.MerchantTierStarter
	}

	creds, err := h.merchantSvc.Register(c.Request.Context(), ports.RegisterMerchantRequest{
		Name:         req.Name,
		BusinessName: req.BusinessName,
		Email:        req.Email,
		Website:      req.Website,
		Tier:         tier,
		WebhookURL:   req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.MerchantCredentialsResponse{
		MerchantID:    creds.Merchant.ID.String(),
		APIKey:        creds.APIKey,
		APISecret:     creds.APISecret,
		WebhookSecret: creds.WebhookSecret,
	})
}

// Get handles GET /api/v1/merchants/:merchantId.
func (h *MerchantHandler) Get(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	merchant, err := h.merchantSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, merchant)
}

// UpdateStatus handles PUT /api/v1/merchants/:merchantId/status.
func (h *MerchantHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	var req dto.UpdateMerchantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.merchantSvc.UpdateStatus(c.Request.Context(), id, domain.MerchantStatus(req.Status)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": req.Status})
}

// UpdateSettings handles PUT /api/v1/merchants/:merchantId/settings.
func (h *MerchantHandler) UpdateSettings(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	var settings domain.MerchantSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.merchantSvc.UpdateSettings(c.Request.Context(), id, settings); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, settings)
}

// ConfigureWebhook handles PUT /api/v1/merchants/:merchantId/webhook. A
// fresh signing secret is minted and returned in plaintext exactly once.
func (h *MerchantHandler) ConfigureWebhook(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	var req dto.ConfigureWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	secret, err := h.merchantSvc.ConfigureWebhook(c.Request.Context(), id, req.URL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ConfigureWebhookResponse{
		WebhookURL:    req.URL,
		WebhookSecret: secret,
	})
}

// RotateKeys handles POST /api/v1/merchants/:merchantId/rotate-keys.
func (h *MerchantHandler) RotateKeys(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	creds, err := h.merchantSvc.RotateKeys(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MerchantCredentialsResponse{
		MerchantID: creds.Merchant.ID.String(),
		APIKey:     creds.APIKey,
		APISecret:  creds.APISecret,
	})
}

// ListTransactions handles GET /api/v1/merchants/:merchantId/transactions.
func (h *MerchantHandler) ListTransactions(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.TransactionListParams{
		MerchantID: id,
		From:       q.From,
		To:         q.To,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Status != "" {
		s := domain.TransactionStatus(q.Status)
		params.Status = &s
	}
	if q.Type != "" {
		ty := domain.TransactionType(q.Type)
		params.Type = &ty
	}

	transactions, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(transactions, total, q.Page, q.PageSize))
}

// GetTransaction handles GET /api/v1/merchants/:merchantId/transactions/:transactionId.
func (h *MerchantHandler) GetTransaction(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	txID, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	tx, err := h.reportingSvc.GetTransaction(c.Request.Context(), id, txID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, tx)
}

// ListWebhookDeliveries handles GET /api/v1/merchants/:merchantId/webhooks.
func (h *MerchantHandler) ListWebhookDeliveries(c *gin.Context) {
	id, ok := h.ownMerchantID(c)
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	deliveries, total, err := h.reportingSvc.ListWebhookDeliveries(c.Request.Context(), id, q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(deliveries, total, q.Page, q.PageSize))
}

// ownMerchantID parses the :merchantId path parameter and checks it names
// the authenticated merchant. Mismatches read as not-found.
func (h *MerchantHandler) ownMerchantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("merchantId"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid merchant id"))
		return uuid.Nil, false
	}

	merchant, ok := middleware.MerchantFromContext(c)
	if !ok || merchant.ID != id {
		response.Error(c, apperror.ErrNotFound("merchant"))
		return uuid.Nil, false
	}
	return id, true
}
