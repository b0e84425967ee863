package service

import (
	"context"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"

	"github.com/google/uuid"
)

const defaultPageSize = 20

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo      ports.TransactionRepository
	webhookRepo ports.WebhookRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(txRepo ports.TransactionRepository, webhookRepo ports.WebhookRepository) ports.ReportingService {
	return &reportingService{txRepo: txRepo, webhookRepo: webhookRepo}
}

// ListTransactions returns a paginated list of the merchant's transactions.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = defaultPageSize
	}
	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

func (s *reportingService) GetTransaction(ctx context.Context, merchantID, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if tx == nil || tx.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("transaction")
	}
	return tx, nil
}

// ListWebhookDeliveries returns the merchant's webhook delivery log, newest
// first, including retry state and terminal outcomes.
func (s *reportingService) ListWebhookDeliveries(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.WebhookDelivery, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	deliveries, total, err := s.webhookRepo.ListByMerchant(ctx, merchantID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return deliveries, total, nil
}
