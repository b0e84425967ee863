package service

import (
	"context"
	"testing"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/internal/core/ports/mocks"
	"ap2-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestReportingService_ListTransactions_DefaultsPagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTxRepo := mocks.NewMockTransactionRepository(ctrl)
	mockWebhookRepo := mocks.NewMockWebhookRepository(ctrl)
	svc := NewReportingService(mockTxRepo, mockWebhookRepo)

	merchantID := uuid.New()
	want := []domain.Transaction{{ID: uuid.New(), MerchantID: merchantID}}

	mockTxRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, 1, params.Page)
			assert.Equal(t, defaultPageSize, params.PageSize)
			return want, 1, nil
		},
	)

	got, total, err := svc.ListTransactions(context.Background(), ports.TransactionListParams{MerchantID: merchantID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, want, got)
}

func TestReportingService_GetTransaction_WrongMerchant(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTxRepo := mocks.NewMockTransactionRepository(ctrl)
	mockWebhookRepo := mocks.NewMockWebhookRepository(ctrl)
	svc := NewReportingService(mockTxRepo, mockWebhookRepo)

	txID := uuid.New()
	mockTxRepo.EXPECT().GetByID(gomock.Any(), txID).Return(&domain.Transaction{
		ID:         txID,
		MerchantID: uuid.New(),
	}, nil)

	_, err := svc.GetTransaction(context.Background(), uuid.New(), txID)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestReportingService_GetTransaction_Owned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTxRepo := mocks.NewMockTransactionRepository(ctrl)
	mockWebhookRepo := mocks.NewMockWebhookRepository(ctrl)
	svc := NewReportingService(mockTxRepo, mockWebhookRepo)

	merchantID := uuid.New()
	txID := uuid.New()
	mockTxRepo.EXPECT().GetByID(gomock.Any(), txID).Return(&domain.Transaction{
		ID:         txID,
		MerchantID: merchantID,
	}, nil)

	tx, err := svc.GetTransaction(context.Background(), merchantID, txID)
	require.NoError(t, err)
	assert.Equal(t, txID, tx.ID)
}

func TestReportingService_ListWebhookDeliveries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTxRepo := mocks.NewMockTransactionRepository(ctrl)
	mockWebhookRepo := mocks.NewMockWebhookRepository(ctrl)
	svc := NewReportingService(mockTxRepo, mockWebhookRepo)

	merchantID := uuid.New()
	want := []domain.WebhookDelivery{{ID: uuid.New(), MerchantID: merchantID}}
	mockWebhookRepo.EXPECT().ListByMerchant(gomock.Any(), merchantID, 1, defaultPageSize).Return(want, int64(1), nil)

	got, total, err := svc.ListWebhookDeliveries(context.Background(), merchantID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, want, got)
}
