package postgres

import (
	"context"
	"testing"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func newTestTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          uuid.New(),
		MerchantID:  uuid.New(),
		UserID:      uuid.New(),
		AgentID:     "agent-1",
		MandateID:   uuid.New(),
		Type:        domain.TransactionTypePaymentExec,
		Status:      domain.TransactionStatusPending,
		Amount:      floatPtr(49.99),
		Currency:    "USD",
		Metadata:    []byte(`{"reasoning":"test"}`),
		RequestedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	tx := newTestTransaction()

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(tx.ID, tx.MerchantID, tx.UserID, tx.AgentID, tx.MandateID, tx.Type, tx.Status,
			tx.Amount, tx.Currency, tx.Metadata, tx.RequestedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), tx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateStatus_ConditionalWins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE transactions").
		WithArgs(domain.TransactionStatusAuthorized, at, (*string)(nil), (*string)(nil), id, domain.TransactionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.UpdateStatus(context.Background(), id,
		domain.TransactionStatusPending, domain.TransactionStatusAuthorized,
		ports.TransactionStatusUpdate{At: at})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransactionRepo_UpdateStatus_LoserGetsFalse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()
	reason := "mandate revoked"

	mock.ExpectExec("UPDATE transactions").
		WithArgs(domain.TransactionStatusDeclined, at, &reason, (*string)(nil), id, domain.TransactionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.UpdateStatus(context.Background(), id,
		domain.TransactionStatusPending, domain.TransactionStatusDeclined,
		ports.TransactionStatusUpdate{At: at, FailureReason: &reason})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionRepo_UpdateStatus_IllegalTransitionRejected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	// declined is terminal; no SQL should run
	_, err = repo.UpdateStatus(context.Background(), uuid.New(),
		domain.TransactionStatusDeclined, domain.TransactionStatusCompleted,
		ports.TransactionStatusUpdate{At: time.Now()})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumCompletedByMandate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	mandateID := uuid.New()
	since := time.Now().UTC().Truncate(24 * time.Hour)
	until := time.Now().UTC()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(mandateID, []string{"payment_execute"}, since, until).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(123.45))

	sum, err := repo.SumCompletedByMandate(context.Background(), mandateID,
		[]domain.TransactionType{domain.TransactionTypePaymentExec}, since, until)
	require.NoError(t, err)
	assert.Equal(t, 123.45, sum)
}

func TestTransactionRepo_SumCompletedByMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	merchantID := uuid.New()
	since := time.Now().UTC().Truncate(24 * time.Hour)
	until := time.Now().UTC()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(merchantID, []string{"payment_execute"}, since, until).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(6789.01))

	sum, err := repo.SumCompletedByMerchant(context.Background(), merchantID,
		[]domain.TransactionType{domain.TransactionTypePaymentExec}, since, until)
	require.NoError(t, err)
	assert.Equal(t, 6789.01, sum)
}

func TestTransactionRepo_CountByMandate_NilTypesCountsAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	mandateID := uuid.New()
	since := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(mandateID, since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByMandate(context.Background(), mandateID, nil, since)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestTransactionRepo_List_FiltersAndPaginates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	tx := newTestTransaction()
	status := domain.TransactionStatusCompleted

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(tx.MerchantID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(tx.MerchantID, status, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "merchant_id", "user_id", "agent_id", "mandate_id", "type", "status",
			"amount", "currency", "metadata", "requested_at", "authorized_at", "completed_at",
			"failed_at", "failure_reason", "gateway_transaction_id",
		}).AddRow(
			tx.ID, tx.MerchantID, tx.UserID, tx.AgentID, tx.MandateID, tx.Type, status,
			tx.Amount, tx.Currency, []byte(tx.Metadata), tx.RequestedAt, nil, nil,
			nil, nil, nil,
		))

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		MerchantID: tx.MerchantID,
		Status:     &status,
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assert.Equal(t, tx.ID, txns[0].ID)
}
