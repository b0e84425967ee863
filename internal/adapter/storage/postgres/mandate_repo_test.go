package postgres

import (
	"context"
	"testing"
	"time"

	"ap2-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMandate() *domain.Mandate {
	now := time.Now().UTC()
	until := now.Add(24 * time.Hour)
	return &domain.Mandate{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		AgentID:     "agent_shopper_01",
		AgentName:   "Shopping Assistant",
		Type:        domain.MandateTypePayment,
		Status:      domain.MandateStatusActive,
		Constraints: []byte(`{"maxTransactionAmount":500}`),
		ValidFrom:   now,
		ValidUntil:  &until,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func mandateRow(m *domain.Mandate) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "agent_id", "agent_name", "type", "status", "constraints",
		"valid_from", "valid_until", "created_at", "updated_at", "revoked_at", "revoked_reason",
	}).AddRow(
		m.ID, m.UserID, m.AgentID, m.AgentName, m.Type, m.Status, []byte(m.Constraints),
		m.ValidFrom, m.ValidUntil, m.CreatedAt, m.UpdatedAt, m.RevokedAt, m.RevokedReason,
	)
}

func TestMandateRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMandateRepo(mock)
	m := newTestMandate()

	mock.ExpectExec("INSERT INTO mandates").
		WithArgs(m.ID, m.UserID, m.AgentID, m.AgentName, m.Type, m.Status, m.Constraints,
			m.ValidFrom, m.ValidUntil, m.CreatedAt, m.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMandateRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMandateRepo(mock)
	m := newTestMandate()

	mock.ExpectQuery("SELECT .+ FROM mandates WHERE id").
		WithArgs(m.ID).
		WillReturnRows(mandateRow(m))

	got, err := repo.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.AgentID, got.AgentID)
	assert.Equal(t, domain.MandateTypePayment, got.Type)
	assert.JSONEq(t, string(m.Constraints), string(got.Constraints))
}

func TestMandateRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMandateRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM mandates WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMandateRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMandateRepo(mock)
	m := newTestMandate()

	mock.ExpectQuery("SELECT .+ FROM mandates WHERE user_id .+ ORDER BY created_at DESC").
		WithArgs(m.UserID).
		WillReturnRows(mandateRow(m))

	mandates, err := repo.ListByUser(context.Background(), m.UserID)
	require.NoError(t, err)
	require.Len(t, mandates, 1)
	assert.Equal(t, m.ID, mandates[0].ID)
}

func TestMandateRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMandateRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE mandates SET status").
		WithArgs(domain.MandateStatusSuspended, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), id, domain.MandateStatusSuspended)
	assert.ErrorContains(t, err, "mandate not found")
}

func TestMandateRepo_Revoke(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMandateRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE mandates SET status").
		WithArgs(domain.MandateStatusRevoked, at, "user requested", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.Revoke(context.Background(), id, "user requested", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
