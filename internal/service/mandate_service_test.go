package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/internal/core/ports/mocks"
	"ap2-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMandateServiceFixture(t *testing.T) (ports.MandateService, *mocks.MockMandateRepository, *mocks.MockAuditService) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockRepo := mocks.NewMockMandateRepository(ctrl)
	mockAudit := mocks.NewMockAuditService(ctrl)
	return NewMandateService(mockRepo, mockAudit), mockRepo, mockAudit
}

func activeMandate(userID uuid.UUID, agentID string, typ domain.MandateType, constraints string) *domain.Mandate {
	return &domain.Mandate{
		ID:          uuid.New(),
		UserID:      userID,
		AgentID:     agentID,
		Type:        typ,
		Status:      domain.MandateStatusActive,
		Constraints: json.RawMessage(constraints),
		ValidFrom:   time.Now().UTC().Add(-time.Hour),
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok, "expected *apperror.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func TestMandateService_Create_StartsPending(t *testing.T) {
	svc, mockRepo, mockAudit := newMandateServiceFixture(t)

	userID := uuid.New()
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, m *domain.Mandate) error {
			assert.Equal(t, domain.MandateStatusPending, m.Status)
			assert.Equal(t, userID, m.UserID)
			assert.False(t, m.ValidFrom.IsZero())
			return nil
		},
	)
	mockAudit.EXPECT().Record(gomock.Any(), gomock.Any())

	mandate, err := svc.Create(context.Background(), ports.CreateMandateRequest{
		UserID:      userID,
		AgentID:     "agent-1",
		AgentName:   "Shopping Agent",
		Type:        domain.MandateTypeCart,
		Constraints: json.RawMessage(`{"maxItemValue":100}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MandateStatusPending, mandate.Status)
}

func TestMandateService_Create_RejectsPaymentWithoutLimits(t *testing.T) {
	svc, _, _ := newMandateServiceFixture(t)

	_, err := svc.Create(context.Background(), ports.CreateMandateRequest{
		UserID:      uuid.New(),
		AgentID:     "agent-1",
		Type:        domain.MandateTypePayment,
		Constraints: json.RawMessage(`{"allowedPaymentMethods":["card"]}`),
	})
	assertAppErrorCode(t, err, "VALIDATION")
}

func TestMandateService_Approve_OnlyFromPending(t *testing.T) {
	svc, mockRepo, mockAudit := newMandateServiceFixture(t)

	userID := uuid.New()
	mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
	mandate.Status = domain.MandateStatusPending

	mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)
	mockRepo.EXPECT().UpdateStatus(gomock.Any(), mandate.ID, domain.MandateStatusActive).Return(nil)
	mockAudit.EXPECT().Record(gomock.Any(), gomock.Any())

	got, err := svc.Approve(context.Background(), userID, mandate.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MandateStatusActive, got.Status)
}

func TestMandateService_Approve_RejectsNonPending(t *testing.T) {
	svc, mockRepo, _ := newMandateServiceFixture(t)

	userID := uuid.New()
	mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)

	mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

	_, err := svc.Approve(context.Background(), userID, mandate.ID)
	assertAppErrorCode(t, err, "VALIDATION")
}

func TestMandateService_Revoke_RecordsReason(t *testing.T) {
	svc, mockRepo, mockAudit := newMandateServiceFixture(t)

	userID := uuid.New()
	mandate := activeMandate(userID, "agent-1", domain.MandateTypePayment, `{"maxTransactionAmount":500}`)

	mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)
	mockRepo.EXPECT().Revoke(gomock.Any(), mandate.ID, "user requested", gomock.Any()).Return(nil)
	mockAudit.EXPECT().Record(gomock.Any(), gomock.Any())

	got, err := svc.Revoke(context.Background(), userID, mandate.ID, "user requested")
	require.NoError(t, err)
	assert.Equal(t, domain.MandateStatusRevoked, got.Status)
	require.NotNil(t, got.RevokedReason)
	assert.Equal(t, "user requested", *got.RevokedReason)
	assert.NotNil(t, got.RevokedAt)
}

func TestMandateService_Revoke_TerminalIsRejected(t *testing.T) {
	svc, mockRepo, _ := newMandateServiceFixture(t)

	userID := uuid.New()
	mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
	mandate.Status = domain.MandateStatusRevoked

	mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

	_, err := svc.Revoke(context.Background(), userID, mandate.ID, "again")
	assertAppErrorCode(t, err, "VALIDATION")
}

func TestMandateService_Get_OtherUsersMandateIsNotFound(t *testing.T) {
	svc, mockRepo, _ := newMandateServiceFixture(t)

	mandate := activeMandate(uuid.New(), "agent-1", domain.MandateTypeCart, `{}`)
	mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

	_, err := svc.Get(context.Background(), uuid.New(), mandate.ID)
	assertAppErrorCode(t, err, "MANDATE_NOT_FOUND")
}

func TestMandateService_Get_LazilyExpires(t *testing.T) {
	svc, mockRepo, _ := newMandateServiceFixture(t)

	userID := uuid.New()
	mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
	past := time.Now().UTC().Add(-time.Minute)
	mandate.ValidUntil = &past

	mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)
	mockRepo.EXPECT().UpdateStatus(gomock.Any(), mandate.ID, domain.MandateStatusExpired).Return(nil)

	got, err := svc.Get(context.Background(), userID, mandate.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MandateStatusExpired, got.Status)
}

func TestMandateService_ValidateAccess_Order(t *testing.T) {
	userID := uuid.New()

	t.Run("missing mandate", func(t *testing.T) {
		svc, mockRepo, _ := newMandateServiceFixture(t)
		id := uuid.New()
		mockRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

		_, err := svc.ValidateAccess(context.Background(), id, "agent-1", domain.MandateTypeCart)
		assertAppErrorCode(t, err, "MANDATE_NOT_FOUND")
	})

	t.Run("wrong agent wins over wrong status", func(t *testing.T) {
		svc, mockRepo, _ := newMandateServiceFixture(t)
		mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
		mandate.Status = domain.MandateStatusSuspended
		mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

		_, err := svc.ValidateAccess(context.Background(), mandate.ID, "other-agent", domain.MandateTypeCart)
		assertAppErrorCode(t, err, "AGENT_NOT_AUTHORIZED")
	})

	t.Run("inactive names the actual status", func(t *testing.T) {
		svc, mockRepo, _ := newMandateServiceFixture(t)
		mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
		mandate.Status = domain.MandateStatusSuspended
		mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

		_, err := svc.ValidateAccess(context.Background(), mandate.ID, "agent-1", domain.MandateTypeCart)
		assertAppErrorCode(t, err, "MANDATE_INACTIVE")
		assert.Contains(t, err.(*apperror.AppError).Message, "suspended")
	})

	t.Run("expired flips status and rejects", func(t *testing.T) {
		svc, mockRepo, _ := newMandateServiceFixture(t)
		mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
		past := time.Now().UTC().Add(-time.Second)
		mandate.ValidUntil = &past
		mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), mandate.ID, domain.MandateStatusExpired).Return(nil)

		_, err := svc.ValidateAccess(context.Background(), mandate.ID, "agent-1", domain.MandateTypeCart)
		assertAppErrorCode(t, err, "MANDATE_EXPIRED")
	})

	t.Run("type mismatch", func(t *testing.T) {
		svc, mockRepo, _ := newMandateServiceFixture(t)
		mandate := activeMandate(userID, "agent-1", domain.MandateTypeCart, `{}`)
		mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

		_, err := svc.ValidateAccess(context.Background(), mandate.ID, "agent-1", domain.MandateTypePayment)
		assertAppErrorCode(t, err, "MANDATE_TYPE_MISMATCH")
	})

	t.Run("unspecified type accepts any mandate", func(t *testing.T) {
		svc, mockRepo, _ := newMandateServiceFixture(t)
		mandate := activeMandate(userID, "agent-1", domain.MandateTypeIntent, `{}`)
		mockRepo.EXPECT().GetByID(gomock.Any(), mandate.ID).Return(mandate, nil)

		got, err := svc.ValidateAccess(context.Background(), mandate.ID, "agent-1", "")
		require.NoError(t, err)
		assert.Equal(t, mandate.ID, got.ID)
	})
}
