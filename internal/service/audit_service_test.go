package service

import (
	"context"
	"testing"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Record_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAgentActionRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, action *domain.AgentAction) error {
			assert.Equal(t, domain.ActionPaymentExecute, action.Action)
			assert.NotEqual(t, uuid.Nil, action.ID)
			assert.False(t, action.CreatedAt.IsZero())
			close(done)
			return nil
		},
	)

	mandateID := uuid.New()
	svc.Record(context.Background(), &domain.AgentAction{
		UserID:    uuid.New(),
		AgentID:   "agent-7",
		MandateID: &mandateID,
		Action:    domain.ActionPaymentExecute,
		Details:   `{"amount":12.5}`,
		Success:   true,
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent action not persisted in time")
	}
}

func TestAuditService_Record_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	// Should not panic
	svc.Record(context.Background(), &domain.AgentAction{
		UserID:  uuid.New(),
		AgentID: "agent-7",
		Action:  domain.ActionCreateMandate,
	})

	time.Sleep(50 * time.Millisecond) // let goroutine run
}

func TestAuditService_ListByUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAgentActionRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	userID := uuid.New()
	want := []domain.AgentAction{{ID: uuid.New(), UserID: userID, Action: domain.ActionCartOperation}}
	mockRepo.EXPECT().ListByUser(gomock.Any(), userID, 50).Return(want, nil)

	// limit <= 0 falls back to the default page size
	got, err := svc.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
