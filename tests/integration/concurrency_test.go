package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Racing writers on the same transaction must settle on exactly one winner
// for any given status transition.
func TestTransactionStatusTransitionSingleWinner(t *testing.T) {
	repo := newInMemoryTransactionRepo()
	ctx := context.Background()

	tx := &domain.Transaction{
		ID:          uuid.New(),
		MerchantID:  uuid.New(),
		UserID:      uuid.New(),
		MandateID:   uuid.New(),
		AgentID:     "agent-1",
		Type:        domain.TransactionTypePaymentExec,
		Status:      domain.TransactionStatusPending,
		Currency:    "USD",
		RequestedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, tx))

	const writers = 32
	var wins int64
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			ok, err := repo.UpdateStatus(ctx, tx.ID,
				domain.TransactionStatusPending, domain.TransactionStatusAuthorized,
				ports.TransactionStatusUpdate{At: time.Now().UTC()})
			if err == nil && ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.TransactionStatusAuthorized, got.Status)
	assert.NotNil(t, got.AuthorizedAt)
}

// webhookFixture wires a standalone webhook service against an in-memory
// repo and a controllable receiver.
type webhookFixture struct {
	repo     *inMemoryWebhookRepo
	svc      ports.WebhookService
	merchant *domain.Merchant
}

func newWebhookFixture(t *testing.T, receiverURL string) *webhookFixture {
	t.Helper()

	log := zerolog.Nop()
	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	secretEnc, err := encSvc.Encrypt("whsec_integration")
	require.NoError(t, err)

	repo := newInMemoryWebhookRepo()
	svc := service.NewWebhookService(repo, encSvc, service.NewHMACSignatureService(),
		&http.Client{Timeout: time.Second}, time.Second, 10, log)

	merchant := &domain.Merchant{
		ID:               uuid.New(),
		Status:           domain.MerchantStatusActive,
		Tier:             domain.MerchantTierStarter,
		WebhookURL:       &receiverURL,
		WebhookSecretEnc: &secretEnc,
		Settings:         domain.DefaultSettingsForTier(domain.MerchantTierStarter),
	}
	return &webhookFixture{repo: repo, svc: svc, merchant: merchant}
}

// A receiver that keeps failing must see the full backoff schedule
// (2, 4, 8, 16 minutes) and a permanent failure after the fifth attempt.
func TestWebhookRetrySchedule(t *testing.T) {
	var hits int64
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer receiver.Close()

	f := newWebhookFixture(t, receiver.URL)
	ctx := context.Background()

	require.NoError(t, f.svc.Enqueue(ctx, f.merchant, domain.EventPaymentCompleted, map[string]any{"ok": true}))

	deliveries := f.repo.all()
	require.Len(t, deliveries, 1)
	id := deliveries[0].ID

	// Enqueue fires the first attempt in the background.
	require.Eventually(t, func() bool {
		d, _ := f.repo.GetByID(ctx, id)
		return d != nil && d.Attempts == 1
	}, 3*time.Second, 10*time.Millisecond)

	for attempt := 1; attempt < domain.MaxDeliveryAttempts; attempt++ {
		d, err := f.repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, attempt, d.Attempts)
		require.NotNil(t, d.NextAttemptAt, "attempt %d should schedule a retry", attempt)
		require.NotNil(t, d.LastAttemptAt)

		wantDelay := time.Duration(1<<attempt) * time.Minute
		assert.Equal(t, wantDelay, d.NextAttemptAt.Sub(*d.LastAttemptAt),
			"backoff after attempt %d", attempt)

		// Rewind the clock instead of waiting out the backoff.
		f.repo.setNextAttempt(id, time.Now().UTC().Add(-time.Second))
		n, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	d, err := f.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxDeliveryAttempts, d.Attempts)
	assert.Nil(t, d.NextAttemptAt)
	assert.NotNil(t, d.FailedAt)
	require.NotNil(t, d.FailureReason)
	assert.Equal(t, "max delivery attempts exceeded", *d.FailureReason)
	assert.Equal(t, int64(domain.MaxDeliveryAttempts), atomic.LoadInt64(&hits))
}

// Two sweepers racing on the same due delivery must record exactly one
// outcome for the attempt.
func TestConcurrentSweepRecordsOneOutcome(t *testing.T) {
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	f := newWebhookFixture(t, receiver.URL)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	delivery := &domain.WebhookDelivery{
		ID:            uuid.New(),
		MerchantID:    f.merchant.ID,
		Event:         domain.EventPaymentCompleted,
		Payload:       []byte(`{"event":"payment.completed"}`),
		Signature:     "sig",
		URL:           receiver.URL,
		NextAttemptAt: &past,
		CreatedAt:     past,
		UpdatedAt:     past,
	}
	require.NoError(t, f.repo.Create(ctx, delivery))

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, _ = f.svc.ProcessQueue(ctx)
		}()
	}
	wg.Wait()

	d, err := f.repo.GetByID(ctx, delivery.ID)
	require.NoError(t, err)
	assert.True(t, d.IsTerminal())
	assert.NotNil(t, d.DeliveredAt)
	assert.Equal(t, 1, d.Attempts, "both sweepers attempted, only one outcome recorded")
}

// Concurrent signed payments under the same mandate must all complete when
// no spending limit is in play.
func TestConcurrentPayments(t *testing.T) {
	app := newTestApp(t)
	merchant := app.registerMerchant(t, "parallel@example.com", nil)
	userID, token := app.registerUser(t, "parallel-user@example.com")
	mandateID := app.createActiveMandate(t, token, "agent-1", "payment", map[string]any{
		"maxTransactionAmount": 500.0,
	})

	const workers = 8
	var succeeded int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			code, env := app.doSigned(t, "/api/v1/gateway/payment", map[string]any{
				"userId":        userID,
				"mandateId":     mandateID,
				"agentId":       "agent-1",
				"amount":        10.0 + float64(n),
				"currency":      "USD",
				"paymentMethod": "paypal",
				"description":   fmt.Sprintf("parallel purchase %d", n),
			}, merchant.apiKey, merchant.apiSecret)
			if code != http.StatusCreated {
				return
			}
			var result struct {
				Success bool `json:"success"`
			}
			decodeData(t, env, &result)
			if result.Success {
				atomic.AddInt64(&succeeded, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(workers), atomic.LoadInt64(&succeeded))

	params := ports.TransactionListParams{MerchantID: merchant.merchantID, Page: 1, PageSize: 50}
	status := domain.TransactionStatusCompleted
	params.Status = &status
	txs, total, err := app.txRepo.List(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), total)
	assert.Len(t, txs, workers)
}
