package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxFailureReason marks a delivery that burned through its full retry
// schedule.
const maxFailureReason = "max delivery attempts exceeded"

// responseBodyLimit caps how much of the merchant's response we persist.
const responseBodyLimit = 1024

// WebhookPayload is the JSON body POSTed to the merchant webhook URL. The
// signature sent in X-AP2-Signature is computed over this exact JSON.
type WebhookPayload struct {
	Event      domain.WebhookEvent `json:"event"`
	MerchantID uuid.UUID           `json:"merchantId"`
	Data       any                 `json:"data"`
	Timestamp  int64               `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookService implements ports.WebhookService.
type webhookService struct {
	webhookRepo ports.WebhookRepository
	encSvc      ports.EncryptionService
	sigSvc      ports.SignatureService
	httpClient  HTTPClient
	timeout     time.Duration
	batchSize   int
	log         zerolog.Logger
}

// NewWebhookService creates a new webhook delivery service. timeout bounds a
// single delivery attempt; batchSize bounds one ProcessQueue sweep.
func NewWebhookService(
	webhookRepo ports.WebhookRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	timeout time.Duration,
	batchSize int,
	log zerolog.Logger,
) ports.WebhookService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &webhookService{
		webhookRepo: webhookRepo,
		encSvc:      encSvc,
		sigSvc:      sigSvc,
		httpClient:  httpClient,
		timeout:     timeout,
		batchSize:   batchSize,
		log:         log,
	}
}

// Enqueue persists a delivery due immediately and fires the first attempt in
// the background. Merchants without a webhook URL, and events the merchant's
// settings opt out of, are skipped silently.
func (s *webhookService) Enqueue(ctx context.Context, merchant *domain.Merchant, event domain.WebhookEvent, data any) error {
	if merchant.WebhookURL == nil || *merchant.WebhookURL == "" || merchant.WebhookSecretEnc == nil {
		s.log.Debug().Str("merchant_id", merchant.ID.String()).Str("event", string(event)).
			Msg("webhook: no webhook URL configured, skipping")
		return nil
	}
	if !domain.ShouldNotify(merchant.Settings, event) {
		return nil
	}

	now := time.Now().UTC()
	payload := WebhookPayload{
		Event:      event,
		MerchantID: merchant.ID,
		Data:       data,
		Timestamp:  now.UnixMilli(),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	secret, err := s.encSvc.Decrypt(*merchant.WebhookSecretEnc)
	if err != nil {
		return fmt.Errorf("decrypt webhook secret: %w", err)
	}

	delivery := &domain.WebhookDelivery{
		ID:            uuid.New(),
		MerchantID:    merchant.ID,
		Event:         event,
		Payload:       payloadBytes,
		Signature:     s.sigSvc.Sign(secret, string(payloadBytes)),
		URL:           *merchant.WebhookURL,
		NextAttemptAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.webhookRepo.Create(ctx, delivery); err != nil {
		return fmt.Errorf("persist webhook delivery: %w", err)
	}

	// First attempt off the request path. The sweep picks the delivery up
	// on its retry schedule if this one loses the race or fails.
	go func(d domain.WebhookDelivery) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.attemptDelivery(ctx, &d)
	}(*delivery)

	return nil
}

// ProcessQueue attempts every due pending delivery once. It is the
// correctness backstop behind the opportunistic attempt Enqueue fires.
func (s *webhookService) ProcessQueue(ctx context.Context) (int, error) {
	due, err := s.webhookRepo.GetPending(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending webhooks: %w", err)
	}

	for i := range due {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		s.attemptDelivery(attemptCtx, &due[i])
		cancel()
	}
	return len(due), nil
}

// attemptDelivery performs one POST and records the outcome. Both the
// delivered and failed updates are conditioned on the attempt counter read
// here, so a racing sweeper records at most one outcome per attempt.
func (s *webhookService) attemptDelivery(ctx context.Context, d *domain.WebhookDelivery) {
	status, body, err := s.post(ctx, d)
	now := time.Now().UTC()

	if err == nil && status >= 200 && status < 300 {
		if _, mErr := s.webhookRepo.MarkDelivered(ctx, d.ID, d.Attempts, now, status, body); mErr != nil {
			s.log.Error().Err(mErr).Str("delivery_id", d.ID.String()).
				Msg("webhook: failed to record delivery")
			return
		}
		s.log.Info().
			Str("delivery_id", d.ID.String()).
			Str("event", string(d.Event)).
			Int("attempt", d.Attempts+1).
			Int("status", status).
			Msg("webhook: delivered")
		return
	}

	reason := deliveryFailureReason(status, err)
	outcome := ports.AttemptOutcome{At: now, FailureReason: reason}
	if err == nil {
		outcome.ResponseStatus = &status
		outcome.ResponseBody = &body
	}

	if d.Attempts+1 >= domain.MaxDeliveryAttempts {
		outcome.FailureReason = maxFailureReason
	} else {
		next := now.Add(backoffDelay(d.Attempts + 1))
		outcome.NextAttemptAt = &next
	}

	if _, mErr := s.webhookRepo.MarkFailedAttempt(ctx, d.ID, d.Attempts, outcome); mErr != nil {
		s.log.Error().Err(mErr).Str("delivery_id", d.ID.String()).
			Msg("webhook: failed to record attempt outcome")
		return
	}

	evt := s.log.Warn().
		Str("delivery_id", d.ID.String()).
		Str("event", string(d.Event)).
		Int("attempt", d.Attempts+1).
		Str("reason", reason)
	if outcome.NextAttemptAt != nil {
		evt.Time("next_attempt_at", *outcome.NextAttemptAt).Msg("webhook: attempt failed, retry scheduled")
	} else {
		evt.Msg("webhook: permanently failed")
	}
}

// post sends the signed payload. Returns the HTTP status and a truncated
// response body, or a transport error.
func (s *webhookService) post(ctx context.Context, d *domain.WebhookDelivery) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AP2-Event", string(d.Event))
	req.Header.Set("X-AP2-Signature", d.Signature)
	// The header must match the timestamp inside the signed payload, which
	// was stamped when the delivery was created. Retries resend the same
	// value so the signature stays verifiable against the headers.
	req.Header.Set("X-AP2-Timestamp", strconv.FormatInt(d.CreatedAt.UnixMilli(), 10))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	return resp.StatusCode, string(body), nil
}

// backoffDelay returns the wait before retry n (1-based): 2, 4, 8, 16 minutes.
func backoffDelay(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * time.Minute
}

func deliveryFailureReason(status int, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unexpected status %d", status)
}
