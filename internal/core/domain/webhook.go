package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent names a merchant-facing notification.
type WebhookEvent string

const (
	EventMandateCreated   WebhookEvent = "mandate.created"
	EventMandateApproved  WebhookEvent = "mandate.approved"
	EventMandateSuspended WebhookEvent = "mandate.suspended"
	EventMandateRevoked   WebhookEvent = "mandate.revoked"
	EventMandateExpired   WebhookEvent = "mandate.expired"

	EventIntentCreated  WebhookEvent = "intent.created"
	EventIntentApproved WebhookEvent = "intent.approved"
	EventIntentRejected WebhookEvent = "intent.rejected"
	EventIntentExecuted WebhookEvent = "intent.executed"
	EventIntentExpired  WebhookEvent = "intent.expired"

	EventPaymentInitiated WebhookEvent = "payment.initiated"
	EventPaymentCompleted WebhookEvent = "payment.completed"
	EventPaymentFailed    WebhookEvent = "payment.failed"
	EventPaymentRefunded  WebhookEvent = "payment.refunded"

	EventCartUpdated WebhookEvent = "cart.updated"
)

// MaxDeliveryAttempts bounds the webhook retry schedule. After the fifth
// failed attempt a delivery is permanently failed.
const MaxDeliveryAttempts = 5

// WebhookDelivery tracks one outbound notification and its retry state.
// Exactly one of DeliveredAt/FailedAt is set once terminal.
type WebhookDelivery struct {
	ID             uuid.UUID       `json:"id"`
	MerchantID     uuid.UUID       `json:"merchant_id"`
	Event          WebhookEvent    `json:"event"`
	Payload        json.RawMessage `json:"payload"` // signed payload JSON as sent
	Signature      string          `json:"signature"`
	URL            string          `json:"url"`
	Attempts       int             `json:"attempts"`
	LastAttemptAt  *time.Time      `json:"last_attempt_at,omitempty"`
	NextAttemptAt  *time.Time      `json:"next_attempt_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	FailedAt       *time.Time      `json:"failed_at,omitempty"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	ResponseStatus *int            `json:"response_status,omitempty"`
	ResponseBody   *string         `json:"response_body,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal returns true once the delivery will never be attempted again.
func (d *WebhookDelivery) IsTerminal() bool {
	return d.DeliveredAt != nil || d.FailedAt != nil
}

// ShouldNotify consults the merchant's notification preferences for an event
// family. Cart events always notify.
func ShouldNotify(settings MerchantSettings, event WebhookEvent) bool {
	switch event {
	case EventMandateCreated, EventMandateApproved, EventMandateSuspended,
		EventMandateRevoked, EventMandateExpired:
		return settings.NotifyOnMandateCreated
	case EventIntentCreated, EventIntentApproved, EventIntentRejected,
		EventIntentExecuted, EventIntentExpired:
		return settings.NotifyOnIntentCreated
	case EventPaymentInitiated, EventPaymentCompleted, EventPaymentFailed,
		EventPaymentRefunded:
		return settings.NotifyOnPaymentExecuted
	case EventCartUpdated:
		return true
	}
	return false
}
