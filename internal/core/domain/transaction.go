package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionType identifies which agent action a transaction records.
type TransactionType string

const (
	TransactionTypeCartAdd       TransactionType = "cart_add"
	TransactionTypeCartUpdate    TransactionType = "cart_update"
	TransactionTypeCartRemove    TransactionType = "cart_remove"
	TransactionTypeIntentCreate  TransactionType = "intent_create"
	TransactionTypeIntentApprove TransactionType = "intent_approve"
	TransactionTypeIntentReject  TransactionType = "intent_reject"
	TransactionTypePaymentExec   TransactionType = "payment_execute"
	TransactionTypePaymentRefund TransactionType = "payment_refund"
)

// TransactionStatus is the lifecycle state of a transaction. Transitions are
// monotonic forward; see CanTransitionTo.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusAuthorized TransactionStatus = "authorized"
	TransactionStatusDeclined   TransactionStatus = "declined"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

// Transaction records one authorized or attempted agent action.
// Amount is nil for non-monetary actions (e.g. cart_remove).
type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	MerchantID           uuid.UUID         `json:"merchant_id"`
	UserID               uuid.UUID         `json:"user_id"`
	AgentID              string            `json:"agent_id"`
	MandateID            uuid.UUID         `json:"mandate_id"`
	Type                 TransactionType   `json:"type"`
	Status               TransactionStatus `json:"status"`
	Amount               *float64          `json:"amount,omitempty"`
	Currency             string            `json:"currency"`
	Metadata             json.RawMessage   `json:"metadata,omitempty"`
	RequestedAt          time.Time         `json:"requested_at"`
	AuthorizedAt         *time.Time        `json:"authorized_at,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	FailedAt             *time.Time        `json:"failed_at,omitempty"`
	FailureReason        *string           `json:"failure_reason,omitempty"`
	GatewayTransactionID *string           `json:"gateway_transaction_id,omitempty"`
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. pending may complete directly for operations with no separate
// capture step (cart adds); refunds are only reachable from completed.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusAuthorized ||
			next == TransactionStatusDeclined ||
			next == TransactionStatusCompleted ||
			next == TransactionStatusFailed
	case TransactionStatusAuthorized:
		return next == TransactionStatusCompleted || next == TransactionStatusFailed
	case TransactionStatusCompleted:
		return next == TransactionStatusRefunded
	}
	return false
}

// IsTerminal returns true when no further transition except refund is possible.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusDeclined, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}
