package ports

import (
	"context"
	"time"

	"ap2-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error)
	GetByEmail(ctx context.Context, email string) (*domain.Merchant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error
	UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.MerchantSettings) error
	UpdateWebhook(ctx context.Context, id uuid.UUID, url string, secretEnc string) error
	UpdateKeys(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MandateRepository defines persistence operations for mandates.
type MandateRepository interface {
	Create(ctx context.Context, mandate *domain.Mandate) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Mandate, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Mandate, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MandateStatus) error
	Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

// TransactionRepository defines persistence operations for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// UpdateStatus performs a conditional transition from `from` to `to`.
	// Returns false when the row was not in `from` anymore, so concurrent
	// writers settle on exactly one winner.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, upd TransactionStatusUpdate) (bool, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// SumCompletedByMandate sums amounts of completed transactions of the
	// given types under a mandate inside [since, until).
	SumCompletedByMandate(ctx context.Context, mandateID uuid.UUID, types []domain.TransactionType, since, until time.Time) (float64, error)
	// SumCompletedByMerchant sums amounts of completed transactions of the
	// given types across all of a merchant's mandates inside [since, until).
	SumCompletedByMerchant(ctx context.Context, merchantID uuid.UUID, types []domain.TransactionType, since, until time.Time) (float64, error)
	// CountByMandate counts transactions of the given types under a mandate
	// since the given instant, regardless of status.
	CountByMandate(ctx context.Context, mandateID uuid.UUID, types []domain.TransactionType, since time.Time) (int, error)
}

// TransactionStatusUpdate carries the column writes accompanying a status
// transition. Nil fields are left untouched.
type TransactionStatusUpdate struct {
	At                   time.Time
	FailureReason        *string
	GatewayTransactionID *string
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	MerchantID uuid.UUID
	Status     *domain.TransactionStatus
	Type       *domain.TransactionType
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// WebhookRepository defines persistence operations for webhook deliveries.
type WebhookRepository interface {
	Create(ctx context.Context, delivery *domain.WebhookDelivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error)
	// GetPending returns non-terminal deliveries due at or before now,
	// oldest due first.
	GetPending(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error)
	// MarkDelivered and MarkFailedAttempt are conditioned on the attempt
	// counter the caller observed, so two sweepers racing on the same row
	// record at most one outcome per attempt.
	MarkDelivered(ctx context.Context, id uuid.UUID, priorAttempts int, at time.Time, responseStatus int, responseBody string) (bool, error)
	MarkFailedAttempt(ctx context.Context, id uuid.UUID, priorAttempts int, outcome AttemptOutcome) (bool, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.WebhookDelivery, int64, error)
}

// AttemptOutcome records one failed delivery attempt. NextAttemptAt is nil
// when the delivery is permanently failed.
type AttemptOutcome struct {
	At             time.Time
	NextAttemptAt  *time.Time
	FailureReason  string
	ResponseStatus *int
	ResponseBody   *string
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AgentActionRepository defines persistence for the agent audit trail.
type AgentActionRepository interface {
	Create(ctx context.Context, action *domain.AgentAction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AgentAction, error)
}
