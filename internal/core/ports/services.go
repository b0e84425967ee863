package ports

import (
	"context"
	"encoding/json"
	"time"

	"ap2-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secret string, payload string) string
	Verify(secret string, payload string, signature string) bool
	// Canonical builds the signed string for a request or webhook body:
	// "<timestampMillis>.<body>".
	Canonical(timestampMillis int64, body string) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for user sessions.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// --- Service Ports (Business Logic) ---

// AuthService defines user authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterUserRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterUserRequest holds input for user registration.
type RegisterUserRequest struct {
	Email    string
	Password string
	Name     string
}

// MerchantService defines merchant account management.
type MerchantService interface {
	Register(ctx context.Context, req RegisterMerchantRequest) (*MerchantCredentials, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error
	UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.MerchantSettings) error
	// ConfigureWebhook sets the delivery URL and mints a fresh signing
	// secret, returned in plaintext exactly once.
	ConfigureWebhook(ctx context.Context, id uuid.UUID, url string) (string, error)
	RotateKeys(ctx context.Context, id uuid.UUID) (*MerchantCredentials, error)
}

// RegisterMerchantRequest holds input for merchant registration.
type RegisterMerchantRequest struct {
	Name         string
	BusinessName string
	Email        string
	Website      *string
	Tier         domain.MerchantTier
	WebhookURL   *string
}

// MerchantCredentials holds plaintext credentials shown only once.
// WebhookSecret is nil unless a webhook URL was configured.
type MerchantCredentials struct {
	Merchant      *domain.Merchant
	APIKey        string
	APISecret     string
	WebhookSecret *string
}

// MandateService defines the user-facing mandate lifecycle.
type MandateService interface {
	Create(ctx context.Context, req CreateMandateRequest) (*domain.Mandate, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Mandate, error)
	Approve(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error)
	Suspend(ctx context.Context, userID, id uuid.UUID) (*domain.Mandate, error)
	Revoke(ctx context.Context, userID, id uuid.UUID, reason string) (*domain.Mandate, error)
	// ValidateAccess checks that the mandate exists, belongs to the agent,
	// is active, unexpired, and matches the required type. Reading past
	// validUntil flips the mandate to expired before failing.
	ValidateAccess(ctx context.Context, mandateID uuid.UUID, agentID string, required domain.MandateType) (*domain.Mandate, error)
}

// CreateMandateRequest holds input for mandate creation.
type CreateMandateRequest struct {
	UserID      uuid.UUID
	AgentID     string
	AgentName   string
	Type        domain.MandateType
	Constraints json.RawMessage
	ValidUntil  *time.Time
}

// GatewayService defines the boundary operations available to merchant
// integrations acting on behalf of agents.
type GatewayService interface {
	AuthorizeRequest(ctx context.Context, merchant *domain.Merchant, req AuthorizationRequest) (*AuthorizationResult, error)
	VerifyMandate(ctx context.Context, req VerifyMandateRequest) (*MandateVerification, error)
	ProcessCartOperation(ctx context.Context, merchant *domain.Merchant, req CartOperationRequest) (*OperationResult, error)
	ProcessIntentOperation(ctx context.Context, merchant *domain.Merchant, req IntentOperationRequest) (*OperationResult, error)
	ProcessPayment(ctx context.Context, merchant *domain.Merchant, req PaymentRequest) (*OperationResult, error)
	RefundPayment(ctx context.Context, merchant *domain.Merchant, transactionID uuid.UUID, reason string) (*OperationResult, error)
}

// AuthorizationRequest asks whether an agent action may proceed, recording
// a transaction either way.
type AuthorizationRequest struct {
	UserID          uuid.UUID
	AgentID         string
	MandateID       uuid.UUID
	TransactionType domain.TransactionType
	Amount          *float64
	Metadata        json.RawMessage
}

// AuthorizationResult is the gateway's answer to an authorization request.
type AuthorizationResult struct {
	Authorized    bool                      `json:"authorized"`
	TransactionID uuid.UUID                 `json:"transactionId"`
	Message       string                    `json:"message,omitempty"`
	Constraints   *AuthorizationConstraints `json:"constraints,omitempty"`
}

// AuthorizationConstraints echoes the bounds that applied to the decision.
type AuthorizationConstraints struct {
	MaxAmount        float64 `json:"maxAmount"`
	RequiresApproval bool    `json:"requiresApproval"`
}

// OperationResult is the outcome of one gateway operation. Transaction is
// always set when an authorization decision was recorded, including declines.
type OperationResult struct {
	Success     bool                `json:"success"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Message     string              `json:"message,omitempty"`
	Data        map[string]any      `json:"data,omitempty"`
}

// VerifyMandateRequest checks whether an agent currently holds authority of
// a given type.
type VerifyMandateRequest struct {
	MandateID uuid.UUID
	AgentID   string
	Type      domain.MandateType
}

// MandateVerification is the read-only answer to a verification request.
type MandateVerification struct {
	Valid           bool               `json:"valid"`
	Mandate         *domain.Mandate    `json:"mandate,omitempty"`
	Reason          *string            `json:"reason,omitempty"`
	RemainingLimits map[string]float64 `json:"remainingLimits,omitempty"`
}

// CartOperationRequest holds one agent cart action.
type CartOperationRequest struct {
	UserID    uuid.UUID
	MandateID uuid.UUID
	AgentID   string
	Operation string // add, update, remove
	ItemID    string
	ItemName  string
	ItemValue *float64
	Quantity  int
	Category  string
	Reasoning string
}

// IntentOperationRequest holds one agent intent action.
type IntentOperationRequest struct {
	UserID      uuid.UUID
	MandateID   uuid.UUID
	AgentID     string
	Operation   string // create, approve, reject
	IntentID    *uuid.UUID
	Amount      float64
	Description string
	Reasoning   string
}

// PaymentRequest holds one agent payment execution.
type PaymentRequest struct {
	UserID        uuid.UUID
	MandateID     uuid.UUID
	AgentID       string
	Amount        float64
	Currency      string
	PaymentMethod string
	CardNumber    string
	Description   string
	Reasoning     string
}

// WebhookService defines async webhook delivery.
type WebhookService interface {
	// Enqueue persists a delivery and fires the first attempt in the
	// background. A merchant without a webhook URL is a no-op.
	Enqueue(ctx context.Context, merchant *domain.Merchant, event domain.WebhookEvent, data any) error
	// ProcessQueue attempts every due pending delivery once and returns
	// the number processed.
	ProcessQueue(ctx context.Context) (int, error)
}

// PaymentGateway is the downstream processor used to move money.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, gatewayTransactionID string, amount float64) (*ChargeResult, error)
}

// ChargeRequest is the downstream charge input.
type ChargeRequest struct {
	Amount        float64
	Currency      string
	PaymentMethod string
	CardNumber    string
}

// ChargeResult is the downstream processor's answer.
type ChargeResult struct {
	Succeeded            bool
	GatewayTransactionID string
	FailureReason        string
}

// AuditService records the agent action trail.
type AuditService interface {
	Record(ctx context.Context, action *domain.AgentAction)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AgentAction, error)
}

// ReportingService exposes merchant-facing activity listings.
type ReportingService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// GetTransaction returns one transaction, scoped to the owning merchant.
	GetTransaction(ctx context.Context, merchantID, transactionID uuid.UUID) (*domain.Transaction, error)
	ListWebhookDeliveries(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.WebhookDelivery, int64, error)
}
