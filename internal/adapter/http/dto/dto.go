package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ---- User auth ----

// RegisterUserRequest is the request body for user registration.
type RegisterUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // Unix timestamp
}

// ---- Merchant management ----

// RegisterMerchantRequest is the request body for merchant onboarding.
type RegisterMerchantRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=100"`
	BusinessName string  `json:"businessName" binding:"required,min=1,max=200"`
	Email        string  `json:"email" binding:"required,email,max=255"`
	Website      *string `json:"website,omitempty" binding:"omitempty,safe_url"`
	Tier         string  `json:"tier,omitempty" binding:"omitempty,oneof=starter business enterprise"`
	WebhookURL   *string `json:"webhookUrl,omitempty" binding:"omitempty,safe_url"`
}

// MerchantCredentialsResponse carries plaintext credentials, shown exactly
// once at registration or key rotation.
type MerchantCredentialsResponse struct {
	MerchantID    string  `json:"merchantId"`
	APIKey        string  `json:"apiKey"`
	APISecret     string  `json:"apiSecret"`
	WebhookSecret *string `json:"webhookSecret,omitempty"`
}

// UpdateMerchantStatusRequest changes a merchant account status.
type UpdateMerchantStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending active suspended deactivated"`
}

// ConfigureWebhookRequest sets the merchant's webhook endpoint.
type ConfigureWebhookRequest struct {
	URL string `json:"url" binding:"required,safe_url"`
}

// ConfigureWebhookResponse returns the freshly minted signing secret.
type ConfigureWebhookResponse struct {
	WebhookURL    string `json:"webhookUrl"`
	WebhookSecret string `json:"webhookSecret"`
}

// ---- Mandates ----

// CreateMandateRequest is the request body for granting a mandate.
type CreateMandateRequest struct {
	AgentID     string          `json:"agentId" binding:"required,safe_id,max=100"`
	AgentName   string          `json:"agentName" binding:"required,min=1,max=100"`
	Type        string          `json:"type" binding:"required,oneof=cart intent payment"`
	Constraints json.RawMessage `json:"constraints" binding:"required"`
	ValidUntil  *time.Time      `json:"validUntil,omitempty"`
}

// RevokeMandateRequest is the request body for revoking a mandate.
type RevokeMandateRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ---- Gateway operations ----

// AuthorizeRequest asks whether an agent action may proceed.
type AuthorizeRequest struct {
	UserID          uuid.UUID       `json:"userId" binding:"required"`
	AgentID         string          `json:"agentId" binding:"required,safe_id"`
	MandateID       uuid.UUID       `json:"mandateId" binding:"required"`
	TransactionType string          `json:"transactionType" binding:"required,oneof=cart_add cart_update cart_remove intent_create intent_approve intent_reject payment_execute payment_refund"`
	Amount          *float64        `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// VerifyMandateRequest checks agent authority without recording anything.
type VerifyMandateRequest struct {
	MandateID uuid.UUID `json:"mandateId" binding:"required"`
	AgentID   string    `json:"agentId" binding:"required,safe_id"`
	Type      string    `json:"type,omitempty" binding:"omitempty,oneof=cart intent payment"`
}

// CartOperationRequest is one agent cart action.
type CartOperationRequest struct {
	UserID    uuid.UUID `json:"userId" binding:"required"`
	MandateID uuid.UUID `json:"mandateId" binding:"required"`
	AgentID   string    `json:"agentId" binding:"required,safe_id"`
	Operation string    `json:"operation" binding:"required,oneof=add update remove"`
	ItemID    string    `json:"itemId" binding:"required,max=100"`
	ItemName  string    `json:"itemName,omitempty" binding:"max=200"`
	ItemValue *float64  `json:"itemValue,omitempty" binding:"omitempty,gte=0"`
	Quantity  int       `json:"quantity,omitempty" binding:"omitempty,gte=1"`
	Category  string    `json:"category,omitempty" binding:"max=100"`
	Reasoning string    `json:"reasoning,omitempty" binding:"max=1000"`
}

// IntentOperationRequest is one agent purchase-intent action.
type IntentOperationRequest struct {
	UserID      uuid.UUID  `json:"userId" binding:"required"`
	MandateID   uuid.UUID  `json:"mandateId" binding:"required"`
	AgentID     string     `json:"agentId" binding:"required,safe_id"`
	Operation   string     `json:"operation" binding:"required,oneof=create approve reject"`
	IntentID    *uuid.UUID `json:"intentId,omitempty"`
	Amount      float64    `json:"amount" binding:"required,gt=0"`
	Description string     `json:"description,omitempty" binding:"max=500"`
	Reasoning   string     `json:"reasoning,omitempty" binding:"max=1000"`
}

// PaymentRequest is one agent payment execution.
type PaymentRequest struct {
	UserID        uuid.UUID `json:"userId" binding:"required"`
	MandateID     uuid.UUID `json:"mandateId" binding:"required"`
	AgentID       string    `json:"agentId" binding:"required,safe_id"`
	Amount        float64   `json:"amount" binding:"required,gt=0"`
	Currency      string    `json:"currency" binding:"required,len=3"`
	PaymentMethod string    `json:"paymentMethod" binding:"required,oneof=card paypal"`
	CardNumber    string    `json:"cardNumber,omitempty" binding:"max=19"`
	Description   string    `json:"description,omitempty" binding:"max=500"`
	Reasoning     string    `json:"reasoning,omitempty" binding:"max=1000"`
}

// RefundRequest reverses a completed payment.
type RefundRequest struct {
	TransactionID uuid.UUID `json:"transactionId" binding:"required"`
	Reason        string    `json:"reason" binding:"required,min=1,max=500"`
}

// ---- Reporting ----

// TransactionListQuery holds the query parameters for transaction listings.
type TransactionListQuery struct {
	Page     int        `form:"page,default=1" binding:"omitempty,gte=1"`
	PageSize int        `form:"pageSize,default=20" binding:"omitempty,gte=1,lte=100"`
	Status   string     `form:"status" binding:"omitempty,oneof=pending authorized declined completed failed refunded"`
	Type     string     `form:"type" binding:"omitempty,oneof=cart_add cart_update cart_remove intent_create intent_approve intent_reject payment_execute payment_refund"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// PageQuery holds plain pagination parameters.
type PageQuery struct {
	Page     int `form:"page,default=1" binding:"omitempty,gte=1"`
	PageSize int `form:"pageSize,default=20" binding:"omitempty,gte=1,lte=100"`
}

// ListResponse wraps a paginated collection.
type ListResponse struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NewListResponse computes the page envelope for a collection.
func NewListResponse(items any, total int64, page, pageSize int) ListResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
