package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MandateType determines the constraint shape a mandate carries.
type MandateType string

const (
	MandateTypeCart    MandateType = "cart"    // agent may manage the shopping cart
	MandateTypeIntent  MandateType = "intent"  // agent may express purchase intent
	MandateTypePayment MandateType = "payment" // agent may execute payments
)

// MandateStatus is the lifecycle state of a mandate. Revoked and expired
// are terminal.
type MandateStatus string

const (
	MandateStatusPending   MandateStatus = "pending"
	MandateStatusActive    MandateStatus = "active"
	MandateStatusSuspended MandateStatus = "suspended"
	MandateStatusRevoked   MandateStatus = "revoked"
	MandateStatusExpired   MandateStatus = "expired"
)

// Mandate is a revocable, typed, constraint-bounded grant of authority from
// a user to an agent. Constraints are a tagged union keyed by Type; the raw
// JSON is decoded on demand by the typed accessors below.
type Mandate struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	AgentID       string          `json:"agent_id"`
	AgentName     string          `json:"agent_name"`
	Type          MandateType     `json:"type"`
	Status        MandateStatus   `json:"status"`
	Constraints   json.RawMessage `json:"constraints"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	RevokedAt     *time.Time      `json:"revoked_at,omitempty"`
	RevokedReason *string         `json:"revoked_reason,omitempty"`
}

// CartConstraints bound what an agent may place into a cart.
type CartConstraints struct {
	MaxItemsPerDay    *int     `json:"maxItemsPerDay,omitempty"`
	MaxItemValue      *float64 `json:"maxItemValue,omitempty"`
	AllowedCategories []string `json:"allowedCategories,omitempty"`
	BlockedCategories []string `json:"blockedCategories,omitempty"`
	AllowedMerchants  []string `json:"allowedMerchants,omitempty"`
	RequiresApproval  *bool    `json:"requiresApproval,omitempty"`
}

// IntentConstraints bound purchase intents and control auto-approval.
type IntentConstraints struct {
	MaxIntentsPerDay *int     `json:"maxIntentsPerDay,omitempty"`
	MaxIntentValue   *float64 `json:"maxIntentValue,omitempty"`
	AutoApproveUnder *float64 `json:"autoApproveUnder,omitempty"`
	ExpiryHours      *int     `json:"expiryHours,omitempty"`
}

// DefaultIntentExpiry applies when ExpiryHours is absent.
const DefaultIntentExpiry = 24 * time.Hour

// IntentExpiry returns the lifetime of intents created under these constraints.
func (c *IntentConstraints) IntentExpiry() time.Duration {
	if c.ExpiryHours != nil && *c.ExpiryHours > 0 {
		return time.Duration(*c.ExpiryHours) * time.Hour
	}
	return DefaultIntentExpiry
}

// PaymentConstraints bound payment execution.
type PaymentConstraints struct {
	MaxTransactionAmount  *float64 `json:"maxTransactionAmount,omitempty"`
	DailySpendingLimit    *float64 `json:"dailySpendingLimit,omitempty"`
	MonthlySpendingLimit  *float64 `json:"monthlySpendingLimit,omitempty"`
	AllowedPaymentMethods []string `json:"allowedPaymentMethods,omitempty"`
	AllowedMerchants      []string `json:"allowedMerchants,omitempty"`
}

// CartConstraints decodes the constraint payload for a cart mandate.
func (m *Mandate) CartConstraints() (*CartConstraints, error) {
	if m.Type != MandateTypeCart {
		return nil, fmt.Errorf("mandate %s is %s, not cart", m.ID, m.Type)
	}
	var c CartConstraints
	if err := json.Unmarshal(m.Constraints, &c); err != nil {
		return nil, fmt.Errorf("decoding cart constraints: %w", err)
	}
	return &c, nil
}

// IntentConstraints decodes the constraint payload for an intent mandate.
func (m *Mandate) IntentConstraints() (*IntentConstraints, error) {
	if m.Type != MandateTypeIntent {
		return nil, fmt.Errorf("mandate %s is %s, not intent", m.ID, m.Type)
	}
	var c IntentConstraints
	if err := json.Unmarshal(m.Constraints, &c); err != nil {
		return nil, fmt.Errorf("decoding intent constraints: %w", err)
	}
	return &c, nil
}

// PaymentConstraints decodes the constraint payload for a payment mandate.
func (m *Mandate) PaymentConstraints() (*PaymentConstraints, error) {
	if m.Type != MandateTypePayment {
		return nil, fmt.Errorf("mandate %s is %s, not payment", m.ID, m.Type)
	}
	var c PaymentConstraints
	if err := json.Unmarshal(m.Constraints, &c); err != nil {
		return nil, fmt.Errorf("decoding payment constraints: %w", err)
	}
	return &c, nil
}

// ValidateConstraintShape checks that raw constraints are structurally valid
// for the given mandate type. Payment mandates must carry at least one
// spending limit.
func ValidateConstraintShape(t MandateType, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("constraints are required")
	}
	switch t {
	case MandateTypeCart:
		var c CartConstraints
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("invalid cart constraints: %w", err)
		}
	case MandateTypeIntent:
		var c IntentConstraints
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("invalid intent constraints: %w", err)
		}
	case MandateTypePayment:
		var c PaymentConstraints
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("invalid payment constraints: %w", err)
		}
		if c.MaxTransactionAmount == nil && c.DailySpendingLimit == nil && c.MonthlySpendingLimit == nil {
			return fmt.Errorf("payment mandate must have at least one spending limit")
		}
	default:
		return fmt.Errorf("unknown mandate type: %s", t)
	}
	return nil
}

// IsTerminal returns true once a mandate can never become active again.
func (s MandateStatus) IsTerminal() bool {
	return s == MandateStatusRevoked || s == MandateStatusExpired
}

// IsExpiredAt reports whether the mandate's validity window has passed.
func (m *Mandate) IsExpiredAt(now time.Time) bool {
	return m.ValidUntil != nil && now.After(*m.ValidUntil)
}
