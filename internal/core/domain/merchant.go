package domain

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusPending     MerchantStatus = "pending"
	MerchantStatusActive      MerchantStatus = "active"
	MerchantStatusSuspended   MerchantStatus = "suspended"
	MerchantStatusDeactivated MerchantStatus = "deactivated"
)

// MerchantTier seeds the default transaction limits at registration.
type MerchantTier string

const (
	MerchantTierStarter    MerchantTier = "starter"
	MerchantTierBusiness   MerchantTier = "business"
	MerchantTierEnterprise MerchantTier = "enterprise"
)

// Merchant represents a registered merchant in the system.
// API and webhook secrets are stored encrypted and never serialized.
type Merchant struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	BusinessName     string           `json:"business_name"`
	Email            string           `json:"email"`
	Website          *string          `json:"website,omitempty"`
	Status           MerchantStatus   `json:"status"`
	Tier             MerchantTier     `json:"tier"`
	APIKey           string           `json:"api_key"`
	APISecretEnc     string           `json:"-"`
	WebhookURL       *string          `json:"webhook_url,omitempty"`
	WebhookSecretEnc *string          `json:"-"`
	Settings         MerchantSettings `json:"settings"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	LastActivityAt   *time.Time       `json:"last_activity_at,omitempty"`
}

// MerchantSettings holds per-merchant mandate support flags, limits and
// notification preferences. Stored as a jsonb column.
type MerchantSettings struct {
	SupportsCartMandate    bool `json:"supportsCartMandate"`
	SupportsIntentMandate  bool `json:"supportsIntentMandate"`
	SupportsPaymentMandate bool `json:"supportsPaymentMandate"`

	MaxTransactionAmount    float64 `json:"maxTransactionAmount"`
	DailyTransactionLimit   float64 `json:"dailyTransactionLimit"`
	MonthlyTransactionLimit float64 `json:"monthlyTransactionLimit"`

	RequiresWebhookVerification bool     `json:"requiresWebhookVerification"`
	AllowedOrigins              []string `json:"allowedOrigins"`

	EnableAutoApproval    bool    `json:"enableAutoApproval"`
	AutoApprovalThreshold float64 `json:"autoApprovalThreshold"`

	NotifyOnMandateCreated  bool `json:"notifyOnMandateCreated"`
	NotifyOnIntentCreated   bool `json:"notifyOnIntentCreated"`
	NotifyOnPaymentExecuted bool `json:"notifyOnPaymentExecuted"`
}

// DefaultSettingsForTier returns the registration-time settings for a tier.
func DefaultSettingsForTier(tier MerchantTier) MerchantSettings {
	s := MerchantSettings{
		SupportsCartMandate:         true,
		SupportsIntentMandate:       true,
		SupportsPaymentMandate:      true,
		MaxTransactionAmount:        10_000,
		DailyTransactionLimit:       100_000,
		MonthlyTransactionLimit:     1_000_000,
		RequiresWebhookVerification: true,
		AllowedOrigins:              []string{},
		EnableAutoApproval:          false,
		AutoApprovalThreshold:       100,
		NotifyOnMandateCreated:      true,
		NotifyOnIntentCreated:       true,
		NotifyOnPaymentExecuted:     true,
	}
	switch tier {
	case MerchantTierBusiness:
		s.MaxTransactionAmount = 50_000
		s.DailyTransactionLimit = 500_000
		s.MonthlyTransactionLimit = 5_000_000
	case MerchantTierEnterprise:
		s.MaxTransactionAmount = 100_000
		s.DailyTransactionLimit = 1_000_000
		s.MonthlyTransactionLimit = 10_000_000
	}
	return s
}

// IsActive returns true if the merchant account can process transactions.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// SupportsMandateType reports whether the merchant has enabled the given
// mandate family.
func (m *Merchant) SupportsMandateType(t MandateType) bool {
	switch t {
	case MandateTypeCart:
		return m.Settings.SupportsCartMandate
	case MandateTypeIntent:
		return m.Settings.SupportsIntentMandate
	case MandateTypePayment:
		return m.Settings.SupportsPaymentMandate
	}
	return false
}
