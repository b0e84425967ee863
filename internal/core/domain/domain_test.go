package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsForTier(t *testing.T) {
	starter := DefaultSettingsForTier(MerchantTierStarter)
	assert.Equal(t, float64(10_000), starter.MaxTransactionAmount)
	assert.Equal(t, float64(100_000), starter.DailyTransactionLimit)
	assert.Equal(t, float64(1_000_000), starter.MonthlyTransactionLimit)

	business := DefaultSettingsForTier(MerchantTierBusiness)
	assert.Equal(t, float64(50_000), business.MaxTransactionAmount)

	enterprise := DefaultSettingsForTier(MerchantTierEnterprise)
	assert.Equal(t, float64(100_000), enterprise.MaxTransactionAmount)
	assert.Equal(t, float64(10_000_000), enterprise.MonthlyTransactionLimit)

	assert.True(t, starter.SupportsCartMandate)
	assert.True(t, starter.NotifyOnPaymentExecuted)
	assert.False(t, starter.EnableAutoApproval)
}

func TestMerchant_SupportsMandateType(t *testing.T) {
	m := &Merchant{Settings: DefaultSettingsForTier(MerchantTierStarter)}
	assert.True(t, m.SupportsMandateType(MandateTypeCart))
	assert.True(t, m.SupportsMandateType(MandateTypePayment))

	m.Settings.SupportsPaymentMandate = false
	assert.False(t, m.SupportsMandateType(MandateTypePayment))
	assert.False(t, m.SupportsMandateType(MandateType("bogus")))
}

func TestValidateConstraintShape_Payment(t *testing.T) {
	// Must carry at least one spending limit.
	err := ValidateConstraintShape(MandateTypePayment, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spending limit")

	err = ValidateConstraintShape(MandateTypePayment, json.RawMessage(`{"maxTransactionAmount":500}`))
	assert.NoError(t, err)

	err = ValidateConstraintShape(MandateTypePayment, json.RawMessage(`{"dailySpendingLimit":100}`))
	assert.NoError(t, err)
}

func TestValidateConstraintShape_CartAndIntent(t *testing.T) {
	assert.NoError(t, ValidateConstraintShape(MandateTypeCart, json.RawMessage(`{"maxItemValue":100}`)))
	assert.NoError(t, ValidateConstraintShape(MandateTypeIntent, json.RawMessage(`{"autoApproveUnder":100}`)))
	assert.Error(t, ValidateConstraintShape(MandateTypeCart, json.RawMessage(`not json`)))
	assert.Error(t, ValidateConstraintShape(MandateType("bogus"), json.RawMessage(`{}`)))
	assert.Error(t, ValidateConstraintShape(MandateTypeCart, nil))
}

func TestMandate_TypedConstraintAccessors(t *testing.T) {
	m := &Mandate{
		Type:        MandateTypePayment,
		Constraints: json.RawMessage(`{"maxTransactionAmount":500,"allowedPaymentMethods":["card"]}`),
	}

	pc, err := m.PaymentConstraints()
	require.NoError(t, err)
	require.NotNil(t, pc.MaxTransactionAmount)
	assert.Equal(t, float64(500), *pc.MaxTransactionAmount)
	assert.Equal(t, []string{"card"}, pc.AllowedPaymentMethods)

	// Wrong-type access is rejected.
	_, err = m.CartConstraints()
	assert.Error(t, err)
	_, err = m.IntentConstraints()
	assert.Error(t, err)
}

func TestIntentConstraints_IntentExpiry(t *testing.T) {
	hours := 6
	c := &IntentConstraints{ExpiryHours: &hours}
	assert.Equal(t, 6*time.Hour, c.IntentExpiry())

	assert.Equal(t, DefaultIntentExpiry, (&IntentConstraints{}).IntentExpiry())

	zero := 0
	assert.Equal(t, DefaultIntentExpiry, (&IntentConstraints{ExpiryHours: &zero}).IntentExpiry())
}

func TestMandateStatus_IsTerminal(t *testing.T) {
	assert.True(t, MandateStatusRevoked.IsTerminal())
	assert.True(t, MandateStatusExpired.IsTerminal())
	assert.False(t, MandateStatusActive.IsTerminal())
	assert.False(t, MandateStatusSuspended.IsTerminal())
	assert.False(t, MandateStatusPending.IsTerminal())
}

func TestMandate_IsExpiredAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Mandate{ValidUntil: &past}).IsExpiredAt(now))
	assert.False(t, (&Mandate{ValidUntil: &future}).IsExpiredAt(now))
	assert.False(t, (&Mandate{}).IsExpiredAt(now))
}

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	// Forward transitions.
	assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusAuthorized))
	assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusDeclined))
	assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusCompleted))
	assert.True(t, TransactionStatusAuthorized.CanTransitionTo(TransactionStatusCompleted))
	assert.True(t, TransactionStatusAuthorized.CanTransitionTo(TransactionStatusFailed))
	assert.True(t, TransactionStatusCompleted.CanTransitionTo(TransactionStatusRefunded))

	// No transition back to pending, ever.
	for _, s := range []TransactionStatus{
		TransactionStatusAuthorized, TransactionStatusDeclined,
		TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusRefunded,
	} {
		assert.False(t, s.CanTransitionTo(TransactionStatusPending), "from %s", s)
	}

	// Terminal states other than completed go nowhere.
	assert.False(t, TransactionStatusDeclined.CanTransitionTo(TransactionStatusCompleted))
	assert.False(t, TransactionStatusFailed.CanTransitionTo(TransactionStatusCompleted))
	assert.False(t, TransactionStatusRefunded.CanTransitionTo(TransactionStatusCompleted))

	// Refund only from completed.
	assert.False(t, TransactionStatusAuthorized.CanTransitionTo(TransactionStatusRefunded))
	assert.False(t, TransactionStatusFailed.CanTransitionTo(TransactionStatusRefunded))
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.False(t, TransactionStatusAuthorized.IsTerminal())
	assert.True(t, TransactionStatusDeclined.IsTerminal())
	assert.True(t, TransactionStatusCompleted.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
	assert.True(t, TransactionStatusRefunded.IsTerminal())
}

func TestShouldNotify(t *testing.T) {
	settings := MerchantSettings{
		NotifyOnMandateCreated:  false,
		NotifyOnIntentCreated:   true,
		NotifyOnPaymentExecuted: false,
	}

	assert.False(t, ShouldNotify(settings, EventMandateRevoked))
	assert.True(t, ShouldNotify(settings, EventIntentCreated))
	assert.True(t, ShouldNotify(settings, EventIntentApproved))
	assert.False(t, ShouldNotify(settings, EventPaymentCompleted))

	// Cart events always notify.
	assert.True(t, ShouldNotify(settings, EventCartUpdated))

	// Unknown events never notify.
	assert.False(t, ShouldNotify(settings, WebhookEvent("bogus.event")))
}

func TestWebhookDelivery_IsTerminal(t *testing.T) {
	now := time.Now()
	assert.False(t, (&WebhookDelivery{}).IsTerminal())
	assert.True(t, (&WebhookDelivery{DeliveredAt: &now}).IsTerminal())
	assert.True(t, (&WebhookDelivery{FailedAt: &now}).IsTerminal())
}
