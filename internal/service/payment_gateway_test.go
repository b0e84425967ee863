package service

import (
	"context"
	"strings"
	"testing"

	"ap2-gateway/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedGateway_Charge_ValidCard(t *testing.T) {
	gw := NewSimulatedGateway(newTestLogger())

	result, err := gw.Charge(context.Background(), ports.ChargeRequest{
		Amount:        100,
		Currency:      "USD",
		PaymentMethod: PaymentMethodCard,
		CardNumber:    "4242 4242 4242 4242",
	})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, strings.HasPrefix(result.GatewayTransactionID, "TXN_CARD_"))
}

func TestSimulatedGateway_Charge_LuhnFailure(t *testing.T) {
	gw := NewSimulatedGateway(newTestLogger())

	result, err := gw.Charge(context.Background(), ports.ChargeRequest{
		PaymentMethod: PaymentMethodCard,
		CardNumber:    "4242424242424241",
	})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "invalid card number", result.FailureReason)
}

func TestSimulatedGateway_Charge_InsufficientFundsTestCard(t *testing.T) {
	gw := NewSimulatedGateway(newTestLogger())

	// 4200000000000000 passes Luhn but is a designated decline card
	result, err := gw.Charge(context.Background(), ports.ChargeRequest{
		PaymentMethod: PaymentMethodCard,
		CardNumber:    "4200000000000000",
	})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "insufficient funds", result.FailureReason)
}

func TestSimulatedGateway_Charge_PayPal(t *testing.T) {
	gw := NewSimulatedGateway(newTestLogger())

	result, err := gw.Charge(context.Background(), ports.ChargeRequest{
		PaymentMethod: PaymentMethodPayPal,
	})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, strings.HasPrefix(result.GatewayTransactionID, "TXN_PAYPAL_"))
}

func TestSimulatedGateway_Charge_UnknownMethod(t *testing.T) {
	gw := NewSimulatedGateway(newTestLogger())

	result, err := gw.Charge(context.Background(), ports.ChargeRequest{PaymentMethod: "barter"})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.FailureReason, "unsupported payment method")
}

func TestSimulatedGateway_Refund(t *testing.T) {
	gw := NewSimulatedGateway(newTestLogger())

	result, err := gw.Refund(context.Background(), "TXN_CARD_1_ABCDEFGH", 25)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, strings.HasPrefix(result.GatewayTransactionID, "TXN_REFUND_"))
}

func TestLuhnValid(t *testing.T) {
	assert.True(t, luhnValid("4242424242424242"))
	assert.True(t, luhnValid("4200000000000000"))
	assert.False(t, luhnValid("4242424242424241"))
	assert.False(t, luhnValid("123"))                   // too short
	assert.False(t, luhnValid(strings.Repeat("4", 20))) // too long
}
