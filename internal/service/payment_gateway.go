package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"ap2-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// Payment methods accepted by the simulated processor.
const (
	PaymentMethodCard   = "card"
	PaymentMethodPayPal = "paypal"
)

// simulatedGateway is a stand-in downstream processor. Card numbers are
// Luhn-checked; numbers ending in 0000 are declined for insufficient funds.
type simulatedGateway struct {
	log zerolog.Logger
}

// NewSimulatedGateway creates the simulated payment processor.
func NewSimulatedGateway(log zerolog.Logger) ports.PaymentGateway {
	return &simulatedGateway{log: log}
}

func (g *simulatedGateway) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.PaymentMethod {
	case PaymentMethodCard:
		return g.chargeCard(req)
	case PaymentMethodPayPal:
		return &ports.ChargeResult{
			Succeeded:            true,
			GatewayTransactionID: gatewayTransactionID("TXN_PAYPAL"),
		}, nil
	default:
		return &ports.ChargeResult{
			Succeeded:     false,
			FailureReason: fmt.Sprintf("unsupported payment method: %s", req.PaymentMethod),
		}, nil
	}
}

func (g *simulatedGateway) Refund(ctx context.Context, gatewayTxID string, amount float64) (*ports.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.log.Info().
		Str("gateway_transaction_id", gatewayTxID).
		Float64("amount", amount).
		Msg("gateway: refund issued")
	return &ports.ChargeResult{
		Succeeded:            true,
		GatewayTransactionID: gatewayTransactionID("TXN_REFUND"),
	}, nil
}

func (g *simulatedGateway) chargeCard(req ports.ChargeRequest) (*ports.ChargeResult, error) {
	digits := digitsOnly(req.CardNumber)
	if !luhnValid(digits) {
		return &ports.ChargeResult{Succeeded: false, FailureReason: "invalid card number"}, nil
	}
	if strings.HasSuffix(digits, "0000") {
		return &ports.ChargeResult{Succeeded: false, FailureReason: "insufficient funds"}, nil
	}
	return &ports.ChargeResult{
		Succeeded:            true,
		GatewayTransactionID: gatewayTransactionID("TXN_CARD"),
	}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhnValid reports whether a card number passes the Luhn checksum.
func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

const gatewayIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func gatewayTransactionID(prefix string) string {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(gatewayIDChars))))
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(gatewayIDChars[n.Int64()])
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), b.String())
}
