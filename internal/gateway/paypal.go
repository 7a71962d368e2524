package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/plutov/paypal/v4"

	"github.com/draftwise/coverletter-api/internal/domain"
)

// PayPalAdapter is an approval-based gateway: the capture call against PayPal
// itself is the source of truth, not anything the client submits.
type PayPalAdapter struct {
	client *paypal.Client
}

func NewPayPalAdapter(clientID, clientSecret, environment string) (*PayPalAdapter, error) {
	base := paypal.APIBaseSandBox
	if environment == "live" {
		base = paypal.APIBaseLive
	}

	c, err := paypal.NewClient(clientID, clientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}

	return &PayPalAdapter{client: c}, nil
}

func (a *PayPalAdapter) Name() domain.Gateway { return domain.GatewayPayPal }

func (a *PayPalAdapter) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*CreatedOrder, error) {
	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: receipt,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: currency,
				Value:    minorUnitsToDecimal(amount),
			},
		},
	}

	order, err := a.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal order create: %w", err)
	}

	return &CreatedOrder{
		ID:       order.ID,
		Amount:   amount,
		Currency: currency,
		Status:   strings.ToLower(order.Status),
	}, nil
}

func (a *PayPalAdapter) VerifyPayment(ctx context.Context, orderID string, _ Proof) (string, error) {
	capture, err := a.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return "", fmt.Errorf("%w: paypal capture failed: %v", domain.ErrPaymentNotCompleted, err)
	}

	if capture.Status != "COMPLETED" {
		return "", fmt.Errorf("%w: paypal order status %s", domain.ErrPaymentNotCompleted, capture.Status)
	}

	paymentID := capture.ID
	if len(capture.PurchaseUnits) > 0 {
		if p := capture.PurchaseUnits[0].Payments; p != nil && len(p.Captures) > 0 {
			paymentID = p.Captures[0].ID
		}
	}

	return paymentID, nil
}

// minorUnitsToDecimal renders a minor-unit amount as the two-decimal string
// PayPal expects, e.g. 499 -> "4.99".
func minorUnitsToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
