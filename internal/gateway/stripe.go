package gateway

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/draftwise/coverletter-api/internal/domain"
)

// StripeAdapter verifies by re-fetching the PaymentIntent status directly from
// Stripe after the client reports completion.
type StripeAdapter struct {
	api *client.API
}

func NewStripeAdapter(secretKey string) *StripeAdapter {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeAdapter{api: api}
}

func (a *StripeAdapter) Name() domain.Gateway { return domain.GatewayStripe }

func (a *StripeAdapter) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*CreatedOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(receipt),
	}
	for k, v := range notes {
		params.AddMetadata(k, v)
	}

	pi, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent create: %w", err)
	}

	return &CreatedOrder{
		ID:       pi.ID,
		Amount:   amount,
		Currency: currency,
		Status:   string(pi.Status),
	}, nil
}

func (a *StripeAdapter) VerifyPayment(ctx context.Context, orderID string, _ Proof) (string, error) {
	pi, err := a.api.PaymentIntents.Get(orderID, nil)
	if err != nil {
		return "", fmt.Errorf("%w: stripe fetch failed: %v", domain.ErrPaymentNotCompleted, err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("%w: stripe intent status %s", domain.ErrPaymentNotCompleted, pi.Status)
	}

	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		return pi.LatestCharge.ID, nil
	}
	return pi.ID, nil
}
