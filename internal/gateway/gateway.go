// Package gateway wraps the payment providers behind one small capability set
// so the verification core stays gateway-agnostic. Each adapter knows how to
// open an order and how to independently re-confirm a payment; the client's
// claim of success is never trusted on its own.
package gateway

import (
	"context"

	"github.com/draftwise/coverletter-api/internal/domain"
)

// CreatedOrder is the gateway's view of a freshly opened order.
type CreatedOrder struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// Proof carries client-submitted completion evidence. Signature-based gateways
// use both fields; approval-based gateways ignore it entirely.
type Proof struct {
	PaymentID string
	Signature string
}

type Adapter interface {
	Name() domain.Gateway

	// CreateOrder opens a gateway order for amount in the smallest unit of
	// currency and returns the provider-assigned order id.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*CreatedOrder, error)

	// VerifyPayment re-confirms completion for orderID and returns the gateway
	// payment reference. It fails with domain.ErrInvalidSignature or
	// domain.ErrPaymentNotCompleted without side effects on local state.
	VerifyPayment(ctx context.Context, orderID string, proof Proof) (paymentID string, err error)
}

// Registry resolves an adapter by gateway name.
type Registry map[domain.Gateway]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Name()] = a
	}
	return r
}

func (r Registry) Get(g domain.Gateway) (Adapter, bool) {
	a, ok := r[g]
	return a, ok
}
