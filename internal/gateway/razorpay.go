package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/draftwise/coverletter-api/internal/domain"
)

// RazorpayAdapter is the signature-verified gateway: trust is anchored in an
// HMAC-SHA256 signature over "orderID|paymentID" computed with the key secret.
type RazorpayAdapter struct {
	client *razorpay.Client
	secret string
}

func NewRazorpayAdapter(keyID, keySecret string) *RazorpayAdapter {
	return &RazorpayAdapter{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}
}

func (a *RazorpayAdapter) Name() domain.Gateway { return domain.GatewayRazorpay }

func (a *RazorpayAdapter) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*CreatedOrder, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	body, err := a.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order create: missing order id in response")
	}
	status, _ := body["status"].(string)

	return &CreatedOrder{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Status:   status,
	}, nil
}

func (a *RazorpayAdapter) VerifyPayment(ctx context.Context, orderID string, proof Proof) (string, error) {
	if proof.PaymentID == "" || proof.Signature == "" {
		return "", domain.ErrInvalidSignature
	}

	expected := RazorpaySignature(orderID, proof.PaymentID, a.secret)
	if !hmac.Equal([]byte(expected), []byte(proof.Signature)) {
		return "", domain.ErrInvalidSignature
	}

	return proof.PaymentID, nil
}

// RazorpaySignature computes the hex HMAC-SHA256 over "orderID|paymentID" that
// Razorpay hands to the client on checkout completion.
func RazorpaySignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
