package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/draftwise/coverletter-api/internal/domain"
)

func TestRazorpaySignatureVerification(t *testing.T) {
	a := &RazorpayAdapter{secret: "test-key-secret"}
	orderID := "order_MkWd8xGJc1ABCD"
	paymentID := "pay_MkWeLmN4p2EFGH"

	sig := RazorpaySignature(orderID, paymentID, "test-key-secret")

	got, err := a.VerifyPayment(context.Background(), orderID, Proof{PaymentID: paymentID, Signature: sig})
	if err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if got != paymentID {
		t.Errorf("payment id = %q, want %q", got, paymentID)
	}
}

func TestRazorpayTamperedSignatureRejected(t *testing.T) {
	a := &RazorpayAdapter{secret: "test-key-secret"}
	orderID := "order_MkWd8xGJc1ABCD"
	paymentID := "pay_MkWeLmN4p2EFGH"

	sig := []byte(RazorpaySignature(orderID, paymentID, "test-key-secret"))
	// Flip one character.
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}

	_, err := a.VerifyPayment(context.Background(), orderID, Proof{PaymentID: paymentID, Signature: string(sig)})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestRazorpayMissingProofRejected(t *testing.T) {
	a := &RazorpayAdapter{secret: "test-key-secret"}

	_, err := a.VerifyPayment(context.Background(), "order_x", Proof{})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	_, err = a.VerifyPayment(context.Background(), "order_x", Proof{PaymentID: "pay_x"})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}
