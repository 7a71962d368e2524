package domain

import (
	"errors"
	"strings"
	"time"
)

// CreditPackage is a purchasable credit bundle. Packages are static and loaded
// at process start; the catalog is the only source of truth for prices and
// credit counts — client-submitted amounts are never trusted.
type CreditPackage struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Credits           int    `json:"credits"`
	PriceMinorUnitINR int64  `json:"price_minor_unit_inr"`
	PriceMinorUnitUSD int64  `json:"price_minor_unit_usd"`
}

// PackageID values
const (
	PackageBasic    = "basic"
	PackageStandard = "standard"
	PackagePremium  = "premium"
)

// Supported payment gateways
type Gateway string

const (
	GatewayRazorpay Gateway = "razorpay"
	GatewayPayPal   Gateway = "paypal"
	GatewayStripe   Gateway = "stripe"
)

var validGateways = map[Gateway]bool{
	GatewayRazorpay: true,
	GatewayPayPal:   true,
	GatewayStripe:   true,
}

func ParseGateway(s string) (Gateway, bool) {
	g := Gateway(strings.ToLower(strings.TrimSpace(s)))
	return g, validGateways[g]
}

// Accepted currencies (ISO 4217)
const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"
)

var acceptedCurrencies = map[string]bool{
	CurrencyINR: true,
	CurrencyUSD: true,
}

func IsAcceptedCurrency(code string) bool {
	return acceptedCurrencies[strings.ToUpper(code)]
}

// Order status is monotonic: created → paid, never reversed. An abandoned
// payment leaves the order in created forever.
type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
)

// CreditOrder mirrors a payment-gateway order. The gateway-assigned order id is
// the primary key and idempotency key; exactly one row exists per gateway order.
type CreditOrder struct {
	ID                string            `json:"id"` // gateway order id
	UserID            int64             `json:"user_id"`
	Amount            int64             `json:"amount"` // minor units
	Currency          string            `json:"currency"`
	Gateway           Gateway           `json:"gateway"`
	Status            OrderStatus       `json:"status"`
	Receipt           string            `json:"receipt"`
	PaymentID         *string           `json:"payment_id,omitempty"`
	PaymentVerifiedAt *time.Time        `json:"payment_verified_at,omitempty"`
	Notes             map[string]string `json:"notes"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Notes keys stored on every order for later reconciliation.
const (
	NotePackageID = "package_id"
	NoteUserEmail = "user_email"
)

type CreateOrderRequest struct {
	PackageID               string `json:"packageId"`
	CurrencyCodeInISOFormat string `json:"currencyCodeInISOFormat"`
	PaymentGateway          string `json:"paymentGateway"`
}

type CreateOrderResponse struct {
	Order *CreditOrder   `json:"order"`
	Pkg   *CreditPackage `json:"pkg"`
}

// VerifyPaymentRequest carries gateway-specific proof. Razorpay sends a
// payment id plus an HMAC signature; PayPal and Stripe flows carry nothing
// beyond the order id in the path.
type VerifyPaymentRequest struct {
	PaymentID string `json:"razorpay_payment_id,omitempty"`
	Signature string `json:"razorpay_signature,omitempty"`
}

type VerifyPaymentResponse struct {
	Success      bool `json:"success"`
	CreditsAdded int  `json:"creditsAdded"`
}

// Failure modes of the credit order lifecycle. Handlers map these to distinct
// response codes; none of them leave partial state behind.
var (
	ErrPackageNotFound     = errors.New("credit package not found")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUnsupportedGateway  = errors.New("unsupported payment gateway")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidSignature    = errors.New("payment signature verification failed")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrAlreadyProcessed    = errors.New("order already processed")
	ErrPurchaseForbidden   = errors.New("account is not allowed to purchase credits")
	ErrQuotaExhausted      = errors.New("usage allowance exhausted")
)
