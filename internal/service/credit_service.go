package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/coverletter-api/internal/catalog"
	"github.com/draftwise/coverletter-api/internal/domain"
	"github.com/draftwise/coverletter-api/internal/gateway"
	"github.com/draftwise/coverletter-api/internal/mailer"
	"github.com/draftwise/coverletter-api/internal/repo/postgres"
	"github.com/draftwise/coverletter-api/pkg/events"
	"github.com/draftwise/coverletter-api/pkg/logger"
)

type CreditService interface {
	ListPackages() []domain.CreditPackage
	CreateOrder(ctx context.Context, user *domain.User, req *domain.CreateOrderRequest) (*domain.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, user *domain.User, gw domain.Gateway, orderID string, proof gateway.Proof) (*domain.VerifyPaymentResponse, error)
	ListOrders(ctx context.Context, userID int64, limit, offset int) ([]domain.CreditOrder, error)
}

type creditService struct {
	orders   postgres.OrderRepo
	users    postgres.UserRepo
	gateways gateway.Registry
	eventBus events.Publisher
	mailer   mailer.Service
}

func NewCreditService(
	orders postgres.OrderRepo,
	users postgres.UserRepo,
	gateways gateway.Registry,
	eventBus events.Publisher,
	mailer mailer.Service,
) CreditService {
	return &creditService{
		orders:   orders,
		users:    users,
		gateways: gateways,
		eventBus: eventBus,
		mailer:   mailer,
	}
}

func (s *creditService) ListPackages() []domain.CreditPackage {
	return catalog.ListPackages()
}

func (s *creditService) CreateOrder(ctx context.Context, user *domain.User, req *domain.CreateOrderRequest) (*domain.CreateOrderResponse, error) {
	// Purchases are for verified registered accounts only; reject before any
	// gateway call.
	if user == nil || user.Role == domain.RoleGuest || !user.IsVerified {
		return nil, domain.ErrPurchaseForbidden
	}

	pkg, ok := catalog.FindPackage(req.PackageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPackageNotFound, req.PackageID)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.CurrencyCodeInISOFormat))
	if !domain.IsAcceptedCurrency(currency) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, req.CurrencyCodeInISOFormat)
	}

	gw, ok := domain.ParseGateway(req.PaymentGateway)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedGateway, req.PaymentGateway)
	}
	adapter, ok := s.gateways.Get(gw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedGateway, req.PaymentGateway)
	}

	// Amount always comes from the catalog, never from the client.
	amount := catalog.PriceFor(pkg, currency)
	receipt := "rcpt_" + uuid.NewString()
	notes := map[string]string{
		domain.NotePackageID: pkg.ID,
		domain.NoteUserEmail: user.Email,
	}

	created, err := adapter.CreateOrder(ctx, amount, currency, receipt, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway order: %w", err)
	}

	order := &domain.CreditOrder{
		ID:       created.ID,
		UserID:   user.ID,
		Amount:   amount,
		Currency: currency,
		Gateway:  gw,
		Status:   domain.OrderCreated,
		Receipt:  receipt,
		Notes:    notes,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	event := events.OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    user.ID,
		UserEmail: user.Email,
		PackageID: pkg.ID,
		Amount:    amount,
		Currency:  currency,
		Gateway:   string(gw),
		CreatedAt: order.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.OrderCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order created event", "error", err, "order_id", order.ID)
	}

	return &domain.CreateOrderResponse{Order: order, Pkg: &pkg}, nil
}

// VerifyPayment is the single verification core shared by all gateway
// adapters. The adapter re-confirms completion with the provider; the
// conditional created → paid update is the idempotency gate, and only the
// caller that wins it increments the owner's allowance.
func (s *creditService) VerifyPayment(ctx context.Context, user *domain.User, gw domain.Gateway, orderID string, proof gateway.Proof) (*domain.VerifyPaymentResponse, error) {
	if user == nil || user.Role == domain.RoleGuest || !user.IsVerified {
		return nil, domain.ErrPurchaseForbidden
	}

	adapter, ok := s.gateways.Get(gw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedGateway, gw)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	// Never credit an order we did not create, and never reveal other users'
	// orders.
	if order == nil || order.UserID != user.ID || order.Gateway != gw {
		return nil, domain.ErrOrderNotFound
	}

	// Fast-path reject for orders already settled; the conditional update below
	// remains the authoritative gate under races.
	if order.Status == domain.OrderPaid {
		return nil, domain.ErrAlreadyProcessed
	}

	paymentID, err := adapter.VerifyPayment(ctx, orderID, proof)
	if err != nil {
		return nil, err
	}

	// Credits are re-resolved from the catalog by the stored package id; any
	// amount embedded in the payment payload is ignored.
	pkg, ok := catalog.FindPackage(order.Notes[domain.NotePackageID])
	if !ok {
		return nil, fmt.Errorf("order %s references unknown package %q", orderID, order.Notes[domain.NotePackageID])
	}

	verifiedAt := time.Now()
	applied, err := s.orders.MarkPaid(ctx, orderID, paymentID, verifiedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	if !applied {
		// A concurrent verification won the transition and granted the credits.
		return nil, domain.ErrAlreadyProcessed
	}

	if err := s.users.AddCredits(ctx, order.UserID, pkg.Credits); err != nil {
		// The order is paid but the allowance was not raised; surface loudly so
		// it can be reconciled from the order row.
		logger.ErrorContext(ctx, "Order marked paid but credit grant failed",
			"error", err, "order_id", orderID, "user_id", order.UserID, "credits", pkg.Credits)
		return nil, fmt.Errorf("failed to grant credits: %w", err)
	}

	event := events.PaymentVerifiedEvent{
		OrderID:      orderID,
		PaymentID:    paymentID,
		UserID:       order.UserID,
		UserEmail:    order.Notes[domain.NoteUserEmail],
		PackageID:    pkg.ID,
		CreditsAdded: pkg.Credits,
		Gateway:      string(gw),
		VerifiedAt:   verifiedAt,
	}
	if err := s.eventBus.Publish(ctx, events.PaymentVerified, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish payment verified event", "error", err, "order_id", orderID)
	}

	// Receipt email is best effort; the purchase already settled.
	if err := s.mailer.SendPurchaseReceipt(user.Email, user.Name, pkg.Name, pkg.Credits, order.Amount, order.Currency, orderID); err != nil {
		logger.WarnContext(ctx, "Failed to send purchase receipt", "error", err, "order_id", orderID)
	}

	return &domain.VerifyPaymentResponse{Success: true, CreditsAdded: pkg.Credits}, nil
}

func (s *creditService) ListOrders(ctx context.Context, userID int64, limit, offset int) ([]domain.CreditOrder, error) {
	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
