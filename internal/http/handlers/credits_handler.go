package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/draftwise/coverletter-api/internal/domain"
	"github.com/draftwise/coverletter-api/internal/gateway"
	mw "github.com/draftwise/coverletter-api/internal/http/middleware"
	"github.com/draftwise/coverletter-api/internal/http/response"
	"github.com/draftwise/coverletter-api/internal/service"
)

type CreditsHandler struct {
	credits service.CreditService
	auth    service.AuthService
}

func NewCreditsHandler(credits service.CreditService, auth service.AuthService) *CreditsHandler {
	return &CreditsHandler{credits: credits, auth: auth}
}

// Routes returns the routes that require a verified, non-guest account. The
// public package list is mounted separately.
func (h *CreditsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireVerifiedUser)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Post("/orders/verify-payment/{gateway}/{orderID}", h.verifyPayment)
	return r
}

func (h *CreditsHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.credits.ListPackages())
}

func (h *CreditsHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	resp, err := h.credits.CreateOrder(r.Context(), user, &req)
	if err != nil {
		h.writeCreditError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, resp)
}

func (h *CreditsHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	gw, valid := domain.ParseGateway(chi.URLParam(r, "gateway"))
	if !valid {
		response.BadRequest(w, "Unsupported payment gateway")
		return
	}
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		response.BadRequest(w, "Missing order id")
		return
	}

	// Body is optional: approval-based gateways carry no proof beyond the path.
	var req domain.VerifyPaymentRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	proof := gateway.Proof{PaymentID: req.PaymentID, Signature: req.Signature}

	resp, err := h.credits.VerifyPayment(r.Context(), user, gw, orderID, proof)
	if err != nil {
		h.writeCreditError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *CreditsHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.credits.ListOrders(r.Context(), user.ID, limit, offset)
	if err != nil {
		response.InternalError(w, "Failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.CreditOrder{}
	}

	response.WriteJSON(w, http.StatusOK, orders)
}

// actingUser loads the full user record behind the JWT; purchase decisions use
// current database state, not token claims alone.
func (h *CreditsHandler) actingUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return nil, false
	}

	user, err := h.auth.GetUser(r.Context(), claims.Sub)
	if err != nil {
		response.InternalError(w, "Failed to load account")
		return nil, false
	}
	if user == nil {
		response.Unauthorized(w, "Account not found")
		return nil, false
	}
	return user, true
}

func (h *CreditsHandler) writeCreditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPackageNotFound), errors.Is(err, domain.ErrOrderNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error(), response.CodeNotFound)
	case errors.Is(err, domain.ErrUnsupportedCurrency), errors.Is(err, domain.ErrUnsupportedGateway):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrInvalidSignature):
		response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodeInvalidSignature)
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodePaymentNotCompleted)
	case errors.Is(err, domain.ErrAlreadyProcessed):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeAlreadyProcessed)
	case errors.Is(err, domain.ErrPurchaseForbidden):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, "Payment processing failed")
	}
}
