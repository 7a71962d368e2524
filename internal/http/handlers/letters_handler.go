package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/draftwise/coverletter-api/internal/domain"
	mw "github.com/draftwise/coverletter-api/internal/http/middleware"
	"github.com/draftwise/coverletter-api/internal/http/response"
	"github.com/draftwise/coverletter-api/internal/service"
)

type LettersHandler struct {
	letters service.LetterService
	auth    service.AuthService
}

func NewLettersHandler(letters service.LetterService, auth service.AuthService) *LettersHandler {
	return &LettersHandler{letters: letters, auth: auth}
}

// Generate serves both registered users (bearer token) and guests (identified
// by client IP); the usage gate decides who may proceed.
func (h *LettersHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateLetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	identity := service.Identity{GuestIP: mw.IP(r)}
	if claims := mw.Claims(r); claims != nil && claims.Role != domain.RoleGuest {
		user, err := h.auth.GetUser(r.Context(), claims.Sub)
		if err != nil {
			response.InternalError(w, "Failed to load account")
			return
		}
		if user == nil {
			response.Unauthorized(w, "Account not found")
			return
		}
		identity = service.Identity{User: user}
	}

	resp, err := h.letters.Generate(r.Context(), identity, &req)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			response.WriteError(w, http.StatusPaymentRequired, "Usage allowance exhausted. Purchase credits to continue.", response.CodeQuotaExhausted)
			return
		}
		if errors.Is(err, service.ErrGenerationFailed) {
			response.WriteError(w, http.StatusBadGateway, "Letter generation is temporarily unavailable", response.CodeInternalError)
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

// List returns the authenticated user's letter history.
func (h *LettersHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	letters, err := h.letters.ListByUser(r.Context(), claims.Sub, limit, offset)
	if err != nil {
		response.InternalError(w, "Failed to list letters")
		return
	}
	if letters == nil {
		letters = []domain.Letter{}
	}

	response.WriteJSON(w, http.StatusOK, letters)
}
