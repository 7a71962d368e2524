package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draftwise/coverletter-api/internal/domain"
	mw "github.com/draftwise/coverletter-api/internal/http/middleware"
	"github.com/draftwise/coverletter-api/internal/http/response"
	"github.com/draftwise/coverletter-api/internal/repo/postgres"
	"github.com/draftwise/coverletter-api/internal/service"
	"github.com/draftwise/coverletter-api/pkg/config"
	"github.com/draftwise/coverletter-api/pkg/logger"
)

type AuthHandler struct {
	svc        service.AuthService
	rateLimits postgres.RateLimitRepo
	config     *config.Config
}

func NewAuthHandler(svc service.AuthService, rateLimits postgres.RateLimitRepo, config *config.Config) *AuthHandler {
	return &AuthHandler{svc: svc, rateLimits: rateLimits, config: config}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.rateLimit("register", 5)).Post("/register", h.register)
	r.With(h.rateLimit("login", 10)).Post("/login", h.login)
	r.Post("/verify-email", h.verifyEmail)
	r.With(h.rateLimit("resend", 3)).Post("/resend-verification", h.resendVerification)
	return r
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	user, verifyURL, err := h.svc.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.WriteError(w, http.StatusConflict, err.Error(), response.CodeEmailExists)
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	resp := map[string]interface{}{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    user.ToUserInfo(),
	}
	if h.config.Email.DevMode {
		resp["dev_verify_url"] = verifyURL
	}

	response.WriteJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	resp, err := h.svc.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(w, "Invalid credentials")
		case errors.Is(err, service.ErrEmailNotVerified):
			response.WriteError(w, http.StatusForbidden, "Email not verified", response.CodeEmailNotVerified)
		default:
			response.BadRequest(w, err.Error())
		}
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			token = body.Token
		}
	}
	if token == "" {
		response.BadRequest(w, "Missing verification token")
		return
	}

	user, err := h.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodeInvalidToken)
			return
		}
		response.InternalError(w, "Verification failed")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Email verified successfully",
		"user":    user.ToUserInfo(),
	})
}

func (h *AuthHandler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "Email is required")
		return
	}

	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Verification email sent",
	})
}

// Me returns the acting user's profile, including allowance counters.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.Sub)
	if err != nil || user == nil {
		response.NotFound(w, "User not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

func (h *AuthHandler) rateLimit(action string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "auth:" + action + ":" + mw.IP(r)
			allowed, err := h.rateLimits.CheckRateLimit(r.Context(), key, perMinute, time.Minute)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
				// Allow request on error (fail open)
			} else if !allowed {
				response.RateLimit(w, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
