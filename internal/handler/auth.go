package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/solstyle/auth-api/internal/config"
	"github.com/solstyle/auth-api/internal/usecase"
	"github.com/solstyle/auth-api/internal/validation"
)

const authCookieName = "auth_token"

// AuthHandler exposes the authentication workflow over HTTP.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	validator   *validation.Validator
	logger      *zerolog.Logger
	cfg         *config.Config
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(
	authUsecase usecase.AuthUsecase,
	validator *validation.Validator,
	logger *zerolog.Logger,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		validator:   validator,
		logger:      logger,
		cfg:         cfg,
	}
}

// RegisterRoutes mounts the public authentication routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/send-otp", h.SendOTP)
	r.Post("/api/auth/verify-otp", h.VerifyOTP)
	r.Post("/api/auth/login", h.Login)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, RegisterResponse{
		Success: true,
		Message: result.Message,
		UserID:  result.UserID,
		Email:   result.Email,
	})
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.RequestOTP(r.Context(), req.Email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SendOTPResponse{
		Success: true,
		Message: result.Message,
		Email:   result.Email,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.VerifyOTPAndActivate(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.setAuthCookie(w, result.Token)
	h.writeJSON(w, http.StatusOK, VerifyOTPResponse{
		Success:    true,
		Message:    result.Message,
		UserID:     result.UserID,
		Name:       result.Name,
		Email:      result.Email,
		IsVerified: result.Verified,
		Token:      result.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.setAuthCookie(w, result.Token)
	h.writeJSON(w, http.StatusOK, LoginResponse{
		Success:    true,
		UserID:     result.UserID,
		Name:       result.Name,
		Email:      result.Email,
		IsVerified: result.Verified,
		Token:      result.Token,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Success: false,
			Message: "not authorized, no token provided",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, MeResponse{
		Success:    true,
		UserID:     user.ID.Hex(),
		Name:       user.Name,
		Email:      user.Email,
		Phone:      user.Phone,
		IsVerified: user.Verified,
	})
}

// decodeAndValidate decodes the JSON body into req and validates it, writing a
// 400 response on failure.
func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "invalid request body",
		})
		return false
	}

	if err := h.validator.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: err.Error(),
		})
		return false
	}

	return true
}

// respondError maps workflow errors to status codes. Unknown errors surface as
// a generic 500 with the cause attached only in development.
func (h *AuthHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	message := err.Error()

	switch {
	case errors.Is(err, usecase.ErrAlreadyRegistered),
		errors.Is(err, usecase.ErrAlreadyVerified):
		status = http.StatusConflict
	case errors.Is(err, usecase.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrInvalidOrExpiredOTP):
		status = http.StatusUnauthorized
	case errors.Is(err, usecase.ErrAccountBlocked),
		errors.Is(err, usecase.ErrAccountNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, usecase.ErrOTPDelivery):
		// The underlying SMTP error stays out of the response.
		status = http.StatusBadGateway
		message = usecase.ErrOTPDelivery.Error()
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")

		status = http.StatusInternalServerError
		resp := ErrorResponse{Success: false, Message: "something went wrong"}
		if h.cfg.IsDevelopment() {
			resp.Detail = err.Error()
		}
		h.writeJSON(w, status, resp)
		return
	}

	h.writeJSON(w, status, ErrorResponse{
		Success: false,
		Message: message,
	})
}

func (h *AuthHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response body")
	}
}

// setAuthCookie stores the session token in an httpOnly cookie alongside the
// JSON response field; both carry the same token value.
func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.Token.ExpiresIn / time.Second),
		HttpOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
}
