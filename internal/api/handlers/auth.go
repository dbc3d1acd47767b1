package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meridianlaw/caseflow/internal/api/dto"
	"github.com/meridianlaw/caseflow/internal/api/middleware"
	"github.com/meridianlaw/caseflow/internal/auth"
	"github.com/meridianlaw/caseflow/internal/database/models"
)

type AuthHandler struct {
	authService auth.Authenticator
	logger      *slog.Logger
	cookieTTL   int // seconds
	secure      bool
}

func NewAuthHandler(authService auth.Authenticator, logger *slog.Logger, cookieTTL int, secure bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
		cookieTTL:   cookieTTL,
		secure:      secure,
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.cookieTTL,
	})
}

func authDTO(resp *auth.AuthResponse) dto.AuthResponse {
	return dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	}
}

// Register handles POST /auth/register. Public; the account always comes
// out a client no matter what role was asked for.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, resp.Token)
	writeJSON(w, http.StatusCreated, dto.Success(authDTO(resp)))
}

// RegisterStaff handles POST /auth/register-staff. Admin only (enforced by
// route middleware); unlisted roles default to paralegal.
func (h *AuthHandler) RegisterStaff(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	resp, err := h.authService.RegisterStaff(r.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      models.Role(req.Role),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.Success(authDTO(resp)))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, dto.Success(authDTO(resp)))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.Envelope{Status: "success", Message: "Logged out successfully"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, dto.Fail("You are not logged in"))
		return
	}
	writeJSON(w, http.StatusOK, dto.Success(user))
}

// UpdateMe handles PATCH /auth/updateme. Rejects password changes.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), auth.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Languages:   req.Languages,
		NotifyEmail: req.NotifyEmail,
		NotifySMS:   req.NotifySMS,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success(user))
}

// UpdatePassword handles PATCH /auth/updatepassword. On success the caller
// gets a fresh token; all earlier ones are dead.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	resp, err := h.authService.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, dto.Success(authDTO(resp)))
}

// ForgotPassword handles POST /auth/forgotpassword.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Envelope{Status: "success", Message: "Token sent to email"})
}

// ResetPassword handles PATCH /auth/resetpassword/{token}.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req dto.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	resp, err := h.authService.ResetPassword(r.Context(), token, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, dto.Success(authDTO(resp)))
}
