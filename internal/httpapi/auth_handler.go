package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokentra/internal/auth"
	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// UserSource looks up dashboard users for login.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt int64     `json:"expires_at"`
	User      loginUser `json:"user"`
}

type loginUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// AuthHandler serves dashboard login.
type AuthHandler struct {
	users     UserSource
	jwtSecret []byte
	logger    *utils.Logger
	now       func() time.Time
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(users UserSource, jwtSecret []byte, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, logger: logger, now: time.Now}
}

// Login handles POST /v1/auth/login. Invalid email and invalid
// password return the same error so the endpoint does not leak which
// accounts exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "email and password required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, storage.ErrUserNotFound) {
		utils.RespondWithError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("user lookup failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	token, expiresAt, err := auth.GenerateSessionToken(auth.SessionClaims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
	}, h.jwtSecret, h.now())
	if err != nil {
		h.logger.Error("failed to sign session token", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	if err := h.users.TouchLastLogin(r.Context(), user.ID); err != nil {
		h.logger.Warn("failed to record login time", "user_id", user.ID, "error", err)
	}

	utils.RespondWithJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User: loginUser{
			ID:             user.ID,
			Email:          user.Email,
			Name:           user.Name,
			OrganizationID: user.OrganizationID,
			Role:           user.Role,
		},
	})
}
