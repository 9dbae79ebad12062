package handlers

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/httpx"
	"github.com/ledgerline/ledgerline/internal/models"
	"github.com/ledgerline/ledgerline/internal/validation"
)

// AuthHandler serves signup, login and the current-user endpoint.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg config.AuthConfig
}

func NewAuthHandler(db *gorm.DB, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg}
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Signup: POST /api/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	v := make(validation.Violations)
	validation.Required("email", req.Email, v)
	if !strings.Contains(req.Email, "@") {
		v.Add("email", "invalid_email")
	}
	if len(req.Password) < 8 {
		v.Add("password", "too_short")
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "hash_failed", nil)
		return
	}
	user := models.User{Email: req.Email, Name: req.Name, Password: hash}
	if err := h.DB.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httpx.JSONError(w, http.StatusConflict, "email_taken", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "signup_failed", nil)
		return
	}

	token, err := auth.GenerateToken(h.Cfg.JWTSecret, user.ID, h.Cfg.TokenTTL)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "token_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

// Login: POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := h.DB.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error
	if err != nil || !auth.CheckPassword(user.Password, req.Password) {
		// same answer for unknown email and wrong password
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, err := auth.GenerateToken(h.Cfg.JWTSecret, user.ID, h.Cfg.TokenTTL)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "token_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// Me: GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var user models.User
	if err := h.DB.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
