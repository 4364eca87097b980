package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/reelscribe/backend/internal/api/middleware"
	"github.com/reelscribe/backend/internal/auth"
	"github.com/reelscribe/backend/internal/db"
	"github.com/reelscribe/backend/internal/db/models"
	"github.com/reelscribe/backend/internal/notify"
)

type AuthHandler struct {
	db  *db.Database
	jwt *auth.JWTService
}

func NewAuthHandler(db *db.Database, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		jsonError(w, "email and password are required", http.StatusBadRequest)
		return
	}
	if err := notify.ValidateEmail(req.Email); err != nil {
		jsonError(w, "invalid email address", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		jsonError(w, "password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetUserByEmail(req.Email); err == nil {
		jsonError(w, "email already registered", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	user, err := h.db.CreateUser(req.Email, hash, strings.TrimSpace(req.Name))
	if err != nil {
		jsonError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	h.respondSession(w, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		jsonError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	if !auth.CheckPassword(req.Password, user.Password) {
		jsonError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	h.respondSession(w, user)
}

func (h *AuthHandler) respondSession(w http.ResponseWriter, user *models.User) {
	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		jsonError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, sessionResponse{Token: token, User: user}, http.StatusOK)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}

	jsonResponse(w, user, http.StatusOK)
}

type profileRequest struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	PhoneCarrier *string `json:"phone_carrier"`
	WhatsApp     *string `json:"whatsapp"`
}

// UpdateProfile updates the optional delivery defaults; omitted fields keep
// their current value.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.PhoneCarrier != nil {
		user.PhoneCarrier = strings.TrimSpace(*req.PhoneCarrier)
	}
	if req.WhatsApp != nil {
		user.WhatsApp = strings.TrimSpace(*req.WhatsApp)
	}

	if err := h.db.UpdateProfile(user.ID, user.Name, user.Phone, user.PhoneCarrier, user.WhatsApp); err != nil {
		jsonError(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, user, http.StatusOK)
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
