package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gessa-sistemas/boletosgo/internal/models"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
	"github.com/gessa-sistemas/boletosgo/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Contractor string `json:"contractor"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var user models.UserAuth
	if err := r.db.Where("username = ? AND is_active = ?", loginReq.Username, true).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	r.db.Save(&user)

	token, err := utils.GenerateToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	r.audit.Record(user.ID, audit.ActionLogin, "auth", "user_auths", user.ID, nil, clientIP(req))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// register handles user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if regReq.Username == "" || regReq.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.UserAuth{
		Username: regReq.Username,
		Password: hashedPassword,
		Name:     regReq.Name,
		Role:     regReq.Role,
		IsActive: true,
	}
	if user.Role == "" {
		user.Role = "validator"
	}
	if regReq.Contractor != "" {
		user.Contractor = &regReq.Contractor
	}

	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create user (username might exist)")
		return
	}

	token, err := utils.GenerateToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "User created but failed to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}
