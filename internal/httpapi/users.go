package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"playlister/internal/app/users"
	"playlister/internal/models"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorMessage: "invalid JSON payload"})
		return
	}

	user, err := s.users.Register(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			writeJSON(w, http.StatusConflict, errorResponse{ErrorMessage: "email already registered"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorMessage: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Success bool        `json:"success"`
		User    models.User `json:"user"`
	}{Success: true, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorMessage: "invalid JSON payload"})
		return
	}

	token, user, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, users.ErrInvalidCredentials) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{ErrorMessage: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, User: user})
}
