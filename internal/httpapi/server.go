// Package httpapi exposes the playlist store over HTTP, preserving the wire
// envelopes the web client consumes.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"playlister/internal/auth"
	"playlister/internal/models"
)

// UserService captures the account operations needed by the HTTP handlers.
type UserService interface {
	Register(ctx context.Context, firstName, lastName, email, password string) (models.User, error)
	Login(ctx context.Context, email, password string) (string, models.User, error)
}

// PlaylistService coordinates playlist operations for an authenticated
// caller.
type PlaylistService interface {
	Create(ctx context.Context, callerID string, p models.Playlist) (models.Playlist, error)
	Get(ctx context.Context, callerID, id string) (models.Playlist, error)
	Update(ctx context.Context, callerID, id, name string, songs []models.Song) (models.Playlist, error)
	Delete(ctx context.Context, callerID, id string) error
	Pairs(ctx context.Context, callerID string) ([]models.IDNamePair, error)
	ListAll(ctx context.Context) ([]models.Playlist, error)
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	users     UserService
	playlists PlaylistService
	tokens    *auth.TokenManager
}

// New configures a Server with the given services.
func New(users UserService, playlists PlaylistService, tokens *auth.TokenManager) *Server {
	return &Server{users: users, playlists: playlists, tokens: tokens}
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	mux.HandleFunc("POST /store/playlist", s.handleCreatePlaylist)
	mux.HandleFunc("GET /store/playlist/{id}", s.handleGetPlaylist)
	mux.HandleFunc("PUT /store/playlist/{id}", s.handleUpdatePlaylist)
	mux.HandleFunc("DELETE /store/playlist/{id}", s.handleDeletePlaylist)
	mux.HandleFunc("GET /store/playlistpairs", s.handlePlaylistPairs)
	mux.HandleFunc("GET /store/playlists", s.handleListPlaylists)

	return mux
}

// errorResponse is the bare error envelope.
type errorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

// failResponse is the success-flagged error envelope.
type failResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// deniedResponse is the envelope for an ownership denial.
type deniedResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
}

func denied() deniedResponse {
	return deniedResponse{Success: false, Description: "authentication error"}
}

// verifyCaller resolves the authenticated caller's user id from the bearer
// token, or "" when the request carries no valid token.
func (s *Server) verifyCaller(r *http.Request) string {
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return ""
	}
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return ""
	}
	return userID
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse{ErrorMessage: "UNAUTHORIZED"})
}
