package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"playlister/internal/app/playlists"
	"playlister/internal/models"
)

type createPlaylistRequest struct {
	Name       string        `json:"name"`
	OwnerEmail string        `json:"ownerEmail"`
	Songs      []models.Song `json:"songs"`
}

type updatePlaylistRequest struct {
	Playlist struct {
		Name  string        `json:"name"`
		Songs []models.Song `json:"songs"`
	} `json:"playlist"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	callerID := s.verifyCaller(r)
	if callerID == "" {
		writeUnauthorized(w)
		return
	}

	var req createPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResponse{Error: "You must provide a Playlist"})
		return
	}

	created, err := s.playlists.Create(r.Context(), callerID, models.Playlist{
		Name:       req.Name,
		OwnerEmail: req.OwnerEmail,
		Songs:      req.Songs,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Playlist models.Playlist `json:"playlist"`
	}{Playlist: created})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	callerID := s.verifyCaller(r)
	if callerID == "" {
		writeUnauthorized(w)
		return
	}

	playlist, err := s.playlists.Get(r.Context(), callerID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, playlists.ErrDenied):
			writeJSON(w, http.StatusBadRequest, denied())
		case errors.Is(err, playlists.ErrOwnerMissing):
			writeJSON(w, http.StatusInternalServerError, failResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusBadRequest, failResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success  bool            `json:"success"`
		Playlist models.Playlist `json:"playlist"`
	}{Success: true, Playlist: playlist})
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	callerID := s.verifyCaller(r)
	if callerID == "" {
		writeUnauthorized(w)
		return
	}

	var req updatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failResponse{Error: "You must provide a body to update"})
		return
	}

	updated, err := s.playlists.Update(r.Context(), callerID, r.PathValue("id"), req.Playlist.Name, req.Playlist.Songs)
	if err != nil {
		switch {
		case errors.Is(err, playlists.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{ErrorMessage: "Playlist not found!"})
		case errors.Is(err, playlists.ErrDenied):
			writeJSON(w, http.StatusBadRequest, denied())
		case errors.Is(err, playlists.ErrOwnerMissing):
			writeJSON(w, http.StatusInternalServerError, failResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusNotFound, errorResponse{ErrorMessage: "Playlist not updated!"})
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Message string `json:"message"`
	}{Success: true, ID: updated.ID, Message: "Playlist updated!"})
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	callerID := s.verifyCaller(r)
	if callerID == "" {
		writeUnauthorized(w)
		return
	}

	err := s.playlists.Delete(r.Context(), callerID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, playlists.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{ErrorMessage: "Playlist not found!"})
		case errors.Is(err, playlists.ErrDenied):
			writeJSON(w, http.StatusBadRequest, denied())
		case errors.Is(err, playlists.ErrOwnerMissing):
			writeJSON(w, http.StatusInternalServerError, failResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusBadRequest, failResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handlePlaylistPairs(w http.ResponseWriter, r *http.Request) {
	callerID := s.verifyCaller(r)
	if callerID == "" {
		writeUnauthorized(w)
		return
	}

	pairs, err := s.playlists.Pairs(r.Context(), callerID)
	if err != nil {
		if errors.Is(err, playlists.ErrCallerUnknown) {
			writeJSON(w, http.StatusNotFound, failResponse{Error: "User not found"})
			return
		}
		writeJSON(w, http.StatusBadRequest, failResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success     bool                `json:"success"`
		IDNamePairs []models.IDNamePair `json:"idNamePairs"`
	}{Success: true, IDNamePairs: pairs})
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	callerID := s.verifyCaller(r)
	if callerID == "" {
		writeUnauthorized(w)
		return
	}

	lists, err := s.playlists.ListAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failResponse{Error: err.Error()})
		return
	}
	if len(lists) == 0 {
		writeJSON(w, http.StatusNotFound, failResponse{Error: "Playlists not found"})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool              `json:"success"`
		Data    []models.Playlist `json:"data"`
	}{Success: true, Data: lists})
}
