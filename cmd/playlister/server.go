package main

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"playlister/internal/app/playlists"
	"playlister/internal/app/users"
	"playlister/internal/auth"
	"playlister/internal/httpapi"
	"playlister/internal/store"
)

func newHTTPHandler(cfg Config, db store.Manager, logger zerolog.Logger) http.Handler {
	tokens := auth.NewTokenManager(cfg.JWTSecret)
	userSvc := users.New(db, tokens)
	playlistSvc := playlists.New(db, logger)

	handler := httpapi.New(userSvc, playlistSvc, tokens).Routes()
	handler = httpapi.RequestLogging(logger)(handler)
	return withCORS(cfg.AllowedOrigins, handler)
}

func withCORS(allowedOrigins []string, next http.Handler) http.Handler {
	originAllowed := func(origin string) bool {
		if len(allowedOrigins) == 0 || origin == "" {
			return false
		}
		for _, o := range allowedOrigins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
