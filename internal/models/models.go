// Package models defines the User and Playlist resources in their canonical
// field naming, plus the conversions between typed values and the store's
// generic records.
package models

import (
	"fmt"
	"time"

	"playlister/internal/store"
)

// Song is a playlist entry. Songs are embedded: they live and die with
// their parent playlist and are never addressable on their own.
type Song struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Year      int    `json:"year"`
	YouTubeID string `json:"youTubeId"`
}

// Playlist is an ordered song list owned by exactly one user. Ownership is
// durable through OwnerEmail; the owner's opaque id is never stored here.
type Playlist struct {
	ID         string    `json:"_id,omitempty"`
	Name       string    `json:"name"`
	OwnerEmail string    `json:"ownerEmail"`
	Songs      []Song    `json:"songs"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// User is an account. Playlists is the document backend's denormalized
// forward list of owned playlist ids; the relational backend never fills it.
type User struct {
	ID           string   `json:"_id,omitempty"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Playlists    []string `json:"playlists,omitempty"`
}

// IDNamePair is the projection served by the playlist pairs listing.
type IDNamePair struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Record converts the playlist to its stored form.
func (p Playlist) Record() store.Record {
	songs := make([]any, 0, len(p.Songs))
	for _, s := range p.Songs {
		songs = append(songs, map[string]any{
			"title":     s.Title,
			"artist":    s.Artist,
			"year":      s.Year,
			"youTubeId": s.YouTubeID,
		})
	}

	rec := store.Record{
		"name":       p.Name,
		"ownerEmail": p.OwnerEmail,
		"songs":      songs,
	}
	if p.ID != "" {
		rec["_id"] = p.ID
	}
	if !p.CreatedAt.IsZero() {
		rec["createdAt"] = p.CreatedAt
	}
	return rec
}

// Record converts the user to its stored form.
func (u User) Record() store.Record {
	rec := store.Record{
		"firstName":    u.FirstName,
		"lastName":     u.LastName,
		"email":        u.Email,
		"passwordHash": u.PasswordHash,
	}
	if u.ID != "" {
		rec["_id"] = u.ID
	}
	if u.Playlists != nil {
		ids := make([]any, 0, len(u.Playlists))
		for _, id := range u.Playlists {
			ids = append(ids, id)
		}
		rec["playlists"] = ids
	}
	return rec
}

// PlaylistFromRecord decodes a stored playlist.
func PlaylistFromRecord(rec store.Record) (Playlist, error) {
	p := Playlist{
		ID:         rec.ID(),
		Name:       stringField(rec, "name"),
		OwnerEmail: stringField(rec, "ownerEmail"),
		CreatedAt:  timeField(rec, "createdAt"),
		UpdatedAt:  timeField(rec, "updatedAt"),
	}

	raw, _ := rec["songs"].([]any)
	p.Songs = make([]Song, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			return Playlist{}, fmt.Errorf("unexpected song shape %T", entry)
		}
		p.Songs = append(p.Songs, Song{
			Title:     asString(obj["title"]),
			Artist:    asString(obj["artist"]),
			Year:      asInt(obj["year"]),
			YouTubeID: asString(obj["youTubeId"]),
		})
	}
	return p, nil
}

// UserFromRecord decodes a stored user.
func UserFromRecord(rec store.Record) User {
	u := User{
		ID:           rec.ID(),
		FirstName:    stringField(rec, "firstName"),
		LastName:     stringField(rec, "lastName"),
		Email:        stringField(rec, "email"),
		PasswordHash: stringField(rec, "passwordHash"),
	}
	if raw, ok := rec["playlists"].([]any); ok {
		u.Playlists = make([]string, 0, len(raw))
		for _, id := range raw {
			u.Playlists = append(u.Playlists, asString(id))
		}
	}
	return u
}

func stringField(rec store.Record, key string) string {
	return asString(rec[key])
}

func timeField(rec store.Record, key string) time.Time {
	switch v := rec[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
