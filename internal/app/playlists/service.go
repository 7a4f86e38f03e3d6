// Package playlists owns playlist workflows and the ownership checks that
// gate them.
package playlists

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"playlister/internal/models"
	"playlister/internal/store"
)

var (
	// ErrNotFound signals the target playlist does not exist.
	ErrNotFound = errors.New("playlist not found")
	// ErrDenied signals the caller does not own the target playlist.
	ErrDenied = errors.New("playlist not owned by caller")
	// ErrOwnerMissing signals a playlist whose ownerEmail resolves to no
	// user. That is stored-data corruption, not an authorization outcome.
	ErrOwnerMissing = errors.New("playlist owner does not exist")
	// ErrCallerUnknown signals the authenticated caller id resolves to no
	// user record.
	ErrCallerUnknown = errors.New("caller not found")
)

// Service owns playlist workflows on top of the persistence layer.
type Service struct {
	db  store.Manager
	log zerolog.Logger
}

// New wires a playlist service.
func New(db store.Manager, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Create stores a new playlist. Ownership needs no prior check here: it is
// established by the ownerEmail the playlist is created with. On the
// document backend the owner's denormalized playlist list is appended to as
// a best effort; a failure there is logged and never rolls back the created
// playlist, since ownership is always derived from ownerEmail.
func (s *Service) Create(ctx context.Context, callerID string, p models.Playlist) (models.Playlist, error) {
	if p.Name == "" || p.OwnerEmail == "" {
		return models.Playlist{}, errors.New("playlist name and ownerEmail are required")
	}
	p.ID = ""

	saved, err := s.db.Save(ctx, store.KindPlaylist, p.Record())
	if err != nil {
		return models.Playlist{}, fmt.Errorf("save playlist: %w", err)
	}
	created, err := models.PlaylistFromRecord(saved)
	if err != nil {
		return models.Playlist{}, err
	}

	s.appendToOwnerList(ctx, callerID, created.ID)

	return created, nil
}

// Get returns a playlist, gated by ownership.
func (s *Service) Get(ctx context.Context, callerID, id string) (models.Playlist, error) {
	return s.authorize(ctx, callerID, id)
}

// Update replaces the playlist's name and song sequence wholesale, gated by
// ownership.
func (s *Service) Update(ctx context.Context, callerID, id, name string, songs []models.Song) (models.Playlist, error) {
	playlist, err := s.authorize(ctx, callerID, id)
	if err != nil {
		return models.Playlist{}, err
	}

	playlist.Name = name
	playlist.Songs = songs

	saved, err := s.db.Save(ctx, store.KindPlaylist, playlist.Record())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("save playlist: %w", err)
	}
	return models.PlaylistFromRecord(saved)
}

// Delete removes a playlist, gated by ownership.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.authorize(ctx, callerID, id); err != nil {
		return err
	}

	if err := s.db.DeleteByID(ctx, store.KindPlaylist, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

// Pairs projects the caller's playlists to (id, name) pairs. A caller with
// no playlists gets an empty list, which is distinct from the caller id
// resolving to no user at all.
func (s *Service) Pairs(ctx context.Context, callerID string) ([]models.IDNamePair, error) {
	userRec, err := s.db.ReadOneByID(ctx, store.KindUser, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallerUnknown
		}
		return nil, fmt.Errorf("get caller: %w", err)
	}
	caller := models.UserFromRecord(userRec)

	records, err := s.db.ReadAll(ctx, store.KindPlaylist, store.Criteria{"ownerEmail": caller.Email})
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	pairs := make([]models.IDNamePair, 0, len(records))
	for _, rec := range records {
		playlist, err := models.PlaylistFromRecord(rec)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, models.IDNamePair{ID: playlist.ID, Name: playlist.Name})
	}
	return pairs, nil
}

// ListAll returns every stored playlist.
func (s *Service) ListAll(ctx context.Context) ([]models.Playlist, error) {
	records, err := s.db.ReadAll(ctx, store.KindPlaylist, nil)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	playlists := make([]models.Playlist, 0, len(records))
	for _, rec := range records {
		playlist, err := models.PlaylistFromRecord(rec)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	return playlists, nil
}

// authorize resolves the playlist, resolves its owning user by email and
// compares the owner's opaque id against the caller's. The three terminal
// outcomes are the playlist itself (authorized), ErrDenied and ErrNotFound.
// An ownerEmail that matches no user is reported as ErrOwnerMissing and
// logged; masking it as a denial would hide a data-integrity violation.
func (s *Service) authorize(ctx context.Context, callerID, id string) (models.Playlist, error) {
	rec, err := s.db.ReadOneByID(ctx, store.KindPlaylist, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("get playlist: %w", err)
	}
	playlist, err := models.PlaylistFromRecord(rec)
	if err != nil {
		return models.Playlist{}, err
	}

	ownerRec, err := s.db.ReadOne(ctx, store.KindUser, store.Criteria{"email": playlist.OwnerEmail})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Error().
				Str("playlist_id", playlist.ID).
				Str("owner_email", playlist.OwnerEmail).
				Msg("playlist owner email resolves to no user")
			return models.Playlist{}, fmt.Errorf("%w: %s", ErrOwnerMissing, playlist.OwnerEmail)
		}
		return models.Playlist{}, fmt.Errorf("get owner: %w", err)
	}

	owner := models.UserFromRecord(ownerRec)
	if owner.ID != callerID {
		return models.Playlist{}, ErrDenied
	}
	return playlist, nil
}

// appendToOwnerList keeps the document backend's forward playlist list in
// sync after a create. Best effort: each step commits on its own and a
// failure leaves the already created playlist in place.
func (s *Service) appendToOwnerList(ctx context.Context, callerID, playlistID string) {
	userRec, err := s.db.ReadOneByID(ctx, store.KindUser, callerID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("user_id", callerID).
			Msg("skipping owner playlist list update")
		return
	}

	list, _ := userRec["playlists"].([]any)
	userRec["playlists"] = append(list, playlistID)

	if _, err := s.db.Save(ctx, store.KindUser, userRec); err != nil {
		s.log.Warn().Err(err).
			Str("user_id", callerID).
			Str("playlist_id", playlistID).
			Msg("owner playlist list not updated")
	}
}
