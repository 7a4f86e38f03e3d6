// Package users handles account registration, login and caller resolution.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"playlister/internal/auth"
	"playlister/internal/models"
	"playlister/internal/store"
)

var (
	// ErrEmailTaken signals the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotFound signals an unknown user id.
	ErrNotFound = errors.New("user not found")

	dummyPasswordHash = []byte("$2a$10$CwTycUXWue0Thq9StjUM0uJ8n4VWeNseyX2fA9DE.D7su7J6iYGTC")
)

// Service owns user workflows on top of the persistence layer.
type Service struct {
	db     store.Manager
	tokens *auth.TokenManager
}

// New wires a user service.
func New(db store.Manager, tokens *auth.TokenManager) *Service {
	return &Service{db: db, tokens: tokens}
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, firstName, lastName, email, password string) (models.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)
	if firstName == "" || lastName == "" || email == "" || password == "" {
		return models.User{}, errors.New("first name, last name, email and password are required")
	}

	_, err := s.db.ReadOne(ctx, store.KindUser, store.Criteria{"email": email})
	if err == nil {
		return models.User{}, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: string(hash),
	}
	saved, err := s.db.Save(ctx, store.KindUser, user.Record())
	if err != nil {
		return models.User{}, fmt.Errorf("save user: %w", err)
	}
	return models.UserFromRecord(saved), nil
}

// Login validates credentials and returns a signed token plus the account.
func (s *Service) Login(ctx context.Context, email, password string) (string, models.User, error) {
	rec, err := s.db.ReadOne(ctx, store.KindUser, store.Criteria{"email": strings.TrimSpace(email)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return "", models.User{}, ErrInvalidCredentials
		}
		return "", models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	user := models.UserFromRecord(rec)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Mint(user.ID)
	if err != nil {
		return "", models.User{}, fmt.Errorf("mint token: %w", err)
	}
	return token, user, nil
}

// ByID resolves a user by opaque identity.
func (s *Service) ByID(ctx context.Context, id string) (models.User, error) {
	rec, err := s.db.ReadOneByID(ctx, store.KindUser, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return models.UserFromRecord(rec), nil
}
