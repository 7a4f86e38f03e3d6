package store

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendSurreal  = "surrealdb"
)

// Config selects a backend and carries its connection parameters. The choice
// is made once at process startup and holds for the process lifetime.
type Config struct {
	Backend     string
	PostgresURL string
	Surreal     SurrealConfig
}

// Open constructs the Manager for the configured backend. It does not
// connect; callers own the Connect/Close lifecycle.
func Open(cfg Config) (Manager, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres backend requires a database url")
		}
		return NewPostgres(cfg.PostgresURL), nil
	case BackendSurreal:
		return NewSurreal(cfg.Surreal), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q (want %q or %q)", cfg.Backend, BackendPostgres, BackendSurreal)
	}
}
