package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoAuth is returned when no authentication is stored
var ErrNoAuth = errors.New("no authentication stored")

// Backend kinds
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Backend persists the single credential record.
// SaveAuth must replace the previous record atomically: a failed save
// leaves the old record readable.
type Backend interface {
	GetAuth() (*Auth, error)
	SaveAuth(auth *Auth) error
	Close() error
}

// Open opens the credential backend of the given kind at path.
// An empty path resolves to the default location under ~/.fitbit-insights.
func Open(kind, path string) (Backend, error) {
	if kind == "" {
		kind = BackendFile
	}

	if path == "" {
		var err error
		path, err = DefaultPath(kind)
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	switch kind {
	case BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return OpenDB(path)
	case BackendBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown token backend %q", kind)
	}
}

// DefaultPath returns the default storage path for a backend kind
func DefaultPath(kind string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	name := "tokens.json"
	switch kind {
	case BackendSQLite:
		name = "data.db"
	case BackendBolt:
		name = "tokens.bolt"
	}
	return filepath.Join(home, ".fitbit-insights", name), nil
}
