package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	db, err := NewTestDB(sqlDB)
	if err != nil {
		sqlDB.Close()
		t.Fatalf("NewTestDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testBackend(t *testing.T, b Backend) {
	t.Helper()

	if _, err := b.GetAuth(); !errors.Is(err, ErrNoAuth) {
		t.Fatalf("GetAuth() on empty store error = %v, want ErrNoAuth", err)
	}

	expires := time.Now().Add(8 * time.Hour).Truncate(time.Second)
	first := &Auth{
		UserID:       "ABC123",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expires,
	}
	if err := b.SaveAuth(first); err != nil {
		t.Fatalf("SaveAuth() error = %v", err)
	}

	got, err := b.GetAuth()
	if err != nil {
		t.Fatalf("GetAuth() error = %v", err)
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" || got.UserID != "ABC123" {
		t.Errorf("GetAuth() = %+v", got)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}

	// Rotation overwrites the previous pair
	second := &Auth{
		UserID:       "ABC123",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    expires.Add(time.Hour),
	}
	if err := b.SaveAuth(second); err != nil {
		t.Fatalf("SaveAuth() error = %v", err)
	}
	got, err = b.GetAuth()
	if err != nil {
		t.Fatalf("GetAuth() error = %v", err)
	}
	if got.AccessToken != "access-2" || got.RefreshToken != "refresh-2" {
		t.Errorf("after rotation GetAuth() = %+v", got)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "tokens.json"))
	testBackend(t, fs)

	info, err := os.Stat(fs.Path())
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %v, want 0600", perm)
	}

	// No temp files are left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only tokens.json", names)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).GetAuth()
	if err == nil || errors.Is(err, ErrNoAuth) {
		t.Errorf("GetAuth() on corrupt file error = %v, want parse error", err)
	}
}

func TestFileStoreFailedSaveKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	fs := NewFileStore(path)
	if err := fs.SaveAuth(&Auth{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}

	// Saving into a missing directory fails before touching the original
	broken := NewFileStore(filepath.Join(dir, "missing", "tokens.json"))
	if err := broken.SaveAuth(&Auth{AccessToken: "b", RefreshToken: "s"}); err == nil {
		t.Fatal("expected error saving into a missing directory")
	}

	got, err := fs.GetAuth()
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "a" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "a")
	}
}

func TestDB(t *testing.T) {
	testBackend(t, openTestDB(t))
}

func TestBoltStore(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "tokens.bolt"))
	if err != nil {
		t.Fatalf("OpenBolt() error = %v", err)
	}
	defer b.Close()
	testBackend(t, b)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		kind string
		file string
	}{
		{BackendFile, "tokens.json"},
		{BackendSQLite, "data.db"},
		{BackendBolt, "tokens.bolt"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := Open(tt.kind, filepath.Join(dir, tt.kind, tt.file))
			if err != nil {
				t.Fatalf("Open(%q) error = %v", tt.kind, err)
			}
			defer b.Close()
			testBackend(t, b)
		})
	}

	if _, err := Open("redis", filepath.Join(dir, "x")); err == nil {
		t.Error("expected error for unknown backend")
	}
}
