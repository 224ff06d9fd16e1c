package bbolt

import (
	"os"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/credvault/storage/storagetest"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credvault-test.db")
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBBoltStorage(t *testing.T) {
	storagetest.Run(t, NewRepository(newTestDB(t)))
}

func TestBBoltStorage_PrefixIsolation(t *testing.T) {
	s := NewRepository(newTestDB(t))
	if err := s.Put("ns", "ITEMS", "x", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put("ns", "ITEM", "a", []byte("a")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put("ns", "Z", "", []byte("z")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ids, err := s.List("ns", "ITEM")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("expected [a], got %v", ids)
	}
}

func TestNewRepositoryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbolt-file-test.db")

	repo, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewRepositoryFromFile failed: %v", err)
	}
	if err := repo.Put("ns", "ITEM", "a", []byte("persisted")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get("ns", "ITEM", "a")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("expected persisted, got %q", got)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file missing: %v", err)
	}

	_, err = NewRepositoryFromFile("/nonexistent/path/to/db", nil)
	if err == nil {
		t.Error("expected error for invalid path")
	}
}
