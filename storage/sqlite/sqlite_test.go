package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/jmcleod/credvault/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite (modernc): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage(t *testing.T) {
	storagetest.Run(t, newTestStore(t))
}

func TestSQLiteStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credvault.sqlite")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Put("ns", "ITEM", "a", []byte("persisted")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
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
}
