package storage

import (
	"path/filepath"
	"testing"
)

func TestSQLiteRoundTrip(t *testing.T) {
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, found, err := s.Get("missing"); err != nil || found {
		t.Fatalf("expected absent key, found=%v err=%v", found, err)
	}

	if err := s.Put(KeyOpenWindows, []byte(`[{"debateRoomId":"room-1"}]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, found, err := s.Get(KeyOpenWindows)
	if err != nil || !found {
		t.Fatalf("get after put: found=%v err=%v", found, err)
	}
	if string(value) != `[{"debateRoomId":"room-1"}]` {
		t.Fatalf("unexpected value: %s", value)
	}

	// Put replaces.
	if err := s.Put(KeyOpenWindows, []byte(`[]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _, _ = s.Get(KeyOpenWindows)
	if string(value) != `[]` {
		t.Fatalf("expected overwritten value, got %s", value)
	}

	if err := s.Delete(KeyOpenWindows); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(KeyOpenWindows); found {
		t.Fatalf("expected key gone after delete")
	}

	// Deleting an absent key is fine.
	if err := s.Delete("never-existed"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := s.Put(KeyTheme, []byte("dark")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	value, found, err := reopened.Get(KeyTheme)
	if err != nil || !found {
		t.Fatalf("get after reopen: found=%v err=%v", found, err)
	}
	if string(value) != "dark" {
		t.Fatalf("unexpected value after reopen: %s", value)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemory()

	original := []byte("dark")
	if err := s.Put(KeyTheme, original); err != nil {
		t.Fatalf("put: %v", err)
	}
	original[0] = 'X'

	value, _, _ := s.Get(KeyTheme)
	if string(value) != "dark" {
		t.Fatalf("store must copy values, got %s", value)
	}
}
