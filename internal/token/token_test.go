package token

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore("")
	if got := s.Get(); got != "" {
		t.Errorf("Get() = %q, want empty", got)
	}

	s.Set("tok-1")
	if got := s.Get(); got != "tok-1" {
		t.Errorf("Get() = %q, want tok-1", got)
	}
}

func TestStore_InvalidateSignal(t *testing.T) {
	s := NewStore("tok-1")

	var fired int
	s.OnInvalid(func() { fired++ })

	s.Invalidate()

	if s.Get() != "" {
		t.Error("token should be cleared after Invalidate")
	}
	if fired != 1 {
		t.Errorf("invalidation listener fired %d times, want 1", fired)
	}
}

func TestStore_RefreshSignal(t *testing.T) {
	s := NewStore("")

	var fired int
	s.OnRefresh(func() { fired++ })

	s.Set("tok-2")
	if fired != 1 {
		t.Errorf("refresh listener fired %d times, want 1", fired)
	}

	// Clearing is not a refresh.
	s.Set("")
	if fired != 1 {
		t.Errorf("refresh listener fired on empty set, count %d", fired)
	}
}

func TestStore_MultipleListeners(t *testing.T) {
	s := NewStore("tok-1")

	var invalid, refresh int
	s.OnInvalid(func() { invalid++ })
	s.OnInvalid(func() { invalid++ })
	s.OnRefresh(func() { refresh++ })
	s.OnRefresh(func() { refresh++ })

	s.Invalidate()
	if invalid != 2 {
		t.Errorf("invalidation listeners fired %d times, want 2", invalid)
	}

	s.Set("tok-2")
	if refresh != 2 {
		t.Errorf("refresh listeners fired %d times, want 2", refresh)
	}
}

func TestLoad_EnvWins(t *testing.T) {
	t.Setenv(EnvVar, "env-token")

	s, err := Load("does/not/matter")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Get() != "env-token" {
		t.Errorf("Get() = %q, want env-token", s.Get())
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvVar, "")

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Get() != "file-token" {
		t.Errorf("Get() = %q, want file-token (trimmed)", s.Get())
	}
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	t.Setenv(EnvVar, "")

	s, err := Load(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Get() != "" {
		t.Errorf("Get() = %q, want empty", s.Get())
	}
}
