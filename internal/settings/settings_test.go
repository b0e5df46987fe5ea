package settings

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/franz/bcr-index/internal/storage"
)

const path = "/home/user/.config/bcrx/settings.yaml"

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(afero.NewMemMapFs(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if loc := s.Location(); loc != "" {
		t.Errorf("Location() = %q, expected empty", loc)
	}
}

func TestSetLocationPersists(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := Open(fsys, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SetLocation("/sdcard/BCR"); err != nil {
		t.Fatalf("SetLocation failed: %v", err)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if !strings.Contains(string(data), "/sdcard/BCR") {
		t.Errorf("settings file %q does not contain the location", data)
	}

	reopened, err := Open(fsys, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if loc := reopened.Location(); loc != storage.Location("/sdcard/BCR") {
		t.Errorf("Location() after reopen = %q, expected /sdcard/BCR", loc)
	}
}

func TestOverride(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := Open(fsys, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SetLocation("/saved"); err != nil {
		t.Fatalf("SetLocation failed: %v", err)
	}

	s.Override("/flag")
	if loc := s.Location(); loc != "/flag" {
		t.Errorf("Location() = %q, expected /flag", loc)
	}

	reopened, _ := Open(fsys, path)
	if loc := reopened.Location(); loc != "/saved" {
		t.Errorf("override leaked into the file: %q", loc)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, path, []byte("recordings_directory: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(fsys, path); err == nil {
		t.Error("Open accepted invalid YAML")
	}
}
