// Package settings persists the user's choice of recordings directory.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/franz/bcr-index/internal/storage"
)

const keyLocation = "recordings_directory"

// Settings is a small YAML file holding the selected storage location
type Settings struct {
	mu       sync.Mutex
	v        *viper.Viper
	fs       afero.Fs
	path     string
	override storage.Location
}

// DefaultPath returns the settings file under the user config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "bcrx", "settings.yaml"), nil
}

// Open reads the settings file at path from fsys (nil means the OS
// filesystem). A missing file yields empty settings.
func Open(fsys afero.Fs, path string) (*Settings, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat settings: %w", err)
	}
	if exists {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}
	return &Settings{v: v, fs: fsys, path: path}, nil
}

// Override makes Location return loc without touching the file, for a
// directory given on the command line
func (s *Settings) Override(loc storage.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = loc
}

// Location returns the selected storage location or ""
func (s *Settings) Location() storage.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override != "" {
		return s.override
	}
	return storage.Location(s.v.GetString(keyLocation))
}

// SetLocation stores loc and writes the settings file
func (s *Settings) SetLocation(loc storage.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	s.v.Set(keyLocation, string(loc))
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}
	if s.override != "" {
		s.override = loc
	}
	return nil
}

// Path returns the settings file path
func (s *Settings) Path() string { return s.path }
