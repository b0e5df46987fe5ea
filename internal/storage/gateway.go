// Package storage provides the directory-scoped file primitives the recordings
// index runs on: listing, reading, writing and deleting files by name inside a
// storage location.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/franz/bcr-index/internal/util"
)

// Location is an opaque handle to one recordings directory.
// For the fs backend it is a directory path, for s3 it is "bucket/prefix".
type Location string

// FileEntry is one item of a directory listing
type FileEntry struct {
	Name         string
	IsDirectory  bool
	Type         string // MIME type
	Size         int64
	LastModified time.Time
}

// Gateway is the capability set the recordings index consumes.
// Every call may block on I/O; missing files surface as util.ErrNotFound.
type Gateway interface {
	ListFiles(ctx context.Context, loc Location) ([]FileEntry, error)
	ReadFile(ctx context.Context, loc Location, name string) ([]byte, error)
	WriteFile(ctx context.Context, loc Location, name string, data []byte) error
	DeleteFile(ctx context.Context, loc Location, name string) error
	Exists(ctx context.Context, loc Location, name string) (bool, error)
}

// Renamer is implemented by gateways that can replace a file atomically
type Renamer interface {
	Rename(ctx context.Context, loc Location, oldName, newName string) error
}

// Wrapper is implemented by gateways that decorate another gateway
type Wrapper interface {
	Unwrap() Gateway
}

var errRenameUnsupported = errors.New("rename not supported by gateway")

// SupportsRename reports whether g, or the innermost gateway it wraps, can
// replace files atomically
func SupportsRename(g Gateway) bool {
	for {
		w, ok := g.(Wrapper)
		if !ok {
			break
		}
		g = w.Unwrap()
	}
	_, ok := g.(Renamer)
	return ok
}

// typesByExt maps recorder output extensions to MIME types
var typesByExt = map[string]string{
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".amr":  "audio/amr",
	".awb":  "audio/amr-wb",
	".3gp":  "audio/3gpp",
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".json": "application/json",
}

// TypeByName returns the MIME type for a file name based on its extension
func TypeByName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := typesByExt[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}

// ValidateName rejects names that are not a single element inside loc
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", util.ErrInvalidName, name)
	}
	return nil
}
