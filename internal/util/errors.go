package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes
var (
	// ErrNoStorageConfigured signals that no recordings directory has been selected yet.
	// Callers treat it as a request to run directory selection, not as a failure.
	ErrNoStorageConfigured = errors.New("no storage location configured")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrCorruptDocument indicates the persisted index exists but cannot be parsed
	ErrCorruptDocument = errors.New("corrupt index document")

	// ErrUnsupportedVersion indicates an index document written by a newer schema
	ErrUnsupportedVersion = errors.New("unsupported schema version")

	// ErrMetadataParse indicates a sidecar metadata file is not well-formed
	ErrMetadataParse = errors.New("metadata parse error")

	// ErrIO indicates a storage list/read/write/delete failure
	ErrIO = errors.New("i/o failure")

	// ErrPartialDelete indicates one file of an audio/metadata pair could not be deleted
	ErrPartialDelete = errors.New("partial delete failure")

	// ErrSelectionCancelled indicates the user dismissed directory selection
	ErrSelectionCancelled = errors.New("directory selection cancelled")

	// ErrInvalidName indicates a file name that escapes its storage location
	ErrInvalidName = errors.New("invalid file name")
)

// IOError wraps a storage failure with the operation and file it concerns.
type IOError struct {
	Op   string // list, read, write, delete, exists, rename
	Name string
	Err  error
}

func (e *IOError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports ErrIO so callers can match any storage failure.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// MetadataParseError reports a malformed sidecar file.
type MetadataParseError struct {
	File string
	Err  error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("parse metadata %s: %v", e.File, e.Err)
}

func (e *MetadataParseError) Unwrap() error { return e.Err }

func (e *MetadataParseError) Is(target error) bool { return target == ErrMetadataParse }

// PartialDeleteError reports which files of a recording were removed before a
// deletion step failed.
type PartialDeleteError struct {
	Deleted []string
	Failed  string
	Err     error
}

func (e *PartialDeleteError) Error() string {
	if len(e.Deleted) == 0 {
		return fmt.Sprintf("delete %s: %v", e.Failed, e.Err)
	}
	return fmt.Sprintf("delete %s: %v (already deleted: %s)", e.Failed, e.Err, strings.Join(e.Deleted, ", "))
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

func (e *PartialDeleteError) Is(target error) bool { return target == ErrPartialDelete }

// WrapIO wraps err as an IOError unless it is nil or already one.
func WrapIO(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Name: name, Err: err}
}
