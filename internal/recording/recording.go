// Package recording defines the call recording record and the ordered index
// of recordings kept for one recordings directory.
package recording

import (
	"path"
	"strings"
	"time"
)

// Status is the reconciliation state of a recording during one pass
type Status string

const (
	StatusNew       Status = "new"
	StatusUnchanged Status = "unchanged"
	StatusDeleted   Status = "deleted" // never persisted
)

// Direction of the recorded call
type Direction string

const (
	DirectionIn         Direction = "in"
	DirectionOut        Direction = "out"
	DirectionConference Direction = "conference"
)

// Recording is one audio file plus its optional sidecar metadata.
// AudioFile is the key within an Index and never changes once created.
type Recording struct {
	AudioFile    string    `json:"audioFile"`
	MetadataFile *string   `json:"metadataFile"`
	Status       Status    `json:"status,omitempty"`
	Name         string    `json:"name"`
	OpName       string    `json:"opName,omitempty"`
	OpNumber     string    `json:"opNumber,omitempty"`
	Date         time.Time `json:"date"`
	Duration     float64   `json:"duration"` // seconds
	Direction    Direction `json:"direction,omitempty"`
	SimSlot      int       `json:"simSlot,omitempty"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType,omitempty"`
	Title        string    `json:"title,omitempty"`
}

// HasMetadata reports whether a sidecar file is associated
func (r *Recording) HasMetadata() bool {
	return r.MetadataFile != nil && *r.MetadataFile != ""
}

// MetadataName returns the sidecar file name or ""
func (r *Recording) MetadataName() string {
	if r.MetadataFile == nil {
		return ""
	}
	return *r.MetadataFile
}

// WithStatus returns a copy of r carrying status s
func (r Recording) WithStatus(s Status) Recording {
	r.Status = s
	return r
}

// ReplaceExtension swaps the extension of name for ext (".json").
// Names without an extension get ext appended.
func ReplaceExtension(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

// Stem returns name without its extension
func Stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
