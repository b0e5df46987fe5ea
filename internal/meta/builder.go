// Package meta builds recording entities from raw directory entries and their
// optional sidecar metadata files.
package meta

import (
	"context"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/report"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/util"
)

// Builder constructs Recording values
type Builder struct {
	gateway  storage.Gateway
	readTags bool
	logger   *report.EventLogger
}

// Config holds builder configuration
type Config struct {
	Gateway  storage.Gateway
	ReadTags bool // also read embedded audio tags (reads the whole audio file)
	Logger   *report.EventLogger
}

// NewBuilder creates a Builder
func NewBuilder(cfg *Config) *Builder {
	return &Builder{
		gateway:  cfg.Gateway,
		readTags: cfg.ReadTags,
		logger:   cfg.Logger,
	}
}

// Build creates the recording for file. metadata is the matching sidecar
// entry from the same listing, or nil.
//
// A sidecar read failure is returned as an I/O error with no recording.
// A malformed sidecar yields a recording built from the raw attributes
// together with a *util.MetadataParseError.
func (b *Builder) Build(ctx context.Context, loc storage.Location, file storage.FileEntry, metadata *storage.FileEntry) (recording.Recording, error) {
	rec := recording.Recording{
		AudioFile: file.Name,
		Status:    recording.StatusNew,
		Date:      file.LastModified,
		Size:      file.Size,
		MimeType:  file.Type,
	}

	fromName := ParseFilename(file.Name)
	if !fromName.Date.IsZero() {
		rec.Date = fromName.Date
	}
	rec.Direction = fromName.Direction
	rec.SimSlot = fromName.SimSlot
	rec.OpNumber = fromName.Number
	rec.OpName = fromName.Name

	if b.readTags {
		if info, err := probeTags(ctx, b.gateway, loc, file.Name); err != nil {
			util.DebugLog("No tags for %s: %v", file.Name, err)
		} else {
			rec.Title = info.Title
		}
	}

	var parseErr error
	if metadata != nil {
		name := metadata.Name
		rec.MetadataFile = &name

		data, err := b.gateway.ReadFile(ctx, loc, name)
		if err != nil {
			return recording.Recording{}, util.WrapIO("read", name, err)
		}

		sc, err := ParseSidecar(data)
		if err != nil {
			parseErr = &util.MetadataParseError{File: name, Err: err}
			util.WarnLog("Ignoring malformed metadata %s: %v", name, err)
			b.logger.LogMetadataError(string(loc), file.Name, name, err)
		} else {
			applySidecar(&rec, sc)
		}
	}

	rec.Name = displayName(&rec)
	return rec, parseErr
}

func applySidecar(rec *recording.Recording, sc *Sidecar) {
	if t, ok := sc.Date(); ok {
		rec.Date = t
	}
	if d, ok := sc.Duration(); ok {
		rec.Duration = d
	}
	if d := sc.CallDirection(); d != "" {
		rec.Direction = d
	}
	if sc.SimSlot != nil {
		rec.SimSlot = *sc.SimSlot
	}
	if n := sc.OpName(); n != "" {
		rec.OpName = n
	}
	if n := sc.OpNumber(); n != "" {
		rec.OpNumber = n
	}
	if mt := sc.MimeType(); mt != "" {
		rec.MimeType = mt
	}
}

func displayName(rec *recording.Recording) string {
	switch {
	case rec.OpName != "":
		return rec.OpName
	case rec.OpNumber != "":
		return rec.OpNumber
	case rec.Title != "":
		return rec.Title
	}
	return recording.Stem(rec.AudioFile)
}
