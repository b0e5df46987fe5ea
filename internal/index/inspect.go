package index

import (
	"context"
	"errors"

	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/util"
)

// Health describes the persisted document of a location without loading it
// into a controller
type Health struct {
	Exists        bool
	SchemaVersion int
	Entries       int
	NeedsUpgrade  bool
	StaleTemp     bool // a temp file from an interrupted save is present
	Err           error
}

// Inspect reports the state of the document stored in loc
func (s *Store) Inspect(ctx context.Context, loc storage.Location) *Health {
	h := &Health{}

	if ok, err := s.gateway.Exists(ctx, loc, TempName); err == nil {
		h.StaleTemp = ok
	}

	doc, err := s.read(ctx, loc)
	if err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			h.Exists = errors.Is(err, util.ErrCorruptDocument)
			h.Err = err
		}
		return h
	}

	h.Exists = true
	h.SchemaVersion = doc.SchemaVersion
	h.Entries = len(doc.Data)
	h.NeedsUpgrade = doc.SchemaVersion < SchemaVersion
	if doc.SchemaVersion > SchemaVersion {
		h.Err = util.ErrUnsupportedVersion
	}
	return h
}
