package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/report"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/util"
)

// Store loads and saves index documents through a storage gateway
type Store struct {
	gateway storage.Gateway
	logger  *report.EventLogger
}

// NewStore creates a Store
func NewStore(gw storage.Gateway, logger *report.EventLogger) *Store {
	return &Store{gateway: gw, logger: logger}
}

// Load reads the persisted index of loc, upgrading older documents.
// It returns util.ErrNotFound when no document exists, util.ErrCorruptDocument
// when it cannot be parsed and util.ErrUnsupportedVersion when a newer build
// wrote it.
func (s *Store) Load(ctx context.Context, loc storage.Location) (recording.Index, error) {
	doc, err := s.read(ctx, loc)
	if err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			s.logger.LogLoad(string(loc), 0, 0, err)
		}
		return nil, err
	}

	if doc.SchemaVersion > SchemaVersion {
		err := fmt.Errorf("%w: document is v%d, this build supports v%d",
			util.ErrUnsupportedVersion, doc.SchemaVersion, SchemaVersion)
		s.logger.LogLoad(string(loc), 0, doc.SchemaVersion, err)
		return nil, err
	}

	version := doc.SchemaVersion
	if version < SchemaVersion {
		upgraded, err := Upgrade(*doc)
		if err != nil {
			s.logger.LogLoad(string(loc), 0, version, err)
			return nil, err
		}
		util.InfoLog("Upgraded index document from schema v%d to v%d", version, upgraded.SchemaVersion)
		s.logger.LogUpgrade(string(loc), version, upgraded.SchemaVersion)
		doc = &upgraded
	}

	idx, dropped := doc.Data.Dedupe()
	for _, name := range dropped {
		util.WarnLog("Index lists %s more than once, keeping the first entry", name)
	}

	s.logger.LogLoad(string(loc), len(idx), version, nil)
	return idx, nil
}

func (s *Store) read(ctx context.Context, loc storage.Location) (*Document, error) {
	ok, err := s.gateway.Exists(ctx, loc, DocumentName)
	if err != nil {
		return nil, util.WrapIO("exists", DocumentName, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", DocumentName, util.ErrNotFound)
	}

	data, err := s.gateway.ReadFile(ctx, loc, DocumentName)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", DocumentName, util.ErrNotFound)
		}
		return nil, util.WrapIO("read", DocumentName, err)
	}
	return Decode(data)
}

// Save writes idx as the persisted document of loc. With a renaming gateway
// the document is written to TempName first and then moved into place, so a
// failed save leaves the previous document intact.
func (s *Store) Save(ctx context.Context, loc storage.Location, idx recording.Index) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}

	err = s.write(ctx, loc, data)
	s.logger.LogSave(string(loc), len(idx.Live()), err)
	return err
}

func (s *Store) write(ctx context.Context, loc storage.Location, data []byte) error {
	renamer, ok := s.gateway.(storage.Renamer)
	if !ok || !storage.SupportsRename(s.gateway) {
		return util.WrapIO("write", DocumentName, s.gateway.WriteFile(ctx, loc, DocumentName, data))
	}

	if err := s.gateway.WriteFile(ctx, loc, TempName, data); err != nil {
		return util.WrapIO("write", TempName, err)
	}
	if err := renamer.Rename(ctx, loc, TempName, DocumentName); err != nil {
		if delErr := s.gateway.DeleteFile(ctx, loc, TempName); delErr != nil {
			util.DebugLog("Failed to remove %s: %v", TempName, delErr)
		}
		return util.WrapIO("rename", TempName, err)
	}
	return nil
}
