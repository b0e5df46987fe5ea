// Package index persists the recordings index of one storage location as a
// versioned JSON document stored inside that location.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/util"
)

const (
	// DocumentName is the fixed file name of the persisted index
	DocumentName = ".bcr-gui-database.json"

	// SchemaVersion is the document version this build reads and writes
	SchemaVersion = 1

	tempSuffix = ".tmp"
)

// TempName is the file a save writes before replacing DocumentName
const TempName = DocumentName + tempSuffix

// Document is the persisted form of an index
type Document struct {
	SchemaVersion int             `json:"schemaVersion"`
	Data          recording.Index `json:"data"`
}

// migration rewrites a document of version n into version n+1
type migration func(doc *Document) error

// migrations is keyed by the version a step upgrades from. Versions without
// a registered step carry no data changes and only bump the version.
var migrations = map[int]migration{}

// Decode parses a persisted document. Anything that is not an object with an
// integer schemaVersion and a data array of keyed recordings is corrupt.
func Decode(data []byte) (*Document, error) {
	var probe struct {
		SchemaVersion *int            `json:"schemaVersion"`
		Data          json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", util.ErrCorruptDocument)
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCorruptDocument, err)
	}
	if probe.SchemaVersion == nil {
		return nil, fmt.Errorf("%w: missing schemaVersion", util.ErrCorruptDocument)
	}
	if *probe.SchemaVersion < 0 {
		return nil, fmt.Errorf("%w: negative schemaVersion %d", util.ErrCorruptDocument, *probe.SchemaVersion)
	}
	raw := bytes.TrimSpace(probe.Data)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: data is not an array", util.ErrCorruptDocument)
	}

	doc := &Document{SchemaVersion: *probe.SchemaVersion}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCorruptDocument, err)
	}
	for i, r := range doc.Data {
		if r.AudioFile == "" {
			return nil, fmt.Errorf("%w: entry %d has no audioFile", util.ErrCorruptDocument, i)
		}
	}
	if doc.Data == nil {
		doc.Data = recording.Index{}
	}
	return doc, nil
}

// Encode serializes idx at the current schema version. Entries marked
// deleted are never written.
func Encode(idx recording.Index) ([]byte, error) {
	doc := Document{SchemaVersion: SchemaVersion, Data: idx.Live()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return data, nil
}

// Upgrade applies migration steps until doc reaches SchemaVersion.
// The input is not modified; documents already current are returned as an
// equal copy, so Upgrade(Upgrade(d)) equals Upgrade(d).
func Upgrade(doc Document) (Document, error) {
	out := Document{SchemaVersion: doc.SchemaVersion, Data: doc.Data.Clone()}
	for out.SchemaVersion < SchemaVersion {
		from := out.SchemaVersion
		if step, ok := migrations[from]; ok {
			if err := step(&out); err != nil {
				return doc, fmt.Errorf("upgrade from schema v%d: %w", from, err)
			}
		}
		out.SchemaVersion = from + 1
	}
	return out, nil
}
