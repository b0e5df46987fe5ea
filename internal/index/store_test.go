package index

import (
	"context"
	"encoding/json"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/storage/storagetest"
	"github.com/franz/bcr-index/internal/util"
)

const loc = storage.Location("/rec")

func strPtr(s string) *string { return &s }

func sampleIndex() recording.Index {
	return recording.Index{
		{
			AudioFile:    "20230523_183500.123+0200_out_sim1_+391235829248_John Doe.oga",
			MetadataFile: strPtr("20230523_183500.123+0200_out_sim1_+391235829248_John Doe.json"),
			Status:       recording.StatusUnchanged,
			Name:         "John Doe",
			OpName:       "John Doe",
			OpNumber:     "+391235829248",
			Date:         time.Date(2023, 5, 23, 16, 35, 0, 123000000, time.UTC),
			Duration:     61.48,
			Direction:    recording.DirectionOut,
			SimSlot:      1,
			Size:         482113,
			MimeType:     "audio/ogg",
		},
		{
			AudioFile: "memo.m4a",
			Status:    recording.StatusNew,
			Name:      "memo",
			Date:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Size:      12,
			MimeType:  "audio/mp4",
		},
	}
}

func readDoc(t *testing.T, fsys afero.Fs) map[string]any {
	t.Helper()
	data, err := afero.ReadFile(fsys, string(loc)+"/"+DocumentName)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestStore_RoundTrip(t *testing.T) {
	gw, _ := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)
	ctx := context.Background()

	idx := sampleIndex()
	require.NoError(t, s.Save(ctx, loc, idx))

	loaded, err := s.Load(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)
}

func TestStore_SaveEmptyIndex(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)

	require.NoError(t, s.Save(context.Background(), loc, nil))

	doc := readDoc(t, fsys)
	assert.EqualValues(t, SchemaVersion, doc["schemaVersion"])
	assert.Equal(t, []any{}, doc["data"])
}

func TestStore_SaveDropsDeleted(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)

	idx := sampleIndex()
	idx[0].Status = recording.StatusDeleted
	require.NoError(t, s.Save(context.Background(), loc, idx))

	data := readDoc(t, fsys)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "memo.m4a", data[0].(map[string]any)["audioFile"])
}

func TestStore_SaveUsesTempAndRename(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)

	require.NoError(t, s.Save(context.Background(), loc, sampleIndex()))

	assert.Equal(t, []storagetest.Call{
		{Op: storagetest.OpWrite, Name: TempName},
		{Op: storagetest.OpRename, Name: TempName},
	}, gw.Calls())
	ok, err := afero.Exists(fsys, string(loc)+"/"+TempName)
	require.NoError(t, err)
	assert.False(t, ok, "temp file left behind")
}

func TestStore_FailedSaveKeepsPreviousDocument(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, loc, sampleIndex()))
	before, err := afero.ReadFile(fsys, string(loc)+"/"+DocumentName)
	require.NoError(t, err)

	gw.Fail(storagetest.OpRename, TempName, syscall.ENOSPC)
	err = s.Save(ctx, loc, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrIO))

	after, err := afero.ReadFile(fsys, string(loc)+"/"+DocumentName)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	ok, _ := afero.Exists(fsys, string(loc)+"/"+TempName)
	assert.False(t, ok, "temp file left behind after failed rename")
}

func TestStore_LoadNotFound(t *testing.T) {
	gw, _ := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)

	_, err := s.Load(context.Background(), loc)
	assert.True(t, errors.Is(err, util.ErrNotFound), "got %v", err)
	assert.False(t, errors.Is(err, util.ErrIO))
}

func TestStore_LoadIOFailure(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	require.NoError(t, storagetest.WriteFixture(fsys, string(loc), DocumentName, []byte(`{"schemaVersion":1,"data":[]}`), time.Time{}))
	gw.Fail(storagetest.OpRead, DocumentName, syscall.EIO)
	s := NewStore(gw, nil)

	_, err := s.Load(context.Background(), loc)
	assert.True(t, errors.Is(err, util.ErrIO), "got %v", err)
	assert.False(t, errors.Is(err, util.ErrNotFound))
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"truncated", `{"schemaVersion": 1, "data": [`},
		{"array", `[]`},
		{"missing version", `{"data": []}`},
		{"string version", `{"schemaVersion": "1", "data": []}`},
		{"missing data", `{"schemaVersion": 1}`},
		{"null data", `{"schemaVersion": 1, "data": null}`},
		{"object data", `{"schemaVersion": 1, "data": {}}`},
		{"entry without key", `{"schemaVersion": 1, "data": [{"name": "x"}]}`},
		{"wrong entry type", `{"schemaVersion": 1, "data": [{"audioFile": 3}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, fsys := storagetest.NewMemDir(loc)
			require.NoError(t, storagetest.WriteFixture(fsys, string(loc), DocumentName, []byte(tt.content), time.Time{}))
			s := NewStore(gw, nil)

			_, err := s.Load(context.Background(), loc)
			if !errors.Is(err, util.ErrCorruptDocument) {
				t.Errorf("Load(%q) error = %v, expected ErrCorruptDocument", tt.content, err)
			}
		})
	}
}

func TestStore_LoadNewerVersion(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	require.NoError(t, storagetest.WriteFixture(fsys, string(loc), DocumentName, []byte(`{"schemaVersion": 99, "data": []}`), time.Time{}))
	s := NewStore(gw, nil)

	_, err := s.Load(context.Background(), loc)
	assert.True(t, errors.Is(err, util.ErrUnsupportedVersion), "got %v", err)
}

func TestStore_LoadUpgradesOlderVersion(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	content := `{"schemaVersion": 0, "data": [{"audioFile": "a.m4a", "metadataFile": null, "name": "a"}]}`
	require.NoError(t, storagetest.WriteFixture(fsys, string(loc), DocumentName, []byte(content), time.Time{}))
	s := NewStore(gw, nil)

	idx, err := s.Load(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, idx, 1)
	assert.Equal(t, "a.m4a", idx[0].AudioFile)
	assert.Nil(t, idx[0].MetadataFile)
}

func TestStore_LoadDropsDuplicateKeys(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	content := `{"schemaVersion": 1, "data": [
		{"audioFile": "a.m4a", "name": "first"},
		{"audioFile": "b.m4a", "name": "b"},
		{"audioFile": "a.m4a", "name": "second"}
	]}`
	require.NoError(t, storagetest.WriteFixture(fsys, string(loc), DocumentName, []byte(content), time.Time{}))
	s := NewStore(gw, nil)

	idx, err := s.Load(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.Equal(t, "first", idx[0].Name)
	assert.Equal(t, "b.m4a", idx[1].AudioFile)
}

type writeOnlyGateway struct {
	storage.Gateway
}

func TestStore_SaveWithoutRename(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(string(loc), 0o755))
	gw := storagetest.NewFaultGateway(writeOnlyGateway{storage.NewFSGateway(fsys)})
	s := NewStore(gw, nil)

	require.NoError(t, s.Save(context.Background(), loc, sampleIndex()))
	assert.Equal(t, []storagetest.Call{{Op: storagetest.OpWrite, Name: DocumentName}}, gw.Calls())
}

func TestStore_Inspect(t *testing.T) {
	gw, fsys := storagetest.NewMemDir(loc)
	s := NewStore(gw, nil)
	ctx := context.Background()

	h := s.Inspect(ctx, loc)
	assert.False(t, h.Exists)
	assert.NoError(t, h.Err)

	require.NoError(t, s.Save(ctx, loc, sampleIndex()))
	require.NoError(t, storagetest.WriteFixture(fsys, string(loc), TempName, []byte("{"), time.Time{}))
	h = s.Inspect(ctx, loc)
	assert.True(t, h.Exists)
	assert.Equal(t, SchemaVersion, h.SchemaVersion)
	assert.Equal(t, 2, h.Entries)
	assert.True(t, h.StaleTemp)
	assert.NoError(t, h.Err)

	require.NoError(t, storagetest.WriteFixture(fsys, string(loc), DocumentName, []byte("garbage"), time.Time{}))
	h = s.Inspect(ctx, loc)
	assert.True(t, h.Exists)
	assert.True(t, errors.Is(h.Err, util.ErrCorruptDocument))
}
