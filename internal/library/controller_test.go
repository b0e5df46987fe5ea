package library

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/bcr-index/internal/index"
	"github.com/franz/bcr-index/internal/meta"
	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/scan"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/storage/storagetest"
	"github.com/franz/bcr-index/internal/store"
	"github.com/franz/bcr-index/internal/util"
)

const loc = storage.Location("/rec")

type memSettings struct {
	mu  sync.Mutex
	loc storage.Location
	err error
}

func (s *memSettings) Location() storage.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *memSettings) SetLocation(l storage.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.loc = l
	return nil
}

type stubSelector struct {
	loc   storage.Location
	err   error
	calls int
}

func (s *stubSelector) SelectDirectory(ctx context.Context, current storage.Location) (storage.Location, error) {
	s.calls++
	return s.loc, s.err
}

type memHistory struct {
	mu        sync.Mutex
	passes    []*store.Pass
	deletions []*store.Deletion
}

func (h *memHistory) RecordPass(ctx context.Context, p *store.Pass) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.passes = append(h.passes, p)
	return nil
}

func (h *memHistory) RecordDeletion(ctx context.Context, d *store.Deletion) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletions = append(h.deletions, d)
	return nil
}

type fixture struct {
	gw       *storagetest.FaultGateway
	fsys     afero.Fs
	settings *memSettings
	selector *stubSelector
	history  *memHistory
	ctrl     *Controller
}

func newFixture(t *testing.T, location storage.Location, files ...string) *fixture {
	t.Helper()
	gw, fsys := storagetest.NewMemDir(loc)
	for _, name := range files {
		content := []byte("audio")
		if storage.TypeByName(name) == "application/json" {
			content = []byte(`{"call_log_name": "Caller"}`)
		}
		require.NoError(t, storagetest.WriteFixture(fsys, string(loc), name, content, time.Now()))
	}

	scanner, err := scan.New(&scan.Config{
		Gateway: gw,
		Builder: meta.NewBuilder(&meta.Config{Gateway: gw}),
	})
	require.NoError(t, err)

	f := &fixture{
		gw:       gw,
		fsys:     fsys,
		settings: &memSettings{loc: location},
		selector: &stubSelector{},
		history:  &memHistory{},
	}
	f.ctrl = New(&Config{
		Settings: f.settings,
		Selector: f.selector,
		Gateway:  gw,
		Store:    index.NewStore(gw, nil),
		Scanner:  scanner,
		History:  f.history,
	})
	return f
}

func (f *fixture) document(t *testing.T) index.Document {
	t.Helper()
	data, err := afero.ReadFile(f.fsys, string(loc)+"/"+index.DocumentName)
	require.NoError(t, err)
	var doc index.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func audioFiles(idx recording.Index) []string {
	out := make([]string, len(idx))
	for i, r := range idx {
		out[i] = r.AudioFile
	}
	return out
}

func TestInitialize_EmptyDirectoryBootstrap(t *testing.T) {
	f := newFixture(t, loc)

	require.NoError(t, f.ctrl.Initialize(context.Background()))

	st := f.ctrl.State()
	assert.Empty(t, st.Index)
	assert.NotNil(t, st.Index)
	assert.Zero(t, st.Progress)
	assert.Equal(t, PhaseIdle, st.Phase)

	doc := f.document(t)
	assert.Equal(t, index.SchemaVersion, doc.SchemaVersion)
	assert.Empty(t, doc.Data)
	require.Len(t, f.history.passes, 1)
	assert.Empty(t, f.history.passes[0].Error)
}

func TestInitialize_LoadsExistingDocumentWithoutScanning(t *testing.T) {
	f := newFixture(t, loc, "a.m4a")
	content := `{"schemaVersion": 1, "data": [{"audioFile": "old.m4a", "metadataFile": null, "name": "old"}]}`
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), index.DocumentName, []byte(content), time.Time{}))

	require.NoError(t, f.ctrl.Initialize(context.Background()))

	assert.Equal(t, []string{"old.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Zero(t, f.gw.Count(storagetest.OpList), "load must not list the directory")
}

func TestInitialize_UpgradesBeforePublish(t *testing.T) {
	f := newFixture(t, loc)
	content := `{"schemaVersion": 0, "data": [{"audioFile": "old.m4a", "name": "old"}]}`
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), index.DocumentName, []byte(content), time.Time{}))

	require.NoError(t, f.ctrl.Initialize(context.Background()))
	assert.Equal(t, []string{"old.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Zero(t, f.gw.Count(storagetest.OpList))
}

func TestInitialize_CorruptDocument(t *testing.T) {
	f := newFixture(t, loc, "a.m4a")
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), index.DocumentName, []byte("{garbage"), time.Time{}))

	err := f.ctrl.Initialize(context.Background())
	assert.True(t, errors.Is(err, util.ErrCorruptDocument), "got %v", err)
	assert.Zero(t, f.gw.Count(storagetest.OpList), "corrupt document must not trigger a scan")
	assert.Zero(t, f.ctrl.Progress())
}

func TestInitialize_NoLocationRunsSelection(t *testing.T) {
	f := newFixture(t, "", "a.m4a")
	f.selector.loc = loc

	require.NoError(t, f.ctrl.Initialize(context.Background()))

	assert.Equal(t, 1, f.selector.calls)
	assert.Equal(t, loc, f.settings.Location())
	assert.Equal(t, []string{"a.m4a"}, audioFiles(f.ctrl.State().Index))
}

func TestSelectDirectory_Cancelled(t *testing.T) {
	f := newFixture(t, "")
	f.selector.err = util.ErrSelectionCancelled

	err := f.ctrl.Initialize(context.Background())
	assert.True(t, errors.Is(err, util.ErrSelectionCancelled))
	assert.Empty(t, f.settings.Location())
	assert.Zero(t, f.gw.Count(storagetest.OpList))
}

func TestRefresh_NoLocationWithoutSelector(t *testing.T) {
	f := newFixture(t, "")
	f.ctrl.selector = nil

	err := f.ctrl.Refresh(context.Background())
	assert.True(t, errors.Is(err, util.ErrNoStorageConfigured))
}

func TestRefresh_AddsAndRemoves(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "a.json", "b.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))
	assert.Equal(t, []string{"a.m4a", "b.m4a"}, audioFiles(f.ctrl.State().Index))

	require.NoError(t, f.fsys.Remove(string(loc)+"/b.m4a"))
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), "c.m4a", []byte("audio"), time.Time{}))

	require.NoError(t, f.ctrl.Refresh(ctx))
	assert.Equal(t, []string{"a.m4a", "c.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, []string{"a.m4a", "c.m4a"}, audioFiles(f.document(t).Data))

	last := f.history.passes[len(f.history.passes)-1]
	assert.Equal(t, []string{"c.m4a"}, last.Added)
	assert.Equal(t, []string{"b.m4a"}, last.Removed)
	assert.Equal(t, 1, last.Unchanged)
}

func TestRefresh_ProgressSequence(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "b.m4a", "c.m4a", "d.m4a")

	var mu sync.Mutex
	var seen []float64
	ch, cancel := f.ctrl.Subscribe()
	<-ch
	done := make(chan struct{})
	go func() {
		defer close(done)
		for st := range ch {
			mu.Lock()
			seen = append(seen, st.Progress)
			mu.Unlock()
		}
	}()

	var direct []float64
	f.ctrl.scanner = progressSpy{inner: f.ctrl.scanner, seen: &direct}

	require.NoError(t, f.ctrl.Refresh(context.Background()))
	cancel()
	<-done

	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, direct)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Zero(t, seen[len(seen)-1], "progress must end at 0")
	for i := 1; i < len(seen)-1; i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress decreased at %d: %v", i, seen)
	}
}

// progressSpy records the progress values a pass reports
type progressSpy struct {
	inner Reconciler
	seen  *[]float64
}

func (p progressSpy) Reconcile(ctx context.Context, l storage.Location, prior recording.Index, progress scan.ProgressFunc) (*scan.Result, error) {
	return p.inner.Reconcile(ctx, l, prior, func(v float64) {
		*p.seen = append(*p.seen, v)
		progress(v)
	})
}

func TestRefresh_EmptyDirectoryStillSignalsStart(t *testing.T) {
	f := newFixture(t, loc)

	var starts int
	f.gw.Before = func(op, name string) {
		if op == storagetest.OpList && f.ctrl.Progress() == StartProgress {
			starts++
		}
	}

	require.NoError(t, f.ctrl.Refresh(context.Background()))
	assert.Equal(t, 1, starts, "progress was not non-zero when listing began")
	assert.Zero(t, f.ctrl.Progress())
}

func TestRefresh_FailureKeepsPublishedIndex(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "b.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))
	before := f.ctrl.State().Index

	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), "c.m4a", []byte("audio"), time.Time{}))
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), "c.json", []byte("{}"), time.Time{}))
	f.gw.Fail(storagetest.OpRead, "c.json", syscall.EIO)

	err := f.ctrl.Refresh(ctx)
	assert.True(t, errors.Is(err, util.ErrIO), "got %v", err)
	assert.Equal(t, before, f.ctrl.State().Index)
	assert.Zero(t, f.ctrl.Progress())

	last := f.history.passes[len(f.history.passes)-1]
	assert.NotEmpty(t, last.Error)
}

func TestRefresh_SaveFailureKeepsPublishedIndex(t *testing.T) {
	f := newFixture(t, loc, "a.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))
	before := f.ctrl.State().Index

	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), "b.m4a", []byte("audio"), time.Time{}))
	f.gw.Fail(storagetest.OpWrite, index.TempName, syscall.ENOSPC)

	err := f.ctrl.Refresh(ctx)
	assert.True(t, errors.Is(err, util.ErrIO), "got %v", err)
	assert.Equal(t, before, f.ctrl.State().Index)
	assert.Zero(t, f.ctrl.Progress())
}

func TestRefresh_ReentrantRequestIsNoop(t *testing.T) {
	f := newFixture(t, loc, "a.m4a")
	ctx := context.Background()

	listing := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.gw.Before = func(op, name string) {
		if op == storagetest.OpList {
			once.Do(func() {
				close(listing)
				<-release
			})
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- f.ctrl.Refresh(ctx) }()
	<-listing

	assert.True(t, f.ctrl.State().Busy())
	require.NoError(t, f.ctrl.Refresh(ctx), "overlapping refresh must be a silent no-op")

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, f.gw.Count(storagetest.OpList))
	assert.Equal(t, []string{"a.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Len(t, f.history.passes, 1)
}

func TestDeleteRecording_Success(t *testing.T) {
	f := newFixture(t, loc, "call1.m4a", "call1.json", "call2.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))

	require.NoError(t, f.ctrl.DeleteRecording(ctx, "call1.m4a"))

	assert.Equal(t, []string{"call2.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, []string{"call2.m4a"}, audioFiles(f.document(t).Data))
	for _, name := range []string{"call1.m4a", "call1.json"} {
		ok, _ := afero.Exists(f.fsys, string(loc)+"/"+name)
		assert.False(t, ok, "%s still exists", name)
	}
	require.Len(t, f.history.deletions, 1)
	assert.Equal(t, []string{"call1.m4a", "call1.json"}, f.history.deletions[0].DeletedFiles)
}

func TestDeleteRecording_MetadataFailureKeepsEntry(t *testing.T) {
	f := newFixture(t, loc, "call1.m4a", "call1.json")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))
	f.gw.Fail(storagetest.OpDelete, "call1.json", syscall.EACCES)

	err := f.ctrl.DeleteRecording(ctx, "call1.m4a")

	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrPartialDelete))
	var partial *util.PartialDeleteError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{"call1.m4a"}, partial.Deleted)
	assert.Equal(t, "call1.json", partial.Failed)

	assert.Equal(t, []string{"call1.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, []string{"call1.m4a"}, audioFiles(f.document(t).Data))
	require.Len(t, f.history.deletions, 1)
	assert.NotEmpty(t, f.history.deletions[0].Error)
}

func TestDeleteRecording_AudioFailureKeepsBoth(t *testing.T) {
	f := newFixture(t, loc, "call1.m4a", "call1.json")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))
	f.gw.Fail(storagetest.OpDelete, "call1.m4a", syscall.EACCES)

	err := f.ctrl.DeleteRecording(ctx, "call1.m4a")

	assert.True(t, errors.Is(err, util.ErrIO))
	assert.False(t, errors.Is(err, util.ErrPartialDelete))
	assert.Equal(t, []string{"call1.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, 1, f.gw.Count(storagetest.OpDelete), "metadata deletion must not be attempted")
}

func TestDeleteRecording_Unknown(t *testing.T) {
	f := newFixture(t, loc)
	require.NoError(t, f.ctrl.Initialize(context.Background()))

	err := f.ctrl.DeleteRecording(context.Background(), "nope.m4a")
	assert.True(t, errors.Is(err, util.ErrNotFound))
	assert.Zero(t, f.gw.Count(storagetest.OpDelete))
}

// blockOnce blocks the first gateway call of op until release is closed
// and closes reached when it gets there
func blockOnce(f *fixture, op string) (reached, release chan struct{}) {
	reached = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	f.gw.Before = func(o, name string) {
		if o == op {
			once.Do(func() {
				close(reached)
				<-release
			})
		}
	}
	return reached, release
}

func TestSelectDirectory_DuringPassPublishesNewLocation(t *testing.T) {
	const other = storage.Location("/other")
	f := newFixture(t, loc, "a.m4a")
	ctx := context.Background()

	require.NoError(t, f.fsys.MkdirAll(string(other), 0o755))
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(other), "b.m4a", []byte("audio"), time.Now()))
	require.NoError(t, index.NewStore(f.gw, nil).Save(ctx, other, recording.Index{{AudioFile: "b.m4a", Name: "b"}}))

	listing, release := blockOnce(f, storagetest.OpList)
	errc := make(chan error, 1)
	go func() { errc <- f.ctrl.Refresh(ctx) }()
	<-listing

	f.selector.loc = other
	require.NoError(t, f.ctrl.SelectDirectory(ctx))
	close(release)
	require.NoError(t, <-errc)

	st := f.ctrl.State()
	assert.Equal(t, other, f.settings.Location())
	assert.Equal(t, other, st.Location)
	assert.Equal(t, []string{"b.m4a"}, audioFiles(st.Index))
	assert.Zero(t, st.Progress)
	assert.Equal(t, []string{"a.m4a"}, audioFiles(f.document(t).Data), "the pass still saves its own directory")

	f.gw.Reset()
	err := f.ctrl.DeleteRecording(ctx, "a.m4a")
	assert.True(t, errors.Is(err, util.ErrNotFound))
	assert.Zero(t, f.gw.Count(storagetest.OpDelete))

	require.NoError(t, f.ctrl.DeleteRecording(ctx, "b.m4a"))
	ok, _ := afero.Exists(f.fsys, string(other)+"/b.m4a")
	assert.False(t, ok)
	ok, _ = afero.Exists(f.fsys, string(loc)+"/a.m4a")
	assert.True(t, ok)
}

func TestDeleteRecording_IndexNotLoaded(t *testing.T) {
	f := newFixture(t, loc, "a.m4a")

	err := f.ctrl.DeleteRecording(context.Background(), "a.m4a")

	assert.True(t, errors.Is(err, util.ErrNotFound))
	assert.Zero(t, f.gw.Count(storagetest.OpDelete))
}

func TestDeleteRecording_DuringScanIsFilteredFromPass(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "b.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))

	listing, release := blockOnce(f, storagetest.OpList)
	errc := make(chan error, 1)
	go func() { errc <- f.ctrl.Refresh(ctx) }()
	<-listing

	f.gw.Reset()
	require.NoError(t, f.ctrl.DeleteRecording(ctx, "a.m4a"))
	assert.Zero(t, f.gw.Count(storagetest.OpWrite), "the running pass saves the index")
	assert.Equal(t, []string{"b.m4a"}, audioFiles(f.ctrl.State().Index))

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"b.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, []string{"b.m4a"}, audioFiles(f.document(t).Data))
	assert.Equal(t, 1, f.gw.Count(storagetest.OpWrite))
}

func TestDeleteRecording_BetweenSaveAndPublish(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "b.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))
	require.NoError(t, storagetest.WriteFixture(f.fsys, string(loc), "c.m4a", []byte("audio"), time.Now()))

	// the pass has written its temp document and waits to move it in place
	renaming, release := blockOnce(f, storagetest.OpRename)
	errc := make(chan error, 1)
	go func() { errc <- f.ctrl.Refresh(ctx) }()
	<-renaming

	require.NoError(t, f.ctrl.DeleteRecording(ctx, "a.m4a"))

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"b.m4a", "c.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, []string{"b.m4a", "c.m4a"}, audioFiles(f.document(t).Data), "document keeps the pass additions")
}

func TestRefresh_FailureSavesDeletionsMadeDuringPass(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "b.m4a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Initialize(ctx))

	listing, release := blockOnce(f, storagetest.OpList)
	f.gw.Fail(storagetest.OpList, "", syscall.EIO)
	errc := make(chan error, 1)
	go func() { errc <- f.ctrl.Refresh(ctx) }()
	<-listing

	require.NoError(t, f.ctrl.DeleteRecording(ctx, "a.m4a"))
	close(release)

	require.Error(t, <-errc)
	assert.Equal(t, []string{"b.m4a"}, audioFiles(f.ctrl.State().Index))
	assert.Equal(t, []string{"b.m4a"}, audioFiles(f.document(t).Data))
}

func TestSubscribe_LatestWins(t *testing.T) {
	f := newFixture(t, loc, "a.m4a", "b.m4a")
	ch, cancel := f.ctrl.Subscribe()
	defer cancel()

	require.NoError(t, f.ctrl.Initialize(context.Background()))

	// nobody read while the pass ran, so only the final state is buffered
	st := <-ch
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, st.Progress)
	assert.Equal(t, []string{"a.m4a", "b.m4a"}, audioFiles(st.Index))

	select {
	case extra := <-ch:
		t.Errorf("unexpected buffered state: %+v", extra)
	default:
	}
}
