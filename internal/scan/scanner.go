// Package scan reconciles a recordings index against the current contents of
// its storage location.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/sourcegraph/conc/stream"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/report"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/util"
)

// DefaultSupportedTypes are the MIME types of audio the call recorder writes
var DefaultSupportedTypes = []string{
	"audio/mp4",
	"audio/ogg",
	"audio/flac",
	"audio/wav",
	"audio/amr",
	"audio/amr-wb",
	"audio/3gpp",
	"audio/mpeg",
	"audio/aac",
}

// DefaultExclude skips files Android's media store has not finished with
var DefaultExclude = []string{
	".trashed-*",
	".pending-*",
}

// DefaultMetadataExt is the sidecar extension written by the recorder
const DefaultMetadataExt = ".json"

// EntityBuilder turns a listed audio file into a Recording
type EntityBuilder interface {
	Build(ctx context.Context, loc storage.Location, file storage.FileEntry, metadata *storage.FileEntry) (recording.Recording, error)
}

// ProgressFunc receives the fraction of supported files processed so far
type ProgressFunc func(fraction float64)

// Scanner reconciles an index with a directory listing
type Scanner struct {
	gateway     storage.Gateway
	builder     EntityBuilder
	types       map[string]bool
	exclude     []glob.Glob
	metadataExt string
	concurrency int
	logger      *report.EventLogger
}

// Config holds scanner configuration
type Config struct {
	Gateway        storage.Gateway
	Builder        EntityBuilder
	SupportedTypes []string // MIME types; empty means DefaultSupportedTypes
	Exclude        []string // glob patterns matched against file names
	MetadataExt    string
	Concurrency    int // concurrent entity builds
	Logger         *report.EventLogger
}

// New creates a new Scanner
func New(cfg *Config) (*Scanner, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MetadataExt == "" {
		cfg.MetadataExt = DefaultMetadataExt
	}
	if !strings.HasPrefix(cfg.MetadataExt, ".") {
		cfg.MetadataExt = "." + cfg.MetadataExt
	}

	supported := cfg.SupportedTypes
	if len(supported) == 0 {
		supported = DefaultSupportedTypes
	}
	types := make(map[string]bool, len(supported))
	for _, t := range supported {
		types[strings.ToLower(strings.TrimSpace(t))] = true
	}

	exclude := make([]glob.Glob, 0, len(cfg.Exclude))
	for _, pattern := range cfg.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		exclude = append(exclude, g)
	}

	return &Scanner{
		gateway:     cfg.Gateway,
		builder:     cfg.Builder,
		types:       types,
		exclude:     exclude,
		metadataExt: cfg.MetadataExt,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}, nil
}

// Result is the outcome of one reconciliation pass
type Result struct {
	Index          recording.Index
	Added          []string
	Unchanged      int
	Removed        []string
	MetadataErrors []error
	Duration       time.Duration
}

// Reconcile lists loc and returns a new index that keeps every prior entry
// whose audio file is still listed, adds a recording per newly listed audio
// file and drops the rest. prior is never modified.
//
// progress is called once per supported file, in listing order, with
// i/N for i = 1..N. Listing or read failures abort the pass and no index is
// returned; malformed sidecars only degrade the affected entry.
func (s *Scanner) Reconcile(ctx context.Context, loc storage.Location, prior recording.Index, progress ProgressFunc) (*Result, error) {
	if loc == "" {
		return nil, util.ErrNoStorageConfigured
	}
	if progress == nil {
		progress = func(float64) {}
	}
	start := time.Now()

	working := prior.Clone()
	for i := range working {
		working[i].Status = recording.StatusDeleted
	}
	keys := working.Keys()

	entries, err := s.gateway.ListFiles(ctx, loc)
	if err != nil {
		return nil, util.WrapIO("list", string(loc), err)
	}

	audio, listed := s.partition(entries)
	util.DebugLog("Listed %d entries in %s, %d supported audio files", len(entries), loc, len(audio))

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &Result{}
	var passErr error
	total := float64(len(audio))

	st := stream.New().WithMaxGoroutines(s.concurrency)
	for i, file := range audio {
		processed := float64(i + 1)

		if pos, ok := keys[file.Name]; ok {
			st.Go(func() stream.Callback {
				return func() {
					if passErr != nil {
						return
					}
					working[pos].Status = recording.StatusUnchanged
					result.Unchanged++
					progress(processed / total)
				}
			})
			continue
		}

		var metadata *storage.FileEntry
		if md, ok := listed[recording.ReplaceExtension(file.Name, s.metadataExt)]; ok {
			metadata = &md
		}

		st.Go(func() stream.Callback {
			if passCtx.Err() != nil {
				return func() {}
			}
			rec, err := s.builder.Build(passCtx, loc, file, metadata)
			return func() {
				if passErr != nil {
					return
				}
				if err != nil {
					if !errors.Is(err, util.ErrMetadataParse) {
						passErr = err
						cancel()
						return
					}
					result.MetadataErrors = append(result.MetadataErrors, err)
				}
				rec.Status = recording.StatusNew
				working = append(working, rec)
				result.Added = append(result.Added, rec.AudioFile)
				s.logger.LogAdd(string(loc), rec.AudioFile, rec.MetadataName())
				progress(processed / total)
			}
		})
	}
	st.Wait()

	if passErr == nil {
		passErr = ctx.Err()
	}
	if passErr != nil {
		return nil, passErr
	}

	for _, r := range working {
		if r.Status == recording.StatusDeleted {
			result.Removed = append(result.Removed, r.AudioFile)
			s.logger.LogRemove(string(loc), r.AudioFile)
		}
	}
	result.Index = working.Live()
	result.Duration = time.Since(start)
	return result, nil
}

// partition returns the supported audio files in listing order and all
// listed files by name
func (s *Scanner) partition(entries []storage.FileEntry) ([]storage.FileEntry, map[string]storage.FileEntry) {
	listed := make(map[string]storage.FileEntry, len(entries))
	audio := make([]storage.FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDirectory {
			continue
		}
		if _, dup := listed[e.Name]; dup {
			continue
		}
		listed[e.Name] = e
		if s.IsSupported(e) && !s.Excluded(e.Name) {
			audio = append(audio, e)
		}
	}
	return audio, listed
}

// IsSupported reports whether e is an audio file of a configured type
func (s *Scanner) IsSupported(e storage.FileEntry) bool {
	t := e.Type
	if t == "" {
		t = storage.TypeByName(e.Name)
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return s.types[strings.ToLower(strings.TrimSpace(t))]
}

// Excluded reports whether name matches an exclude pattern
func (s *Scanner) Excluded(name string) bool {
	for _, g := range s.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// SupportedTypes returns the configured MIME types
func (s *Scanner) SupportedTypes() []string {
	types := make([]string, 0, len(s.types))
	for t := range s.types {
		types = append(types, t)
	}
	return types
}
