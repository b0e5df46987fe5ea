// Package library owns the published recordings index of the configured
// storage location: it loads or bootstraps the index, runs refresh passes
// and deletes recordings.
package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/report"
	"github.com/franz/bcr-index/internal/scan"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/store"
	"github.com/franz/bcr-index/internal/util"
)

// Settings holds the selected storage location
type Settings interface {
	Location() storage.Location
	SetLocation(loc storage.Location) error
}

// Selector asks the user for a recordings directory.
// It returns util.ErrSelectionCancelled when the user dismisses it.
type Selector interface {
	SelectDirectory(ctx context.Context, current storage.Location) (storage.Location, error)
}

// IndexStore persists indexes
type IndexStore interface {
	Load(ctx context.Context, loc storage.Location) (recording.Index, error)
	Save(ctx context.Context, loc storage.Location, idx recording.Index) error
}

// Reconciler runs one reconciliation pass
type Reconciler interface {
	Reconcile(ctx context.Context, loc storage.Location, prior recording.Index, progress scan.ProgressFunc) (*scan.Result, error)
}

// History records passes and deletions
type History interface {
	RecordPass(ctx context.Context, p *store.Pass) error
	RecordDeletion(ctx context.Context, d *store.Deletion) error
}

// Config holds controller dependencies. Selector and History are optional.
type Config struct {
	Settings Settings
	Selector Selector
	Gateway  storage.Gateway
	Store    IndexStore
	Scanner  Reconciler
	History  History
	Logger   *report.EventLogger
}

// Controller publishes the index and progress of one location at a time
type Controller struct {
	settings Settings
	selector Selector
	gateway  storage.Gateway
	store    IndexStore
	scanner  Reconciler
	history  History
	logger   *report.EventLogger

	state      atomic.Pointer[State]
	mu         sync.Mutex // serializes state replacement and subscriber fan-out
	subs       map[chan State]struct{}
	refreshing atomic.Bool

	// guarded by mu; passActive is set from the start of a pass until it
	// publishes or fails
	passActive   bool
	passLocation storage.Location
	// audio files deleted from passLocation while the pass was in flight
	deletedDuringPass map[string]struct{}
}

// New creates a Controller publishing an empty idle state
func New(cfg *Config) *Controller {
	c := &Controller{
		settings:          cfg.Settings,
		selector:          cfg.Selector,
		gateway:           cfg.Gateway,
		store:             cfg.Store,
		scanner:           cfg.Scanner,
		history:           cfg.History,
		logger:            cfg.Logger,
		subs:              make(map[chan State]struct{}),
		deletedDuringPass: make(map[string]struct{}),
	}
	c.state.Store(&State{Index: recording.Index{}, Phase: PhaseIdle})
	return c
}

// State returns the current snapshot with its own copy of the index
func (c *Controller) State() State {
	s := *c.state.Load()
	s.Index = s.Index.Clone()
	return s
}

// Progress returns the current progress without copying the index
func (c *Controller) Progress() float64 {
	return c.state.Load().Progress
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers skip intermediate states. Call cancel to stop receiving.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	c.mu.Lock()
	ch <- *c.state.Load()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// update replaces the published state with fn applied to a copy of it
func (c *Controller) update(fn func(s *State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *c.state.Load()
	fn(&next)
	c.state.Store(&next)

	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
	return next
}

func (c *Controller) setProgress(p float64, phase Phase) {
	c.update(func(s *State) {
		s.Progress = p
		s.Phase = phase
	})
}

// Initialize loads the index of the configured location, bootstrapping it
// with a full pass when no document exists. Without a configured location
// it runs directory selection.
func (c *Controller) Initialize(ctx context.Context) error {
	loc := c.settings.Location()
	if loc == "" {
		return c.SelectDirectory(ctx)
	}
	return c.load(ctx, loc)
}

func (c *Controller) load(ctx context.Context, loc storage.Location) error {
	c.update(func(s *State) {
		if s.Location != loc {
			s.Location = loc
			s.Index = recording.Index{}
		}
		s.Phase = PhaseLoading
	})

	idx, err := c.store.Load(ctx, loc)
	if errors.Is(err, util.ErrNotFound) {
		util.InfoLog("No index found in %s, scanning", loc)
		c.setProgress(0, PhaseIdle)
		return c.refresh(ctx, loc)
	}
	if err != nil {
		c.setProgress(0, PhaseIdle)
		return fmt.Errorf("failed to load index: %w", err)
	}

	c.update(func(s *State) {
		s.Location = loc
		s.Index = idx
		s.Phase = PhaseIdle
	})
	util.DebugLog("Loaded %d recordings from %s", len(idx), loc)
	return nil
}

// Refresh reconciles the published index with the configured location.
// A refresh requested while another pass is in flight returns nil without
// doing anything.
func (c *Controller) Refresh(ctx context.Context) error {
	loc := c.settings.Location()
	if loc == "" {
		if c.selector != nil {
			return c.SelectDirectory(ctx)
		}
		return util.ErrNoStorageConfigured
	}
	return c.refresh(ctx, loc)
}

func (c *Controller) refresh(ctx context.Context, loc storage.Location) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		util.DebugLog("Refresh of %s already in progress, ignoring request", loc)
		return nil
	}
	defer c.refreshing.Store(false)

	prior := c.update(func(s *State) {
		clear(c.deletedDuringPass)
		c.passActive = true
		c.passLocation = loc
		if s.Location != loc {
			s.Location = loc
			s.Index = recording.Index{}
		}
		s.Progress = StartProgress
		s.Phase = PhaseScanning
	}).Index

	pass := &store.Pass{ID: store.NewPassID(), Location: string(loc), StartedAt: time.Now()}
	res, err := c.scanner.Reconcile(ctx, loc, prior, func(p float64) {
		c.setProgress(p, PhaseScanning)
	})
	if err != nil {
		return c.failPass(ctx, loc, pass, err)
	}

	c.setProgress(c.Progress(), PhasePersisting)
	idx, filtered := c.withoutDeletedDuringPass(res.Index)
	if err := c.store.Save(ctx, loc, idx); err != nil {
		return c.failPass(ctx, loc, pass, err)
	}

	var published, resave bool
	c.update(func(s *State) {
		c.passActive = false
		resave = len(c.deletedDuringPass) > filtered
		for name := range c.deletedDuringPass {
			idx = idx.Without(name)
		}
		clear(c.deletedDuringPass)
		s.Progress = 0
		s.Phase = PhaseIdle
		if s.Location == loc {
			s.Index = idx
			published = true
		}
	})

	pass.Duration = time.Since(pass.StartedAt)
	pass.Added = res.Added
	pass.Unchanged = res.Unchanged
	pass.Removed = res.Removed
	pass.MetadataErrors = len(res.MetadataErrors)
	c.recordPass(ctx, pass)
	c.logger.LogRefresh(string(loc), len(res.Added), res.Unchanged, len(res.Removed), pass.Duration, nil)

	// Deletions that landed between the save and the publish
	if resave {
		if err := c.store.Save(ctx, loc, idx); err != nil {
			return fmt.Errorf("refresh finished but deletions not saved: %w", err)
		}
	}

	if !published {
		util.WarnLog("Recordings directory changed during refresh of %s, result not published", loc)
		return nil
	}
	util.SuccessLog("Refreshed %s: %d recordings (%d new, %d removed)", loc, len(idx), len(res.Added), len(res.Removed))
	for _, merr := range res.MetadataErrors {
		util.WarnLog("%v", merr)
	}
	return nil
}

// failPass resets progress and keeps the previously published index.
// Deletions made during the pass were not saved by it, so the published
// index is saved in its place.
func (c *Controller) failPass(ctx context.Context, loc storage.Location, pass *store.Pass, err error) error {
	var pending bool
	var idx recording.Index
	c.update(func(s *State) {
		c.passActive = false
		pending = len(c.deletedDuringPass) > 0 && s.Location == loc
		idx = s.Index
		clear(c.deletedDuringPass)
		s.Progress = 0
		s.Phase = PhaseIdle
	})
	if pending {
		if serr := c.store.Save(ctx, loc, idx); serr != nil {
			util.WarnLog("Failed to save index after deletions: %v", serr)
		}
	}

	pass.Duration = time.Since(pass.StartedAt)
	pass.Error = err.Error()
	c.recordPass(ctx, pass)
	c.logger.LogRefresh(pass.Location, 0, 0, 0, pass.Duration, err)
	return fmt.Errorf("refresh failed: %w", err)
}

func (c *Controller) withoutDeletedDuringPass(idx recording.Index) (recording.Index, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.deletedDuringPass {
		idx = idx.Without(name)
	}
	return idx, len(c.deletedDuringPass)
}

func (c *Controller) recordPass(ctx context.Context, pass *store.Pass) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordPass(ctx, pass); err != nil {
		util.WarnLog("Failed to record pass history: %v", err)
	}
}
