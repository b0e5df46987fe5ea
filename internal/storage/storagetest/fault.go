// Package storagetest provides gateway doubles for tests: an in-memory
// directory and a fault-injecting decorator that records every call.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/franz/bcr-index/internal/storage"
)

// Op names match the gateway method they fault
const (
	OpList   = "list"
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
	OpExists = "exists"
	OpRename = "rename"
)

// Call is one recorded gateway invocation
type Call struct {
	Op   string
	Name string
}

// FaultGateway decorates a gateway with injected errors and a call log
type FaultGateway struct {
	inner storage.Gateway

	mu     sync.Mutex
	faults map[Call]error
	calls  []Call

	// Before runs ahead of every call, outside the lock; tests use it to
	// block or observe a pass at a suspension point.
	Before func(op, name string)
}

// NewFaultGateway wraps inner
func NewFaultGateway(inner storage.Gateway) *FaultGateway {
	return &FaultGateway{inner: inner, faults: make(map[Call]error)}
}

// NewMemDir returns a fault gateway over an in-memory filesystem with the
// directory loc already created, plus the filesystem for seeding files.
func NewMemDir(loc storage.Location) (*FaultGateway, afero.Fs) {
	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll(string(loc), 0o755)
	return NewFaultGateway(storage.NewFSGateway(fsys)), fsys
}

// Fail makes op on name return err ("" name matches list calls)
func (g *FaultGateway) Fail(op, name string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.faults[Call{Op: op, Name: name}] = err
}

// Heal removes an injected fault
func (g *FaultGateway) Heal(op, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.faults, Call{Op: op, Name: name})
}

// Calls returns a copy of the call log
func (g *FaultGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// Count returns how many calls of op were made
func (g *FaultGateway) Count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset clears the call log
func (g *FaultGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// Unwrap returns the decorated gateway
func (g *FaultGateway) Unwrap() storage.Gateway { return g.inner }

func (g *FaultGateway) enter(op, name string) error {
	if g.Before != nil {
		g.Before(op, name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	call := Call{Op: op, Name: name}
	g.calls = append(g.calls, call)
	return g.faults[call]
}

func (g *FaultGateway) ListFiles(ctx context.Context, loc storage.Location) ([]storage.FileEntry, error) {
	if err := g.enter(OpList, ""); err != nil {
		return nil, err
	}
	return g.inner.ListFiles(ctx, loc)
}

func (g *FaultGateway) ReadFile(ctx context.Context, loc storage.Location, name string) ([]byte, error) {
	if err := g.enter(OpRead, name); err != nil {
		return nil, err
	}
	return g.inner.ReadFile(ctx, loc, name)
}

func (g *FaultGateway) WriteFile(ctx context.Context, loc storage.Location, name string, data []byte) error {
	if err := g.enter(OpWrite, name); err != nil {
		return err
	}
	return g.inner.WriteFile(ctx, loc, name, data)
}

func (g *FaultGateway) DeleteFile(ctx context.Context, loc storage.Location, name string) error {
	if err := g.enter(OpDelete, name); err != nil {
		return err
	}
	return g.inner.DeleteFile(ctx, loc, name)
}

func (g *FaultGateway) Exists(ctx context.Context, loc storage.Location, name string) (bool, error) {
	if err := g.enter(OpExists, name); err != nil {
		return false, err
	}
	return g.inner.Exists(ctx, loc, name)
}

func (g *FaultGateway) Rename(ctx context.Context, loc storage.Location, oldName, newName string) error {
	if err := g.enter(OpRename, oldName); err != nil {
		return err
	}
	r, ok := g.inner.(storage.Renamer)
	if !ok {
		return fmt.Errorf("rename %s: inner gateway cannot rename", oldName)
	}
	return r.Rename(ctx, loc, oldName, newName)
}

// WriteFixture writes content into dir of fsys with the given modification time
func WriteFixture(fsys afero.Fs, dir, name string, content []byte, mtime time.Time) error {
	p := dir + "/" + name
	if err := afero.WriteFile(fsys, p, content, 0o644); err != nil {
		return err
	}
	if !mtime.IsZero() {
		return fsys.Chtimes(p, mtime, mtime)
	}
	return nil
}
