package storage

import (
	"context"
	"fmt"

	"github.com/franz/bcr-index/internal/util"
)

// RetryPolicy picks the retry profile for calls against loc
type RetryPolicy func(loc Location) *util.RetryConfig

// RetryGateway retries transient failures of an inner gateway with backoff
type RetryGateway struct {
	inner  Gateway
	policy RetryPolicy
}

// NewRetryGateway wraps inner with one profile for every location; a nil
// cfg uses util.DefaultRetryConfig
func NewRetryGateway(inner Gateway, cfg *util.RetryConfig) *RetryGateway {
	if cfg == nil {
		cfg = util.DefaultRetryConfig()
	}
	return NewPolicyRetryGateway(inner, func(Location) *util.RetryConfig { return cfg })
}

// NewPolicyRetryGateway wraps inner, asking policy for the profile of each
// call's location
func NewPolicyRetryGateway(inner Gateway, policy RetryPolicy) *RetryGateway {
	return &RetryGateway{inner: inner, policy: policy}
}

func (g *RetryGateway) config(loc Location) *util.RetryConfig {
	if cfg := g.policy(loc); cfg != nil {
		return cfg
	}
	return util.DefaultRetryConfig()
}

func (g *RetryGateway) ListFiles(ctx context.Context, loc Location) ([]FileEntry, error) {
	return util.RetryWithBackoff(ctx, g.config(loc), func() ([]FileEntry, error) {
		return g.inner.ListFiles(ctx, loc)
	}, fmt.Sprintf("list(%s)", loc))
}

func (g *RetryGateway) ReadFile(ctx context.Context, loc Location, name string) ([]byte, error) {
	return util.RetryWithBackoff(ctx, g.config(loc), func() ([]byte, error) {
		return g.inner.ReadFile(ctx, loc, name)
	}, fmt.Sprintf("read(%s)", name))
}

func (g *RetryGateway) WriteFile(ctx context.Context, loc Location, name string, data []byte) error {
	return util.Retry(ctx, g.config(loc), func() error {
		return g.inner.WriteFile(ctx, loc, name, data)
	}, fmt.Sprintf("write(%s)", name))
}

func (g *RetryGateway) DeleteFile(ctx context.Context, loc Location, name string) error {
	return util.Retry(ctx, g.config(loc), func() error {
		return g.inner.DeleteFile(ctx, loc, name)
	}, fmt.Sprintf("delete(%s)", name))
}

func (g *RetryGateway) Exists(ctx context.Context, loc Location, name string) (bool, error) {
	return util.RetryWithBackoff(ctx, g.config(loc), func() (bool, error) {
		return g.inner.Exists(ctx, loc, name)
	}, fmt.Sprintf("exists(%s)", name))
}

// Rename forwards to the inner gateway when it supports renames
func (g *RetryGateway) Rename(ctx context.Context, loc Location, oldName, newName string) error {
	r, ok := g.inner.(Renamer)
	if !ok {
		return fmt.Errorf("rename %s: %w", oldName, errRenameUnsupported)
	}
	return util.Retry(ctx, g.config(loc), func() error {
		return r.Rename(ctx, loc, oldName, newName)
	}, fmt.Sprintf("rename(%s -> %s)", oldName, newName))
}

// Unwrap returns the wrapped gateway
func (g *RetryGateway) Unwrap() Gateway { return g.inner }
