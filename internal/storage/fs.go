package storage

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/franz/bcr-index/internal/util"
)

// FSGateway serves locations as directories of an afero filesystem.
// Production uses the OS filesystem, tests use afero.NewMemMapFs.
type FSGateway struct {
	fs afero.Fs
}

// NewFSGateway creates a gateway over fsys (nil means the OS filesystem)
func NewFSGateway(fsys afero.Fs) *FSGateway {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FSGateway{fs: fsys}
}

// Fs exposes the underlying filesystem
func (g *FSGateway) Fs() afero.Fs { return g.fs }

func (g *FSGateway) path(loc Location, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(string(loc), name), nil
}

// ListFiles lists the direct children of the directory at loc
func (g *FSGateway) ListFiles(ctx context.Context, loc Location) ([]FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(g.fs, string(loc))
	if err != nil {
		return nil, util.WrapIO("list", string(loc), mapNotExist(err))
	}

	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		entry := FileEntry{
			Name:         info.Name(),
			IsDirectory:  info.IsDir(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		}
		if !entry.IsDirectory {
			entry.Type = TypeByName(entry.Name)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadFile reads the whole content of name
func (g *FSGateway) ReadFile(ctx context.Context, loc Location, name string) ([]byte, error) {
	p, err := g.path(loc, name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(g.fs, p)
	if err != nil {
		return nil, util.WrapIO("read", name, mapNotExist(err))
	}
	return data, nil
}

// WriteFile creates or truncates name with data
func (g *FSGateway) WriteFile(ctx context.Context, loc Location, name string, data []byte) error {
	p, err := g.path(loc, name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := afero.WriteFile(g.fs, p, data, 0o644); err != nil {
		return util.WrapIO("write", name, err)
	}
	return nil
}

// DeleteFile removes name
func (g *FSGateway) DeleteFile(ctx context.Context, loc Location, name string) error {
	p, err := g.path(loc, name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.fs.Remove(p); err != nil {
		return util.WrapIO("delete", name, mapNotExist(err))
	}
	return nil
}

// Exists reports whether name is present in loc
func (g *FSGateway) Exists(ctx context.Context, loc Location, name string) (bool, error) {
	p, err := g.path(loc, name)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(g.fs, p)
	if err != nil {
		return false, util.WrapIO("exists", name, err)
	}
	return ok, nil
}

// Rename replaces newName with oldName in one step
func (g *FSGateway) Rename(ctx context.Context, loc Location, oldName, newName string) error {
	from, err := g.path(loc, oldName)
	if err != nil {
		return err
	}
	to, err := g.path(loc, newName)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.fs.Rename(from, to); err != nil {
		return util.WrapIO("rename", oldName, mapNotExist(err))
	}
	return nil
}

func mapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Join(util.ErrNotFound, err)
	}
	return err
}
