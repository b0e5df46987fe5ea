package library

import (
	"context"
	"fmt"

	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/store"
	"github.com/franz/bcr-index/internal/util"
)

// DeleteRecording removes the audio file of a recording and then its
// sidecar. The entry leaves the published index only when every file it
// names is gone; if the sidecar deletion fails the error is a
// *util.PartialDeleteError and the index is left unchanged. After a
// successful deletion the index document is rewritten, or left to the
// refresh pass in flight, which saves it when it finishes.
func (c *Controller) DeleteRecording(ctx context.Context, audioFile string) error {
	loc := c.settings.Location()
	if loc == "" {
		return util.ErrNoStorageConfigured
	}

	st := c.state.Load()
	if st.Location != loc {
		return fmt.Errorf("recording %s: index of %s not loaded: %w", audioFile, loc, util.ErrNotFound)
	}
	rec, ok := st.Index.Find(audioFile)
	if !ok {
		return fmt.Errorf("recording %s: %w", audioFile, util.ErrNotFound)
	}

	var deleted []string
	deletion := &store.Deletion{Location: string(loc), AudioFile: rec.AudioFile, MetadataFile: rec.MetadataName()}
	fail := func(err error) error {
		deletion.DeletedFiles = deleted
		deletion.Error = err.Error()
		c.recordDeletion(ctx, deletion)
		c.logger.LogDelete(string(loc), rec.AudioFile, deleted, err)
		return err
	}

	if err := c.gateway.DeleteFile(ctx, loc, rec.AudioFile); err != nil {
		return fail(util.WrapIO("delete", rec.AudioFile, err))
	}
	deleted = append(deleted, rec.AudioFile)

	if rec.HasMetadata() {
		name := rec.MetadataName()
		if err := c.gateway.DeleteFile(ctx, loc, name); err != nil {
			return fail(&util.PartialDeleteError{
				Deleted: deleted,
				Failed:  name,
				Err:     util.WrapIO("delete", name, err),
			})
		}
		deleted = append(deleted, name)
	}

	var current, deferred bool
	next := c.update(func(s *State) {
		if s.Location != loc {
			return
		}
		current = true
		s.Index = s.Index.Without(rec.AudioFile)
		if c.passActive && c.passLocation == loc {
			c.deletedDuringPass[rec.AudioFile] = struct{}{}
			deferred = true
		}
	})

	deletion.DeletedFiles = deleted
	c.recordDeletion(ctx, deletion)
	c.logger.LogDelete(string(loc), rec.AudioFile, deleted, nil)
	util.InfoLog("Deleted %s", rec.AudioFile)

	switch {
	case !current:
		util.DebugLog("Recordings directory changed, %s will drop %s on its next refresh", loc, rec.AudioFile)
		return nil
	case deferred:
		util.DebugLog("Index of %s is saved when the running refresh finishes", loc)
		return nil
	}
	if err := c.store.Save(ctx, loc, next.Index); err != nil {
		return fmt.Errorf("recording deleted but index not saved: %w", err)
	}
	return nil
}

func (c *Controller) recordDeletion(ctx context.Context, d *store.Deletion) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordDeletion(ctx, d); err != nil {
		util.WarnLog("Failed to record deletion history: %v", err)
	}
}

// Location returns the configured storage location
func (c *Controller) Location() storage.Location {
	return c.settings.Location()
}
