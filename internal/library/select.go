package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/franz/bcr-index/internal/util"
)

// SelectDirectory asks the selector for a recordings directory, stores it
// in the settings and loads its index. Cancelling leaves the settings and
// the published state untouched and returns util.ErrSelectionCancelled.
func (c *Controller) SelectDirectory(ctx context.Context) error {
	if c.selector == nil {
		return util.ErrNoStorageConfigured
	}

	previous := c.settings.Location()
	loc, err := c.selector.SelectDirectory(ctx, previous)
	if err == nil && loc == "" {
		err = util.ErrSelectionCancelled
	}
	if err != nil {
		if errors.Is(err, util.ErrSelectionCancelled) {
			util.InfoLog("Directory selection cancelled")
		}
		return err
	}

	if err := c.settings.SetLocation(loc); err != nil {
		return fmt.Errorf("failed to save recordings directory: %w", err)
	}
	c.logger.LogSelect(string(loc), string(previous))
	util.InfoLog("Recordings directory set to %s", loc)

	return c.load(ctx, loc)
}
