package meta

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dhowden/tag"

	"github.com/franz/bcr-index/internal/storage"
)

// TagInfo holds the few audio tags useful for call recordings
type TagInfo struct {
	Title  string
	Artist string
	Format string
}

// probeTags reads the embedded tags of an audio file through the gateway
func probeTags(ctx context.Context, gw storage.Gateway, loc storage.Location, name string) (*TagInfo, error) {
	data, err := gw.ReadFile(ctx, loc, name)
	if err != nil {
		return nil, err
	}
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	return &TagInfo{
		Title:  CleanName(m.Title()),
		Artist: CleanName(m.Artist()),
		Format: string(m.FileType()),
	}, nil
}
