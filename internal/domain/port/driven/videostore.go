package driven

import (
	"context"
	"time"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// VideoStore defines the driven port for the watched-video list.
type VideoStore interface {
	// Add registers a video for crawling. Adding an already-watched BVID
	// updates its title and AID in place.
	Add(ctx context.Context, video model.Video) error

	// ListAll returns every watched video ordered by when it was added.
	ListAll(ctx context.Context) ([]model.Video, error)

	// Remove deletes a video and is a no-op for unknown BVIDs.
	Remove(ctx context.Context, bvid string) error

	// MarkCrawled records the completion time of a crawl pass.
	MarkCrawled(ctx context.Context, bvid string, at time.Time) error
}
