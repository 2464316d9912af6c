package driven

import (
	"context"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// CommentStore defines the driven port for crawled comment persistence.
type CommentStore interface {
	// Upsert inserts a comment or refreshes an existing one by RPID.
	Upsert(ctx context.Context, comment model.Comment) error

	// ListByVideo returns up to limit comments for a video, newest first.
	ListByVideo(ctx context.Context, bvid string, limit int) ([]model.Comment, error)

	// Count returns the total number of stored comments.
	Count(ctx context.Context) (int64, error)
}
