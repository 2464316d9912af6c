package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VideoStore = (*VideoRepo)(nil)

// VideoRepo is the SQLite implementation of the VideoStore port interface.
type VideoRepo struct {
	db *DB
}

// NewVideoRepo creates a new VideoRepo backed by the given DB.
func NewVideoRepo(db *DB) *VideoRepo {
	return &VideoRepo{db: db}
}

// Add registers a video for crawling. Re-adding an existing BVID refreshes
// its AID and title but keeps the original added_at.
func (r *VideoRepo) Add(ctx context.Context, video model.Video) error {
	const query = `
		INSERT INTO videos (bvid, aid, title, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bvid) DO UPDATE SET
			aid = excluded.aid,
			title = excluded.title
	`

	addedAt := video.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query, video.BVID, video.AID, video.Title, formatTime(addedAt))
	if err != nil {
		return fmt.Errorf("add video %s: %w", video.BVID, err)
	}
	return nil
}

// ListAll returns every watched video ordered by when it was added.
func (r *VideoRepo) ListAll(ctx context.Context) ([]model.Video, error) {
	const query = `
		SELECT bvid, aid, title, added_at, last_crawled_at
		FROM videos
		ORDER BY added_at, bvid
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []model.Video
	for rows.Next() {
		var v model.Video
		var addedAt string
		var lastCrawledAt sql.NullString
		if err := rows.Scan(&v.BVID, &v.AID, &v.Title, &addedAt, &lastCrawledAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}

		if v.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, fmt.Errorf("parse added_at for %s: %w", v.BVID, err)
		}
		if lastCrawledAt.Valid {
			if v.LastCrawledAt, err = parseTime(lastCrawledAt.String); err != nil {
				return nil, fmt.Errorf("parse last_crawled_at for %s: %w", v.BVID, err)
			}
		}

		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// Remove deletes a video. Removing an unknown BVID is not an error.
func (r *VideoRepo) Remove(ctx context.Context, bvid string) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM videos WHERE bvid = ?`, bvid); err != nil {
		return fmt.Errorf("remove video %s: %w", bvid, err)
	}
	return nil
}

// MarkCrawled records the completion time of a crawl pass over the video.
func (r *VideoRepo) MarkCrawled(ctx context.Context, bvid string, at time.Time) error {
	const query = `UPDATE videos SET last_crawled_at = ? WHERE bvid = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), bvid); err != nil {
		return fmt.Errorf("mark video %s crawled: %w", bvid, err)
	}
	return nil
}
