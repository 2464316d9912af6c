package sqlite

import (
	"context"
	"fmt"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommentStore = (*CommentRepo)(nil)

// CommentRepo is the SQLite implementation of the CommentStore port interface.
type CommentRepo struct {
	db *DB
}

// NewCommentRepo creates a new CommentRepo backed by the given DB.
func NewCommentRepo(db *DB) *CommentRepo {
	return &CommentRepo{db: db}
}

// Upsert inserts a comment or refreshes an existing one by RPID. Message and
// like count can change upstream (edits, further likes); everything else is
// immutable once posted.
func (r *CommentRepo) Upsert(ctx context.Context, comment model.Comment) error {
	const query = `
		INSERT INTO comments (rpid, bvid, user_id, username, message, likes, posted_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rpid) DO UPDATE SET
			message = excluded.message,
			likes = excluded.likes,
			fetched_at = excluded.fetched_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		comment.RPID, comment.BVID, comment.UserID, comment.Username,
		comment.Message, comment.Likes,
		formatTime(comment.PostedAt), formatTime(comment.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert comment %d: %w", comment.RPID, err)
	}
	return nil
}

// ListByVideo returns up to limit comments for a video, newest first.
func (r *CommentRepo) ListByVideo(ctx context.Context, bvid string, limit int) ([]model.Comment, error) {
	const query = `
		SELECT rpid, bvid, user_id, username, message, likes, posted_at, fetched_at
		FROM comments
		WHERE bvid = ?
		ORDER BY posted_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, bvid, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments for %s: %w", bvid, err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		var postedAt, fetchedAt string
		if err := rows.Scan(&c.RPID, &c.BVID, &c.UserID, &c.Username, &c.Message, &c.Likes, &postedAt, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}

		if c.PostedAt, err = parseTime(postedAt); err != nil {
			return nil, fmt.Errorf("parse posted_at for %d: %w", c.RPID, err)
		}
		if c.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, fmt.Errorf("parse fetched_at for %d: %w", c.RPID, err)
		}

		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// Count returns the total number of stored comments.
func (r *CommentRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}
