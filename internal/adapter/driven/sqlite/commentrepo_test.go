package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

func testComment(rpid int64, postedAt time.Time) model.Comment {
	return model.Comment{
		RPID:      rpid,
		BVID:      "BV1xx411c7mD",
		UserID:    8600,
		Username:  "viewer",
		Message:   "nice video",
		Likes:     12,
		PostedAt:  postedAt,
		FetchedAt: postedAt.Add(time.Hour),
	}
}

func TestCommentRepo_UpsertAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCommentRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, testComment(1, base)))
	require.NoError(t, repo.Upsert(ctx, testComment(2, base.Add(time.Minute))))

	comments, err := repo.ListByVideo(ctx, "BV1xx411c7mD", 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, int64(2), comments[0].RPID, "newest first")
	assert.Equal(t, int64(1), comments[1].RPID)
}

func TestCommentRepo_UpsertRefreshesMutableFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCommentRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, testComment(1, base)))

	updated := testComment(1, base)
	updated.Message = "edited"
	updated.Likes = 99
	require.NoError(t, repo.Upsert(ctx, updated))

	comments, err := repo.ListByVideo(ctx, "BV1xx411c7mD", 10)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "edited", comments[0].Message)
	assert.Equal(t, 99, comments[0].Likes)
}

func TestCommentRepo_ListRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCommentRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repo.Upsert(ctx, testComment(i, base.Add(time.Duration(i)*time.Minute))))
	}

	comments, err := repo.ListByVideo(ctx, "BV1xx411c7mD", 3)
	require.NoError(t, err)
	assert.Len(t, comments, 3)
}

func TestCommentRepo_Count(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCommentRepo(db)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, testComment(1, base)))
	require.NoError(t, repo.Upsert(ctx, testComment(2, base)))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
