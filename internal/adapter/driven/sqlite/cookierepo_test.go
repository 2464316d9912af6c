package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "SESSDATA=abc123; bili_jct=csrf456; DedeUserID=42"

func TestCookieRepo_SaveAndGetValid(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)
	ctx := context.Background()

	err := repo.Save(ctx, testCookie)
	require.NoError(t, err)

	stored, nearExpiry, err := repo.GetValid(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, testCookie, stored.Value)
	assert.False(t, nearExpiry)
	assert.True(t, stored.ExpiresAt.After(stored.SavedAt))
}

func TestCookieRepo_GetValidEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)

	stored, nearExpiry, err := repo.GetValid(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.False(t, nearExpiry)
}

func TestCookieRepo_SaveReplacesPrevious(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "SESSDATA=old; bili_jct=old; DedeUserID=1"))
	require.NoError(t, repo.Save(ctx, testCookie))

	stored, _, err := repo.GetValid(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, testCookie, stored.Value)

	var count int
	err = db.Reader.QueryRow(`SELECT COUNT(*) FROM cookies`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "save should keep a single row")
}

func TestCookieRepo_NearExpiry(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testCookie))

	// Move the clock to just inside the renewal window.
	repo.now = func() time.Time {
		return time.Now().Add(repo.ttl - repo.renewWindow + time.Hour)
	}

	stored, nearExpiry, err := repo.GetValid(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, nearExpiry)
}

func TestCookieRepo_ExpiredCookieNotReturned(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testCookie))

	repo.now = func() time.Time {
		return time.Now().Add(repo.ttl + time.Hour)
	}

	stored, nearExpiry, err := repo.GetValid(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.False(t, nearExpiry)
}

func TestCookieRepo_Clear(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testCookie))
	require.NoError(t, repo.Clear(ctx))

	stored, _, err := repo.GetValid(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCookieRepo_ClearEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)

	assert.NoError(t, repo.Clear(context.Background()), "clearing an empty store should not error")
}

func TestCookieRepo_ValueEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCookieRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testCookie))

	var raw string
	err := db.Reader.QueryRow(`SELECT value FROM cookies`).Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "SESSDATA", "stored value must not contain plaintext")
}

func TestNewCookieRepo_RejectsShortKey(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewCookieRepo(db, []byte("too short"))
	assert.Error(t, err)
}
