package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/metrics"
)

// --- Mock implementations for CrawlService tests ---

type mockCommentClient struct {
	fetchCalls int
	fetch      func(page int) ([]model.Comment, bool, error)
}

func (m *mockCommentClient) ResolveVideo(_ context.Context, _ string) (*model.Video, error) {
	return nil, errors.New("not used in these tests")
}

func (m *mockCommentClient) FetchComments(_ context.Context, _ *model.Cookie, _ int64, page int) ([]model.Comment, bool, error) {
	m.fetchCalls++
	return m.fetch(page)
}

func (m *mockCommentClient) CheckLogin(_ context.Context, _ *model.Cookie) (bool, error) {
	return true, nil
}

type mockVideoStore struct {
	videos      []model.Video
	markCrawled []string
	listErr     error
}

func (m *mockVideoStore) Add(_ context.Context, video model.Video) error {
	m.videos = append(m.videos, video)
	return nil
}

func (m *mockVideoStore) ListAll(_ context.Context) ([]model.Video, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.videos, nil
}

func (m *mockVideoStore) Remove(_ context.Context, _ string) error { return nil }

func (m *mockVideoStore) MarkCrawled(_ context.Context, bvid string, _ time.Time) error {
	m.markCrawled = append(m.markCrawled, bvid)
	return nil
}

type mockCommentStore struct {
	upserts   []model.Comment
	upsertErr error
}

func (m *mockCommentStore) Upsert(_ context.Context, comment model.Comment) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, comment)
	return nil
}

func (m *mockCommentStore) ListByVideo(_ context.Context, _ string, _ int) ([]model.Comment, error) {
	return nil, nil
}

func (m *mockCommentStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.upserts)), nil
}

// --- Helper functions ---

func testComments(rpids ...int64) []model.Comment {
	comments := make([]model.Comment, 0, len(rpids))
	for _, rpid := range rpids {
		comments = append(comments, model.Comment{
			RPID:     rpid,
			UserID:   100 + rpid,
			Username: "viewer",
			Message:  "nice video",
			PostedAt: time.Now().Add(-time.Hour),
		})
	}
	return comments
}

func newTestCrawler(client *mockCommentClient) (*CrawlService, *RuntimeConfig, *mockVideoStore, *mockCommentStore) {
	videos := &mockVideoStore{videos: []model.Video{{BVID: "BV1xx411c7mD", AID: 170001, Title: "test video"}}}
	comments := &mockCommentStore{}

	// Zero delays keep the tests fast.
	runtime := NewRuntimeConfig(model.CrawlerParams{DelayMin: 0, DelayMax: 0, MaxRetries: 0})
	collector := metrics.NewCollector(prometheus.NewRegistry())

	svc := NewCrawlService(client, videos, comments, runtime, collector, time.Hour)
	return svc, runtime, videos, comments
}

// --- Crawl passes ---

func TestCrawlAll_StoresComments(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return testComments(1, 2), false, nil
		},
	}
	svc, runtime, videos, comments := newTestCrawler(client)
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	require.NoError(t, svc.crawlAll(context.Background()))

	require.Len(t, comments.upserts, 2)
	for _, comment := range comments.upserts {
		assert.Equal(t, "BV1xx411c7mD", comment.BVID, "crawler stamps the BVID onto stored comments")
	}
	assert.Equal(t, []string{"BV1xx411c7mD"}, videos.markCrawled)
}

func TestCrawlAll_SkipsWithoutCookie(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return testComments(1), false, nil
		},
	}
	svc, _, _, comments := newTestCrawler(client)

	require.NoError(t, svc.crawlAll(context.Background()))
	assert.Zero(t, client.fetchCalls, "anonymous crawl passes are skipped")
	assert.Empty(t, comments.upserts)
}

func TestCrawlAll_DedupsUnchangedComments(t *testing.T) {
	comment := testComments(7)[0]
	comment.Likes = 3

	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return []model.Comment{comment}, false, nil
		},
	}
	svc, runtime, _, comments := newTestCrawler(client)
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	require.NoError(t, svc.crawlAll(context.Background()))
	require.NoError(t, svc.crawlAll(context.Background()))
	assert.Len(t, comments.upserts, 1, "unchanged comment must not be re-written")

	// A changed like count invalidates the dedup entry.
	comment.Likes = 4
	require.NoError(t, svc.crawlAll(context.Background()))
	assert.Len(t, comments.upserts, 2)
}

func TestCrawlAll_BoundsPagesPerCycle(t *testing.T) {
	page := int64(0)
	client := &mockCommentClient{}
	client.fetch = func(int) ([]model.Comment, bool, error) {
		page++
		return testComments(page), true, nil
	}
	svc, runtime, _, _ := newTestCrawler(client)
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	require.NoError(t, svc.crawlAll(context.Background()))
	assert.Equal(t, maxPagesPerCycle, client.fetchCalls)
}

func TestCrawlAll_ContinuesAfterVideoFailure(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return nil, false, errors.New("api error -412")
		},
	}
	svc, runtime, videos, _ := newTestCrawler(client)
	videos.videos = append(videos.videos, model.Video{BVID: "BV2yy522d8nE", AID: 170002})
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	require.NoError(t, svc.crawlAll(context.Background()))
	assert.Equal(t, 2, client.fetchCalls, "a failing video must not stop the pass")
}

// --- Retries ---

func TestFetchPage_RetriesUpToCeiling(t *testing.T) {
	calls := 0
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			calls++
			if calls < 3 {
				return nil, false, errors.New("temporary failure")
			}
			return testComments(1), false, nil
		},
	}
	svc, runtime, _, _ := newTestCrawler(client)
	runtime.SetParams(model.CrawlerParams{MaxRetries: 2})
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	cookie := runtime.Cookie()
	comments, hasMore, err := svc.fetchPage(context.Background(), cookie, 170001, 1)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	assert.False(t, hasMore)
	assert.Equal(t, 3, calls)
}

func TestFetchPage_GivesUpAfterCeiling(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return nil, false, errors.New("persistent failure")
		},
	}
	svc, runtime, _, _ := newTestCrawler(client)
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	_, _, err := svc.fetchPage(context.Background(), runtime.Cookie(), 170001, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "persistent failure")
	assert.Equal(t, 1, client.fetchCalls, "zero retries means a single attempt")
}

// --- Manual triggers ---

func TestCrawlVideo_ManualTrigger(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return testComments(1), false, nil
		},
	}
	svc, runtime, videos, _ := newTestCrawler(client)
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	require.NoError(t, svc.CrawlVideo(ctx, "BV1xx411c7mD"))
	assert.Contains(t, videos.markCrawled, "BV1xx411c7mD")
}

func TestCrawlOne_UnknownVideo(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return testComments(1), false, nil
		},
	}
	svc, runtime, _, _ := newTestCrawler(client)
	require.NoError(t, runtime.SetCookie(wellFormedCookie))

	err := svc.crawlOne(context.Background(), "BV0000000000")
	require.Error(t, err)
	assert.ErrorContains(t, err, "not watched")
}

func TestCrawlOne_NoCookie(t *testing.T) {
	client := &mockCommentClient{
		fetch: func(int) ([]model.Comment, bool, error) {
			return testComments(1), false, nil
		},
	}
	svc, _, _, _ := newTestCrawler(client)

	err := svc.crawlOne(context.Background(), "BV1xx411c7mD")
	assert.True(t, model.IsValidation(err))
}
