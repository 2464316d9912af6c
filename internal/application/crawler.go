package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
	"github.com/zihaowei/bilipanel/internal/metrics"
)

const (
	// maxPagesPerCycle bounds how deep one crawl pass goes into a comment
	// section. Comments are fetched newest-first, so the first pages catch
	// everything new since the previous cycle.
	maxPagesPerCycle = 5

	// seenCacheSize is the comment dedup cache capacity.
	seenCacheSize = 8192

	// retryDelay is the pause before re-fetching a failed page.
	retryDelay = 2 * time.Second
)

// crawlRequest represents a manual crawl trigger for one video.
type crawlRequest struct {
	bvid string
	done chan error
}

// CrawlService orchestrates periodic comment crawling over the watched
// videos. Pacing follows the live CrawlerParams on every request: a random
// delay in [DelayMin, DelayMax] seconds between page fetches and up to
// MaxRetries additional attempts per page.
type CrawlService struct {
	client       driven.CommentClient
	videoStore   driven.VideoStore
	commentStore driven.CommentStore
	runtime      *RuntimeConfig
	collector    *metrics.Collector
	interval     time.Duration
	refreshCh    chan crawlRequest

	// seen maps RPID to the like count at last store, so unchanged
	// comments are not re-written every cycle.
	seen *lru.Cache[int64, int]
}

// NewCrawlService creates a CrawlService with all required dependencies.
func NewCrawlService(
	client driven.CommentClient,
	videoStore driven.VideoStore,
	commentStore driven.CommentStore,
	runtime *RuntimeConfig,
	collector *metrics.Collector,
	interval time.Duration,
) *CrawlService {
	seen, _ := lru.New[int64, int](seenCacheSize)
	return &CrawlService{
		client:       client,
		videoStore:   videoStore,
		commentStore: commentStore,
		runtime:      runtime,
		collector:    collector,
		interval:     interval,
		refreshCh:    make(chan crawlRequest),
		seen:         seen,
	}
}

// Start begins the crawl loop. It runs an immediate pass, then crawls on the
// configured interval, and also listens for manual crawl requests. Start
// blocks until the context is canceled.
func (s *CrawlService) Start(ctx context.Context) {
	if err := s.crawlAll(ctx); err != nil {
		slog.Error("initial crawl failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("crawl service stopped")
			return
		case <-ticker.C:
			if err := s.crawlAll(ctx); err != nil {
				slog.Error("crawl cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.crawlOne(ctx, req.bvid)
		}
	}
}

// CrawlVideo triggers a manual crawl for a specific video, bypassing the
// interval. It blocks until the crawl completes or the context is canceled.
func (s *CrawlService) CrawlVideo(ctx context.Context, bvid string) error {
	done := make(chan error, 1)
	req := crawlRequest{bvid: bvid, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// crawlAll runs one pass over every watched video. A pass without a cookie
// is skipped entirely; the API rejects anonymous comment requests quickly.
func (s *CrawlService) crawlAll(ctx context.Context) error {
	cookie := s.runtime.Cookie()
	if cookie == nil {
		slog.Info("no cookie configured, skipping crawl cycle")
		return nil
	}

	videos, err := s.videoStore.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list watched videos: %w", err)
	}

	for _, video := range videos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.crawlVideo(ctx, cookie, video); err != nil {
			slog.Error("crawl failed", "bvid", video.BVID, "error", err)
			s.collector.RecordCrawlFailure()
			continue
		}
		s.collector.RecordCrawlSuccess()
	}

	return nil
}

// crawlOne crawls a single video by BVID, for manual triggers.
func (s *CrawlService) crawlOne(ctx context.Context, bvid string) error {
	cookie := s.runtime.Cookie()
	if cookie == nil {
		return model.Validationf("no cookie configured")
	}

	videos, err := s.videoStore.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list watched videos: %w", err)
	}

	for _, video := range videos {
		if video.BVID == bvid {
			if err := s.crawlVideo(ctx, cookie, video); err != nil {
				s.collector.RecordCrawlFailure()
				return err
			}
			s.collector.RecordCrawlSuccess()
			return nil
		}
	}

	return fmt.Errorf("video %s is not watched", bvid)
}

// crawlVideo fetches comment pages for one video until the section is
// exhausted or the per-cycle page bound is hit, storing new and changed
// comments.
func (s *CrawlService) crawlVideo(ctx context.Context, cookie *model.Cookie, video model.Video) error {
	stored := 0

	for page := 1; page <= maxPagesPerCycle; page++ {
		if page > 1 {
			if err := s.pause(ctx); err != nil {
				return err
			}
		}

		comments, hasMore, err := s.fetchPage(ctx, cookie, video.AID, page)
		if err != nil {
			return err
		}

		for _, comment := range comments {
			comment.BVID = video.BVID

			if likes, ok := s.seen.Get(comment.RPID); ok && likes == comment.Likes {
				continue
			}

			if err := s.commentStore.Upsert(ctx, comment); err != nil {
				return err
			}
			s.seen.Add(comment.RPID, comment.Likes)
			stored++
		}

		if !hasMore {
			break
		}
	}

	s.collector.RecordCommentsStored(stored)

	if err := s.videoStore.MarkCrawled(ctx, video.BVID, time.Now()); err != nil {
		return err
	}

	slog.Info("video crawled", "bvid", video.BVID, "comments_stored", stored)
	return nil
}

// fetchPage fetches one comment page, retrying up to the configured ceiling.
func (s *CrawlService) fetchPage(ctx context.Context, cookie *model.Cookie, aid int64, page int) ([]model.Comment, bool, error) {
	maxRetries := s.runtime.Params().MaxRetries

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			s.collector.RecordFetchRetry()
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		start := time.Now()
		comments, hasMore, err := s.client.FetchComments(ctx, cookie, aid, page)
		s.collector.RecordFetchLatency(time.Since(start))
		if err == nil {
			return comments, hasMore, nil
		}
		lastErr = err
	}

	return nil, false, fmt.Errorf("fetch page %d after %d retries: %w", page, maxRetries, lastErr)
}

// pause sleeps for a random delay drawn from the configured range. An
// inverted range (DelayMin > DelayMax) degrades to the fixed DelayMin.
func (s *CrawlService) pause(ctx context.Context) error {
	params := s.runtime.Params()

	seconds := params.DelayMin
	if params.DelayMax > params.DelayMin {
		seconds = params.DelayMin + rand.IntN(params.DelayMax-params.DelayMin+1)
	}
	if seconds <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(seconds) * time.Second):
		return nil
	}
}
