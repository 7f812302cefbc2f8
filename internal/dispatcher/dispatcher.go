package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/publisher"
	"github.com/postflowhq/autopost/internal/repository"
)

type Config struct {
	BatchSize      int
	MaxAttempts    int
	WorkerCount    int
	PublishTimeout time.Duration
	ClaimTTL       time.Duration
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
}

// Dispatcher drives due posts from scheduled to posted or failed. It owns
// no ambient state; everything it touches is injected at construction so a
// cycle is runnable (and testable) without HTTP or cron around it.
type Dispatcher struct {
	cfg      Config
	posts    repository.PostRepository
	assets   repository.MediaAssetRepository
	history  repository.PostingHistoryRepository
	creds    credentials.Provider
	registry *publisher.Registry
}

func New(
	cfg Config,
	posts repository.PostRepository,
	assets repository.MediaAssetRepository,
	history repository.PostingHistoryRepository,
	creds credentials.Provider,
	registry *publisher.Registry) *Dispatcher {

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 10
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Minute
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 15 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = defaultBackoffCeiling
	}

	return &Dispatcher{
		cfg:      cfg,
		posts:    posts,
		assets:   assets,
		history:  history,
		creds:    creds,
		registry: registry,
	}
}

type CycleStats struct {
	Reclaimed int64
	Due       int
	Claimed   int
	Posted    int
	Retried   int
	Failed    int
}

// RunCycle is the single entry point the periodic trigger calls. One cycle
// reclaims stale claims, claims the due batch and publishes each claimed
// post on a bounded worker pool. Per-post failures are recorded on the post
// itself and never abort the batch; only storage failures escape.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) (CycleStats, error) {
	var stats CycleStats

	reclaimed, err := d.posts.ReclaimStale(ctx, now.Add(-d.cfg.ClaimTTL))
	if err != nil {
		return stats, fmt.Errorf("reclaiming stale posts: %w", err)
	}
	stats.Reclaimed = reclaimed
	if reclaimed > 0 {
		slog.Warn("reclaimed stale claimed posts", "count", reclaimed)
	}

	due, err := d.posts.FindDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("finding due posts: %w", err)
	}
	stats.Due = len(due)
	if len(due) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, d.cfg.WorkerCount)

	var claimErr error
	for _, post := range due {
		if err := d.posts.Claim(ctx, post.ID, now); err != nil {
			// Lost the race against another dispatcher. Expected, move on.
			if errors.Is(err, repository.ErrNotClaimable) {
				continue
			}
			// Storage failure. Stop claiming, but in-flight workers still
			// share stats and must finish before the cycle returns.
			claimErr = fmt.Errorf("claiming post %d: %w", post.ID, err)
			break
		}
		stats.Claimed++

		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.ScheduledPost) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := d.processClaimed(ctx, post, now)

			mu.Lock()
			switch outcome {
			case models.PostStatusPosted:
				stats.Posted++
			case models.PostStatusScheduled:
				stats.Retried++
			case models.PostStatusClaimed:
				// Left claimed after a storage failure; the stale sweep
				// will recover it without touching attempts.
			default:
				stats.Failed++
			}
			mu.Unlock()
		}(post)
	}

	wg.Wait()

	if claimErr != nil {
		return stats, claimErr
	}

	slog.Info("dispatch cycle finished",
		"due", stats.Due,
		"claimed", stats.Claimed,
		"posted", stats.Posted,
		"retried", stats.Retried,
		"failed", stats.Failed,
	)

	return stats, nil
}

// ProcessPost claims and publishes a single post. The queue fast path uses
// it when a deferred task fires exactly at the scheduled time; the claim
// keeps it from double-publishing against a concurrent sweep.
func (d *Dispatcher) ProcessPost(ctx context.Context, postID int64, now time.Time) error {
	post, err := d.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return repository.ErrPostNotFound
	}
	if post.ScheduledAt.After(now) {
		return fmt.Errorf("post %d is not due until %s", postID, post.ScheduledAt)
	}

	if err := d.posts.Claim(ctx, post.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotClaimable) {
			return nil
		}
		return err
	}

	d.processClaimed(ctx, post, now)
	return nil
}

// processClaimed runs one claimed post to its next state and returns that
// state. All failures end up on the post record; nothing propagates.
func (d *Dispatcher) processClaimed(ctx context.Context, post *models.ScheduledPost, now time.Time) string {
	cred, err := d.creds.Resolve(ctx, post.UserID, post.Platform)
	if err != nil {
		// Missing or dead credentials never fix themselves by retrying.
		var credErr *credentials.Error
		if errors.As(err, &credErr) {
			return d.finishFailed(ctx, post, now, err, false)
		}
		// Anything else is a storage failure, not a credential verdict.
		// Leave the post claimed; the stale sweep retries it.
		slog.Error("unable to resolve credentials", "post_id", post.ID, "error", err)
		return models.PostStatusClaimed
	}

	pub, ok := d.registry.Lookup(post.Platform)
	if !ok {
		return d.finishFailed(ctx, post, now, fmt.Errorf("no publisher for platform %q", post.Platform), false)
	}

	media, err := d.assets.ListByPostID(ctx, post.ID)
	if err != nil {
		// A failed storage read is not a publish attempt. Leave the post
		// claimed; the stale sweep retries it with attempts untouched.
		slog.Error("unable to load post media", "post_id", post.ID, "error", err)
		return models.PostStatusClaimed
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	platformPostID, err := pub.Publish(pubCtx, post, media, cred)
	if err != nil {
		return d.finishFailed(ctx, post, now, err, publisher.Retryable(err))
	}

	if err := d.posts.MarkPosted(ctx, post.ID, platformPostID); err != nil {
		slog.Error("post published but could not be marked posted", "post_id", post.ID, "error", err)
		return models.PostStatusClaimed
	}

	d.recordHistory(ctx, post, post.Attempts+1, platformPostID, "")
	slog.Info("post published", "post_id", post.ID, "platform", post.Platform, "platform_post_id", platformPostID)

	return models.PostStatusPosted
}

func (d *Dispatcher) finishFailed(ctx context.Context, post *models.ScheduledPost, now time.Time, cause error, retryable bool) string {
	attempt := post.Attempts + 1
	retryAt := now.Add(d.Backoff(attempt))

	status, err := d.posts.MarkFailed(ctx, post.ID, cause.Error(), retryable, d.cfg.MaxAttempts, retryAt)
	if err != nil {
		slog.Error("unable to record publish failure", "post_id", post.ID, "error", err)
		return models.PostStatusClaimed
	}

	d.recordHistory(ctx, post, attempt, "", cause.Error())

	if status == models.PostStatusScheduled {
		slog.Info("post requeued after retryable failure", "post_id", post.ID, "attempt", attempt, "retry_at", retryAt, "error", cause)
	} else {
		slog.Info("post failed terminally", "post_id", post.ID, "attempt", attempt, "error", cause)
	}

	return status
}

func (d *Dispatcher) recordHistory(ctx context.Context, post *models.ScheduledPost, attempt int, platformPostID, errorMessage string) {
	ph := models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		Platform:       post.Platform,
		Attempt:        attempt,
		PlatformPostID: platformPostID,
		ErrorMessage:   errorMessage,
	}
	if _, err := d.history.Create(ctx, &ph); err != nil {
		slog.Error("unable to save posting history", "post_id", post.ID, "error", err)
	}
}
