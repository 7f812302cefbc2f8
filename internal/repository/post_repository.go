package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/postflowhq/autopost/internal/models"
)

var (
	ErrPostNotFound = errors.New("post not found")
	// ErrNotClaimable is returned when a conditional status transition
	// affects no rows: another dispatcher already claimed the post, or it
	// left the expected state.
	ErrNotClaimable = errors.New("post is not claimable")
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, postID int64, now time.Time) error
	MarkPosted(ctx context.Context, postID int64, platformPostID string) error
	MarkFailed(ctx context.Context, postID int64, cause string, retryable bool, maxAttempts int, retryAt time.Time) (string, error)
	ReclaimStale(ctx context.Context, claimedBefore time.Time) (int64, error)
	Cancel(ctx context.Context, postID, userID int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, post_type, caption, title, hashtags, scheduled_at, status, attempts, last_error, platform_post_id, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Platform,
		&post.PostType,
		&post.Caption,
		&post.Title,
		&post.Hashtags,
		&post.ScheduledAt,
		&post.Status,
		&post.Attempts,
		&post.LastError,
		&post.PlatformPostID,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO posts (user_id, platform, post_type, caption, title, hashtags, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Platform, post.PostType, post.Caption, post.Title, post.Hashtags, post.ScheduledAt, models.PostStatusScheduled).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Platform, post.PostType, post.Caption, post.Title, post.Hashtags, post.ScheduledAt, models.PostStatusScheduled).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// FindDue returns scheduled posts whose target time has arrived, oldest
// first so a backlog drains fairly. The limit bounds per-cycle work.
func (r *postRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// Claim is the only cross-process synchronization point in the pipeline.
// The conditional update with an affected-row check guarantees that two
// dispatchers racing on the same due set never both win the same post.
func (r *postRepository) Claim(ctx context.Context, postID int64, now time.Time) error {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, models.PostStatusClaimed, now, postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotClaimable
	}
	return nil
}

func (r *postRepository) MarkPosted(ctx context.Context, postID int64, platformPostID string) error {
	query := `
		UPDATE posts
		SET status = $1, platform_post_id = $2, last_error = NULL, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, models.PostStatusPosted, platformPostID, time.Now(), postID, models.PostStatusClaimed)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotClaimable
	}
	return nil
}

// MarkFailed finalizes one failed attempt on a claimed post. The attempt
// counter always advances; the post goes back to scheduled at retryAt when
// the failure is retryable and attempts remain, and ends terminally failed
// otherwise. Returns the status the post landed in.
func (r *postRepository) MarkFailed(ctx context.Context, postID int64, cause string, retryable bool, maxAttempts int, retryAt time.Time) (string, error) {
	query := `
		UPDATE posts
		SET attempts = attempts + 1,
			last_error = $1,
			status = CASE WHEN $2 AND attempts + 1 < $3 THEN 'scheduled' ELSE 'failed' END,
			scheduled_at = CASE WHEN $2 AND attempts + 1 < $3 THEN $4 ELSE scheduled_at END,
			updated_at = $5
		WHERE id = $6 AND status = $7
		RETURNING status
	`

	var status string
	err := r.db.QueryRowContext(ctx, query, cause, retryable, maxAttempts, retryAt, time.Now(), postID, models.PostStatusClaimed).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotClaimable
		}
		slog.Info(err.Error())
		return "", err
	}

	return status, nil
}

// ReclaimStale pushes posts stuck in claimed past the staleness cutoff back
// to scheduled so a crashed worker's claims are not lost forever. A post
// already published but not yet marked posted may be published twice here;
// that risk is accepted over exactly-once machinery.
func (r *postRepository) ReclaimStale(ctx context.Context, claimedBefore time.Time) (int64, error) {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`

	result, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, time.Now(), models.PostStatusClaimed, claimedBefore)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}

// Cancel only succeeds while the post is still scheduled. A cancel racing a
// claim loses if the claim commits first.
func (r *postRepository) Cancel(ctx context.Context, postID, userID int64) error {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, models.PostStatusCancelled, time.Now(), postID, userID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotClaimable
	}
	return nil
}
