package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	UpdatePostStatus(ctx context.Context, status string, postID int64) error
	MarkPublished(ctx context.Context, postID int64, at time.Time) error
	MarkFailedIfScheduled(ctx context.Context, postID int64) (bool, error)
	ListOverdueScheduled(ctx context.Context, before time.Time) ([]int64, error)
	BumpScheduleVersion(ctx context.Context, postID int64) (int64, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT id, user_id, team_id, caption, media_urls, scheduled_time, status, published_at,
			schedule_version, created_at, updated_at
		FROM posts
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	var scheduledTime, publishedAt sql.NullTime
	err := row.Scan(&post.ID, &post.UserID, &post.TeamID, &post.Caption, pq.Array(&post.MediaURLs),
		&scheduledTime, &post.Status, &publishedAt, &post.ScheduleVersion, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	post.ScheduledTime = nullTimePtr(scheduledTime)
	post.PublishedAt = nullTimePtr(publishedAt)
	return &post, nil
}

func (r *postRepository) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkPublished keeps the first published_at ever stamped on the post.
func (r *postRepository) MarkPublished(ctx context.Context, postID int64, at time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			published_at = COALESCE(published_at, $2),
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, at, postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailedIfScheduled(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, time.Now(), postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// ListOverdueScheduled returns scheduled posts whose publish time and last
// schedule change are both older than before.
func (r *postRepository) ListOverdueScheduled(ctx context.Context, before time.Time) ([]int64, error) {
	query := `SELECT id FROM posts WHERE status = $1 AND scheduled_time < $2 AND updated_at < $2 ORDER BY scheduled_time`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return ids, nil
}

// BumpScheduleVersion increments the post's schedule version and returns the
// new value. A missing post yields 0.
func (r *postRepository) BumpScheduleVersion(ctx context.Context, postID int64) (int64, error) {
	query := `
		UPDATE posts
		SET schedule_version = schedule_version + 1,
			updated_at = $1
		WHERE id = $2
		RETURNING schedule_version
	`
	var version int64
	err := r.db.QueryRowContext(ctx, query, time.Now(), postID).Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		slog.Info(err.Error())
		return 0, err
	}
	return version, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
