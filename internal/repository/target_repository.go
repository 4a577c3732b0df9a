package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// TargetRepository persists post_targets. Outcome writes only ever move a
// target out of "pending", so a duplicate delivery cannot overwrite an
// already recorded result.
type TargetRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Target, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.Target, error)
	MarkPublished(ctx context.Context, id int64, externalPostID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
	ResetFailed(ctx context.Context, postID int64) (int64, error)
	FailPending(ctx context.Context, postID int64, reason string) (int64, error)
}

type targetRepository struct {
	db *sql.DB
}

func NewTargetRepository(db *sql.DB) TargetRepository {
	return &targetRepository{db: db}
}

const targetColumns = `
	t.id, t.post_id, t.social_account_id, a.platform, t.status,
	COALESCE(t.external_post_id, ''), COALESCE(t.error_message, ''),
	t.published_at, p.schedule_version, t.created_at, t.updated_at
`

func scanTarget(scan func(dest ...any) error) (*models.Target, error) {
	var t models.Target
	var publishedAt sql.NullTime
	err := scan(&t.ID, &t.PostID, &t.SocialAccountID, &t.Platform, &t.Status,
		&t.ExternalPostID, &t.ErrorMessage, &publishedAt, &t.ScheduleVersion, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.PublishedAt = nullTimePtr(publishedAt)
	return &t, nil
}

func (r *targetRepository) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	query := `SELECT ` + targetColumns + `
		FROM post_targets t
		JOIN social_accounts a ON a.id = t.social_account_id
		JOIN posts p ON p.id = t.post_id
		WHERE t.id = $1`

	t, err := scanTarget(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return t, nil
}

func (r *targetRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.Target, error) {
	query := `SELECT ` + targetColumns + `
		FROM post_targets t
		JOIN social_accounts a ON a.id = t.social_account_id
		JOIN posts p ON p.id = t.post_id
		WHERE t.post_id = $1
		ORDER BY t.id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var targets []*models.Target
	for rows.Next() {
		t, err := scanTarget(rows.Scan)
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("scan row: %w", err)
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return targets, nil
}

func (r *targetRepository) MarkPublished(ctx context.Context, id int64, externalPostID string, at time.Time) (bool, error) {
	query := `
		UPDATE post_targets
		SET status = $1,
			external_post_id = $2,
			error_message = NULL,
			published_at = $3,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.execTransition(ctx, query, models.TargetStatusPublished, externalPostID, at, id, models.TargetStatusPending)
}

func (r *targetRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE post_targets
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.execTransition(ctx, query, models.TargetStatusFailed, reason, time.Now(), id, models.TargetStatusPending)
}

func (r *targetRepository) execTransition(ctx context.Context, query string, args ...any) (bool, error) {
	affected, err := r.execCount(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FailPending marks every still-pending target of a post as failed.
func (r *targetRepository) FailPending(ctx context.Context, postID int64, reason string) (int64, error) {
	query := `
		UPDATE post_targets
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE post_id = $4 AND status = $5
	`
	return r.execCount(ctx, query, models.TargetStatusFailed, reason, time.Now(), postID, models.TargetStatusPending)
}

// ResetFailed puts failed targets of a post back to pending. Published
// targets are left alone.
func (r *targetRepository) ResetFailed(ctx context.Context, postID int64) (int64, error) {
	query := `
		UPDATE post_targets
		SET status = $1,
			error_message = NULL,
			updated_at = $2
		WHERE post_id = $3 AND status = $4
	`
	return r.execCount(ctx, query, models.TargetStatusPending, time.Now(), postID, models.TargetStatusFailed)
}

func (r *targetRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
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
