package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestPostRepositoryGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	scheduled := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	created := scheduled.Add(-48 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "team_id", "caption", "media_urls", "scheduled_time", "status", "published_at", "schedule_version", "created_at", "updated_at"}).
		AddRow(int64(7), int64(1), int64(2), "hello", []byte("{a.png,b.mp4}"), scheduled, "scheduled", nil, int64(3), created, created)
	mock.ExpectQuery(regexp.QuoteMeta("FROM posts")).WithArgs(int64(7)).WillReturnRows(rows)

	post, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "hello", post.Caption)
	assert.Equal(t, []string{"a.png", "b.mp4"}, post.MediaURLs)
	require.NotNil(t, post.ScheduledTime)
	assert.True(t, scheduled.Equal(*post.ScheduledTime))
	assert.Nil(t, post.PublishedAt)
	assert.Equal(t, int64(3), post.ScheduleVersion)
}

func TestPostRepositoryGetByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM posts")).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	post, err := repo.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestPostRepositoryMarkPublishedKeepsFirstTimestamp(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("published_at = COALESCE(published_at, $2)")).
		WithArgs(models.PostStatusPublished, at, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPublished(context.Background(), 3, at))
}

func TestPostRepositoryMarkFailedIfScheduled(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND status = $4")).
		WithArgs(models.PostStatusFailed, sqlmock.AnyArg(), int64(3), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkFailedIfScheduled(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPostRepositoryListOverdueScheduled(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	before := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM posts WHERE status = $1 AND scheduled_time < $2 AND updated_at < $2")).
		WithArgs(models.PostStatusScheduled, before).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(9)))

	ids, err := repo.ListOverdueScheduled(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)
}

func TestPostRepositoryBumpScheduleVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SET schedule_version = schedule_version + 1")).
		WithArgs(sqlmock.AnyArg(), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"schedule_version"}).AddRow(int64(6)))
	mock.ExpectQuery(regexp.QuoteMeta("RETURNING schedule_version")).
		WithArgs(sqlmock.AnyArg(), int64(5)).
		WillReturnError(sql.ErrNoRows)

	v, err := repo.BumpScheduleVersion(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	v, err = repo.BumpScheduleVersion(context.Background(), 5)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func targetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "post_id", "social_account_id", "platform", "status", "external_post_id", "error_message", "published_at", "schedule_version", "created_at", "updated_at"})
}

func TestTargetRepositoryListByPostID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTargetRepository(db)

	now := time.Now()
	rows := targetRows().
		AddRow(int64(1), int64(5), int64(10), "instagram", "published", "ig_1", "", now, int64(2), now, now).
		AddRow(int64(2), int64(5), int64(11), "tiktok", "failed", "", "video too long", nil, int64(2), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.post_id = $1")).WithArgs(int64(5)).WillReturnRows(rows)

	targets, err := repo.ListByPostID(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "instagram", targets[0].Platform)
	assert.NotNil(t, targets[0].PublishedAt)
	assert.Equal(t, "video too long", targets[1].ErrorMessage)
	assert.Nil(t, targets[1].PublishedAt)
	assert.Equal(t, int64(2), targets[0].ScheduleVersion)
}

func TestTargetRepositoryGetByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTargetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)

	target, err := repo.GetByID(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestTargetRepositoryMarkPublishedOnlyFromPending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTargetRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE post_targets")).
		WithArgs(models.TargetStatusPublished, "ext123", at, int64(1), models.TargetStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE post_targets")).
		WithArgs(models.TargetStatusPublished, "ext999", at, int64(1), models.TargetStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkPublished(context.Background(), 1, "ext123", at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkPublished(context.Background(), 1, "ext999", at)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTargetRepositoryMarkFailedPropagatesErrors(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTargetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE post_targets")).
		WithArgs(models.TargetStatusFailed, "boom", sqlmock.AnyArg(), int64(2), models.TargetStatusPending).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.MarkFailed(context.Background(), 2, "boom")
	require.Error(t, err)
}

func TestTargetRepositoryResetFailed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTargetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE post_id = $3 AND status = $4")).
		WithArgs(models.TargetStatusPending, sqlmock.AnyArg(), int64(5), models.TargetStatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ResetFailed(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTargetRepositoryFailPending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTargetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE post_id = $4 AND status = $5")).
		WithArgs(models.TargetStatusFailed, "publish attempt exhausted: stuck", sqlmock.AnyArg(), int64(5), models.TargetStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.FailPending(context.Background(), 5, "publish attempt exhausted: stuck")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSocialAccountRepositoryGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSocialAccountRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "platform", "account_id", "account_username", "access_token", "is_active", "created_at", "updated_at"}).
		AddRow(int64(10), int64(1), "instagram", "1784", "brand", "enc", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM social_accounts")).WithArgs(int64(10)).WillReturnRows(rows)

	acc, err := repo.GetByID(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.True(t, acc.IsActive)
	assert.Equal(t, "1784", acc.AccountID)
}
