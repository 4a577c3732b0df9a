package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
)

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrMissingScheduleTime = errors.New("post has no scheduled time")
	ErrNoTargets           = errors.New("post has no targets")
)

type JobQueue interface {
	Enqueue(ctx context.Context, payload queue.PublishPayload, delay time.Duration) (string, error)
	CancelByPost(ctx context.Context, postID int64) (int, error)
}

// Locker serialises schedule changes for a single post.
type Locker interface {
	WithPostLock(ctx context.Context, postID int64, fn func(ctx context.Context) error) error
}

type SchedulingService interface {
	SchedulePost(ctx context.Context, postID int64) error
	CancelScheduledPost(ctx context.Context, postID int64) error
	ReschedulePost(ctx context.Context, postID int64) error
	PublishNow(ctx context.Context, postID int64) error
	DeletePost(ctx context.Context, postID int64) error
}

// PostEvents is what the content-editing side calls after it writes a post.
type PostEvents interface {
	OnPostCreated(ctx context.Context, post *models.Post) error
	OnPostScheduleChanged(ctx context.Context, post *models.Post, oldScheduledTime *time.Time) error
}

// Scheduler is both halves of the scheduling API.
type Scheduler interface {
	SchedulingService
	PostEvents
}

type scheduleMode int

const (
	modeSchedule scheduleMode = iota
	modeReschedule
	modePublishNow
)

type schedulingService struct {
	pr     repository.PostRepository
	tr     repository.TargetRepository
	q      JobQueue
	locker Locker
	now    func() time.Time
}

func NewSchedulingService(
	pr repository.PostRepository,
	tr repository.TargetRepository,
	q JobQueue,
	locker Locker) Scheduler {
	return &schedulingService{
		pr:     pr,
		tr:     tr,
		q:      q,
		locker: locker,
		now:    time.Now,
	}
}

// SchedulePost enqueues one job per target to run at the post's scheduled
// time. Jobs left over from an earlier schedule are removed first, so calling
// it twice never doubles the jobs.
func (s *schedulingService) SchedulePost(ctx context.Context, postID int64) error {
	return s.locker.WithPostLock(ctx, postID, func(ctx context.Context) error {
		return s.schedule(ctx, postID, modeSchedule)
	})
}

// CancelScheduledPost removes every job of the post that has not started.
// Removing nothing is not an error.
func (s *schedulingService) CancelScheduledPost(ctx context.Context, postID int64) error {
	return s.locker.WithPostLock(ctx, postID, func(ctx context.Context) error {
		_, _, err := s.cancel(ctx, postID)
		return err
	})
}

// ReschedulePost replaces the post's jobs with new ones for its current
// scheduled time and gives failed targets another chance.
func (s *schedulingService) ReschedulePost(ctx context.Context, postID int64) error {
	return s.locker.WithPostLock(ctx, postID, func(ctx context.Context) error {
		return s.schedule(ctx, postID, modeReschedule)
	})
}

// PublishNow enqueues the post's jobs with no delay. The post stays
// "scheduled" until its targets complete.
func (s *schedulingService) PublishNow(ctx context.Context, postID int64) error {
	return s.locker.WithPostLock(ctx, postID, func(ctx context.Context) error {
		return s.schedule(ctx, postID, modePublishNow)
	})
}

// DeletePost cancels the post's pending jobs and then deletes it. The post
// is kept if the cancel fails.
func (s *schedulingService) DeletePost(ctx context.Context, postID int64) error {
	return s.locker.WithPostLock(ctx, postID, func(ctx context.Context) error {
		post, err := s.pr.GetByID(ctx, postID)
		if err != nil {
			return fmt.Errorf("load post: %w", err)
		}
		if post == nil {
			return fmt.Errorf("%w: %d", ErrPostNotFound, postID)
		}

		if _, _, err := s.cancel(ctx, postID); err != nil {
			return err
		}
		if err := s.pr.Remove(ctx, postID); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}

		slog.Info("post deleted", "post_id", postID)
		return nil
	})
}

func (s *schedulingService) OnPostCreated(ctx context.Context, post *models.Post) error {
	if post.ScheduledTime == nil {
		return nil
	}
	return s.SchedulePost(ctx, post.ID)
}

func (s *schedulingService) OnPostScheduleChanged(ctx context.Context, post *models.Post, oldScheduledTime *time.Time) error {
	switch {
	case post.ScheduledTime == nil && oldScheduledTime == nil:
		return nil
	case post.ScheduledTime == nil:
		return s.unschedule(ctx, post.ID)
	case oldScheduledTime != nil && oldScheduledTime.Equal(*post.ScheduledTime):
		return nil
	default:
		return s.ReschedulePost(ctx, post.ID)
	}
}

// unschedule cancels the post's jobs and returns a scheduled post to draft.
func (s *schedulingService) unschedule(ctx context.Context, postID int64) error {
	return s.locker.WithPostLock(ctx, postID, func(ctx context.Context) error {
		if _, _, err := s.cancel(ctx, postID); err != nil {
			return err
		}

		post, err := s.pr.GetByID(ctx, postID)
		if err != nil {
			return fmt.Errorf("load post: %w", err)
		}
		if post == nil || post.Status != models.PostStatusScheduled {
			return nil
		}
		if err := s.pr.UpdatePostStatus(ctx, models.PostStatusDraft, postID); err != nil {
			return fmt.Errorf("update post status: %w", err)
		}

		slog.Info("post unscheduled", "post_id", postID)
		return nil
	})
}

// cancel supersedes every job of the post by bumping its schedule version,
// then removes the jobs that have not started. A job that was already running
// and comes back for a retry is dropped by the worker on the version check.
func (s *schedulingService) cancel(ctx context.Context, postID int64) (version int64, n int, err error) {
	version, err = s.pr.BumpScheduleVersion(ctx, postID)
	if err != nil {
		return 0, 0, fmt.Errorf("bump schedule version: %w", err)
	}

	n, err = s.q.CancelByPost(ctx, postID)
	if err != nil {
		slog.Error("failed to cancel publish jobs", "post_id", postID, "error", err)
		return version, n, fmt.Errorf("cancel publish jobs: %w", err)
	}
	return version, n, nil
}

// schedule must run under the post lock. Existing jobs are always cancelled
// before new ones are enqueued.
func (s *schedulingService) schedule(ctx context.Context, postID int64, mode scheduleMode) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}

	var delay time.Duration
	if mode != modePublishNow {
		if post.ScheduledTime == nil {
			return fmt.Errorf("%w: %d", ErrMissingScheduleTime, postID)
		}
		delay = max(post.ScheduledTime.Sub(s.now()), 0)
	}

	targets, err := s.tr.ListByPostID(ctx, postID)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	if len(targets) == 0 && mode == modePublishNow {
		return fmt.Errorf("%w: %d", ErrNoTargets, postID)
	}

	version, cancelled, err := s.cancel(ctx, postID)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		slog.Warn("post has no targets, nothing to schedule", "post_id", postID)
		return nil
	}
	if allPublished(targets) {
		slog.Warn("every target is already published, leaving post as is", "post_id", postID, "status", post.Status)
		return nil
	}

	if mode == modeReschedule {
		reset, err := s.tr.ResetFailed(ctx, postID)
		if err != nil {
			return fmt.Errorf("reset failed targets: %w", err)
		}
		if reset > 0 {
			slog.Info("failed targets reset to pending", "post_id", postID, "count", reset)
		}
	}

	if err := s.pr.UpdatePostStatus(ctx, models.PostStatusScheduled, postID); err != nil {
		return fmt.Errorf("update post status: %w", err)
	}

	for _, t := range targets {
		// stop once the post lock is lost
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("enqueue target %d: %w", t.ID, err)
		}
		payload := queue.PublishPayload{
			PostID:          post.ID,
			TargetID:        t.ID,
			SocialAccountID: t.SocialAccountID,
			Platform:        t.Platform,
			Caption:         post.Caption,
			MediaURLs:       post.MediaURLs,
			ScheduledAt:     post.ScheduledTime,
			ScheduleVersion: version,
		}
		if _, err := s.q.Enqueue(ctx, payload, delay); err != nil {
			return fmt.Errorf("enqueue target %d: %w", t.ID, err)
		}
	}

	slog.Info("post scheduled",
		"post_id", postID,
		"targets", len(targets),
		"replaced_jobs", cancelled,
		"delay", delay.String())
	return nil
}

func allPublished(targets []*models.Target) bool {
	for _, t := range targets {
		if t.Status != models.TargetStatusPublished {
			return false
		}
	}
	return true
}

// NoopScheduler stands in where scheduling is disabled. Every call
// succeeds without touching the queue.
type NoopScheduler struct{}

func (NoopScheduler) SchedulePost(ctx context.Context, postID int64) error { return nil }
func (NoopScheduler) CancelScheduledPost(ctx context.Context, postID int64) error { return nil }
func (NoopScheduler) ReschedulePost(ctx context.Context, postID int64) error { return nil }
func (NoopScheduler) PublishNow(ctx context.Context, postID int64) error { return nil }
func (NoopScheduler) DeletePost(ctx context.Context, postID int64) error { return nil }
func (NoopScheduler) OnPostCreated(ctx context.Context, post *models.Post) error { return nil }
func (NoopScheduler) OnPostScheduleChanged(ctx context.Context, post *models.Post, oldScheduledTime *time.Time) error {
	return nil
}

var _ Scheduler = NoopScheduler{}
