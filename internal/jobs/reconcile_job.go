package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/robfig/cron"
)

const reconcileConcurrency = 10

var staleTargetReason = models.ReasonAttemptExhausted + ": no outcome recorded within the reconcile grace"

type OverduePostLister interface {
	ListOverdueScheduled(ctx context.Context, before time.Time) ([]int64, error)
}

type PendingTargetFailer interface {
	FailPending(ctx context.Context, postID int64, reason string) (int64, error)
}

type PostConverger interface {
	Converge(ctx context.Context, postID int64) error
}

// ReconcileJob settles posts that are still "scheduled" well after their
// publish time. That happens when a worker died between recording a target
// outcome and converging the post, or when the last attempt could not record
// its outcome at all. Targets still pending past the grace window are failed
// before convergence, so the grace must be longer than the whole retry window.
type ReconcileJob struct {
	pr    OverduePostLister
	tr    PendingTargetFailer
	os    PostConverger
	grace time.Duration
	now   func() time.Time
}

func NewReconcileJob(pr OverduePostLister, tr PendingTargetFailer, os PostConverger, grace time.Duration) *ReconcileJob {
	return &ReconcileJob{
		pr:    pr,
		tr:    tr,
		os:    os,
		grace: grace,
		now:   time.Now,
	}
}

func (c *ReconcileJob) Register(cr *cron.Cron, interval time.Duration) error {
	return cr.AddFunc(fmt.Sprintf("@every %s", interval), c.ReconcilePosts)
}

func (c *ReconcileJob) ReconcilePosts() {
	ctx := context.Background()

	postIDs, err := c.pr.ListOverdueScheduled(ctx, c.now().Add(-c.grace))
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(postIDs) == 0 {
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, reconcileConcurrency)

	for _, id := range postIDs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(id int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			failed, err := c.tr.FailPending(ctx, id, staleTargetReason)
			if err != nil {
				slog.Info("unable to fail stale targets", "post_id", id, "error", err)
				return
			}
			if failed > 0 {
				slog.Warn("stale pending targets failed", "post_id", id, "count", failed)
			}

			if err := c.os.Converge(ctx, id); err != nil {
				slog.Info("unable to reconcile post status", "post_id", id, "error", err)
			}
		}(id)
	}

	wg.Wait()
	slog.Info("reconciled overdue posts", "count", len(postIDs))
}
