package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/metrics"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

const (
	listPageSize      = 100
	deleteConcurrency = 10
)

// TaskClient is the part of *asynq.Client the queue uses.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is the part of *asynq.Inspector the queue uses.
type TaskInspector interface {
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

type Options struct {
	// MaxAttempts counts the first run, so asynq gets MaxAttempts-1 retries.
	MaxAttempts int
	Retention   time.Duration
	Timeout     time.Duration
}

type Queue struct {
	client    TaskClient
	inspector TaskInspector
	opts      Options
	metrics   *metrics.PromMetrics
}

func NewQueue(client TaskClient, inspector TaskInspector, opts Options, m *metrics.PromMetrics) *Queue {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Queue{
		client:    client,
		inspector: inspector,
		opts:      opts,
		metrics:   m,
	}
}

// Enqueue adds a publish job that becomes runnable after delay. A negative
// delay runs it immediately.
func (q *Queue) Enqueue(ctx context.Context, payload PublishPayload, delay time.Duration) (string, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	suffix, err := gonanoid.New(10)
	if err != nil {
		return "", fmt.Errorf("generate task id: %w", err)
	}
	taskID := fmt.Sprintf("publish-%d-%d-%s", payload.PostID, payload.TargetID, suffix)

	opts := []asynq.Option{
		asynq.Queue(QueueName),
		asynq.TaskID(taskID),
		asynq.MaxRetry(q.opts.MaxAttempts - 1),
		asynq.ProcessIn(max(delay, 0)),
	}
	if q.opts.Retention > 0 {
		opts = append(opts, asynq.Retention(q.opts.Retention))
	}
	if q.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(q.opts.Timeout))
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue publish job: %w", err)
	}

	q.metrics.JobsEnqueued(1)
	slog.Info("publish job enqueued",
		"task_id", info.ID,
		"post_id", payload.PostID,
		"target_id", payload.TargetID,
		"platform", payload.Platform,
		"delay", delay.String())
	return info.ID, nil
}

// CancelByPost removes every not-yet-started job of postID: waiting,
// delayed and awaiting retry. Jobs already claimed by a worker are left to
// finish. It returns how many jobs were removed.
func (q *Queue) CancelByPost(ctx context.Context, postID int64) (int, error) {
	listers := []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		q.inspector.ListPendingTasks,
		q.inspector.ListScheduledTasks,
		q.inspector.ListRetryTasks,
	}

	var ids []string
	for _, list := range listers {
		found, err := q.collect(ctx, list, postID)
		if err != nil {
			return 0, err
		}
		ids = append(ids, found...)
	}

	var removed atomic.Int64
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := q.inspector.DeleteTask(QueueName, id)
			switch {
			case err == nil:
				removed.Add(1)
				return nil
			case claimedMeanwhile(err):
				slog.Info("publish job already claimed, leaving it", "task_id", id, "post_id", postID)
				return nil
			default:
				return fmt.Errorf("delete task %s: %w", id, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return int(removed.Load()), err
	}

	n := int(removed.Load())
	q.metrics.JobsCancelled(n)
	if n > 0 {
		slog.Info("publish jobs cancelled", "post_id", postID, "count", n)
	}
	return n, nil
}

func (q *Queue) collect(ctx context.Context, list func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error), postID int64) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		infos, err := list(QueueName, asynq.PageSize(listPageSize), asynq.Page(page))
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				return ids, nil
			}
			return nil, fmt.Errorf("list tasks: %w", err)
		}

		for _, info := range infos {
			if info.Type != TaskTypePublishPost {
				continue
			}
			var payload PublishPayload
			if err := json.Unmarshal(info.Payload, &payload); err != nil {
				slog.Warn("skipping task with unreadable payload", "task_id", info.ID, "error", err)
				continue
			}
			if payload.PostID == postID {
				ids = append(ids, info.ID)
			}
		}

		if len(infos) < listPageSize {
			return ids, nil
		}
	}
}

// claimedMeanwhile reports delete failures caused by the task leaving the
// listed state between listing and deleting. asynq has no sentinel for the
// active state case.
func claimedMeanwhile(err error) bool {
	return errors.Is(err, asynq.ErrTaskNotFound) ||
		errors.Is(err, asynq.ErrQueueNotFound) ||
		strings.Contains(err.Error(), "active state")
}
