package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
)

const (
	ReasonNoCredential    = "account inactive/no credential"
	reasonUnknownPrefix   = "unknown platform: "
	reasonExhaustedPrefix = models.ReasonAttemptExhausted + ": "
)

type TargetReader interface {
	GetByID(ctx context.Context, id int64) (*models.Target, error)
}

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, targetID int64, outcome models.TargetOutcome) (bool, error)
	Converge(ctx context.Context, postID int64) error
}

type CredentialSource interface {
	GetActiveCredential(ctx context.Context, socialAccountID int64) (*publisher.Credential, error)
}

type MediaResolver interface {
	Resolve(ctx context.Context, refs []string) ([]string, error)
}

type PublisherLookup interface {
	Get(platform string) (publisher.Publisher, error)
}

// AttemptFunc reports how many times the running task has been retried and
// how many retries it is allowed.
type AttemptFunc func(ctx context.Context) (retried, maxRetry int)

// asynqAttempt reads retry state from the handler context. Outside a
// worker there are no retries, so every run counts as the last.
func asynqAttempt(ctx context.Context) (int, int) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried, maxRetry
}

type Worker struct {
	targets        TargetReader
	outcomes       OutcomeRecorder
	credentials    CredentialSource
	media          MediaResolver
	publishers     PublisherLookup
	metrics        *metrics.PromMetrics
	publishTimeout time.Duration
	attempt        AttemptFunc
}

func NewWorker(
	targets TargetReader,
	outcomes OutcomeRecorder,
	credentials CredentialSource,
	media MediaResolver,
	publishers PublisherLookup,
	m *metrics.PromMetrics,
	publishTimeout time.Duration) *Worker {
	return &Worker{
		targets:        targets,
		outcomes:       outcomes,
		credentials:    credentials,
		media:          media,
		publishers:     publishers,
		metrics:        m,
		publishTimeout: publishTimeout,
		attempt:        asynqAttempt,
	}
}

// WithAttemptFunc replaces how the worker learns the retry state.
func (w *Worker) WithAttemptFunc(f AttemptFunc) *Worker {
	w.attempt = f
	return w
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, w.HandlePublishPostTask)
}

// HandlePublishPostTask runs one publish job. A nil return means the target
// reached a recorded outcome or needed no work; an error means asynq should
// retry, unless it wraps asynq.SkipRetry.
func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	log := slog.With("post_id", payload.PostID, "target_id", payload.TargetID, "platform", payload.Platform)

	target, err := w.targets.GetByID(ctx, payload.TargetID)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	if target == nil {
		log.Info("target no longer exists, skipping job")
		w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeSkipped)
		return nil
	}
	if target.ScheduleVersion != payload.ScheduleVersion {
		log.Info("job superseded by a later schedule change, skipping",
			"job_version", payload.ScheduleVersion, "post_version", target.ScheduleVersion)
		w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeSkipped)
		return nil
	}
	if target.IsTerminal() {
		log.Info("target already has an outcome, skipping job", "status", target.Status)
		w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeSkipped)
		// a reschedule may have left nothing to publish
		if err := w.outcomes.Converge(ctx, payload.PostID); err != nil {
			return fmt.Errorf("converge post status: %w", err)
		}
		return nil
	}

	cred, err := w.credentials.GetActiveCredential(ctx, payload.SocialAccountID)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return w.giveUp(ctx, log, payload, ReasonNoCredential)
	}

	pub, err := w.publishers.Get(payload.Platform)
	if err != nil {
		return w.giveUp(ctx, log, payload, reasonUnknownPrefix+payload.Platform)
	}

	mediaURLs, err := w.media.Resolve(ctx, payload.MediaURLs)
	if errors.Is(err, media.ErrUnresolvable) {
		return w.giveUp(ctx, log, payload, err.Error())
	}
	if err != nil {
		return w.fault(ctx, log, payload, fmt.Errorf("resolve media: %w", err))
	}

	publishCtx := ctx
	if w.publishTimeout > 0 {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(ctx, w.publishTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := pub.Publish(publishCtx, *cred, publisher.Content{
		Caption:   payload.Caption,
		MediaURLs: mediaURLs,
	})
	w.metrics.PublishLatency(payload.Platform, time.Since(start))
	if err != nil {
		return w.fault(ctx, log, payload, err)
	}

	if !result.Success {
		log.Info("platform rejected post", "detail", result.ErrorDetail)
		w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeRejected)
		return w.record(ctx, log, payload, models.FailedOutcome(result.ErrorDetail))
	}

	log.Info("post published", "external_post_id", result.ExternalPostID)
	w.metrics.PublishAttempt(payload.Platform, metrics.OutcomePublished)
	return w.record(ctx, log, payload, models.PublishedOutcome(result.ExternalPostID))
}

// giveUp records a failure that no retry can fix and archives the task.
func (w *Worker) giveUp(ctx context.Context, log *slog.Logger, payload PublishPayload, reason string) error {
	log.Warn("publish job cannot run", "reason", reason)
	w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeRejected)
	if err := w.record(ctx, log, payload, models.FailedOutcome(reason)); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", reason, asynq.SkipRetry)
}

// fault returns err for retry. On the last attempt the target is recorded
// as failed first so the post can converge.
func (w *Worker) fault(ctx context.Context, log *slog.Logger, payload PublishPayload, err error) error {
	retried, maxRetry := w.attempt(ctx)
	if retried < maxRetry {
		log.Warn("publish attempt failed, will retry", "attempt", retried+1, "error", err)
		w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeFault)
		return err
	}

	log.Error("publish attempts exhausted", "attempts", retried+1, "error", err)
	w.metrics.PublishAttempt(payload.Platform, metrics.OutcomeExhausted)
	if recErr := w.record(ctx, log, payload, models.FailedOutcome(reasonExhaustedPrefix+err.Error())); recErr != nil {
		return recErr
	}
	return err
}

func (w *Worker) record(ctx context.Context, log *slog.Logger, payload PublishPayload, outcome models.TargetOutcome) error {
	changed, err := w.outcomes.RecordOutcome(ctx, payload.TargetID, outcome)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if !changed {
		log.Info("target outcome already recorded")
	}

	if err := w.outcomes.Converge(ctx, payload.PostID); err != nil {
		return fmt.Errorf("converge post status: %w", err)
	}
	return nil
}
