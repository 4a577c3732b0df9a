package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type OutcomeService interface {
	RecordOutcome(ctx context.Context, targetID int64, outcome models.TargetOutcome) (bool, error)
	Converge(ctx context.Context, postID int64) error
	TargetResults(ctx context.Context, postID int64) (*transfer.PostResults, error)
}

type outcomeService struct {
	pr      repository.PostRepository
	tr      repository.TargetRepository
	metrics *metrics.PromMetrics
	now     func() time.Time
}

func NewOutcomeService(pr repository.PostRepository, tr repository.TargetRepository, m *metrics.PromMetrics) OutcomeService {
	return &outcomeService{
		pr:      pr,
		tr:      tr,
		metrics: m,
		now:     time.Now,
	}
}

// RecordOutcome moves a pending target to its terminal state. It reports
// false when the target already had an outcome, which is then kept.
func (s *outcomeService) RecordOutcome(ctx context.Context, targetID int64, outcome models.TargetOutcome) (bool, error) {
	if outcome.Published {
		return s.tr.MarkPublished(ctx, targetID, outcome.ExternalPostID, s.now())
	}
	return s.tr.MarkFailed(ctx, targetID, outcome.ErrorMessage)
}

// Converge recomputes the post status from its targets as stored. It is safe
// to call any number of times and in any order with sibling targets.
func (s *outcomeService) Converge(ctx context.Context, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return nil
	}

	targets, err := s.tr.ListByPostID(ctx, postID)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	var published, failed int
	for _, t := range targets {
		switch t.Status {
		case models.TargetStatusPublished:
			published++
		case models.TargetStatusFailed:
			failed++
		}
	}

	switch {
	case published == len(targets):
		if post.Status == models.PostStatusPublished && post.PublishedAt != nil {
			return nil
		}
		if err := s.pr.MarkPublished(ctx, postID, s.now()); err != nil {
			return fmt.Errorf("mark post published: %w", err)
		}
		s.metrics.PostConverged(models.PostStatusPublished)
		slog.Info("post published on every target", "post_id", postID, "targets", len(targets))

	case failed > 0 && post.Status == models.PostStatusScheduled:
		changed, err := s.pr.MarkFailedIfScheduled(ctx, postID)
		if err != nil {
			return fmt.Errorf("mark post failed: %w", err)
		}
		if changed {
			s.metrics.PostConverged(models.PostStatusFailed)
			slog.Info("post failed on at least one target", "post_id", postID, "failed", failed, "published", published)
		}
	}
	return nil
}

// TargetResults lists every target's outcome so an operator can see which
// platform failed and why.
func (s *outcomeService) TargetResults(ctx context.Context, postID int64) (*transfer.PostResults, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}

	targets, err := s.tr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	results := &transfer.PostResults{
		PostID:      post.ID,
		Status:      post.Status,
		PublishedAt: post.PublishedAt,
		Targets:     make([]transfer.TargetResult, 0, len(targets)),
	}
	for _, t := range targets {
		results.Targets = append(results.Targets, transfer.TargetResult{
			TargetID:        t.ID,
			SocialAccountID: t.SocialAccountID,
			Platform:        t.Platform,
			Status:          t.Status,
			ExternalPostID:  t.ExternalPostID,
			ErrorMessage:    t.ErrorMessage,
			PublishedAt:     t.PublishedAt,
		})
	}
	return results, nil
}
