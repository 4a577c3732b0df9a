package models

import "time"

type Post struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	TeamID        int64      `db:"team_id" json:"team_id"`
	Caption       string     `db:"caption" json:"caption"`
	MediaURLs     []string   `db:"media_urls" json:"media_urls"`
	ScheduledTime *time.Time `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Status        string     `db:"status" json:"status"` // draft, scheduled, published, failed
	PublishedAt   *time.Time `db:"published_at" json:"published_at,omitempty"`
	// ScheduleVersion is bumped by every schedule change; jobs carry the
	// version they were enqueued under.
	ScheduleVersion int64     `db:"schedule_version" json:"schedule_version"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Target is the intent to publish one post to one connected social account.
type Target struct {
	ID              int64      `db:"id" json:"id"`
	PostID          int64      `db:"post_id" json:"post_id"`
	SocialAccountID int64      `db:"social_account_id" json:"social_account_id"`
	Platform        string     `db:"platform" json:"platform"`
	Status          string     `db:"status" json:"status"` // pending, published, failed
	ExternalPostID  string     `db:"external_post_id" json:"external_post_id,omitempty"`
	ErrorMessage    string     `db:"error_message" json:"error_message,omitempty"`
	PublishedAt     *time.Time `db:"published_at" json:"published_at,omitempty"`
	// ScheduleVersion is the owning post's current schedule version.
	ScheduleVersion int64     `db:"schedule_version" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (t *Target) IsTerminal() bool {
	return t.Status == TargetStatusPublished || t.Status == TargetStatusFailed
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	TargetStatusPending   = "pending"
	TargetStatusPublished = "published"
	TargetStatusFailed    = "failed"
)

// ReasonAttemptExhausted prefixes the failure detail of a target whose
// publish attempts ran out without a recorded outcome.
const ReasonAttemptExhausted = "publish attempt exhausted"

// TargetOutcome is the terminal result of publishing one target.
type TargetOutcome struct {
	Published      bool
	ExternalPostID string
	ErrorMessage   string
}

func PublishedOutcome(externalPostID string) TargetOutcome {
	return TargetOutcome{Published: true, ExternalPostID: externalPostID}
}

func FailedOutcome(reason string) TargetOutcome {
	return TargetOutcome{ErrorMessage: reason}
}
