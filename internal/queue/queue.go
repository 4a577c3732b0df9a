package queue

import (
	"time"
)

const (
	TaskTypePublishPost = "publish:post"
	QueueName           = "publish-posts"
)

// PublishPayload is one publish job: a single target of a post together with
// the content as it was when the job was enqueued.
type PublishPayload struct {
	PostID          int64      `json:"post_id"`
	TargetID        int64      `json:"target_id"`
	SocialAccountID int64      `json:"social_account_id"`
	Platform        string     `json:"platform"`
	Caption         string     `json:"caption"`
	MediaURLs       []string   `json:"media_urls"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	// ScheduleVersion is the post's schedule version at enqueue time. A job
	// whose version no longer matches the post was superseded.
	ScheduleVersion int64 `json:"schedule_version"`
}
