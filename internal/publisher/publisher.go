package publisher

import (
	"context"
)

// Credential is what a publisher needs to act on behalf of one connected
// account.
type Credential struct {
	AccessToken string
	// AccountID is the platform's own id for the account (Instagram user id,
	// TikTok open id, YouTube channel id).
	AccountID string
}

// Content is the snapshot of a post taken when its job was enqueued.
type Content struct {
	Caption   string
	MediaURLs []string
}

// Result reports one publish attempt. A platform that refuses the content
// (bad media, revoked token, rate limit) is reported here with Success false;
// it is not an error.
type Result struct {
	Success        bool
	ExternalPostID string
	ErrorDetail    string
}

// Publisher performs one publish call against one platform. A returned error
// means an infrastructure fault (network, 5xx, timeout) and makes the job
// eligible for retry. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, cred Credential, content Content) (Result, error)
}

func Published(externalPostID string) Result {
	return Result{Success: true, ExternalPostID: externalPostID}
}

func Rejected(detail string) Result {
	return Result{Success: false, ErrorDetail: detail}
}
