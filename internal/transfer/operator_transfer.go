package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims are carried by operator API tokens.
type OperatorClaims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}

type TargetResult struct {
	TargetID        int64      `json:"target_id"`
	SocialAccountID int64      `json:"social_account_id"`
	Platform        string     `json:"platform"`
	Status          string     `json:"status"`
	ExternalPostID  string     `json:"external_post_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

type PostResults struct {
	PostID      int64          `json:"post_id"`
	Status      string         `json:"status"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Targets     []TargetResult `json:"targets"`
}
