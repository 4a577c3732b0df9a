package publisher

import (
	"context"
	"fmt"
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// simulatedPublisher stands in for platforms without a live integration yet.
// It accepts everything and hands back a locally generated post id.
type simulatedPublisher struct {
	platform string
	prefix   string
}

func NewSimulated(platform, prefix string) Publisher {
	return &simulatedPublisher{platform: platform, prefix: prefix}
}

func (p *simulatedPublisher) Publish(ctx context.Context, cred Credential, content Content) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return Result{}, fmt.Errorf("generate post id: %w", err)
	}

	slog.Info("simulated publish", "platform", p.platform, "caption_len", len(content.Caption), "media", len(content.MediaURLs))
	return Published(p.prefix + "_" + id), nil
}
