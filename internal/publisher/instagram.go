package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const maxCarouselItems = 10

type instagramPublisher struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

// NewInstagram publishes through the Instagram Graph API content publishing
// flow: create a media container, wait for it to finish processing, then
// publish it.
func NewInstagram(baseURL string, client *http.Client) Publisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &instagramPublisher{baseURL: baseURL, client: client, pollInterval: 3 * time.Second}
}

// graphRejection carries a refusal from the Graph API.
type graphRejection struct {
	detail string
}

func (e *graphRejection) Error() string { return e.detail }

func (p *instagramPublisher) Publish(ctx context.Context, cred Credential, content Content) (Result, error) {
	if cred.AccountID == "" {
		return Rejected("instagram account id is missing"), nil
	}

	images, videos := media.Split(content.MediaURLs)
	items := len(images) + len(videos)
	switch {
	case items == 0:
		return Rejected("instagram requires at least one image or video"), nil
	case items > maxCarouselItems:
		return Rejected(fmt.Sprintf("instagram carousels allow at most %d items, got %d", maxCarouselItems, items)), nil
	}

	creationID, err := p.createContainer(ctx, cred, content.Caption, images, videos)
	if err == nil {
		err = p.waitFinished(ctx, cred, creationID)
	}

	var postID string
	if err == nil {
		postID, err = p.publishContainer(ctx, cred, creationID)
	}
	if err != nil {
		var rej *graphRejection
		if errors.As(err, &rej) {
			return Rejected(rej.detail), nil
		}
		return Result{}, err
	}

	slog.Info("published to instagram", "account_id", cred.AccountID, "media_id", postID)
	return Published(postID), nil
}

func (p *instagramPublisher) createContainer(ctx context.Context, cred Credential, caption string, images, videos []string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", p.baseURL, cred.AccountID)

	if len(images)+len(videos) == 1 {
		payload := map[string]interface{}{
			"caption":      caption,
			"access_token": cred.AccessToken,
		}
		if len(images) == 1 {
			payload["image_url"] = images[0]
		} else {
			payload["video_url"] = videos[0]
			payload["media_type"] = "REELS"
		}
		return p.postForID(ctx, endpoint, payload)
	}

	children := make([]string, 0, len(images)+len(videos))
	for _, u := range images {
		id, err := p.postForID(ctx, endpoint, map[string]interface{}{
			"image_url":        u,
			"is_carousel_item": true,
			"access_token":     cred.AccessToken,
		})
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}
	for _, u := range videos {
		id, err := p.postForID(ctx, endpoint, map[string]interface{}{
			"video_url":        u,
			"media_type":       "VIDEO",
			"is_carousel_item": true,
			"access_token":     cred.AccessToken,
		})
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	for _, id := range children {
		if err := p.waitFinished(ctx, cred, id); err != nil {
			return "", err
		}
	}

	return p.postForID(ctx, endpoint, map[string]interface{}{
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     children,
		"access_token": cred.AccessToken,
	})
}

func (p *instagramPublisher) publishContainer(ctx context.Context, cred Credential, creationID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", p.baseURL, cred.AccountID)
	return p.postForID(ctx, endpoint, map[string]interface{}{
		"creation_id":  creationID,
		"access_token": cred.AccessToken,
	})
}

// waitFinished polls a container until Instagram has fetched and processed
// its media. The job's publish timeout bounds the wait.
func (p *instagramPublisher) waitFinished(ctx context.Context, cred Credential, containerID string) error {
	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", cred.AccessToken)
	endpoint := fmt.Sprintf("%s/%s?%s", p.baseURL, containerID, q.Encode())

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}

		var status transfer.InstagramContainerStatus
		if err := p.do(req, &status); err != nil {
			return err
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED", "":
			return nil
		case "ERROR", "EXPIRED":
			return &graphRejection{detail: fmt.Sprintf("instagram could not process media container %s: %s %s", containerID, status.StatusCode, status.Status)}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for container %s: %w", containerID, ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *instagramPublisher) postForID(ctx context.Context, endpoint string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result transfer.InstagramIDResponse
	if err := p.do(req, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from Instagram")
	}
	return result.ID, nil
}

// do sends req and decodes a 2xx body into out. Client errors become a
// graphRejection unless Instagram flags them transient.
func (p *instagramPublisher) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("error parsing response: %w", err)
		}
		return nil
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	var graphErr transfer.InstagramErrorResponse
	if err := json.Unmarshal(respBody, &graphErr); err != nil || graphErr.Error.Message == "" {
		return &graphRejection{detail: fmt.Sprintf("instagram rejected the request with status %d", resp.StatusCode)}
	}
	if graphErr.Error.IsTransient {
		return fmt.Errorf("transient instagram error %d: %s", graphErr.Error.Code, graphErr.Error.Message)
	}

	detail := graphErr.Error.Message
	if graphErr.Error.ErrorUserMsg != "" {
		detail = graphErr.Error.ErrorUserMsg
	}
	return &graphRejection{detail: fmt.Sprintf("instagram: %s (code %d)", detail, graphErr.Error.Code)}
}
