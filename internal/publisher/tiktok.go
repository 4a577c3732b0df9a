package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const maxTiktokPhotos = 35

type tiktokPublisher struct {
	baseURL string
	client  *http.Client
}

// NewTiktok publishes through the TikTok Content Posting API, letting TikTok
// pull media from its URL.
func NewTiktok(baseURL string, client *http.Client) Publisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &tiktokPublisher{baseURL: baseURL, client: client}
}

func (p *tiktokPublisher) Publish(ctx context.Context, cred Credential, content Content) (Result, error) {
	images, videos := media.Split(content.MediaURLs)

	var endpoint string
	var payload interface{}
	switch {
	case len(videos) > 1 || (len(videos) == 1 && len(images) > 0):
		return Rejected("tiktok posts accept either one video or a set of photos"), nil
	case len(videos) == 1:
		endpoint = p.baseURL + "/post/publish/video/init/"
		payload = transfer.VideoUploadRequest{
			PostInfo: transfer.VideoPostInfo{
				Title:                 content.Caption,
				PrivacyLevel:          "PUBLIC_TO_EVERYONE",
				VideoCoverTimestampMs: 1000,
			},
			SourceInfo: transfer.VideoSourceInfo{
				Source:   "PULL_FROM_URL",
				VideoURL: videos[0],
			},
		}
	case len(images) > maxTiktokPhotos:
		return Rejected(fmt.Sprintf("tiktok photo posts allow at most %d images, got %d", maxTiktokPhotos, len(images))), nil
	case len(images) > 0:
		endpoint = p.baseURL + "/post/publish/content/init/"
		payload = transfer.PhotoUploadRequest{
			PostInfo: transfer.PhotoPostInfo{
				Title:        content.Caption,
				Description:  content.Caption,
				PrivacyLevel: "PUBLIC_TO_EVERYONE",
				AutoAddMusic: true,
			},
			SourceInfo: transfer.PhotoSourceInfo{
				Source:      "PULL_FROM_URL",
				PhotoImages: images,
			},
			PostMode:  "DIRECT_POST",
			MediaType: "PHOTO",
		}
	default:
		return Rejected("tiktok requires a video or at least one image"), nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{}, fmt.Errorf("unexpected status code from TikTok: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("error reading response body: %w", err)
	}

	var result transfer.TikTokUploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Rejected(fmt.Sprintf("tiktok rejected the request with status %d", resp.StatusCode)), nil
		}
		return Result{}, fmt.Errorf("error parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || (result.Error.Code != "" && result.Error.Code != "ok") {
		slog.Info("tiktok rejected publish", "code", result.Error.Code, "log_id", result.Error.LogID)
		return Rejected(fmt.Sprintf("tiktok: %s (%s)", result.Error.Message, result.Error.Code)), nil
	}

	if result.Data.PublishID == "" {
		return Result{}, fmt.Errorf("no publish id returned from TikTok")
	}
	return Published(result.Data.PublishID), nil
}
