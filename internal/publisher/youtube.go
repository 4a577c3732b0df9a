package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/maheshrc27/postflow/internal/media"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const maxYoutubeTitle = 100

type youtubePublisher struct {
	download *http.Client
	opts     []option.ClientOption
}

// NewYoutube uploads the post's video with the YouTube Data API. download
// fetches the media; opts are passed to youtube.NewService.
func NewYoutube(download *http.Client, opts ...option.ClientOption) Publisher {
	if download == nil {
		download = http.DefaultClient
	}
	return &youtubePublisher{download: download, opts: opts}
}

func (p *youtubePublisher) Publish(ctx context.Context, cred Credential, content Content) (Result, error) {
	_, videos := media.Split(content.MediaURLs)
	if len(videos) == 0 {
		return Rejected("youtube requires a video"), nil
	}

	token := &oauth2.Token{AccessToken: cred.AccessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, p.opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("error creating YouTube service: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videos[0], nil)
	if err != nil {
		return Result{}, fmt.Errorf("error creating download request: %w", err)
	}
	resp, err := p.download.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("error downloading video: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Result{}, fmt.Errorf("unexpected status downloading video: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Rejected(fmt.Sprintf("youtube: video could not be fetched (status %d)", resp.StatusCode)), nil
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       videoTitle(content.Caption),
			Description: content.Caption,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, video).Media(resp.Body).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
			return Rejected(fmt.Sprintf("youtube: %s (code %d)", apiErr.Message, apiErr.Code)), nil
		}
		return Result{}, fmt.Errorf("error uploading video: %w", err)
	}

	slog.Info("published to youtube", "video_id", uploaded.Id)
	return Published(uploaded.Id), nil
}

// videoTitle uses the first line of the caption, cut to YouTube's limit.
func videoTitle(caption string) string {
	title := strings.TrimSpace(strings.SplitN(caption, "\n", 2)[0])
	if title == "" {
		return "Untitled"
	}
	if utf8.RuneCountInString(title) > maxYoutubeTitle {
		title = string([]rune(title)[:maxYoutubeTitle])
	}
	return title
}
