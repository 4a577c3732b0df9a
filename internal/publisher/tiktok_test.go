package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiktokVideo(t *testing.T) {
	var got transfer.VideoUploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/post/publish/video/init/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"data":{"publish_id":"v_pub_1"},"error":{"code":"ok","message":""}}`)
	}))
	defer srv.Close()

	res, err := NewTiktok(srv.URL, nil).Publish(context.Background(),
		Credential{AccessToken: "tok"},
		Content{Caption: "dance", MediaURLs: []string{"https://cdn.example.com/v.mp4"}})
	require.NoError(t, err)
	assert.Equal(t, Published("v_pub_1"), res)
	assert.Equal(t, "PULL_FROM_URL", got.SourceInfo.Source)
	assert.Equal(t, "https://cdn.example.com/v.mp4", got.SourceInfo.VideoURL)
	assert.Equal(t, "dance", got.PostInfo.Title)
}

func TestTiktokPhotos(t *testing.T) {
	var got transfer.PhotoUploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/post/publish/content/init/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"data":{"publish_id":"p_pub_1"},"error":{"code":"ok"}}`)
	}))
	defer srv.Close()

	res, err := NewTiktok(srv.URL, nil).Publish(context.Background(),
		Credential{AccessToken: "tok"},
		Content{Caption: "album", MediaURLs: []string{"a.jpg", "b.png"}})
	require.NoError(t, err)
	assert.Equal(t, Published("p_pub_1"), res)
	assert.Equal(t, "PHOTO", got.MediaType)
	assert.Equal(t, "DIRECT_POST", got.PostMode)
	assert.Equal(t, []string{"a.jpg", "b.png"}, got.SourceInfo.PhotoImages)
}

func TestTiktokErrorCodeIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"data":{},"error":{"code":"access_token_invalid","message":"token expired","log_id":"x"}}`)
	}))
	defer srv.Close()

	res, err := NewTiktok(srv.URL, nil).Publish(context.Background(),
		Credential{AccessToken: "tok"}, Content{MediaURLs: []string{"v.mp4"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "tiktok: token expired (access_token_invalid)", res.ErrorDetail)
}

func TestTiktokServerErrorIsFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewTiktok(srv.URL, nil).Publish(context.Background(),
		Credential{AccessToken: "tok"}, Content{MediaURLs: []string{"v.mp4"}})
	require.Error(t, err)
}

func TestTiktokRejectsUnsupportedMedia(t *testing.T) {
	p := NewTiktok("http://127.0.0.1:0", nil)

	for _, refs := range [][]string{
		nil,
		{"a.mp4", "b.mp4"},
		{"a.mp4", "b.png"},
	} {
		res, err := p.Publish(context.Background(), Credential{AccessToken: "tok"}, Content{MediaURLs: refs})
		require.NoError(t, err)
		assert.False(t, res.Success, "%v", refs)
	}
}
