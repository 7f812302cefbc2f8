package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTiktokPublisher(serverURL string) *TiktokPublisher {
	p := NewTiktokPublisher(config.Config{})
	p.baseURL = serverURL
	return p
}

func tiktokCred() *credentials.Credential {
	return &credentials.Credential{AccountID: 1, PlatformUID: "open-id-1", AccessToken: "tt-token"}
}

func singleVideoPost() (*models.ScheduledPost, []*models.MediaAsset) {
	post := &models.ScheduledPost{
		ID:       1,
		UserID:   7,
		Platform: models.PlatformTiktok,
		PostType: models.PostTypeSingle,
		Caption:  "big news",
		Hashtags: "#news",
	}
	media := []*models.MediaAsset{{ID: 1, FileURL: "https://media.example/v.mp4", FileType: "video/mp4"}}
	return post, media
}

func TestTiktokPublisher_PublishVideo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/post/publish/video/init/", r.URL.Path)
		assert.Equal(t, "Bearer tt-token", r.Header.Get("Authorization"))

		var req transfer.VideoUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "big news\n#news", req.PostInfo.Title)
		assert.Equal(t, "PULL_FROM_URL", req.SourceInfo.Source)
		assert.Equal(t, "https://media.example/v.mp4", req.SourceInfo.VideoURL)

		json.NewEncoder(w).Encode(transfer.TiktokUploadResponse{
			Data: transfer.TiktokPublishData{PublishID: "v.publish.123"},
		})
	}))
	defer server.Close()

	post, media := singleVideoPost()
	id, err := newTestTiktokPublisher(server.URL).Publish(context.Background(), post, media, tiktokCred())
	require.NoError(t, err)
	assert.Equal(t, "v.publish.123", id)
}

func TestTiktokPublisher_PublishPhotos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/post/publish/content/init/", r.URL.Path)

		var req transfer.PhotoUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "DIRECT_POST", req.PostMode)
		assert.Len(t, req.SourceInfo.PhotoImages, 2)

		json.NewEncoder(w).Encode(transfer.TiktokUploadResponse{
			Data: transfer.TiktokPublishData{PublishID: "p.publish.456"},
		})
	}))
	defer server.Close()

	post, _ := singleVideoPost()
	post.PostType = models.PostTypeMultiple
	media := []*models.MediaAsset{
		{ID: 1, FileURL: "https://media.example/a.jpg", FileType: "image/jpeg"},
		{ID: 2, FileURL: "https://media.example/b.jpg", FileType: "image/jpeg"},
	}

	id, err := newTestTiktokPublisher(server.URL).Publish(context.Background(), post, media, tiktokCred())
	require.NoError(t, err)
	assert.Equal(t, "p.publish.456", id)
}

func TestTiktokPublisher_RateLimitIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(transfer.TiktokUploadResponse{
			Error: transfer.TiktokError{Code: "rate_limit_exceeded", Message: "slow down"},
		})
	}))
	defer server.Close()

	post, media := singleVideoPost()
	_, err := newTestTiktokPublisher(server.URL).Publish(context.Background(), post, media, tiktokCred())
	require.Error(t, err)
	assert.True(t, Retryable(err))

	var pubErr *Error
	require.True(t, errors.As(err, &pubErr))
	assert.Contains(t, pubErr.Err.Error(), "slow down")
}

func TestTiktokPublisher_InvalidContentIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(transfer.TiktokUploadResponse{
			Error: transfer.TiktokError{Code: "invalid_params", Message: "unsupported video format"},
		})
	}))
	defer server.Close()

	post, media := singleVideoPost()
	_, err := newTestTiktokPublisher(server.URL).Publish(context.Background(), post, media, tiktokCred())
	require.Error(t, err)
	assert.False(t, Retryable(err))
}

func TestTiktokPublisher_NonJSONErrorBodyKeepsStatusClassification(t *testing.T) {
	// Gateways in front of the API return plain-text error pages; the
	// status code still decides retryability.
	t.Run("plain text 400 is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("<html>Bad Request</html>"))
		}))
		defer server.Close()

		post, media := singleVideoPost()
		_, err := newTestTiktokPublisher(server.URL).Publish(context.Background(), post, media, tiktokCred())
		require.Error(t, err)
		assert.False(t, Retryable(err))
	})

	t.Run("plain text 503 is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service Unavailable"))
		}))
		defer server.Close()

		post, media := singleVideoPost()
		_, err := newTestTiktokPublisher(server.URL).Publish(context.Background(), post, media, tiktokCred())
		require.Error(t, err)
		assert.True(t, Retryable(err))
	})
}

func TestTiktokPublisher_NoMediaIsTerminal(t *testing.T) {
	post, _ := singleVideoPost()
	_, err := NewTiktokPublisher(config.Config{}).Publish(context.Background(), post, nil, tiktokCred())
	require.Error(t, err)
	assert.False(t, Retryable(err))
}
