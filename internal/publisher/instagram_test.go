package publisher

import (
	"context"
	"encoding/json"
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

func newTestInstagramPublisher(serverURL string) *InstagramPublisher {
	p := NewInstagramPublisher(config.Config{})
	p.baseURL = serverURL
	return p
}

func igCred() *credentials.Credential {
	return &credentials.Credential{AccountID: 2, PlatformUID: "178414", AccessToken: "ig-token"}
}

func igPost() (*models.ScheduledPost, []*models.MediaAsset) {
	post := &models.ScheduledPost{
		ID:       2,
		UserID:   7,
		Platform: models.PlatformInstagram,
		PostType: models.PostTypeSingle,
		Caption:  "sunset",
	}
	media := []*models.MediaAsset{{ID: 3, FileURL: "https://media.example/s.jpg", FileType: "image/jpeg"}}
	return post, media
}

func TestInstagramPublisher_PublishImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		switch r.URL.Path {
		case "/178414/media":
			assert.Equal(t, "https://media.example/s.jpg", r.PostFormValue("image_url"))
			assert.Equal(t, "sunset", r.PostFormValue("caption"))
			assert.Equal(t, "ig-token", r.PostFormValue("access_token"))
			json.NewEncoder(w).Encode(transfer.InstagramContainerResponse{ID: "container-1"})
		case "/178414/media_publish":
			assert.Equal(t, "container-1", r.PostFormValue("creation_id"))
			json.NewEncoder(w).Encode(transfer.InstagramPublishResponse{ID: "ig-media-9"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	post, media := igPost()
	id, err := newTestInstagramPublisher(server.URL).Publish(context.Background(), post, media, igCred())
	require.NoError(t, err)
	assert.Equal(t, "ig-media-9", id)
}

func TestInstagramPublisher_VideoBecomesReel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		switch r.URL.Path {
		case "/178414/media":
			assert.Equal(t, "REELS", r.PostFormValue("media_type"))
			assert.Equal(t, "https://media.example/r.mp4", r.PostFormValue("video_url"))
			json.NewEncoder(w).Encode(transfer.InstagramContainerResponse{ID: "container-2"})
		case "/178414/media_publish":
			json.NewEncoder(w).Encode(transfer.InstagramPublishResponse{ID: "ig-reel-1"})
		}
	}))
	defer server.Close()

	post, _ := igPost()
	media := []*models.MediaAsset{{ID: 4, FileURL: "https://media.example/r.mp4", FileType: "video/mp4"}}

	id, err := newTestInstagramPublisher(server.URL).Publish(context.Background(), post, media, igCred())
	require.NoError(t, err)
	assert.Equal(t, "ig-reel-1", id)
}

func TestInstagramPublisher_TransientErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		var igErr transfer.InstagramErrorResponse
		igErr.Error.Message = "Please retry your request later"
		igErr.Error.Code = 2
		igErr.Error.IsTransient = true
		json.NewEncoder(w).Encode(igErr)
	}))
	defer server.Close()

	post, media := igPost()
	_, err := newTestInstagramPublisher(server.URL).Publish(context.Background(), post, media, igCred())
	require.Error(t, err)
	assert.True(t, Retryable(err), "graph api transient flag should be honored")
}

func TestInstagramPublisher_PolicyRejectionIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		var igErr transfer.InstagramErrorResponse
		igErr.Error.Message = "Media violates community standards"
		igErr.Error.Code = 352
		json.NewEncoder(w).Encode(igErr)
	}))
	defer server.Close()

	post, media := igPost()
	_, err := newTestInstagramPublisher(server.URL).Publish(context.Background(), post, media, igCred())
	require.Error(t, err)
	assert.False(t, Retryable(err))
}

func TestInstagramPublisher_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	post, media := igPost()
	_, err := newTestInstagramPublisher(server.URL).Publish(context.Background(), post, media, igCred())
	require.Error(t, err)
	assert.True(t, Retryable(err))
}
