package publisher

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable publish error", retryableErr(models.PlatformTiktok, errors.New("rate limited")), true},
		{"terminal publish error", terminalErr(models.PlatformTiktok, errors.New("policy violation")), false},
		{"wrapped publish error", errors.Join(errors.New("outer"), terminalErr(models.PlatformInstagram, errors.New("bad media"))), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"plain error", errors.New("who knows"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(http.StatusTooManyRequests))
	assert.True(t, retryableStatus(http.StatusRequestTimeout))
	assert.True(t, retryableStatus(http.StatusInternalServerError))
	assert.True(t, retryableStatus(http.StatusBadGateway))

	assert.False(t, retryableStatus(http.StatusBadRequest))
	assert.False(t, retryableStatus(http.StatusUnauthorized))
	assert.False(t, retryableStatus(http.StatusForbidden))
	assert.False(t, retryableStatus(http.StatusNotFound))
}

type staticPublisher struct {
	platform models.Platform
}

func (p staticPublisher) Platform() models.Platform { return p.platform }

func (p staticPublisher) Publish(ctx context.Context, post *models.ScheduledPost, media []*models.MediaAsset, cred *credentials.Credential) (string, error) {
	return "", nil
}

func TestRegistry_Lookup(t *testing.T) {
	registry := NewRegistry(
		staticPublisher{platform: models.PlatformTiktok},
		staticPublisher{platform: models.PlatformYoutube},
	)

	pub, ok := registry.Lookup(models.PlatformTiktok)
	assert.True(t, ok)
	assert.Equal(t, models.PlatformTiktok, pub.Platform())

	_, ok = registry.Lookup(models.PlatformInstagram)
	assert.False(t, ok)
}

func TestCaptionWithHashtags(t *testing.T) {
	post := &models.ScheduledPost{Caption: "launch day"}
	assert.Equal(t, "launch day", captionWithHashtags(post))

	post.Hashtags = "#golang #launch"
	assert.Equal(t, "launch day\n#golang #launch", captionWithHashtags(post))
}
