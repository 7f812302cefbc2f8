package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/transfer"
)

const instagramAPIBase = "https://graph.instagram.com/v21.0"

// InstagramPublisher drives the two-step Graph API flow: create a media
// container, then publish it.
type InstagramPublisher struct {
	cfg     config.Config
	baseURL string
	client  *http.Client
}

func NewInstagramPublisher(cfg config.Config) *InstagramPublisher {
	return &InstagramPublisher{
		cfg:     cfg,
		baseURL: instagramAPIBase,
		client:  &http.Client{},
	}
}

func (p *InstagramPublisher) Platform() models.Platform {
	return models.PlatformInstagram
}

func (p *InstagramPublisher) Publish(ctx context.Context, post *models.ScheduledPost, media []*models.MediaAsset, cred *credentials.Credential) (string, error) {
	if len(media) == 0 {
		return "", terminalErr(models.PlatformInstagram, errors.New("post has no media"))
	}

	containerID, err := p.createContainer(ctx, post, media[0], cred)
	if err != nil {
		return "", err
	}

	return p.publishContainer(ctx, containerID, cred)
}

func (p *InstagramPublisher) createContainer(ctx context.Context, post *models.ScheduledPost, asset *models.MediaAsset, cred *credentials.Credential) (string, error) {
	params := url.Values{}
	params.Set("caption", captionWithHashtags(post))
	params.Set("access_token", cred.AccessToken)

	if strings.HasPrefix(asset.FileType, "video/") {
		params.Set("media_type", "REELS")
		params.Set("video_url", asset.FileURL)
	} else {
		params.Set("image_url", asset.FileURL)
	}

	endpoint := fmt.Sprintf("%s/%s/media", p.baseURL, cred.PlatformUID)

	var result transfer.InstagramContainerResponse
	if err := p.post(ctx, endpoint, params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", terminalErr(models.PlatformInstagram, errors.New("instagram returned an empty container id"))
	}

	return result.ID, nil
}

func (p *InstagramPublisher) publishContainer(ctx context.Context, containerID string, cred *credentials.Credential) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)
	params.Set("access_token", cred.AccessToken)

	endpoint := fmt.Sprintf("%s/%s/media_publish", p.baseURL, cred.PlatformUID)

	var result transfer.InstagramPublishResponse
	if err := p.post(ctx, endpoint, params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", terminalErr(models.PlatformInstagram, errors.New("instagram returned an empty media id"))
	}

	return result.ID, nil
}

func (p *InstagramPublisher) post(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return terminalErr(models.PlatformInstagram, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return retryableErr(models.PlatformInstagram, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var igErr transfer.InstagramErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&igErr); err == nil && igErr.Error.Message != "" {
			wrapped := fmt.Errorf("instagram returned %d: %s (code %d)", resp.StatusCode, igErr.Error.Message, igErr.Error.Code)
			// The Graph API marks transient failures explicitly.
			if igErr.Error.IsTransient {
				return retryableErr(models.PlatformInstagram, wrapped)
			}
			return classifyStatus(models.PlatformInstagram, resp.StatusCode, wrapped)
		}
		return classifyStatus(models.PlatformInstagram, resp.StatusCode, fmt.Errorf("instagram returned %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retryableErr(models.PlatformInstagram, err)
	}
	return nil
}
