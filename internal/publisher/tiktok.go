package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/transfer"
)

const tiktokAPIBase = "https://open.tiktokapis.com"

type TiktokPublisher struct {
	cfg     config.Config
	baseURL string
	client  *http.Client
}

func NewTiktokPublisher(cfg config.Config) *TiktokPublisher {
	return &TiktokPublisher{
		cfg:     cfg,
		baseURL: tiktokAPIBase,
		client:  &http.Client{},
	}
}

func (p *TiktokPublisher) Platform() models.Platform {
	return models.PlatformTiktok
}

func (p *TiktokPublisher) Publish(ctx context.Context, post *models.ScheduledPost, media []*models.MediaAsset, cred *credentials.Credential) (string, error) {
	if len(media) == 0 {
		return "", terminalErr(models.PlatformTiktok, errors.New("post has no media"))
	}

	if post.PostType == models.PostTypeMultiple {
		return p.publishPhotos(ctx, post, media, cred)
	}
	return p.publishVideo(ctx, post, media[0], cred)
}

func (p *TiktokPublisher) publishVideo(ctx context.Context, post *models.ScheduledPost, video *models.MediaAsset, cred *credentials.Credential) (string, error) {
	request := transfer.VideoUploadRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 captionWithHashtags(post),
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: video.FileURL,
		},
	}

	return p.initPublish(ctx, "/v2/post/publish/video/init/", request, cred)
}

func (p *TiktokPublisher) publishPhotos(ctx context.Context, post *models.ScheduledPost, media []*models.MediaAsset, cred *credentials.Credential) (string, error) {
	photos := make([]string, 0, len(media))
	for _, asset := range media {
		photos = append(photos, asset.FileURL)
	}

	request := transfer.PhotoUploadRequest{
		PostInfo: transfer.PhotoPostInfo{
			Title:        post.Title,
			Description:  captionWithHashtags(post),
			PrivacyLevel: "PUBLIC_TO_EVERYONE",
			AutoAddMusic: true,
		},
		SourceInfo: transfer.PhotoSourceInfo{
			Source:          "PULL_FROM_URL",
			PhotoCoverIndex: 0,
			PhotoImages:     photos,
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}

	return p.initPublish(ctx, "/v2/post/publish/content/init/", request, cred)
}

func (p *TiktokPublisher) initPublish(ctx context.Context, path string, payload any, cred *credentials.Credential) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", terminalErr(models.PlatformTiktok, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", terminalErr(models.PlatformTiktok, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", retryableErr(models.PlatformTiktok, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Error bodies are not always JSON; the status code alone decides
		// the classification.
		var errResult transfer.TiktokUploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResult); err == nil && errResult.Error.Message != "" {
			wrapped := fmt.Errorf("tiktok returned %d: %s (%s)", resp.StatusCode, errResult.Error.Message, errResult.Error.Code)
			return "", classifyStatus(models.PlatformTiktok, resp.StatusCode, wrapped)
		}
		return "", classifyStatus(models.PlatformTiktok, resp.StatusCode, fmt.Errorf("tiktok returned %d", resp.StatusCode))
	}

	var result transfer.TiktokUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", retryableErr(models.PlatformTiktok, err)
	}

	if result.Data.PublishID == "" {
		return "", terminalErr(models.PlatformTiktok, fmt.Errorf("tiktok accepted the request without a publish id: %s", result.Error.Message))
	}

	return result.Data.PublishID, nil
}

func captionWithHashtags(post *models.ScheduledPost) string {
	if post.Hashtags == "" {
		return post.Caption
	}
	return post.Caption + "\n" + post.Hashtags
}
