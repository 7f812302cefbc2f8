package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type YoutubePublisher struct {
	cfg config.Config
}

func NewYoutubePublisher(cfg config.Config) *YoutubePublisher {
	return &YoutubePublisher{cfg: cfg}
}

func (p *YoutubePublisher) Platform() models.Platform {
	return models.PlatformYoutube
}

// Publish uploads the post's video to YouTube. The Data API has no
// pull-from-URL mode, so the media is staged through a temp file first.
func (p *YoutubePublisher) Publish(ctx context.Context, post *models.ScheduledPost, media []*models.MediaAsset, cred *credentials.Credential) (string, error) {
	if len(media) == 0 {
		return "", terminalErr(models.PlatformYoutube, errors.New("post has no media"))
	}

	token := &oauth2.Token{AccessToken: cred.AccessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return "", retryableErr(models.PlatformYoutube, err)
	}

	tempFile, err := downloadMedia(ctx, media[0].FileURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		slog.Info(err.Error())
		return "", retryableErr(models.PlatformYoutube, err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       post.Title,
			Description: captionWithHashtags(post),
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return "", classifyYoutubeError(err)
	}

	return response.Id, nil
}

func classifyYoutubeError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(models.PlatformYoutube, apiErr.Code, err)
	}
	return retryableErr(models.PlatformYoutube, err)
}

func downloadMedia(ctx context.Context, mediaURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "upload-*.mp4")
	if err != nil {
		return "", retryableErr(models.PlatformYoutube, fmt.Errorf("error creating temporary file: %w", err))
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		os.Remove(tempFile.Name())
		return "", terminalErr(models.PlatformYoutube, err)
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		os.Remove(tempFile.Name())
		return "", retryableErr(models.PlatformYoutube, fmt.Errorf("error downloading media: %w", err))
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		os.Remove(tempFile.Name())
		return "", classifyStatus(models.PlatformYoutube, response.StatusCode, fmt.Errorf("media download returned %d", response.StatusCode))
	}

	if _, err := io.Copy(tempFile, response.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", retryableErr(models.PlatformYoutube, fmt.Errorf("error saving media: %w", err))
	}

	return tempFile.Name(), nil
}
