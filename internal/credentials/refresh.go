package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/transfer"
	"github.com/postflowhq/autopost/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	tiktokTokenURL      = "https://open.tiktokapis.com/v2/oauth/token/"
	instagramRefreshURL = "https://graph.instagram.com/refresh_access_token"
)

func (p *provider) refreshTiktok(ctx context.Context, acc *models.SocialAccount) (*rotatedToken, error) {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	data := url.Values{}
	data.Set("client_key", p.cfg.TiktokClientKey)
	data.Set("client_secret", p.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", p.tiktokTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tiktok token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &rotatedToken{
		accessToken:  tokenResponse.AccessToken,
		refreshToken: tokenResponse.RefreshToken,
		expiresAt:    time.Now().Add(time.Second * time.Duration(tokenResponse.ExpiresIn)),
	}, nil
}

// Instagram long-lived tokens refresh against themselves; there is no
// separate refresh token.
func (p *provider) refreshInstagram(ctx context.Context, acc *models.SocialAccount) (*rotatedToken, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	refreshURL := fmt.Sprintf("%s?grant_type=ig_refresh_token&access_token=%s", p.instagramTokenURL, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", refreshURL, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("instagram refresh endpoint returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &rotatedToken{
		accessToken: result.AccessToken,
		expiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

func (p *provider) refreshYoutube(ctx context.Context, acc *models.SocialAccount) (*rotatedToken, error) {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     p.cfg.GoogleClientID,
		ClientSecret: p.cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &rotatedToken{
		accessToken: token.AccessToken,
		expiresAt:   token.Expiry,
	}, nil
}
