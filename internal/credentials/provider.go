package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/repository"
	"github.com/postflowhq/autopost/pkg/utils"
)

// Credential is what a publisher adapter needs to act on behalf of a user.
type Credential struct {
	AccountID   int64
	PlatformUID string
	AccessToken string
	ExpiresAt   time.Time
}

const (
	ReasonNotConnected  = "account_not_connected"
	ReasonRevoked       = "account_revoked"
	ReasonRefreshFailed = "token_refresh_failed"
)

// Error means a credential could not be produced for a user+platform pair.
// None of the reasons are transient from the dispatcher's point of view, so
// callers treat every credential error as terminal.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credentials: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("credentials: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

type Provider interface {
	Resolve(ctx context.Context, userID int64, platform models.Platform) (*Credential, error)
	RefreshAccount(ctx context.Context, acc *models.SocialAccount) error
}

type provider struct {
	cfg config.Config
	sa  repository.SocialAccountRepository

	tiktokTokenURL    string
	instagramTokenURL string
}

func NewProvider(cfg config.Config, sa repository.SocialAccountRepository) Provider {
	return &provider{
		cfg:               cfg,
		sa:                sa,
		tiktokTokenURL:    tiktokTokenURL,
		instagramTokenURL: instagramRefreshURL,
	}
}

// expirySkew keeps us from handing out a token that expires mid-publish.
const expirySkew = time.Minute

func (p *provider) Resolve(ctx context.Context, userID int64, platform models.Platform) (*Credential, error) {
	// A storage failure is not "no account"; it surfaces untyped so callers
	// can retry instead of treating the account as disconnected.
	acc, err := p.sa.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("loading %s account: %w", platform, err)
	}
	if acc == nil {
		return nil, &Error{Reason: ReasonNotConnected}
	}
	if acc.AccountStatus == models.AccountStatusRevoked {
		return nil, &Error{Reason: ReasonRevoked}
	}

	if time.Until(acc.TokenExpiresAt) < expirySkew {
		if err := p.RefreshAccount(ctx, acc); err != nil {
			return nil, err
		}
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		return nil, &Error{Reason: ReasonRefreshFailed, Err: err}
	}

	return &Credential{
		AccountID:   acc.ID,
		PlatformUID: acc.AccountID,
		AccessToken: accessToken,
		ExpiresAt:   acc.TokenExpiresAt,
	}, nil
}

// RefreshAccount rotates the account's tokens through the platform's token
// endpoint and persists the result. acc is updated in place on success.
func (p *provider) RefreshAccount(ctx context.Context, acc *models.SocialAccount) error {
	var rotated *rotatedToken
	var err error

	switch acc.Platform {
	case models.PlatformTiktok:
		rotated, err = p.refreshTiktok(ctx, acc)
	case models.PlatformInstagram:
		rotated, err = p.refreshInstagram(ctx, acc)
	case models.PlatformYoutube:
		rotated, err = p.refreshYoutube(ctx, acc)
	default:
		err = fmt.Errorf("unknown platform %q", acc.Platform)
	}
	if err != nil {
		slog.Info(err.Error())
		return &Error{Reason: ReasonRefreshFailed, Err: err}
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(rotated.accessToken), []byte(p.cfg.SecretKey))
	if err != nil {
		return &Error{Reason: ReasonRefreshFailed, Err: err}
	}

	encryptedRefreshToken := acc.RefreshToken
	if rotated.refreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(rotated.refreshToken), []byte(p.cfg.SecretKey))
		if err != nil {
			return &Error{Reason: ReasonRefreshFailed, Err: err}
		}
	}

	if err := p.sa.SetToken(ctx, acc.ID, encryptedAccessToken, encryptedRefreshToken, rotated.expiresAt); err != nil {
		return &Error{Reason: ReasonRefreshFailed, Err: err}
	}

	acc.AccessToken = encryptedAccessToken
	acc.RefreshToken = encryptedRefreshToken
	acc.TokenExpiresAt = rotated.expiresAt

	return nil
}

type rotatedToken struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}
