package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/transfer"
	"github.com/postflowhq/autopost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type fakeAccountRepo struct {
	accounts map[int64]*models.SocialAccount
	getErr   error

	setTokenCalls int
}

func newFakeAccountRepo(accounts ...*models.SocialAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[int64]*models.SocialAccount)}
	for _, acc := range accounts {
		r.accounts[acc.ID] = acc
	}
	return r
}

func (r *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, acc := range r.accounts {
		if acc.UserID == userID && acc.Platform == platform {
			return acc, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, acc := range r.accounts {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, acc := range r.accounts {
		if acc.AccountStatus != models.AccountStatusActive {
			continue
		}
		if !acc.TokenExpiresAt.Before(initialTime) && !acc.TokenExpiresAt.After(finalTime) {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) SetToken(ctx context.Context, accountID int64, accessToken, refreshToken string, expiresAt time.Time) error {
	acc, ok := r.accounts[accountID]
	if !ok {
		return errors.New("account not found")
	}
	acc.AccessToken = accessToken
	acc.RefreshToken = refreshToken
	acc.TokenExpiresAt = expiresAt
	r.setTokenCalls++
	return nil
}

func (r *fakeAccountRepo) SetStatus(ctx context.Context, accountID int64, status string) error {
	acc, ok := r.accounts[accountID]
	if !ok {
		return errors.New("account not found")
	}
	acc.AccountStatus = status
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	delete(r.accounts, id)
	return nil
}

func encrypt(t *testing.T, plaintext string) string {
	t.Helper()
	out, err := utils.Encrypt([]byte(plaintext), []byte(testSecretKey))
	require.NoError(t, err)
	return out
}

func tiktokAccount(t *testing.T, expiresAt time.Time) *models.SocialAccount {
	t.Helper()
	return &models.SocialAccount{
		ID:             1,
		UserID:         42,
		Platform:       models.PlatformTiktok,
		AccountID:      "tt-uid-1",
		AccessToken:    encrypt(t, "live-access-token"),
		RefreshToken:   encrypt(t, "live-refresh-token"),
		TokenExpiresAt: expiresAt,
		AccountStatus:  models.AccountStatusActive,
	}
}

func newTestProvider(repo *fakeAccountRepo) *provider {
	return &provider{
		cfg: config.Config{SecretKey: testSecretKey},
		sa:  repo,
	}
}

func TestProvider_ResolveFreshToken(t *testing.T) {
	repo := newFakeAccountRepo(tiktokAccount(t, time.Now().Add(time.Hour)))
	p := newTestProvider(repo)

	cred, err := p.Resolve(context.Background(), 42, models.PlatformTiktok)
	require.NoError(t, err)

	assert.Equal(t, int64(1), cred.AccountID)
	assert.Equal(t, "tt-uid-1", cred.PlatformUID)
	assert.Equal(t, "live-access-token", cred.AccessToken)
	assert.Zero(t, repo.setTokenCalls, "fresh tokens should not be refreshed")
}

func TestProvider_ResolveNotConnected(t *testing.T) {
	p := newTestProvider(newFakeAccountRepo())

	_, err := p.Resolve(context.Background(), 42, models.PlatformTiktok)
	require.Error(t, err)

	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ReasonNotConnected, credErr.Reason)
}

func TestProvider_ResolveStoreFailureIsNotNotConnected(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.getErr = errors.New("connection refused")
	p := newTestProvider(repo)

	_, err := p.Resolve(context.Background(), 42, models.PlatformTiktok)
	require.Error(t, err)

	// Storage errors stay untyped so callers can retry them.
	var credErr *Error
	assert.False(t, errors.As(err, &credErr))
	assert.ErrorIs(t, err, repo.getErr)
}

func TestProvider_ResolveRevokedAccount(t *testing.T) {
	acc := tiktokAccount(t, time.Now().Add(time.Hour))
	acc.AccountStatus = models.AccountStatusRevoked
	p := newTestProvider(newFakeAccountRepo(acc))

	_, err := p.Resolve(context.Background(), 42, models.PlatformTiktok)
	require.Error(t, err)

	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ReasonRevoked, credErr.Reason)
}

func TestProvider_ResolveRefreshesExpiringToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		assert.Equal(t, "live-refresh-token", r.PostFormValue("refresh_token"))

		json.NewEncoder(w).Encode(transfer.TiktokTokenResponse{
			AccessToken:  "rotated-access-token",
			RefreshToken: "rotated-refresh-token",
			ExpiresIn:    86400,
		})
	}))
	defer server.Close()

	repo := newFakeAccountRepo(tiktokAccount(t, time.Now().Add(10*time.Second)))
	p := newTestProvider(repo)
	p.tiktokTokenURL = server.URL

	cred, err := p.Resolve(context.Background(), 42, models.PlatformTiktok)
	require.NoError(t, err)

	assert.Equal(t, "rotated-access-token", cred.AccessToken)
	assert.Equal(t, 1, repo.setTokenCalls)

	// Stored tokens stay encrypted at rest.
	stored := repo.accounts[1]
	assert.NotEqual(t, "rotated-access-token", stored.AccessToken)

	decrypted, err := utils.Decrypt(stored.RefreshToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "rotated-refresh-token", decrypted)
}

func TestProvider_RefreshFailureIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	repo := newFakeAccountRepo(tiktokAccount(t, time.Now().Add(10*time.Second)))
	p := newTestProvider(repo)
	p.tiktokTokenURL = server.URL

	_, err := p.Resolve(context.Background(), 42, models.PlatformTiktok)
	require.Error(t, err)

	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ReasonRefreshFailed, credErr.Reason)
	assert.Zero(t, repo.setTokenCalls)
}

func TestProvider_RefreshAccountInstagram(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ig_refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "ig-long-lived", r.URL.Query().Get("access_token"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ig-long-lived-rotated",
			"token_type":   "bearer",
			"expires_in":   5184000,
		})
	}))
	defer server.Close()

	acc := &models.SocialAccount{
		ID:             2,
		UserID:         42,
		Platform:       models.PlatformInstagram,
		AccountID:      "178414",
		AccessToken:    encrypt(t, "ig-long-lived"),
		TokenExpiresAt: time.Now().Add(time.Hour),
		AccountStatus:  models.AccountStatusActive,
	}
	repo := newFakeAccountRepo(acc)
	p := newTestProvider(repo)
	p.instagramTokenURL = server.URL

	require.NoError(t, p.RefreshAccount(context.Background(), acc))

	decrypted, err := utils.Decrypt(acc.AccessToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "ig-long-lived-rotated", decrypted)
	assert.Equal(t, 1, repo.setTokenCalls)
}
