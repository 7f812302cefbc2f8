package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
	"github.com/postflowhq/autopost/internal/repository"
)

type TokenRefreshJob struct {
	sr    repository.SocialAccountRepository
	creds credentials.Provider
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, creds credentials.Provider) *TokenRefreshJob {
	return &TokenRefreshJob{sr: sr, creds: creds}
}

// RefreshTokens rotates tokens for accounts expiring within the next half
// hour so publishes rarely hit the refresh path inline.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.creds.RefreshAccount(ctx, acc); err != nil {
				slog.Info("unable to refresh tokens", "platform", acc.Platform, "account_id", acc.ID, "error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}
