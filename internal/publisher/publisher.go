package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/models"
)

// Publisher performs exactly one publish operation against one platform.
// The returned string is the platform's identifier for the published post.
// Adapters own the mapping to the platform wire format and the retryable
// vs terminal classification of their failures; callers never need
// platform-specific knowledge beyond that.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, post *models.ScheduledPost, media []*models.MediaAsset, cred *credentials.Credential) (string, error)
}

// Error is a classified publish failure.
type Error struct {
	Platform  models.Platform
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s publish: %v", e.Platform, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func retryableErr(platform models.Platform, err error) error {
	return &Error{Platform: platform, Retryable: true, Err: err}
}

func terminalErr(platform models.Platform, err error) error {
	return &Error{Platform: platform, Retryable: false, Err: err}
}

// Retryable reports whether a publish failure is worth requeueing with
// backoff. Timeouts and other transport-level failures count as retryable
// even when the adapter did not classify them.
func Retryable(err error) bool {
	var pubErr *Error
	if errors.As(err, &pubErr) {
		return pubErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// retryableStatus classifies an HTTP response code: rate limits, request
// timeouts and server-side failures are transient, everything else in 4xx
// means the request itself will never succeed.
func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 500:
		return true
	}
	return false
}

func classifyStatus(platform models.Platform, code int, err error) error {
	if retryableStatus(code) {
		return retryableErr(platform, err)
	}
	return terminalErr(platform, err)
}

// Registry selects the adapter for a post's target platform.
type Registry struct {
	publishers map[models.Platform]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	m := make(map[models.Platform]Publisher, len(publishers))
	for _, p := range publishers {
		m[p.Platform()] = p
	}
	return &Registry{publishers: m}
}

func (r *Registry) Lookup(platform models.Platform) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}
