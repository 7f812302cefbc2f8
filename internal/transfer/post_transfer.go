package transfer

import "time"

type PostCreation struct {
	Platform      string
	Caption       string
	Title         string
	Hashtags      string
	ScheduledTime string
}

// PostStatus is the read-only projection dashboards poll. It never exposes
// tokens or internal claim bookkeeping.
type PostStatus struct {
	ID             int64     `json:"id"`
	Platform       string    `json:"platform"`
	Caption        string    `json:"caption"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error,omitempty"`
	PlatformPostID string    `json:"platform_post_id,omitempty"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
