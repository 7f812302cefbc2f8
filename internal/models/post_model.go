package models

import (
	"database/sql"
	"time"
)

type Platform string

const (
	PlatformTiktok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYoutube   Platform = "youtube"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformTiktok, PlatformInstagram, PlatformYoutube:
		return true
	}
	return false
}

const (
	PostStatusScheduled = "scheduled"
	PostStatusClaimed   = "claimed"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
	PostStatusCancelled = "cancelled"
)

type ScheduledPost struct {
	ID             int64          `db:"id" json:"id"`
	UserID         int64          `db:"user_id" json:"user_id"`
	Platform       Platform       `db:"platform" json:"platform"`
	PostType       string         `db:"post_type" json:"post_type"`
	Caption        string         `db:"caption" json:"caption"`
	Title          string         `db:"title" json:"title"`
	Hashtags       string         `db:"hashtags" json:"hashtags"`
	ScheduledAt    time.Time      `db:"scheduled_at" json:"scheduled_at"`
	Status         string         `db:"status" json:"status"`
	Attempts       int            `db:"attempts" json:"attempts"`
	LastError      sql.NullString `db:"last_error" json:"last_error"`
	PlatformPostID sql.NullString `db:"platform_post_id" json:"platform_post_id"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	FileName  string    `db:"file_name"`
	FileType  string    `db:"file_type"`
	FileSize  int64     `db:"file_size"`
	FileURL   string    `db:"file_url"`
	CreatedAt time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostTypeSingle   = "single"
	PostTypeMultiple = "multiple"
)
