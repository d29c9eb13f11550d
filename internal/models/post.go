package models

import "time"

type PostStatus string

const (
	PostStatusPending    PostStatus = "pending"
	PostStatusProcessing PostStatus = "processing"
	PostStatusCompleted  PostStatus = "completed"
	PostStatusFailed     PostStatus = "failed"
)

// ValidPostStatus reports whether s is one of the four lifecycle states.
func ValidPostStatus(s PostStatus) bool {
	switch s {
	case PostStatusPending, PostStatusProcessing, PostStatusCompleted, PostStatusFailed:
		return true
	}
	return false
}

// Post is one upload-through-completion unit of work. Image fields hold
// object-store URLs, not raw payloads.
type Post struct {
	ID             string
	UserID         string
	OriginalImage  string
	ProcessedImage *string
	ProductTitle   *string
	Captions       []string
	Hashtags       []string
	Status         PostStatus
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusBadge is the display mapping the dashboard uses for a post's
// lifecycle state.
type StatusBadge struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

// StatusBadges covers every lifecycle state; Badge tests enforce
// totality so a new status cannot ship without a badge.
var StatusBadges = map[PostStatus]StatusBadge{
	PostStatusPending:    {Icon: "clock", Label: "Pending"},
	PostStatusProcessing: {Icon: "sparkles", Label: "Processing"},
	PostStatusCompleted:  {Icon: "check-circle", Label: "Completed"},
	PostStatusFailed:     {Icon: "x-circle", Label: "Failed"},
}
