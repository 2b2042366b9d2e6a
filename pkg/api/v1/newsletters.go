package v1

import "time"

type NewsletterImage struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

type Newsletter struct {
	ID          int64            `json:"id,omitempty"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Channel     string           `json:"channel,omitempty"`
	OnlyPaid    bool             `json:"only_paid"`
	Status      string           `json:"status,omitempty"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty"`
	Total       int              `json:"total,omitempty"`
	Progress    float64          `json:"progress,omitempty"`
	Image       *NewsletterImage `json:"image,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
	SentAt      *time.Time       `json:"sent_at,omitempty"`
}

type NewsletterProgress struct {
	ID       int64   `json:"id"`
	Progress float64 `json:"progress"`
}

type NewsletterTask struct {
	ID           int64      `json:"id"`
	Newsletter   int64      `json:"newsletter"`
	User         int64      `json:"user"`
	Status       string     `json:"status"`
	ChannelSent  string     `json:"channel_sent,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}
