package v1

import "time"

type User struct {
	ID               int64          `json:"id,omitempty"`
	Username         string         `json:"username,omitempty"`
	FirstName        string         `json:"first_name,omitempty"`
	LastName         string         `json:"last_name,omitempty"`
	TelegramChatID   *int64         `json:"telegram_chat_id,omitempty"`
	Email            *string        `json:"email,omitempty"`
	Phone            *string        `json:"phone,omitempty"`
	Extras           map[string]any `json:"extras,omitempty"`
	Paid             bool           `json:"paid"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	IsRegistered     bool           `json:"is_registered"`
	RegistrationStep *int64         `json:"registration_step,omitempty"`
	IsSuperuser      bool           `json:"is_superuser"`
	Password         string         `json:"password,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
}

// CleanupResult is returned by the bulk cleanup actions.
type CleanupResult struct {
	Action  string `json:"action"`
	Updated int    `json:"updated"`
	Detail  string `json:"detail,omitempty"`
}

type DailyStat struct {
	Day               string `json:"day"`
	Registrations     int    `json:"registrations"`
	PaidRegistrations int    `json:"paid_registrations"`
}

type UsersStats struct {
	TotalUsers int         `json:"total_users"`
	PaidUsers  int         `json:"paid_users"`
	DailyStats []DailyStat `json:"daily_stats"`
}
