package model

import "time"

// AdminUser is an operator account allowed to use the admin API.
type AdminUser struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	IsSuperuser  bool      `gorm:"not null;default:false" json:"is_superuser"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}
