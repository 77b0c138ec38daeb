package model

import (
	"strings"
	"time"
)

// User mirrors the account record owned by the account service.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	Email      string `gorm:"uniqueIndex"`
	Name       string
	Nickname   string
	TelegramID *int64 `gorm:"uniqueIndex"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName falls back from the profile name to the nickname and then
// to the local part of the email address.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if nick := strings.TrimSpace(u.Nickname); nick != "" {
		return nick
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return strings.TrimSpace(local)
}
