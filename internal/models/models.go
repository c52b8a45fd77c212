package models

import (
	"time"
)

type Member struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null"                 json:"name"`
	Title     string    `                                json:"title"`
	CreatedAt time.Time `                                json:"created_at"`
	UpdatedAt time.Time `                                json:"updated_at"`
}

type Role struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"    json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"        json:"email"`
	PasswordHash string    `gorm:"not null"                    json:"-"`
	MemberID     *uint     `gorm:"index"                       json:"member_id"`
	Member       *Member   `gorm:"foreignKey:MemberID"         json:"member,omitempty"`
	Roles        []Role    `gorm:"many2many:user_roles;"       json:"roles"`
	CreatedAt    time.Time `                                   json:"created_at"`
	UpdatedAt    time.Time `                                   json:"updated_at"`
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Session is one issued refresh token. Only the SHA-256 of the raw token is stored.
type Session struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	UserID    uint      `gorm:"index;not null"            json:"user_id"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserAgent string    `gorm:"size:512"                  json:"user_agent"`
	IP        string    `gorm:"size:64"                   json:"ip"`
	ExpiresAt time.Time `gorm:"index;not null"            json:"expires_at"`
	CreatedAt time.Time `                                 json:"created_at"`
	UpdatedAt time.Time `                                 json:"updated_at"`
}

func (s *Session) Valid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
