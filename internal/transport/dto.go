package transport

import (
	"time"

	"github.com/devclub/orgsite/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type MemberSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

type UserSummary struct {
	ID     uint           `json:"id"`
	Email  string         `json:"email"`
	Roles  []string       `json:"roles"`
	Member *MemberSummary `json:"member"`
}

func NewUserSummary(u *models.User) UserSummary {
	s := UserSummary{
		ID:    u.ID,
		Email: u.Email,
		Roles: u.RoleNames(),
	}
	if u.Member != nil {
		s.Member = &MemberSummary{ID: u.Member.ID, Name: u.Member.Name, Title: u.Member.Title}
	}
	return s
}

type SessionView struct {
	ID        uint      `json:"id"`
	UserAgent string    `json:"userAgent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewSessionView(s *models.Session) SessionView {
	return SessionView{
		ID:        s.ID,
		UserAgent: s.UserAgent,
		IP:        s.IP,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

type LoginResult struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	User         UserSummary
}

type RefreshResult struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}
