package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/devclub/orgsite/internal/hash"
	"github.com/devclub/orgsite/internal/logging"
	"github.com/devclub/orgsite/internal/models"
	"github.com/devclub/orgsite/internal/repo"
	"github.com/devclub/orgsite/internal/tokens"
	"github.com/devclub/orgsite/internal/transport"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

const eventTimeout = 5 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time, meta repo.SessionMeta) (*models.Session, error)
	FindValidSession(ctx context.Context, tokenHash string) (*models.Session, error)
	RotateSession(ctx context.Context, sessionID uint, oldHash, newHash string, expiresAt time.Time, meta repo.SessionMeta) error
	DeleteSessionByHash(ctx context.Context, tokenHash string) (uint, error)
	ListActiveSessions(ctx context.Context, userID uint) ([]models.Session, error)
	DeleteSessionsByUser(ctx context.Context, userID uint) (int64, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type AuthService struct {
	Users      UserStore
	Sessions   SessionStore
	Tokens     *tokens.Issuer
	RefreshTTL time.Duration
	// BcryptCost is the cost stored password hashes were made with.
	BcryptCost int

	Events     EventPublisher
	EventTopic string

	now func() time.Time
}

func (s *AuthService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL <= 0 {
		return tokens.DefaultRefreshTTL
	}
	return s.RefreshTTL
}

// Login verifies the credentials, issues an access token and opens a new refresh session.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest, meta repo.SessionMeta) (*transport.LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	req.Email = repo.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	// validator's max counts runes; bcrypt's limit is in bytes
	if len(req.Password) > hash.MaxPasswordLen {
		return nil, fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, hash.MaxPasswordLen)
	}

	user, err := s.Users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			hash.CheckDummy(req.Password, s.BcryptCost)
			l.Warn("login_failed", "reason", "invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "reason", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	accessToken, accessExp, err := s.Tokens.Issue(user.ID, user.Email, user.RoleNames())
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	refreshToken, err := tokens.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refreshExp := s.clock().Add(s.refreshTTL())
	if _, err := s.Sessions.CreateSession(ctx, user.ID, tokens.HashRefreshToken(refreshToken), refreshExp, meta); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	l.Info("login_success", "user_id", user.ID)
	s.publish(ctx, user.ID, map[string]any{
		"type":   "user_logged_in",
		"UserID": user.ID,
		"ip":     meta.IP,
	})

	return &transport.LoginResult{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
		User:         transport.NewUserSummary(user),
	}, nil
}

// Refresh exchanges a raw refresh token for a new access token and rotates the session,
// so the presented token stops matching any row.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string, meta repo.SessionMeta) (*transport.RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if strings.TrimSpace(rawRefresh) == "" {
		return nil, ErrInvalidRefreshToken
	}
	oldHash := tokens.HashRefreshToken(rawRefresh)

	sess, err := s.Sessions.FindValidSession(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			l.Warn("refresh_failed", "reason", "session_not_found")
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	user, err := s.Users.FindUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("refresh_failed", "reason", "user_not_found", "user_id", sess.UserID)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	accessToken, accessExp, err := s.Tokens.Issue(user.ID, user.Email, user.RoleNames())
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	newRefresh, err := tokens.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	refreshExp := s.clock().Add(s.refreshTTL())
	if err := s.Sessions.RotateSession(ctx, sess.ID, oldHash, tokens.HashRefreshToken(newRefresh), refreshExp, meta); err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			l.Warn("refresh_failed", "reason", "lost_rotation_race", "session_id", sess.ID)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	l.Info("refresh_success", "user_id", user.ID, "session_id", sess.ID)
	s.publish(ctx, user.ID, map[string]any{
		"type":      "session_refreshed",
		"UserID":    user.ID,
		"SessionID": sess.ID,
	})

	return &transport.RefreshResult{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: newRefresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Logout deletes the session for rawRefresh. Store errors are logged and dropped.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) {
	if rawRefresh == "" {
		return
	}
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	userID, err := s.Sessions.DeleteSessionByHash(ctx, tokens.HashRefreshToken(rawRefresh))
	if err != nil {
		l.Error("logout_revoke_failed", "error", err)
		return
	}
	if userID == 0 {
		l.Info("logout_no_session")
		return
	}
	l.Info("logout_success", "user_id", userID)
	s.publish(ctx, userID, map[string]any{
		"type":   "user_logged_out",
		"UserID": userID,
	})
}

// Me re-resolves the user named by already verified access claims.
func (s *AuthService) Me(ctx context.Context, claims *tokens.AccessClaims) (*transport.UserSummary, error) {
	user, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	summary := transport.NewUserSummary(user)
	return &summary, nil
}

func (s *AuthService) ListSessions(ctx context.Context, claims *tokens.AccessClaims) ([]transport.SessionView, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	sessions, err := s.Sessions.ListActiveSessions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]transport.SessionView, 0, len(sessions))
	for i := range sessions {
		out = append(out, transport.NewSessionView(&sessions[i]))
	}
	return out, nil
}

// RevokeUserSessions deletes every refresh session of userID. Access tokens already
// issued to that user remain valid until they expire.
func (s *AuthService) RevokeUserSessions(ctx context.Context, userID uint) (int64, error) {
	n, err := s.Sessions.DeleteSessionsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	logging.FromContext(ctx).Info("sessions_revoked", "user_id", userID, "count", n)
	s.publish(ctx, userID, map[string]any{
		"type":    "sessions_revoked",
		"UserID":  userID,
		"revoked": n,
	})
	return n, nil
}

func (s *AuthService) userFromClaims(ctx context.Context, claims *tokens.AccessClaims) (*models.User, error) {
	if claims == nil {
		return nil, tokens.ErrMissingToken
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.Users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, tokens.ErrInvalidToken
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

func (s *AuthService) publish(ctx context.Context, userID uint, event map[string]any) {
	if s.Events == nil || s.EventTopic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	if err := s.Events.PublishEvent(ctx, s.EventTopic, strconv.FormatUint(uint64(userID), 10), event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "event", event["type"], "error", err)
	}
}
