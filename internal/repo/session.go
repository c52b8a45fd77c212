package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/devclub/orgsite/internal/models"
)

type SessionMeta struct {
	UserAgent string
	IP        string
}

func (r *GormRepo) CreateSession(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time, meta SessionMeta) (*models.Session, error) {
	s := models.Session{
		UserID:    userID,
		TokenHash: tokenHash,
		UserAgent: truncate(meta.UserAgent, 512),
		IP:        truncate(meta.IP, 64),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := r.DB.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &s, nil
}

// FindValidSession returns the session holding tokenHash if it has not expired.
func (r *GormRepo) FindValidSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	var s models.Session
	if err := r.DB.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !s.Valid(time.Now().UTC()) {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// RotateSession swaps the stored hash in place. The update is conditional on oldHash,
// so of two concurrent rotations of the same token only the first one matches a row.
func (r *GormRepo) RotateSession(ctx context.Context, sessionID uint, oldHash, newHash string, expiresAt time.Time, meta SessionMeta) error {
	res := r.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND token_hash = ?", sessionID, oldHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": expiresAt.UTC(),
			"user_agent": truncate(meta.UserAgent, 512),
			"ip":         truncate(meta.IP, 64),
		})
	if res.Error != nil {
		return fmt.Errorf("rotate session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSessionByHash removes the session holding tokenHash and returns its owner.
// A zero user id means no row matched.
func (r *GormRepo) DeleteSessionByHash(ctx context.Context, tokenHash string) (uint, error) {
	var s models.Session
	res := r.DB.WithContext(ctx).Where("token_hash = ?", tokenHash).Limit(1).Find(&s)
	if res.Error != nil {
		return 0, fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}

	res = r.DB.WithContext(ctx).Where("id = ? AND token_hash = ?", s.ID, tokenHash).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	return s.UserID, nil
}

func (r *GormRepo) ListActiveSessions(ctx context.Context, userID uint) ([]models.Session, error) {
	var sessions []models.Session
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, time.Now().UTC()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (r *GormRepo) DeleteSessionsByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete user sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
