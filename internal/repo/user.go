package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/devclub/orgsite/internal/models"
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *GormRepo) withProfile(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Preload("Roles").Preload("Member")
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.withProfile(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.withProfile(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UpsertUser creates the user for email or updates its password hash, replaces its
// roles with roleNames and, when member is non-nil, links that profile.
func (r *GormRepo) UpsertUser(ctx context.Context, email, passwordHash string, roleNames []string, member *models.Member) (*models.User, error) {
	email = NormalizeEmail(email)
	var user models.User

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := make([]models.Role, 0, len(roleNames))
		for _, name := range roleNames {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			role := models.Role{Name: name}
			if err := tx.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("role %q: %w", name, err)
			}
			roles = append(roles, role)
		}

		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Email: email, PasswordHash: passwordHash}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find user: %w", err)
		default:
			if err := tx.Model(&user).Update("password_hash", passwordHash).Error; err != nil {
				return fmt.Errorf("update password: %w", err)
			}
		}

		if member != nil {
			if err := linkMember(tx, &user, member); err != nil {
				return err
			}
		}

		assoc := tx.Model(&user).Association("Roles")
		if len(roles) == 0 {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(roles)
		}
		if err != nil {
			return fmt.Errorf("replace roles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindUserByID(ctx, user.ID)
}

func linkMember(tx *gorm.DB, user *models.User, member *models.Member) error {
	if user.MemberID != nil {
		err := tx.Model(&models.Member{ID: *user.MemberID}).
			Updates(map[string]any{"name": member.Name, "title": member.Title}).Error
		if err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	}
	if err := tx.Create(member).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	if err := tx.Model(user).Update("member_id", member.ID).Error; err != nil {
		return fmt.Errorf("link member: %w", err)
	}
	return nil
}
