// Package auth handles users, passwords, access tokens and their revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studieren/recipe_back/logging"
	"github.com/studieren/recipe_back/metrics"
	"github.com/studieren/recipe_back/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password and inactive users alike.
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrUserInactive       = errors.New("user is inactive")
)

// Service owns user persistence and the token lifecycle.
type Service struct {
	db         *gorm.DB
	tokens     *TokenManager
	revoked    RevocationStore
	bcryptCost int
}

func NewService(db *gorm.DB, tokens *TokenManager, revoked RevocationStore, bcryptCost int) *Service {
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	return &Service{
		db:         db,
		tokens:     tokens,
		revoked:    revoked,
		bcryptCost: bcryptCost,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active user.
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        NormalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logging.Ctx(ctx).Info().Uint("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Authenticate checks credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.RecordAuthFailure("unknown_user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.RecordAuthFailure("bad_password")
		}
		return nil, err
	}
	if !user.IsActive {
		metrics.RecordAuthFailure("inactive_user")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		logging.Ctx(ctx).Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	}
	user.LastLogin = &now
	return &user, nil
}

// IssueToken signs a token for user.
func (s *Service) IssueToken(user *models.User) (string, *Claims, error) {
	return s.tokens.Issue(user.ID)
}

// Verify parses a bearer token, rejects revoked ones and loads its active user.
func (s *Service) Verify(ctx context.Context, tokenString string) (*models.User, *Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrTokenRevoked
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}
	return &user, claims, nil
}

// Logout revokes the token described by claims for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Uint("user_id", claims.UserID).Str("jti", claims.ID).Msg("token revoked")
	return nil
}

// UserUpdate holds the fields of a profile change. Nil fields are left as they are.
type UserUpdate struct {
	Email    *string
	Name     *string
	Password *string
}

// Update applies u to user and saves it.
func (s *Service) Update(ctx context.Context, user *models.User, u UserUpdate) error {
	if u.Email != nil {
		user.Email = NormalizeEmail(*u.Email)
	}
	if u.Name != nil {
		user.Name = strings.TrimSpace(*u.Name)
	}
	if u.Password != nil {
		hash, err := HashPassword(*u.Password, s.bcryptCost)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
