package serializers

import (
	"time"

	"github.com/studieren/recipe_back/auth"
	"github.com/studieren/recipe_back/models"
)

type RegisterPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=5,max=128"`
	Name     string `json:"name" validate:"max=255"`
}

type TokenPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserPatchPayload changes the caller's own profile.
type UserPatchPayload struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=5,max=128"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

func (p *UserPatchPayload) Update() auth.UserUpdate {
	return auth.UserUpdate{Email: p.Email, Name: p.Name, Password: p.Password}
}

// UserView never includes the password hash.
type UserView struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func NewUserView(u *models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name}
}

type TokenView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewTokenView(token string, claims *auth.Claims) TokenView {
	return TokenView{Token: token, ExpiresAt: claims.ExpiresAt.Time}
}
