package dto

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/model"
	"github.com/google/uuid"
)

type RegisterDTO struct {
	Name            string `json:"name"             validate:"required,min=2"`
	Username        string `json:"username"         validate:"required,username"`
	Email           string `json:"email"            validate:"required,email"`
	Password        string `json:"password"         validate:"required,strongpwd"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type LoginDTO struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required"`
}

type RegisterResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

type LoginResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

type ProfileResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewRegisterResponse(u model.User) RegisterResponse {
	return RegisterResponse{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email}
}

func NewLoginResponse(u model.User) LoginResponse {
	return LoginResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func NewProfileResponse(u model.User) ProfileResponse {
	return ProfileResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
