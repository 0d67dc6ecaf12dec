package user

import (
	"time"

	"github.com/MikeMC777/buildmart/internal/auth"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         auth.Role `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// swagger:model RegisterRequest
type RegisterRequest struct {
	Username string    `json:"username" example:"ana"`
	Email    string    `json:"email"    example:"ana@example.com"`
	Password string    `json:"password" example:"s3cretpass"`
	Role     auth.Role `json:"role"     example:"buyer"`
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// swagger:model LoginResponse
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// UpdateRequest changes the caller's profile; empty fields are kept.
// swagger:model UpdateUserRequest
type UpdateRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}
