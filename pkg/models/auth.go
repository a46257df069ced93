package models

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the second leg of a password reset
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// AuthData is the data payload of a successful register/login call
type AuthData struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}
