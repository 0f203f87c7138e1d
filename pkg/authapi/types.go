package authapi

import "encoding/json"

// Envelope is the wire shape every marketplace auth endpoint responds with:
// {success, message, data}.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// User is the marketplace account record as returned by the auth API.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsAdmin    bool   `json:"isAdmin"`
	IsPaid     bool   `json:"isPaid"`
	PlanActive bool   `json:"planActive"`
}

// LoginResponse is the data payload of POST /api/auth/login. Either the
// two-factor challenge fields or the user/token pair is present, never both.
type LoginResponse struct {
	Requires2FA bool   `json:"requires2FA,omitempty"`
	TempToken   string `json:"tempToken,omitempty"`
	UserID      string `json:"userId,omitempty"`

	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
}

// SessionResponse is the data payload of endpoints that establish a session
// (POST /api/auth/verify-otp, POST /api/auth/register).
type SessionResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`

	// RequiresEmailVerification is set on registration when the account
	// still needs its email confirmed. The session is established anyway.
	RequiresEmailVerification bool `json:"requiresEmailVerification,omitempty"`
}

// RegisterRequest carries the fields accepted by POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ProfileUpdate is a partial profile change for PUT /api/auth/profile.
// Nil fields are left untouched by the server.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}
