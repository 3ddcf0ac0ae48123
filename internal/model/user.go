package model

import "time"

// User represents a user in the credential store.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Bio          string
	History      []HistoryEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HistoryEntry is one processed file in a user's history log.
type HistoryEntry struct {
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is the authenticated caller, as decoded from a bearer token.
type Identity struct {
	UserID string
	Email  string
}

// ProfileUpdate carries the fields of a partial profile update.
// Empty fields are left untouched.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Bio   string `json:"bio,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == "" && u.Email == "" && u.Phone == "" && u.Bio == ""
}

// SignupRequest represents a user registration request.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SaveHistoryRequest represents a history append request.
type SaveHistoryRequest struct {
	Filename string `json:"filename"`
}

// PublicUser is the subset of a user returned on signup and login.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile is the full user record minus the password hash.
type Profile struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone,omitempty"`
	Bio       string         `json:"bio,omitempty"`
	History   []HistoryEntry `json:"history"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Token   string     `json:"token"`
	User    PublicUser `json:"user"`
}

// ProfileResponse is returned by the profile endpoints.
type ProfileResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	User    Profile `json:"user"`
}

// MessageResponse is a bare acknowledgement, also used for errors.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ToPublic projects a user onto the fields safe to return after login.
func (u *User) ToPublic() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// ToProfile projects a user onto everything except the password hash.
func (u *User) ToProfile() Profile {
	history := u.History
	if history == nil {
		history = []HistoryEntry{}
	}
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Bio:       u.Bio,
		History:   history,
		CreatedAt: u.CreatedAt,
	}
}
