package model

import "time"

// SessionData contains the data stored with a login session token.
type SessionData struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *SessionData) IsAdmin() bool {
	return s.Role == RoleAdmin
}
