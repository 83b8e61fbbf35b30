package model

import "time"

// AdminAccount is the single persisted admin record.
type AdminAccount struct {
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	ResetToken      string     `json:"-"`
	ResetExpiresAt  *time.Time `json:"resetExpiresAt,omitempty"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	LastLogout      *time.Time `json:"lastLogout,omitempty"`
}

// HasPendingReset reports whether a reset token and its expiry are both set.
func (a AdminAccount) HasPendingReset() bool {
	return a.ResetToken != "" && a.ResetExpiresAt != nil
}

// Session returns the session state carried by the record.
func (a AdminAccount) Session() Session {
	return Session{
		Authenticated: a.IsAuthenticated,
		LastLogin:     a.LastLogin,
		LastLogout:    a.LastLogout,
	}
}

// Session is the coarse admin session state. There is one session for the
// whole system; it lives in the admin record, not in process memory.
type Session struct {
	Authenticated bool       `json:"authenticated"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	LastLogout    *time.Time `json:"lastLogout,omitempty"`
}

// ResetToken is an issued password reset credential.
type ResetToken struct {
	Value     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}
