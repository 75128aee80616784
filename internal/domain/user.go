package domain

import "time"

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	DateJoined   time.Time
}

// IsAdmin reports whether the user holds administrative privileges.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EmailAddress is a claim binding one email string to one user.
// Email is globally unique across all claims.
type EmailAddress struct {
	ID         int64
	UserID     int64
	Email      string
	IsVerified bool
	IsPrimary  bool
}

// Profile is the public view of a user.
type Profile struct {
	FirstName  string
	LastName   string
	Username   string
	Email      string
	DateJoined time.Time
}

func (u User) Profile() Profile {
	return Profile{
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Username:   u.Username,
		Email:      u.Email,
		DateJoined: u.DateJoined,
	}
}
