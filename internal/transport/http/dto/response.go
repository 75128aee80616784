package dto

import (
	"time"

	"github.com/baechuer/community-service/internal/domain"
)

type SignUpData struct {
	AuthToken    string `json:"auth_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       int64  `json:"user_id"`
}

// TokenPairView mirrors the token endpoint contract: {"access", "refresh"}.
type TokenPairView struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type ProfileView struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	DateJoined string `json:"date_joined"`
}

func NewProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Username:   p.Username,
		Email:      p.Email,
		DateJoined: p.DateJoined.UTC().Format(time.RFC3339Nano),
	}
}
