package dto

import "github.com/baechuer/community-service/internal/application/identity"

// -------- Sign-up / tokens --------

type SignUpRequest struct {
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Password       string    `json:"password"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	TermsOfService TermsFlag `json:"terms_of_service"`
}

// ToInput sanitises every text field except the password.
func (r SignUpRequest) ToInput() identity.CreateUserInput {
	return identity.CreateUserInput{
		Username:      Clean(r.Username),
		Email:         Clean(r.Email),
		Password:      r.Password,
		FirstName:     Clean(r.FirstName),
		LastName:      Clean(r.LastName),
		TermsAccepted: bool(r.TermsOfService),
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is shared by refresh and logout.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type VerifyEmailConfirmRequest struct {
	Token string `json:"token"`
}

// -------- Users --------

// UpdateUserRequest uses pointers so absent keys stay nil.
type UpdateUserRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (r UpdateUserRequest) ToUpdate() identity.ProfileUpdate {
	return identity.ProfileUpdate{
		Username:  cleanPtr(r.Username),
		FirstName: cleanPtr(r.FirstName),
		LastName:  cleanPtr(r.LastName),
	}
}
