package models

import "time"

// Account is a stored identity record owned by the user directory.
type Account struct {
	ID                 string    `json:"id"                 bson:"_id"`
	Username           string    `json:"username"           bson:"username"`
	NormalizedUsername string    `json:"-"                  bson:"normalized_username"`
	Email              string    `json:"email"              bson:"email"`
	NormalizedEmail    string    `json:"-"                  bson:"normalized_email"`
	PasswordHash       string    `json:"-"                  bson:"password_hash"` // never serialize
	CreatedAt          time.Time `json:"created_at"         bson:"created_at"`
}

// RegistrationRequest is the JSON body for POST /api/registration/register.
type RegistrationRequest struct {
	Username        string `json:"username"        validate:"required,max=256"`
	Email           string `json:"email"           validate:"required,email,max=256"`
	Password        string `json:"password"        validate:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// MessageResponse is the body of every single-message reply.
type MessageResponse struct {
	Message string `json:"message"`
}
