package dto

type RegisterDTO struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

type LoginDTO struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordDTO struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

// UpdateProfileDTO carries only the fields the caller wants changed; nil
// means keep the current value.
type UpdateProfileDTO struct {
	Username       *string `json:"username"       validate:"omitempty,username"`
	Email          *string `json:"email"          validate:"omitempty,email,max=254"`
	Bio            *string `json:"bio"            validate:"omitempty,max=500"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,url,max=2048"`
	Password       *string `json:"password"       validate:"omitempty,password"`
}

type UserResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio"`
	CreatedAt      string `json:"createdAt"`
}

type SessionResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
	Token          string `json:"token"`
	ExpiresAt      string `json:"expiresAt"`
}
