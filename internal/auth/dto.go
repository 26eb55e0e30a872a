package auth

import (
	"github.com/frahmantamala/maintenance-management/internal/core/common/validation"
	"github.com/frahmantamala/maintenance-management/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("password", d.Password).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refreshToken"`
}

func (d RefreshTokenDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("refreshToken", d.RefreshToken).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type RegisterDTO struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (d RegisterDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required().MinLength(6)
	v.Field("firstName", d.FirstName).Required().MaxLength(50)
	v.Field("lastName", d.LastName).Required().MaxLength(50)
	v.Field("department", d.Department).MaxLength(100)
	v.Field("phone", d.Phone).MaxLength(30)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type LoginResponse struct {
	AuthTokens
	User user.UserResponse `json:"user"`
}

type RegisterResponse struct {
	Message string            `json:"message"`
	User    user.UserResponse `json:"user"`
}
