package user

import (
	"fmt"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/core/common/validation"
	"github.com/frahmantamala/maintenance-management/internal/query"
)

type ApproveDTO struct {
	Role                 Role   `json:"role"`
	Permissions          Grid   `json:"permissions,omitempty"`
	AssignedTechnicianID *int64 `json:"assignedTechnician,omitempty"`
}

func (dto ApproveDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("role", string(dto.Role)).OneOf(roleNames(), internal.ErrCodeInvalidRole)
	v.Field("permissions", dto.Permissions).Custom(validateGrid("permissions"))
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type RejectDTO struct {
	Reason string `json:"reason"`
}

func (dto RejectDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("reason", dto.Reason).MaxLength(500)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type UpdateUserDTO struct {
	FirstName            *string `json:"firstName,omitempty"`
	LastName             *string `json:"lastName,omitempty"`
	Department           *string `json:"department,omitempty"`
	Phone                *string `json:"phone,omitempty"`
	Role                 *Role   `json:"role,omitempty"`
	Status               *Status `json:"status,omitempty"`
	Permissions          Grid    `json:"permissions,omitempty"`
	AssignedTechnicianID *int64  `json:"assignedTechnician,omitempty"`
}

func (dto UpdateUserDTO) Validate() error {
	v := validation.NewValidator()
	if dto.FirstName != nil {
		v.Field("firstName", dto.FirstName).Required().MaxLength(50)
	}
	if dto.LastName != nil {
		v.Field("lastName", dto.LastName).Required().MaxLength(50)
	}
	if dto.Role != nil {
		v.Field("role", string(*dto.Role)).Required().OneOf(roleNames(), internal.ErrCodeInvalidRole)
	}
	if dto.Status != nil {
		v.Field("status", string(*dto.Status)).Required().OneOf(statusNames(), internal.ErrCodeInvalidStatus)
	}
	v.Field("permissions", dto.Permissions).Custom(validateGrid("permissions"))
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func validateGrid(field string) validation.ValidatorFunc {
	return func(value interface{}) *internal.AppError {
		g, _ := value.(Grid)
		for res, actions := range g {
			if !knownResource(res) {
				return internal.NewValidationFieldError(field, fmt.Sprintf("unknown resource %q", res), internal.ErrCodeValidationFailed)
			}
			for act := range actions {
				if !knownAction(act) {
					return internal.NewValidationFieldError(field, fmt.Sprintf("unknown action %q on %s", act, res), internal.ErrCodeValidationFailed)
				}
			}
		}
		return nil
	}
}

func knownResource(r Resource) bool {
	for _, known := range Resources {
		if known == r {
			return true
		}
	}
	return false
}

func knownAction(a Action) bool {
	for _, known := range Actions {
		if known == a {
			return true
		}
	}
	return false
}

func roleNames() []string {
	out := make([]string, len(Roles))
	for i, r := range Roles {
		out[i] = string(r)
	}
	return out
}

func statusNames() []string {
	return []string{string(StatusPending), string(StatusActive), string(StatusSuspended), string(StatusRejected)}
}

// ListSpec drives the admin user listing.
var ListSpec = query.Spec{
	Resource: string(ResourceUsers),
	Filters: map[string]query.Filter{
		"status": {Column: "status", Allowed: statusNames()},
		"role":   {Column: "role", Allowed: roleNames()},
	},
	SearchColumns: []string{"first_name", "last_name", "email"},
	SortFields: map[string]string{
		"createdAt": "created_at",
		"email":     "email",
		"lastName":  "last_name",
		"role":      "role",
	},
	DefaultSort: "createdAt",
	DefaultDesc: true,
}

type UserResponse struct {
	ID                   int64                 `json:"id"`
	Email                string                `json:"email"`
	FirstName            string                `json:"firstName"`
	LastName             string                `json:"lastName"`
	FullName             string                `json:"fullName"`
	Department           string                `json:"department,omitempty"`
	Phone                string                `json:"phone,omitempty"`
	Role                 Role                  `json:"role"`
	Status               Status                `json:"status"`
	Permissions          map[Resource][]Action `json:"permissions"`
	AssignedTechnicianID *int64                `json:"assignedTechnician,omitempty"`
	LastLoginAt          *time.Time            `json:"lastLogin,omitempty"`
	CreatedAt            time.Time             `json:"createdAt"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:                   u.ID,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		FullName:             u.FullName(),
		Department:           u.Department,
		Phone:                u.Phone,
		Role:                 u.Role,
		Status:               u.Status,
		Permissions:          EffectivePermissions(u).Allowed(),
		AssignedTechnicianID: u.AssignedTechnicianID,
		LastLoginAt:          u.LastLoginAt,
		CreatedAt:            u.CreatedAt,
	}
}

type UsersResponse struct {
	Users      []UserResponse `json:"users"`
	Pagination query.Page     `json:"pagination"`
}

func ToResponses(users []*User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return out
}
