package user

import (
	"context"
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/user"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusRejected:
		return true
	}
	return false
}

type User struct {
	ID                   int64
	Email                string
	FirstName            string
	LastName             string
	PasswordHash         string
	Department           string
	Phone                string
	Role                 Role
	Status               Status
	Permissions          Grid
	PermissionOverrides  Grid
	AssignedTechnicianID *int64
	RejectionReason      string
	ApprovedBy           *int64
	ApprovedAt           *time.Time
	LastLoginAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewPending returns a freshly registered account: pending, operator by default, no grid.
func NewPending(email, firstName, lastName, passwordHash string) *User {
	now := time.Now()
	return &User{
		Email:               strings.ToLower(strings.TrimSpace(email)),
		FirstName:           firstName,
		LastName:            lastName,
		PasswordHash:        passwordHash,
		Role:                RoleOperator,
		Status:              StatusPending,
		Permissions:         Grid{},
		PermissionOverrides: Grid{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// ChangeRole recomputes the grid from the role defaults and drops every override.
func (u *User) ChangeRole(role Role) {
	u.Role = role
	u.Permissions = DefaultGrid(role)
	u.PermissionOverrides = Grid{}
	u.UpdatedAt = time.Now()
}

// ApplyOverrides records overrides and merges them on top of the role defaults.
// Earlier overrides for the same cells are replaced, others are kept.
func (u *User) ApplyOverrides(overrides Grid) {
	if len(overrides) == 0 {
		return
	}
	if u.PermissionOverrides == nil {
		u.PermissionOverrides = Grid{}
	}
	u.PermissionOverrides = u.PermissionOverrides.Merge(overrides)
	u.Permissions = DefaultGrid(u.Role).Merge(u.PermissionOverrides)
	u.UpdatedAt = time.Now()
}

// EffectivePermissions is the grid honored by authorization: empty unless the account is active.
func EffectivePermissions(u *User) Grid {
	if u == nil || !u.IsActive() {
		return Grid{}
	}
	return u.Permissions.Clone()
}

type callerKey struct{}

// WithCaller stores the authenticated caller in ctx.
func WithCaller(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

func CallerFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(callerKey{}).(*User)
	return u, ok && u != nil
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:                   u.ID,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		PasswordHash:         u.PasswordHash,
		Department:           u.Department,
		Phone:                u.Phone,
		Role:                 string(u.Role),
		Status:               string(u.Status),
		Permissions:          toDataGrid(u.Permissions),
		PermissionOverrides:  toDataGrid(u.PermissionOverrides),
		AssignedTechnicianID: u.AssignedTechnicianID,
		RejectionReason:      u.RejectionReason,
		ApprovedBy:           u.ApprovedBy,
		ApprovedAt:           u.ApprovedAt,
		LastLoginAt:          u.LastLoginAt,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:                   u.ID,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		PasswordHash:         u.PasswordHash,
		Department:           u.Department,
		Phone:                u.Phone,
		Role:                 Role(u.Role),
		Status:               Status(u.Status),
		Permissions:          fromDataGrid(u.Permissions),
		PermissionOverrides:  fromDataGrid(u.PermissionOverrides),
		AssignedTechnicianID: u.AssignedTechnicianID,
		RejectionReason:      u.RejectionReason,
		ApprovedBy:           u.ApprovedBy,
		ApprovedAt:           u.ApprovedAt,
		LastLoginAt:          u.LastLoginAt,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func toDataGrid(g Grid) userDatamodel.PermissionGrid {
	out := make(userDatamodel.PermissionGrid, len(g))
	for res, actions := range g {
		m := make(map[string]bool, len(actions))
		for act, ok := range actions {
			m[string(act)] = ok
		}
		out[string(res)] = m
	}
	return out
}

func fromDataGrid(g userDatamodel.PermissionGrid) Grid {
	out := make(Grid, len(g))
	for res, actions := range g {
		m := make(map[Action]bool, len(actions))
		for act, ok := range actions {
			m[Action(act)] = ok
		}
		out[Resource(res)] = m
	}
	return out
}
