package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	userDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/user"
	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/frahmantamala/maintenance-management/internal/user")

var (
	ErrUserNotFound   = internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	ErrDuplicateEmail = internal.NewConflictError("A user with this email already exists", internal.ErrCodeDuplicateEmail)
	ErrNotPending     = internal.NewConflictError("User is not awaiting approval", internal.ErrCodeUserNotPending)
	ErrHasAssignments = internal.NewConflictError("User still has assigned tasks or defects", internal.ErrCodeUserHasAssignments)
	ErrDeleteSelf     = internal.NewValidationError("You cannot delete your own account", internal.ErrCodeValidationFailed)
)

type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	Delete(ctx context.Context, id int64) error
	Find(ctx context.Context, plan query.Plan) ([]*userDatamodel.User, int64, error)
	FindTechnicians(ctx context.Context) ([]*userDatamodel.User, error)
	CountAssignments(ctx context.Context, id int64) (int64, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Register stores a new pending account. The account holds no permissions until approved.
func (s *Service) Register(ctx context.Context, u *User) error {
	ctx, span := tracer.Start(ctx, "user.Register")
	defer span.End()

	u.Status = StatusPending
	u.Permissions = Grid{}
	u.PermissionOverrides = Grid{}
	if !u.Role.Valid() {
		u.Role = RoleOperator
	}

	if _, err := s.repo.GetByEmail(ctx, u.Email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		s.logger.Error("failed to check email uniqueness", "error", err, "email", u.Email)
		return internal.NewInternalError("failed to register user", err)
	}

	row := ToDataModel(u)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", u.Email)
		return internal.NewInternalError("failed to register user", err)
	}
	u.ID = row.ID
	u.CreatedAt = row.CreatedAt

	s.logger.Info("user registered", "user_id", u.ID, "email", u.Email)
	s.notify(ctx, events.NewUserRegisteredEvent(u.ID, u.Email, u.FullName()))
	return nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) TouchLogin(ctx context.Context, id int64) error {
	if err := s.repo.TouchLogin(ctx, id, time.Now()); err != nil {
		s.logger.Warn("failed to record last login", "error", err, "user_id", id)
		return err
	}
	return nil
}

// Approve activates a pending account with the role's default grid plus any overrides.
func (s *Service) Approve(ctx context.Context, actorID, id int64, dto ApproveDTO) (*User, error) {
	ctx, span := tracer.Start(ctx, "user.Approve")
	defer span.End()

	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status != StatusPending {
		s.logger.Warn("approve refused: user not pending", "user_id", id, "status", u.Status)
		return nil, ErrNotPending
	}

	role := dto.Role
	if role == "" {
		role = u.Role
	}
	now := time.Now()
	u.ChangeRole(role)
	u.ApplyOverrides(dto.Permissions)
	u.Status = StatusActive
	u.ApprovedBy = &actorID
	u.ApprovedAt = &now
	if dto.AssignedTechnicianID != nil {
		u.AssignedTechnicianID = dto.AssignedTechnicianID
	}

	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user approved", "user_id", id, "role", role, "approved_by", actorID)
	s.notify(ctx, events.NewUserApprovedEvent(u.ID, u.Email, u.FullName(), string(u.Role)))
	return u, nil
}

func (s *Service) Reject(ctx context.Context, actorID, id int64, dto RejectDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status != StatusPending {
		s.logger.Warn("reject refused: user not pending", "user_id", id, "status", u.Status)
		return nil, ErrNotPending
	}

	u.Status = StatusRejected
	u.RejectionReason = dto.Reason
	u.Permissions = Grid{}
	u.UpdatedAt = time.Now()

	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user rejected", "user_id", id, "rejected_by", actorID)
	s.notify(ctx, events.NewUserRejectedEvent(u.ID, u.Email, u.FullName(), dto.Reason))
	return u, nil
}

// Update applies an admin edit. A role change rebuilds the grid and discards earlier overrides
// before any overrides in the same request are merged.
func (s *Service) Update(ctx context.Context, id int64, dto UpdateUserDTO) (*User, error) {
	ctx, span := tracer.Start(ctx, "user.Update")
	defer span.End()

	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.FirstName != nil {
		u.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		u.LastName = *dto.LastName
	}
	if dto.Department != nil {
		u.Department = *dto.Department
	}
	if dto.Phone != nil {
		u.Phone = *dto.Phone
	}
	if dto.AssignedTechnicianID != nil {
		u.AssignedTechnicianID = dto.AssignedTechnicianID
	}
	if dto.Role != nil && *dto.Role != u.Role {
		s.logger.Info("user role changed", "user_id", id, "from", u.Role, "to", *dto.Role)
		u.ChangeRole(*dto.Role)
	}
	if dto.Status != nil {
		u.Status = *dto.Status
		if u.Status == StatusActive && len(u.Permissions) == 0 {
			u.Permissions = DefaultGrid(u.Role).Merge(u.PermissionOverrides)
		}
	}
	u.ApplyOverrides(dto.Permissions)
	u.UpdatedAt = time.Now()

	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user unless they are still the assignee of any work item.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrDeleteSelf
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	n, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		s.logger.Error("failed to count user assignments", "error", err, "user_id", id)
		return internal.NewInternalError("failed to delete user", err)
	}
	if n > 0 {
		s.logger.Warn("delete refused: user has assignments", "user_id", id, "assignments", n)
		return ErrHasAssignments
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", "error", err, "user_id", id)
		return internal.NewInternalError("failed to delete user", err)
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", actorID)
	s.changed(ctx, id)
	return nil
}

func (s *Service) List(ctx context.Context, params query.Params) ([]*User, query.Page, error) {
	plan, err := query.Resolve(query.Unrestricted(), params, ListSpec)
	if err != nil {
		return nil, query.Page{}, err
	}
	return s.find(ctx, plan)
}

func (s *Service) ListPending(ctx context.Context) ([]*User, query.Page, error) {
	plan, err := query.Resolve(query.Unrestricted(), query.Params{
		Filters:   map[string]string{"status": string(StatusPending)},
		Limit:     query.MaxLimit,
		SortBy:    "createdAt",
		SortOrder: "asc",
	}, ListSpec)
	if err != nil {
		return nil, query.Page{}, err
	}
	return s.find(ctx, plan)
}

// ListTechnicians returns active accounts that can be assigned work.
func (s *Service) ListTechnicians(ctx context.Context) ([]*User, error) {
	rows, err := s.repo.FindTechnicians(ctx)
	if err != nil {
		s.logger.Error("failed to list technicians", "error", err)
		return nil, internal.NewInternalError("failed to list technicians", err)
	}
	out := make([]*User, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, nil
}

func (s *Service) find(ctx context.Context, plan query.Plan) ([]*User, query.Page, error) {
	rows, total, err := s.repo.Find(ctx, plan)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, query.Page{}, internal.NewInternalError("failed to list users", err)
	}
	out := make([]*User, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, query.NewPage(plan, total), nil
}

func (s *Service) save(ctx context.Context, u *User) error {
	if err := s.repo.Update(ctx, ToDataModel(u)); err != nil {
		s.logger.Error("failed to update user", "error", err, "user_id", u.ID)
		return internal.NewInternalError("failed to update user", err)
	}
	s.changed(ctx, u.ID)
	return nil
}

// changed runs synchronously so cached callers are dropped before the response is written.
func (s *Service) changed(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, events.NewUserChangedEvent(id)); err != nil {
		s.logger.Warn("user change listeners failed", "error", err, "user_id", id)
	}
}

func (s *Service) notify(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish user event", "error", err, "event_type", e.EventType())
	}
}
