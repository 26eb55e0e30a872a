package workitem

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/auth"
	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/frahmantamala/maintenance-management/internal/workitem")

var (
	// ErrItemNotFound is returned by repositories; the service reports it per resource.
	ErrItemNotFound    = errors.New("work item not found")
	ErrVersionConflict = internal.NewConflictError("The item was changed by someone else, reload and try again", internal.ErrCodeVersionConflict)
)

type RepositoryAPI interface {
	Find(ctx context.Context, plan query.Plan) ([]*workitemDatamodel.WorkItem, int64, error)
	FindByID(ctx context.Context, id int64) (*workitemDatamodel.WorkItem, error)
	Insert(ctx context.Context, row *workitemDatamodel.WorkItem) error
	// ConditionalUpdate applies changes only while the stored version equals version.
	// A non-nil stamp is written to completed_at unless one is already stored.
	ConditionalUpdate(ctx context.Context, id, version int64, changes map[string]interface{}, stamp *time.Time) (*workitemDatamodel.WorkItem, error)
	Delete(ctx context.Context, id int64) error
}

type Authorizer interface {
	Authorize(ctx context.Context, caller *user.User, resource user.Resource, action user.Action) error
	VisibilityScope(caller *user.User, resource user.Resource) query.Scope
	CheckVisible(caller *user.User, resource user.Resource, rec auth.Record) error
	CheckOwnership(caller *user.User, resource user.Resource, action user.Action, rec auth.Record) error
	CanAssign(caller *user.User, resource user.Resource, cell user.Action) bool
}

type Users interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Recorder counts status changes.
type Recorder interface {
	Transition(kind, from, to string)
}

type ServiceAPI interface {
	Create(ctx context.Context, caller *user.User, dto CreateDTO) (*WorkItem, error)
	Get(ctx context.Context, caller *user.User, id int64) (*WorkItem, error)
	List(ctx context.Context, caller *user.User, params query.Params) ([]*WorkItem, query.Page, error)
	Update(ctx context.Context, caller *user.User, id int64, dto UpdateDTO) (*WorkItem, error)
	Assign(ctx context.Context, caller *user.User, id int64, dto AssignDTO) (*WorkItem, error)
	Delete(ctx context.Context, caller *user.User, id int64) error
}

// Service runs one variant (tasks or defects) over its own table.
type Service struct {
	variant   Variant
	repo      RepositoryAPI
	guard     Authorizer
	users     Users
	publisher events.Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(v Variant, repo RepositoryAPI, guard Authorizer, users Users, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		variant:   v,
		repo:      repo,
		guard:     guard,
		users:     users,
		publisher: publisher,
		logger:    logger.With("resource", string(v.Resource)),
		now:       time.Now,
	}
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) Variant() Variant {
	return s.variant
}

// Create stores a new item in the initial status with the caller as creator.
// An assignee in the payload is honored only when the caller may assign.
func (s *Service) Create(ctx context.Context, caller *user.User, dto CreateDTO) (*WorkItem, error) {
	ctx, span := tracer.Start(ctx, string(s.variant.Kind)+".Create")
	defer span.End()

	v := s.variant
	if err := s.guard.Authorize(ctx, caller, v.Resource, user.ActionCreate); err != nil {
		return nil, err
	}
	if err := dto.Validate(v); err != nil {
		return nil, err
	}

	priority := dto.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	item := &WorkItem{
		Kind:            v.Kind,
		Title:           dto.Title,
		Description:     dto.Description,
		Category:        dto.category(),
		Priority:        priority,
		Status:          v.Machine.Initial,
		CreatedBy:       caller.ID,
		Location:        dto.Location,
		DueDate:         dto.DueDate,
		Materials:       dto.Materials,
		Remarks:         dto.Remarks,
		EstimatedEffort: deref(dto.estimatedEffort(v)),
	}
	if v.Kind == KindDefect {
		item.DueDate = dto.RepairDate
		item.EstimatedCost = deref(dto.EstimatedCost)
	}

	if dto.AssignedTo != nil {
		if s.guard.CanAssign(caller, v.Resource, v.AssignAction) {
			if err := s.checkAssignee(ctx, *dto.AssignedTo); err != nil {
				return nil, err
			}
			item.AssignedTo = dto.AssignedTo
		} else {
			s.logger.Info("assignee ignored on create: caller may not assign",
				"user_id", caller.ID,
				"assigned_to", *dto.AssignedTo)
		}
	}

	row := ToDataModel(item)
	if err := s.repo.Insert(ctx, row); err != nil {
		s.logger.Error("failed to create work item", "error", err, "user_id", caller.ID)
		return nil, internal.NewInternalError("failed to create "+string(v.Kind), err)
	}
	created := FromDataModel(v.Kind, row)
	span.SetAttributes(attribute.Int64("workitem.id", created.ID))

	s.logger.Info("work item created", "id", created.ID, "user_id", caller.ID, "status", created.Status)
	if created.AssignedTo != nil {
		s.notify(ctx, events.NewWorkItemAssignedEvent(string(v.Kind), created.ID, created.Title, *created.AssignedTo, caller.ID))
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, caller *user.User, id int64) (*WorkItem, error) {
	ctx, span := tracer.Start(ctx, string(s.variant.Kind)+".Get")
	defer span.End()

	return s.admit(ctx, caller, user.ActionView, user.ActionView, id)
}

// List returns the caller's visible items. The visibility scope is applied before
// any caller filter and cannot be widened by one.
func (s *Service) List(ctx context.Context, caller *user.User, params query.Params) ([]*WorkItem, query.Page, error) {
	ctx, span := tracer.Start(ctx, string(s.variant.Kind)+".List")
	defer span.End()

	v := s.variant
	if err := s.guard.Authorize(ctx, caller, v.Resource, user.ActionView); err != nil {
		return nil, query.Page{}, err
	}

	scope := s.guard.VisibilityScope(caller, v.Resource)
	plan, err := query.Resolve(scope, params, v.ListSpec)
	if err != nil {
		return nil, query.Page{}, err
	}
	span.SetAttributes(
		attribute.String("query.scope", string(scope.Field)),
		attribute.Bool("query.empty", plan.Empty),
	)

	rows, total, err := s.repo.Find(ctx, plan)
	if err != nil {
		s.logger.Error("failed to list work items", "error", err, "user_id", caller.ID)
		return nil, query.Page{}, internal.NewInternalError("failed to list "+string(v.Resource), err)
	}

	items := make([]*WorkItem, len(rows))
	for i, row := range rows {
		items[i] = FromDataModel(v.Kind, row)
	}
	return items, query.NewPage(plan, total), nil
}

// Update applies a partial edit. A status write goes through the machine, which
// stamps CompletedAt on first completion.
func (s *Service) Update(ctx context.Context, caller *user.User, id int64, dto UpdateDTO) (*WorkItem, error) {
	ctx, span := tracer.Start(ctx, string(s.variant.Kind)+".Update")
	defer span.End()

	v := s.variant
	item, err := s.admit(ctx, caller, user.ActionEdit, user.ActionEdit, id)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(v); err != nil {
		return nil, err
	}
	if dto.Version != nil && *dto.Version != item.Version {
		return nil, ErrVersionConflict
	}

	t, err := v.Machine.Evaluate(item.State(), dto.Status, s.now())
	if err != nil {
		return nil, err
	}

	changes := dto.changes(v)
	if t.Changed() {
		changes["status"] = string(t.Next)
	}
	var stamp *time.Time
	if t.StampCompleted {
		stamp = t.CompletedAt
	}

	updated, err := s.write(ctx, item, changes, stamp)
	if err != nil {
		return nil, err
	}

	s.logger.Info("work item updated", "id", id, "user_id", caller.ID, "from", t.From, "to", t.Next)
	if t.Changed() {
		s.record(t)
	}
	if t.StampCompleted && updated.CompletedAt != nil {
		s.notify(ctx, events.NewWorkItemCompletedEvent(string(v.Kind), updated.ID, updated.Title, updated.CreatedBy, caller.ID, *updated.CompletedAt))
	}
	return updated, nil
}

// Assign sets the assignee and moves the item to in-progress from any status.
func (s *Service) Assign(ctx context.Context, caller *user.User, id int64, dto AssignDTO) (*WorkItem, error) {
	ctx, span := tracer.Start(ctx, string(s.variant.Kind)+".Assign")
	defer span.End()

	v := s.variant
	item, err := s.admit(ctx, caller, v.AssignAction, user.ActionAssign, id)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, dto.AssignedTo); err != nil {
		return nil, err
	}

	t := v.Machine.Assign(item.State())
	changes := map[string]interface{}{
		"assigned_to": dto.AssignedTo,
		"status":      string(t.Next),
	}
	updated, err := s.write(ctx, item, changes, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("work item assigned", "id", id, "user_id", caller.ID, "assigned_to", dto.AssignedTo, "from", t.From)
	if t.Changed() {
		s.record(t)
	}
	s.notify(ctx, events.NewWorkItemAssignedEvent(string(v.Kind), updated.ID, updated.Title, dto.AssignedTo, caller.ID))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, caller *user.User, id int64) error {
	ctx, span := tracer.Start(ctx, string(s.variant.Kind)+".Delete")
	defer span.End()

	if _, err := s.admit(ctx, caller, user.ActionDelete, user.ActionDelete, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return auth.NotFoundError(s.variant.Resource)
		}
		s.logger.Error("failed to delete work item", "error", err, "id", id)
		return internal.NewInternalError("failed to delete "+string(s.variant.Kind), err)
	}
	s.logger.Info("work item deleted", "id", id, "user_id", caller.ID)
	return nil
}

// admit checks the grid cell, loads the item, then applies scope and the
// ownership rule for the requested operation.
func (s *Service) admit(ctx context.Context, caller *user.User, cell, action user.Action, id int64) (*WorkItem, error) {
	v := s.variant
	if err := s.guard.Authorize(ctx, caller, v.Resource, cell); err != nil {
		return nil, err
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, auth.NotFoundError(v.Resource)
		}
		s.logger.Error("failed to load work item", "error", err, "id", id)
		return nil, internal.NewInternalError("failed to load "+string(v.Kind), err)
	}
	item := FromDataModel(v.Kind, row)

	if err := s.guard.CheckVisible(caller, v.Resource, item); err != nil {
		return nil, err
	}
	if err := s.guard.CheckOwnership(caller, v.Resource, action, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) write(ctx context.Context, item *WorkItem, changes map[string]interface{}, stamp *time.Time) (*WorkItem, error) {
	row, err := s.repo.ConditionalUpdate(ctx, item.ID, item.Version, changes, stamp)
	switch {
	case err == nil:
		return FromDataModel(s.variant.Kind, row), nil
	case errors.Is(err, ErrItemNotFound):
		return nil, auth.NotFoundError(s.variant.Resource)
	case errors.Is(err, ErrVersionConflict):
		s.logger.Warn("work item write lost a race", "id", item.ID, "version", item.Version)
		return nil, ErrVersionConflict
	default:
		s.logger.Error("failed to update work item", "error", err, "id", item.ID)
		return nil, internal.NewInternalError("failed to update "+string(s.variant.Kind), err)
	}
}

func (s *Service) checkAssignee(ctx context.Context, id int64) error {
	assignee, err := s.users.GetByID(ctx, id)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			return internal.NewValidationFieldError("assignedTo", "assignee does not exist", internal.ErrCodeValidationFailed)
		}
		return internal.NewInternalError("failed to load assignee", err)
	}
	if !assignee.IsActive() {
		return internal.NewValidationFieldError("assignedTo", "assignee account is not active", internal.ErrCodeAssigneeInactive)
	}
	return nil
}

func (s *Service) record(t Transition) {
	if s.recorder != nil {
		s.recorder.Transition(string(s.variant.Kind), string(t.From), string(t.Next))
	}
}

func (s *Service) notify(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish work item event", "error", err, "event_type", e.EventType())
	}
}

// changes maps the set fields of the patch to column names.
func (d UpdateDTO) changes(v Variant) map[string]interface{} {
	out := map[string]interface{}{}
	if d.Title != nil {
		out["title"] = *d.Title
	}
	if d.Description != nil {
		out["description"] = *d.Description
	}
	if c := d.category(); c != nil {
		out["category"] = *c
	}
	if d.Priority != nil {
		out["priority"] = string(*d.Priority)
	}
	if d.Location != nil {
		out["location"] = *d.Location
	}
	if due := d.dueDate(v); due != nil {
		out["due_date"] = *due
	}
	if d.Materials != nil {
		out["materials"] = workitemDatamodel.MaterialLines(*d.Materials)
	}
	if d.Remarks != nil {
		out["remarks"] = *d.Remarks
	}
	if e := d.effort(v, true); e != nil {
		out["estimated_effort"] = *e
	}
	if e := d.effort(v, false); e != nil {
		out["actual_effort"] = *e
	}
	if v.Kind == KindDefect {
		if d.EstimatedCost != nil {
			out["estimated_cost"] = *d.EstimatedCost
		}
		if d.ActualCost != nil {
			out["actual_cost"] = *d.ActualCost
		}
	}
	return out
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
