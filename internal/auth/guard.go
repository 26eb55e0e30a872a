package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/frahmantamala/maintenance-management/internal/auth")

// Record is the ownership view of a stored row that the guard needs.
type Record interface {
	Creator() int64
	Assignee() *int64
}

// DenialRecorder receives every refused authorization decision.
type DenialRecorder interface {
	AuthzDenied(resource, action, reason string)
}

// Guard answers may-this-caller questions. It holds no mutable state.
type Guard struct {
	logger   *slog.Logger
	recorder DenialRecorder
}

func NewGuard(logger *slog.Logger, recorder DenialRecorder) *Guard {
	return &Guard{logger: logger, recorder: recorder}
}

// scopeRules lists the restricted (role, resource) pairs. Anything absent is unrestricted.
var scopeRules = map[user.Role]map[user.Resource]query.Field{
	user.RoleTechnician: {
		user.ResourceTasks:   query.FieldAssignee,
		user.ResourceDefects: query.FieldAssignee,
	},
	user.RoleOperator: {
		user.ResourceTasks:   query.FieldCreator,
		user.ResourceDefects: query.FieldCreator,
	},
}

type ownershipKey struct {
	role     user.Role
	resource user.Resource
	action   user.Action
}

type ownershipRule func(caller *user.User, rec Record) bool

// ownershipRules apply after the grid; an override granting the action does not lift them.
// Assignment is keyed on ActionAssign even where the grid gates it through another cell.
var ownershipRules = map[ownershipKey]ownershipRule{
	{user.RoleTechnician, user.ResourceTasks, user.ActionEdit}:     assignedToCaller,
	{user.RoleTechnician, user.ResourceDefects, user.ActionEdit}:   assignedToCaller,
	{user.RoleTechnician, user.ResourceTasks, user.ActionAssign}:   never,
	{user.RoleTechnician, user.ResourceDefects, user.ActionAssign}: never,
	{user.RoleOperator, user.ResourceTasks, user.ActionEdit}:       never,
	{user.RoleOperator, user.ResourceDefects, user.ActionEdit}:     never,
	{user.RoleOperator, user.ResourceTasks, user.ActionAssign}:     never,
	{user.RoleOperator, user.ResourceDefects, user.ActionAssign}:   never,
}

func assignedToCaller(caller *user.User, rec Record) bool {
	a := rec.Assignee()
	return a != nil && *a == caller.ID
}

func never(*user.User, Record) bool { return false }

// noRecord stands in for an item that does not exist yet.
type noRecord struct{}

func (noRecord) Creator() int64   { return 0 }
func (noRecord) Assignee() *int64 { return nil }

// Authorize checks account status and the caller's effective grid.
func (g *Guard) Authorize(ctx context.Context, caller *user.User, resource user.Resource, action user.Action) error {
	_, span := tracer.Start(ctx, "auth.Authorize", trace.WithAttributes(
		attribute.String("authz.resource", string(resource)),
		attribute.String("authz.action", string(action)),
	))
	defer span.End()

	if caller == nil {
		g.deny(span, resource, action, "unauthenticated")
		return internal.NewUnauthenticatedError("Authentication required", internal.ErrCodeMissingToken)
	}
	span.SetAttributes(attribute.Int64("user.id", caller.ID), attribute.String("user.role", string(caller.Role)))

	if !caller.IsActive() {
		g.deny(span, resource, action, "inactive")
		return InactiveError(caller.Status)
	}

	if !user.EffectivePermissions(caller).Allows(resource, action) {
		g.deny(span, resource, action, "grid")
		g.logger.Warn("access denied: missing permission",
			"user_id", caller.ID,
			"role", caller.Role,
			"resource", resource,
			"action", action)
		return internal.NewForbiddenError(
			fmt.Sprintf("You do not have permission to %s %s", action, resource),
			internal.ErrCodePermissionDenied,
		)
	}
	return nil
}

// VisibilityScope returns the mandatory restriction for list and per-record reads.
func (g *Guard) VisibilityScope(caller *user.User, resource user.Resource) query.Scope {
	if caller == nil || !caller.IsActive() {
		return query.Nothing()
	}
	field, ok := scopeRules[caller.Role][resource]
	if !ok {
		return query.Unrestricted()
	}
	return query.RestrictTo(field, caller.ID)
}

// CheckVisible reports records outside the caller's scope as not found, so direct
// access agrees with list exclusion.
func (g *Guard) CheckVisible(caller *user.User, resource user.Resource, rec Record) error {
	if g.VisibilityScope(caller, resource).Permits(rec.Creator(), rec.Assignee()) {
		return nil
	}
	if g.recorder != nil {
		g.recorder.AuthzDenied(string(resource), "view", "scope")
	}
	return NotFoundError(resource)
}

// CheckOwnership applies the per-role ownership predicate for action, if any.
func (g *Guard) CheckOwnership(caller *user.User, resource user.Resource, action user.Action, rec Record) error {
	if caller == nil {
		return internal.NewUnauthenticatedError("Authentication required", internal.ErrCodeMissingToken)
	}
	rule, ok := ownershipRules[ownershipKey{caller.Role, resource, action}]
	if !ok || rule(caller, rec) {
		return nil
	}
	if g.recorder != nil {
		g.recorder.AuthzDenied(string(resource), string(action), "ownership")
	}
	g.logger.Warn("access denied: ownership",
		"user_id", caller.ID,
		"role", caller.Role,
		"resource", resource,
		"action", action)
	return internal.NewForbiddenError(
		fmt.Sprintf("You may only %s %s assigned to you", action, resource),
		internal.ErrCodeNotOwner,
	)
}

// CanAssign reports whether caller may choose assignees on resource when no record
// exists yet, as on create. cell is the grid action that gates assignment.
func (g *Guard) CanAssign(caller *user.User, resource user.Resource, cell user.Action) bool {
	if caller == nil || !user.EffectivePermissions(caller).Allows(resource, cell) {
		return false
	}
	rule, ok := ownershipRules[ownershipKey{caller.Role, resource, user.ActionAssign}]
	return !ok || rule(caller, noRecord{})
}

// Admit runs the full per-record pipeline: grid, then scope, then ownership.
func (g *Guard) Admit(ctx context.Context, caller *user.User, resource user.Resource, action user.Action, rec Record) error {
	if err := g.Authorize(ctx, caller, resource, action); err != nil {
		return err
	}
	if err := g.CheckVisible(caller, resource, rec); err != nil {
		return err
	}
	return g.CheckOwnership(caller, resource, action, rec)
}

func (g *Guard) deny(span trace.Span, resource user.Resource, action user.Action, reason string) {
	span.SetStatus(codes.Error, "denied: "+reason)
	if g.recorder != nil {
		g.recorder.AuthzDenied(string(resource), string(action), reason)
	}
}

// InactiveError carries the status-specific message shown to callers whose account is not active.
func InactiveError(status user.Status) *internal.AppError {
	switch status {
	case user.StatusPending:
		return internal.NewAccountInactiveError("Your account is awaiting administrator approval", internal.ErrCodeAccountPending)
	case user.StatusSuspended:
		return internal.NewAccountInactiveError("Your account has been suspended", internal.ErrCodeAccountSuspended)
	case user.StatusRejected:
		return internal.NewAccountInactiveError("Your registration has been rejected", internal.ErrCodeAccountRejected)
	default:
		return internal.NewAccountInactiveError("Your account is not active", internal.ErrCodeAccountPending)
	}
}

func NotFoundError(resource user.Resource) *internal.AppError {
	switch resource {
	case user.ResourceTasks:
		return internal.NewNotFoundError("Task not found", internal.ErrCodeTaskNotFound)
	case user.ResourceDefects:
		return internal.NewNotFoundError("Defect not found", internal.ErrCodeDefectNotFound)
	case user.ResourceMaterials:
		return internal.NewNotFoundError("Material not found", internal.ErrCodeMaterialNotFound)
	default:
		return internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	}
}
