package material

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/maintenance-management/internal"
	materialDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/material"
	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/frahmantamala/maintenance-management/internal/material")

var (
	ErrMaterialNotFound  = internal.NewNotFoundError("Material not found", internal.ErrCodeMaterialNotFound)
	ErrInsufficientStock = internal.NewInsufficientStockError("Insufficient stock for this operation")
	ErrDuplicateName     = internal.NewConflictError("A material with this name already exists", internal.ErrCodeDuplicateMaterial)
	ErrDuplicateBarcode  = internal.NewConflictError("A material with this barcode already exists", internal.ErrCodeDuplicateMaterial)
)

type RepositoryAPI interface {
	Create(ctx context.Context, row *materialDatamodel.Material) error
	// GetByID also resolves soft-deleted materials.
	GetByID(ctx context.Context, id int64) (*materialDatamodel.Material, error)
	GetByName(ctx context.Context, name string) (*materialDatamodel.Material, error)
	GetByBarcode(ctx context.Context, barcode string) (*materialDatamodel.Material, error)
	Update(ctx context.Context, id int64, changes map[string]interface{}) (*materialDatamodel.Material, error)
	SoftDelete(ctx context.Context, id int64) error
	Find(ctx context.Context, plan query.Plan) ([]*materialDatamodel.Material, int64, error)
	Categories(ctx context.Context) ([]string, error)
	LowStock(ctx context.Context) ([]*materialDatamodel.Material, error)
	AddStock(ctx context.Context, id, quantity int64) (*materialDatamodel.Material, error)
	// SubtractStock fails with ErrInsufficientStock rather than going below zero.
	SubtractStock(ctx context.Context, id, quantity int64) (*materialDatamodel.Material, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, caller *user.User, resource user.Resource, action user.Action) error
	VisibilityScope(caller *user.User, resource user.Resource) query.Scope
}

// Recorder counts ledger operations by outcome.
type Recorder interface {
	StockAdjusted(direction, outcome string)
}

type ServiceAPI interface {
	Create(ctx context.Context, caller *user.User, dto CreateDTO) (*Material, error)
	Get(ctx context.Context, caller *user.User, id int64) (*Material, error)
	List(ctx context.Context, caller *user.User, params query.Params) ([]*Material, query.Page, error)
	Update(ctx context.Context, caller *user.User, id int64, dto UpdateDTO) (*Material, error)
	Delete(ctx context.Context, caller *user.User, id int64) error
	Categories(ctx context.Context, caller *user.User) ([]string, error)
	AdjustStock(ctx context.Context, caller *user.User, id int64, dto StockDTO) (*Material, error)
}

type Service struct {
	repo      RepositoryAPI
	guard     Authorizer
	publisher events.Publisher
	recorder  Recorder
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, guard Authorizer, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) Create(ctx context.Context, caller *user.User, dto CreateDTO) (*Material, error) {
	ctx, span := tracer.Start(ctx, "material.Create")
	defer span.End()

	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionCreate); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, 0, &dto.Name, dto.Barcode); err != nil {
		return nil, err
	}

	m := &Material{
		Name:         strings.TrimSpace(dto.Name),
		Description:  dto.Description,
		Category:     strings.TrimSpace(dto.Category),
		Unit:         strings.TrimSpace(dto.Unit),
		CurrentStock: dto.CurrentStock,
		MinStock:     dto.MinStock,
		MaxStock:     dto.maxStock(),
		UnitPrice:    dto.UnitPrice,
		Barcode:      dto.Barcode,
		IsActive:     true,
		CreatedBy:    caller.ID,
	}
	if sp := dto.Supplier; sp != nil {
		m.Supplier = Supplier{Name: sp.Name, Contact: sp.Contact, Email: sp.Email, Phone: sp.Phone}
	}
	if loc := dto.Location; loc != nil {
		m.StorageLocation = StorageLocation{Warehouse: loc.Warehouse, Shelf: loc.Shelf, Bin: loc.Bin}
	}

	row := ToDataModel(m)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create material", "error", err, "name", m.Name)
		return nil, internal.NewInternalError("failed to create material", err)
	}
	s.logger.Info("material created", "material_id", row.ID, "name", row.Name, "user_id", caller.ID)
	return FromDataModel(row), nil
}

func (s *Service) Get(ctx context.Context, caller *user.User, id int64) (*Material, error) {
	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionView); err != nil {
		return nil, err
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load material", id)
	}
	return FromDataModel(row), nil
}

func (s *Service) List(ctx context.Context, caller *user.User, params query.Params) ([]*Material, query.Page, error) {
	ctx, span := tracer.Start(ctx, "material.List")
	defer span.End()

	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionView); err != nil {
		return nil, query.Page{}, err
	}
	plan, err := query.Resolve(s.guard.VisibilityScope(caller, user.ResourceMaterials), params, ListSpec)
	if err != nil {
		return nil, query.Page{}, err
	}

	rows, total, err := s.repo.Find(ctx, plan)
	if err != nil {
		s.logger.Error("failed to list materials", "error", err)
		return nil, query.Page{}, internal.NewInternalError("failed to list materials", err)
	}
	return fromRows(rows), query.NewPage(plan, total), nil
}

func (s *Service) Update(ctx context.Context, caller *user.User, id int64, dto UpdateDTO) (*Material, error) {
	ctx, span := tracer.Start(ctx, "material.Update")
	defer span.End()

	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionEdit); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load material", id)
	}
	if !current.IsActive {
		return nil, ErrMaterialNotFound
	}

	minStock, maxStock := current.MinStock, current.MaxStock
	if dto.MinStock != nil {
		minStock = *dto.MinStock
	}
	if dto.MaxStock != nil {
		maxStock = *dto.MaxStock
	}
	if maxStock < minStock {
		return nil, internal.NewValidationFieldError("maxStock", "maxStock must not be below minStock", internal.ErrCodeInvalidQuantity)
	}

	if err := s.checkUnique(ctx, id, dto.Name, dto.Barcode); err != nil {
		return nil, err
	}

	row, err := s.repo.Update(ctx, id, dto.changes())
	if err != nil {
		return nil, s.storeError(err, "failed to update material", id)
	}
	s.logger.Info("material updated", "material_id", id, "user_id", caller.ID)
	return FromDataModel(row), nil
}

// Delete deactivates the material. Line items on work items keep resolving it.
func (s *Service) Delete(ctx context.Context, caller *user.User, id int64) error {
	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete material", id)
	}
	s.logger.Info("material deactivated", "material_id", id, "user_id", caller.ID)
	return nil
}

func (s *Service) Categories(ctx context.Context, caller *user.User) ([]string, error) {
	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionView); err != nil {
		return nil, err
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		s.logger.Error("failed to list material categories", "error", err)
		return nil, internal.NewInternalError("failed to list material categories", err)
	}
	return categories, nil
}

// AdjustStock adds to or subtracts from the current stock. Subtraction is a single
// conditional write, so concurrent callers can never drive the stock negative.
func (s *Service) AdjustStock(ctx context.Context, caller *user.User, id int64, dto StockDTO) (*Material, error) {
	ctx, span := tracer.Start(ctx, "material.AdjustStock")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("material.id", id),
		attribute.Int64("stock.quantity", dto.Quantity),
		attribute.String("stock.direction", string(dto.Operation)),
	)

	if err := s.guard.Authorize(ctx, caller, user.ResourceMaterials, user.ActionEdit); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		s.record(dto.Operation, "invalid")
		return nil, err
	}

	var (
		row *materialDatamodel.Material
		err error
	)
	switch dto.Operation {
	case DirectionAdd:
		row, err = s.repo.AddStock(ctx, id, dto.Quantity)
	case DirectionSubtract:
		row, err = s.repo.SubtractStock(ctx, id, dto.Quantity)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, ErrInsufficientStock):
			s.record(dto.Operation, "insufficient")
			s.logger.Warn("stock subtraction refused",
				"material_id", id,
				"quantity", dto.Quantity,
				"user_id", caller.ID)
			return nil, ErrInsufficientStock
		case errors.Is(err, ErrMaterialNotFound):
			s.record(dto.Operation, "not_found")
			return nil, ErrMaterialNotFound
		default:
			s.record(dto.Operation, "error")
			s.logger.Error("failed to adjust stock", "error", err, "material_id", id)
			return nil, internal.NewInternalError("failed to adjust stock", err)
		}
	}

	m := FromDataModel(row)
	s.record(dto.Operation, "ok")
	span.SetAttributes(attribute.Int64("stock.current", m.CurrentStock))
	s.logger.Info("stock adjusted",
		"material_id", id,
		"direction", dto.Operation,
		"quantity", dto.Quantity,
		"current_stock", m.CurrentStock,
		"user_id", caller.ID)

	if dto.Operation == DirectionSubtract && m.StockStatus() == StockLow {
		s.notify(ctx, events.NewMaterialLowStockEvent(m.ID, m.Name, m.Unit, m.CurrentStock, m.MinStock))
	}
	return m, nil
}

// LowStock lists active materials at or below their minimum. It is used by the
// background scan and carries no caller.
func (s *Service) LowStock(ctx context.Context) ([]*Material, error) {
	ctx, span := tracer.Start(ctx, "material.LowStock")
	defer span.End()

	rows, err := s.repo.LowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan low stock: %w", err)
	}
	return fromRows(rows), nil
}

// NotifyLowStock publishes one low-stock event per material and returns how many were sent.
func (s *Service) NotifyLowStock(ctx context.Context) (int, error) {
	items, err := s.LowStock(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range items {
		s.notify(ctx, events.NewMaterialLowStockEvent(m.ID, m.Name, m.Unit, m.CurrentStock, m.MinStock))
	}
	return len(items), nil
}

func (s *Service) checkUnique(ctx context.Context, selfID int64, name, barcode *string) error {
	if name != nil {
		existing, err := s.repo.GetByName(ctx, strings.TrimSpace(*name))
		switch {
		case err == nil && existing.ID != selfID:
			return ErrDuplicateName
		case err != nil && !errors.Is(err, ErrMaterialNotFound):
			return internal.NewInternalError("failed to check material name", err)
		}
	}
	if barcode != nil && *barcode != "" {
		existing, err := s.repo.GetByBarcode(ctx, *barcode)
		switch {
		case err == nil && existing.ID != selfID:
			return ErrDuplicateBarcode
		case err != nil && !errors.Is(err, ErrMaterialNotFound):
			return internal.NewInternalError("failed to check material barcode", err)
		}
	}
	return nil
}

func (s *Service) storeError(err error, message string, id int64) error {
	if errors.Is(err, ErrMaterialNotFound) {
		return ErrMaterialNotFound
	}
	s.logger.Error(message, "error", err, "material_id", id)
	return internal.NewInternalError(message, err)
}

func (s *Service) record(direction Direction, outcome string) {
	if s.recorder != nil {
		s.recorder.StockAdjusted(string(direction), outcome)
	}
}

func (s *Service) notify(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish material event", "error", err, "event_type", e.EventType())
	}
}
