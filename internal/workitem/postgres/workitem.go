package postgres

import (
	"context"
	"errors"
	"time"

	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/query"
	queryPostgres "github.com/frahmantamala/maintenance-management/internal/query/postgres"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	"gorm.io/gorm"
)

// WorkItemRepository stores one variant. Tasks and defects share the row shape
// but live in separate tables.
type WorkItemRepository struct {
	db    *gorm.DB
	table string
}

func NewWorkItemRepository(db *gorm.DB, table string) workitem.RepositoryAPI {
	return &WorkItemRepository{db: db, table: table}
}

func (r *WorkItemRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

func (r *WorkItemRepository) Find(ctx context.Context, plan query.Plan) ([]*workitemDatamodel.WorkItem, int64, error) {
	return queryPostgres.Find[*workitemDatamodel.WorkItem](ctx, r.db.Table(r.table), plan)
}

func (r *WorkItemRepository) FindByID(ctx context.Context, id int64) (*workitemDatamodel.WorkItem, error) {
	var row workitemDatamodel.WorkItem
	if err := r.scoped(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workitem.ErrItemNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *WorkItemRepository) Insert(ctx context.Context, row *workitemDatamodel.WorkItem) error {
	if row.Version == 0 {
		row.Version = 1
	}
	return r.scoped(ctx).Create(row).Error
}

// ConditionalUpdate bumps the version in the same statement that checks it.
// completed_at is only ever filled, never replaced.
func (r *WorkItemRepository) ConditionalUpdate(ctx context.Context, id, version int64, changes map[string]interface{}, stamp *time.Time) (*workitemDatamodel.WorkItem, error) {
	set := make(map[string]interface{}, len(changes)+3)
	for k, v := range changes {
		set[k] = v
	}
	set["version"] = gorm.Expr("version + 1")
	set["updated_at"] = time.Now()
	if stamp != nil {
		set["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", *stamp)
	}

	res := r.scoped(ctx).Where("id = ? AND version = ?", id, version).Updates(set)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, workitem.ErrVersionConflict
	}
	return r.FindByID(ctx, id)
}

func (r *WorkItemRepository) Delete(ctx context.Context, id int64) error {
	res := r.scoped(ctx).Where("id = ?", id).Delete(&workitemDatamodel.WorkItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workitem.ErrItemNotFound
	}
	return nil
}
