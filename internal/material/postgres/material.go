package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	materialDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/material"
	"github.com/frahmantamala/maintenance-management/internal/material"
	"github.com/frahmantamala/maintenance-management/internal/query"
	queryPostgres "github.com/frahmantamala/maintenance-management/internal/query/postgres"
	"gorm.io/gorm"
)

const (
	addStockSQL      = "UPDATE materials SET current_stock = current_stock + ?, updated_at = ? WHERE id = ? AND is_active RETURNING *"
	subtractStockSQL = "UPDATE materials SET current_stock = current_stock - ?, updated_at = ? WHERE id = ? AND is_active AND current_stock >= ? RETURNING *"
)

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) material.RepositoryAPI {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) Create(ctx context.Context, row *materialDatamodel.Material) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *MaterialRepository) GetByID(ctx context.Context, id int64) (*materialDatamodel.Material, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *MaterialRepository) GetByName(ctx context.Context, name string) (*materialDatamodel.Material, error) {
	return r.first(ctx, "LOWER(name) = ?", strings.ToLower(name))
}

func (r *MaterialRepository) GetByBarcode(ctx context.Context, barcode string) (*materialDatamodel.Material, error) {
	return r.first(ctx, "barcode = ?", barcode)
}

func (r *MaterialRepository) first(ctx context.Context, where string, args ...interface{}) (*materialDatamodel.Material, error) {
	var row materialDatamodel.Material
	if err := r.db.WithContext(ctx).Where(where, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, material.ErrMaterialNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *MaterialRepository) Update(ctx context.Context, id int64, changes map[string]interface{}) (*materialDatamodel.Material, error) {
	set := make(map[string]interface{}, len(changes)+1)
	for k, v := range changes {
		set[k] = v
	}
	set["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Model(&materialDatamodel.Material{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(set)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, material.ErrMaterialNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MaterialRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&materialDatamodel.Material{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return material.ErrMaterialNotFound
	}
	return nil
}

func (r *MaterialRepository) Find(ctx context.Context, plan query.Plan) ([]*materialDatamodel.Material, int64, error) {
	return queryPostgres.Find[*materialDatamodel.Material](ctx, r.db.Model(&materialDatamodel.Material{}), plan)
}

func (r *MaterialRepository) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := r.db.WithContext(ctx).Model(&materialDatamodel.Material{}).
		Where("is_active = ?", true).
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	return categories, err
}

func (r *MaterialRepository) LowStock(ctx context.Context) ([]*materialDatamodel.Material, error) {
	var rows []*materialDatamodel.Material
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND current_stock <= min_stock", true).
		Order("name").
		Find(&rows).Error
	return rows, err
}

func (r *MaterialRepository) AddStock(ctx context.Context, id, quantity int64) (*materialDatamodel.Material, error) {
	var row materialDatamodel.Material
	res := r.db.WithContext(ctx).Raw(addStockSQL, quantity, time.Now(), id).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, material.ErrMaterialNotFound
	}
	return &row, nil
}

// SubtractStock checks, decrements and returns the row in one statement. Only when
// no row matched does a re-read tell a missing or inactive material apart from a
// short stock.
func (r *MaterialRepository) SubtractStock(ctx context.Context, id, quantity int64) (*materialDatamodel.Material, error) {
	var updated materialDatamodel.Material
	res := r.db.WithContext(ctx).Raw(subtractStockSQL, quantity, time.Now(), id, quantity).Scan(&updated)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		row, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !row.IsActive {
			return nil, material.ErrMaterialNotFound
		}
		return nil, material.ErrInsufficientStock
	}
	return &updated, nil
}
