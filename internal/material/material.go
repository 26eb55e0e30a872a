package material

import (
	"time"

	materialDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/material"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
)

const DefaultMaxStock int64 = 100

type StockStatus string

const (
	StockLow    StockStatus = "low"
	StockNormal StockStatus = "normal"
	StockHigh   StockStatus = "high"
)

type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "subtract"
)

type Supplier = materialDatamodel.Supplier

type StorageLocation = materialDatamodel.StorageLocation

type Material struct {
	ID              int64
	Name            string
	Description     string
	Category        string
	Unit            string
	CurrentStock    int64
	MinStock        int64
	MaxStock        int64
	UnitPrice       float64
	Supplier        Supplier
	StorageLocation StorageLocation
	Barcode         *string
	IsActive        bool
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StockStatus is low at or below the minimum and high at or above the maximum.
func (m *Material) StockStatus() StockStatus {
	switch {
	case m.CurrentStock <= m.MinStock:
		return StockLow
	case m.CurrentStock >= m.MaxStock:
		return StockHigh
	default:
		return StockNormal
	}
}

// ListSpec exposes active materials only. stockStatus compares columns, so it is
// expressed as a derived condition. The buckets are disjoint and low wins when
// min and max coincide, as in StockStatus.
var ListSpec = query.Spec{
	Resource: string(user.ResourceMaterials),
	Filters: map[string]query.Filter{
		"category": {Column: "category"},
	},
	Derived: map[string]map[string]query.Condition{
		"stockStatus": {
			string(StockLow):    {Expr: "current_stock <= min_stock"},
			string(StockHigh):   {Expr: "current_stock >= max_stock AND current_stock > min_stock"},
			string(StockNormal): {Expr: "current_stock > min_stock AND current_stock < max_stock"},
		},
	},
	SearchColumns: []string{"name", "description", "category"},
	SortFields: map[string]string{
		"name":         "name",
		"category":     "category",
		"currentStock": "current_stock",
		"unitPrice":    "unit_price",
		"createdAt":    "created_at",
	},
	DefaultSort: "name",
	Base:        []query.Condition{{Column: "is_active", Value: true}},
}

func ToDataModel(m *Material) *materialDatamodel.Material {
	return &materialDatamodel.Material{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Category:        m.Category,
		Unit:            m.Unit,
		CurrentStock:    m.CurrentStock,
		MinStock:        m.MinStock,
		MaxStock:        m.MaxStock,
		UnitPrice:       m.UnitPrice,
		Supplier:        m.Supplier,
		StorageLocation: m.StorageLocation,
		Barcode:         m.Barcode,
		IsActive:        m.IsActive,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func FromDataModel(row *materialDatamodel.Material) *Material {
	return &Material{
		ID:              row.ID,
		Name:            row.Name,
		Description:     row.Description,
		Category:        row.Category,
		Unit:            row.Unit,
		CurrentStock:    row.CurrentStock,
		MinStock:        row.MinStock,
		MaxStock:        row.MaxStock,
		UnitPrice:       row.UnitPrice,
		Supplier:        row.Supplier,
		StorageLocation: row.StorageLocation,
		Barcode:         row.Barcode,
		IsActive:        row.IsActive,
		CreatedBy:       row.CreatedBy,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func fromRows(rows []*materialDatamodel.Material) []*Material {
	out := make([]*Material, len(rows))
	for i, row := range rows {
		out[i] = FromDataModel(row)
	}
	return out
}
