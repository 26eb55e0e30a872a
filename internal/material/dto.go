package material

import (
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/core/common/validation"
	"github.com/frahmantamala/maintenance-management/internal/query"
)

type SupplierDTO struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type LocationDTO struct {
	Warehouse string `json:"warehouse,omitempty"`
	Shelf     string `json:"shelf,omitempty"`
	Bin       string `json:"bin,omitempty"`
}

type CreateDTO struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Category     string       `json:"category"`
	Unit         string       `json:"unit"`
	CurrentStock int64        `json:"currentStock"`
	MinStock     int64        `json:"minStock"`
	MaxStock     *int64       `json:"maxStock,omitempty"`
	UnitPrice    float64      `json:"unitPrice"`
	Supplier     *SupplierDTO `json:"supplier,omitempty"`
	Location     *LocationDTO `json:"location,omitempty"`
	Barcode      *string      `json:"barcode,omitempty"`
}

func (d CreateDTO) maxStock() int64 {
	if d.MaxStock == nil {
		return DefaultMaxStock
	}
	return *d.MaxStock
}

func (d CreateDTO) Validate() error {
	b := validation.NewValidator()
	b.Field("name", d.Name).Required().MinLength(2).MaxLength(120)
	b.Field("category", d.Category).Required().MaxLength(60)
	b.Field("unit", d.Unit).Required().MaxLength(20)
	b.Field("currentStock", d.CurrentStock).MinInt(0, internal.ErrCodeInvalidQuantity)
	b.Field("minStock", d.MinStock).MinInt(0, internal.ErrCodeInvalidQuantity)
	b.Field("maxStock", d.maxStock()).MinInt(d.MinStock, internal.ErrCodeInvalidQuantity)
	b.Field("unitPrice", d.UnitPrice).MinFloat(0, internal.ErrCodeValidationFailed)
	if d.Supplier != nil {
		b.Field("supplier.email", d.Supplier.Email).Email()
	}
	if d.Barcode != nil {
		b.Field("barcode", d.Barcode).Required()
	}
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateDTO edits catalogue fields. Stock moves only through AdjustStock.
type UpdateDTO struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Unit        *string      `json:"unit,omitempty"`
	MinStock    *int64       `json:"minStock,omitempty"`
	MaxStock    *int64       `json:"maxStock,omitempty"`
	UnitPrice   *float64     `json:"unitPrice,omitempty"`
	Supplier    *SupplierDTO `json:"supplier,omitempty"`
	Location    *LocationDTO `json:"location,omitempty"`
	Barcode     *string      `json:"barcode,omitempty"`
}

func (d UpdateDTO) Validate() error {
	b := validation.NewValidator()
	if d.Name != nil {
		b.Field("name", d.Name).Required().MinLength(2).MaxLength(120)
	}
	if d.Category != nil {
		b.Field("category", d.Category).Required().MaxLength(60)
	}
	if d.Unit != nil {
		b.Field("unit", d.Unit).Required().MaxLength(20)
	}
	b.Field("minStock", d.MinStock).MinInt(0, internal.ErrCodeInvalidQuantity)
	b.Field("maxStock", d.MaxStock).MinInt(0, internal.ErrCodeInvalidQuantity)
	b.Field("unitPrice", d.UnitPrice).MinFloat(0, internal.ErrCodeValidationFailed)
	if d.Supplier != nil {
		b.Field("supplier.email", d.Supplier.Email).Email()
	}
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

func (d UpdateDTO) changes() map[string]interface{} {
	out := map[string]interface{}{}
	if d.Name != nil {
		out["name"] = *d.Name
	}
	if d.Description != nil {
		out["description"] = *d.Description
	}
	if d.Category != nil {
		out["category"] = *d.Category
	}
	if d.Unit != nil {
		out["unit"] = *d.Unit
	}
	if d.MinStock != nil {
		out["min_stock"] = *d.MinStock
	}
	if d.MaxStock != nil {
		out["max_stock"] = *d.MaxStock
	}
	if d.UnitPrice != nil {
		out["unit_price"] = *d.UnitPrice
	}
	if s := d.Supplier; s != nil {
		out["supplier_name"] = s.Name
		out["supplier_contact"] = s.Contact
		out["supplier_email"] = s.Email
		out["supplier_phone"] = s.Phone
	}
	if l := d.Location; l != nil {
		out["location_warehouse"] = l.Warehouse
		out["location_shelf"] = l.Shelf
		out["location_bin"] = l.Bin
	}
	if d.Barcode != nil {
		if *d.Barcode == "" {
			out["barcode"] = nil
		} else {
			out["barcode"] = *d.Barcode
		}
	}
	return out
}

// StockDTO is the body of POST /materials/{id}/stock.
type StockDTO struct {
	Quantity  int64     `json:"quantity"`
	Operation Direction `json:"operation"`
}

func (d StockDTO) Validate() error {
	b := validation.NewValidator()
	b.Field("quantity", d.Quantity).MinInt(1, internal.ErrCodeInvalidQuantity)
	b.Field("operation", string(d.Operation)).Required().
		OneOf([]string{string(DirectionAdd), string(DirectionSubtract)}, internal.ErrCodeInvalidOperation)
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

type Response struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Category     string      `json:"category"`
	Unit         string      `json:"unit"`
	CurrentStock int64       `json:"currentStock"`
	MinStock     int64       `json:"minStock"`
	MaxStock     int64       `json:"maxStock"`
	UnitPrice    float64     `json:"unitPrice"`
	StockStatus  StockStatus `json:"stockStatus"`
	Supplier     SupplierDTO `json:"supplier"`
	Location     LocationDTO `json:"location"`
	Barcode      *string     `json:"barcode,omitempty"`
	IsActive     bool        `json:"isActive"`
	CreatedBy    int64       `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (m *Material) ToResponse() Response {
	return Response{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Category:     m.Category,
		Unit:         m.Unit,
		CurrentStock: m.CurrentStock,
		MinStock:     m.MinStock,
		MaxStock:     m.MaxStock,
		UnitPrice:    m.UnitPrice,
		StockStatus:  m.StockStatus(),
		Supplier: SupplierDTO{
			Name:    m.Supplier.Name,
			Contact: m.Supplier.Contact,
			Email:   m.Supplier.Email,
			Phone:   m.Supplier.Phone,
		},
		Location: LocationDTO{
			Warehouse: m.StorageLocation.Warehouse,
			Shelf:     m.StorageLocation.Shelf,
			Bin:       m.StorageLocation.Bin,
		},
		Barcode:   m.Barcode,
		IsActive:  m.IsActive,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToResponses(items []*Material) []Response {
	out := make([]Response, len(items))
	for i, m := range items {
		out[i] = m.ToResponse()
	}
	return out
}

type ListResponse struct {
	Materials  []Response `json:"materials"`
	Pagination query.Page `json:"pagination"`
}

type StockResponse struct {
	Material Response `json:"material"`
}
