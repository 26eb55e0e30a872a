package material

import "time"

type Material struct {
	ID              int64           `gorm:"primaryKey"`
	Name            string          `gorm:"column:name;uniqueIndex;not null"`
	Description     string          `gorm:"column:description"`
	Category        string          `gorm:"column:category;not null;index"`
	Unit            string          `gorm:"column:unit;not null"`
	CurrentStock    int64           `gorm:"column:current_stock;not null;default:0"`
	MinStock        int64           `gorm:"column:min_stock;not null;default:0"`
	MaxStock        int64           `gorm:"column:max_stock;not null;default:100"`
	UnitPrice       float64         `gorm:"column:unit_price;not null;default:0"`
	Supplier        Supplier        `gorm:"embedded;embeddedPrefix:supplier_"`
	StorageLocation StorageLocation `gorm:"embedded;embeddedPrefix:location_"`
	Barcode         *string         `gorm:"column:barcode;uniqueIndex"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedBy       int64           `gorm:"column:created_by;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Material) TableName() string {
	return "materials"
}

type Supplier struct {
	Name    string `gorm:"column:name"`
	Contact string `gorm:"column:contact"`
	Email   string `gorm:"column:email"`
	Phone   string `gorm:"column:phone"`
}

type StorageLocation struct {
	Warehouse string `gorm:"column:warehouse"`
	Shelf     string `gorm:"column:shelf"`
	Bin       string `gorm:"column:bin"`
}
