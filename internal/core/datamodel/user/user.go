package user

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type User struct {
	ID                   int64          `gorm:"primaryKey"`
	Email                string         `gorm:"column:email;uniqueIndex;not null"`
	FirstName            string         `gorm:"column:first_name;not null"`
	LastName             string         `gorm:"column:last_name;not null"`
	PasswordHash         string         `gorm:"column:password_hash;not null"`
	Department           string         `gorm:"column:department"`
	Phone                string         `gorm:"column:phone"`
	Role                 string         `gorm:"column:role;not null;default:operator"`
	Status               string         `gorm:"column:status;not null;default:pending"`
	Permissions          PermissionGrid `gorm:"column:permissions;type:text"`
	PermissionOverrides  PermissionGrid `gorm:"column:permission_overrides;type:text"`
	AssignedTechnicianID *int64         `gorm:"column:assigned_technician_id"`
	RejectionReason      string         `gorm:"column:rejection_reason"`
	ApprovedBy           *int64         `gorm:"column:approved_by"`
	ApprovedAt           *time.Time     `gorm:"column:approved_at"`
	LastLoginAt          *time.Time     `gorm:"column:last_login_at"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// PermissionGrid is stored as a JSON document.
type PermissionGrid map[string]map[string]bool

func (g PermissionGrid) Value() (driver.Value, error) {
	if g == nil {
		return "{}", nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (g *PermissionGrid) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = PermissionGrid{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported permission grid source %T", src)
	}
	if len(raw) == 0 {
		*g = PermissionGrid{}
		return nil
	}
	return json.Unmarshal(raw, g)
}
