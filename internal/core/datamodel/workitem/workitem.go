package workitem

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TableTasks   = "tasks"
	TableDefects = "defects"
)

// WorkItem is the row shape shared by the tasks and defects tables.
// Defects store the reporter in created_by and the repair date in due_date.
type WorkItem struct {
	ID              int64         `gorm:"primaryKey"`
	Title           string        `gorm:"column:title;not null"`
	Description     string        `gorm:"column:description;not null"`
	Category        string        `gorm:"column:category;not null"`
	Priority        string        `gorm:"column:priority;not null"`
	Status          string        `gorm:"column:status;not null;index"`
	CreatedBy       int64         `gorm:"column:created_by;not null;index"`
	AssignedTo      *int64        `gorm:"column:assigned_to;index"`
	Location        string        `gorm:"column:location"`
	DueDate         *time.Time    `gorm:"column:due_date"`
	CompletedAt     *time.Time    `gorm:"column:completed_at"`
	Materials       MaterialLines `gorm:"column:materials;type:text"`
	Remarks         string        `gorm:"column:remarks"`
	EstimatedEffort float64       `gorm:"column:estimated_effort"`
	ActualEffort    *float64      `gorm:"column:actual_effort"`
	EstimatedCost   float64       `gorm:"column:estimated_cost"`
	ActualCost      float64       `gorm:"column:actual_cost"`
	Version         int64         `gorm:"column:version;not null;default:1"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

type MaterialLine struct {
	MaterialID int64   `json:"materialId"`
	Quantity   float64 `json:"quantity"`
	Used       float64 `json:"used,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
}

// MaterialLines is stored as a JSON array.
type MaterialLines []MaterialLine

func (m MaterialLines) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *MaterialLines) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = MaterialLines{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported material lines source %T", src)
	}
	if len(raw) == 0 {
		*m = MaterialLines{}
		return nil
	}
	return json.Unmarshal(raw, m)
}
