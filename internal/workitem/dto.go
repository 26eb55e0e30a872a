package workitem

import (
	"fmt"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/core/common/validation"
	"github.com/frahmantamala/maintenance-management/internal/query"
)

// CreateDTO accepts both vocabularies: tasks send type, dueDate and durations in
// minutes; defects send category, repairDate, costs and repair time in hours.
type CreateDTO struct {
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Type                string         `json:"type,omitempty"`
	Category            string         `json:"category,omitempty"`
	Priority            Priority       `json:"priority,omitempty"`
	Location            string         `json:"location,omitempty"`
	DueDate             *time.Time     `json:"dueDate,omitempty"`
	RepairDate          *time.Time     `json:"repairDate,omitempty"`
	AssignedTo          *int64         `json:"assignedTo,omitempty"`
	Materials           []MaterialLine `json:"materials,omitempty"`
	Remarks             string         `json:"remarks,omitempty"`
	EstimatedDuration   *float64       `json:"estimatedDuration,omitempty"`
	EstimatedRepairTime *float64       `json:"estimatedRepairTime,omitempty"`
	EstimatedCost       *float64       `json:"estimatedCost,omitempty"`
}

func (d CreateDTO) category() string {
	if d.Type != "" {
		return d.Type
	}
	return d.Category
}

func (d CreateDTO) Validate(v Variant) error {
	b := validation.NewValidator()
	b.Field("title", d.Title).Required().MinLength(3).MaxLength(200)
	b.Field("description", d.Description).Required().MinLength(10)
	b.Field(categoryField(v), d.category()).Required().OneOf(v.Categories, internal.ErrCodeInvalidCategory)
	b.Field("priority", string(d.Priority)).OneOf(Priorities, internal.ErrCodeInvalidPriority)
	if v.Kind == KindDefect {
		b.Field("location", d.Location).Required().MinLength(2)
	}
	b.Field("materials", d.Materials).Custom(validateLines)
	b.Field(effortField(v, "estimated"), d.estimatedEffort(v)).MinFloat(0, internal.ErrCodeValidationFailed)
	b.Field("estimatedCost", d.EstimatedCost).MinFloat(0, internal.ErrCodeValidationFailed)
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

func (d CreateDTO) estimatedEffort(v Variant) *float64 {
	if v.Kind == KindDefect {
		return d.EstimatedRepairTime
	}
	return d.EstimatedDuration
}

// UpdateDTO is a partial update. Assignment has its own operation.
type UpdateDTO struct {
	Title               *string         `json:"title,omitempty"`
	Description         *string         `json:"description,omitempty"`
	Type                *string         `json:"type,omitempty"`
	Category            *string         `json:"category,omitempty"`
	Priority            *Priority       `json:"priority,omitempty"`
	Status              *Status         `json:"status,omitempty"`
	Location            *string         `json:"location,omitempty"`
	DueDate             *time.Time      `json:"dueDate,omitempty"`
	RepairDate          *time.Time      `json:"repairDate,omitempty"`
	Materials           *[]MaterialLine `json:"materials,omitempty"`
	Remarks             *string         `json:"remarks,omitempty"`
	EstimatedDuration   *float64        `json:"estimatedDuration,omitempty"`
	ActualDuration      *float64        `json:"actualDuration,omitempty"`
	EstimatedRepairTime *float64        `json:"estimatedRepairTime,omitempty"`
	ActualRepairTime    *float64        `json:"actualRepairTime,omitempty"`
	EstimatedCost       *float64        `json:"estimatedCost,omitempty"`
	ActualCost          *float64        `json:"actualCost,omitempty"`
	// Version, when sent, must match the stored version.
	Version *int64 `json:"version,omitempty"`
}

func (d UpdateDTO) category() *string {
	if d.Type != nil {
		return d.Type
	}
	return d.Category
}

func (d UpdateDTO) Validate(v Variant) error {
	b := validation.NewValidator()
	if d.Title != nil {
		b.Field("title", d.Title).Required().MinLength(3).MaxLength(200)
	}
	if d.Description != nil {
		b.Field("description", d.Description).Required().MinLength(10)
	}
	if c := d.category(); c != nil {
		b.Field(categoryField(v), c).Required().OneOf(v.Categories, internal.ErrCodeInvalidCategory)
	}
	if d.Priority != nil {
		b.Field("priority", string(*d.Priority)).Required().OneOf(Priorities, internal.ErrCodeInvalidPriority)
	}
	if d.Location != nil && v.Kind == KindDefect {
		b.Field("location", d.Location).Required().MinLength(2)
	}
	if d.Materials != nil {
		b.Field("materials", *d.Materials).Custom(validateLines)
	}
	b.Field(effortField(v, "estimated"), d.effort(v, true)).MinFloat(0, internal.ErrCodeValidationFailed)
	b.Field(effortField(v, "actual"), d.effort(v, false)).MinFloat(0, internal.ErrCodeValidationFailed)
	b.Field("estimatedCost", d.EstimatedCost).MinFloat(0, internal.ErrCodeValidationFailed)
	b.Field("actualCost", d.ActualCost).MinFloat(0, internal.ErrCodeValidationFailed)
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

func (d UpdateDTO) effort(v Variant, estimated bool) *float64 {
	switch {
	case v.Kind == KindDefect && estimated:
		return d.EstimatedRepairTime
	case v.Kind == KindDefect:
		return d.ActualRepairTime
	case estimated:
		return d.EstimatedDuration
	default:
		return d.ActualDuration
	}
}

func (d UpdateDTO) dueDate(v Variant) *time.Time {
	if v.Kind == KindDefect {
		return d.RepairDate
	}
	return d.DueDate
}

type AssignDTO struct {
	AssignedTo int64 `json:"assignedTo"`
}

func (d AssignDTO) Validate() error {
	b := validation.NewValidator()
	b.Field("assignedTo", d.AssignedTo).Required()
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

func categoryField(v Variant) string {
	if v.Kind == KindDefect {
		return "category"
	}
	return "type"
}

func effortField(v Variant, prefix string) string {
	if v.Kind == KindDefect {
		return prefix + "RepairTime"
	}
	return prefix + "Duration"
}

func validateLines(value interface{}) *internal.AppError {
	lines, _ := value.([]MaterialLine)
	for i, l := range lines {
		if l.MaterialID <= 0 {
			return internal.NewValidationFieldError(fmt.Sprintf("materials[%d].materialId", i), "materialId is required", internal.ErrCodeValidationFailed)
		}
		if l.Quantity <= 0 {
			return internal.NewValidationFieldError(fmt.Sprintf("materials[%d].quantity", i), "quantity must be greater than 0", internal.ErrCodeInvalidQuantity)
		}
		if l.Used < 0 || l.Cost < 0 {
			return internal.NewValidationFieldError(fmt.Sprintf("materials[%d]", i), "used and cost must not be negative", internal.ErrCodeValidationFailed)
		}
	}
	return nil
}

type Response struct {
	ID                  int64          `json:"id"`
	Kind                Kind           `json:"kind"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Type                string         `json:"type,omitempty"`
	Category            string         `json:"category,omitempty"`
	Priority            Priority       `json:"priority"`
	Status              Status         `json:"status"`
	CreatedBy           *int64         `json:"createdBy,omitempty"`
	ReportedBy          *int64         `json:"reportedBy,omitempty"`
	AssignedTo          *int64         `json:"assignedTo,omitempty"`
	Location            string         `json:"location,omitempty"`
	DueDate             *time.Time     `json:"dueDate,omitempty"`
	RepairDate          *time.Time     `json:"repairDate,omitempty"`
	CompletedAt         *time.Time     `json:"completedAt,omitempty"`
	Materials           []MaterialLine `json:"materials"`
	Remarks             string         `json:"remarks,omitempty"`
	EstimatedDuration   *float64       `json:"estimatedDuration,omitempty"`
	ActualDuration      *float64       `json:"actualDuration,omitempty"`
	EstimatedRepairTime *float64       `json:"estimatedRepairTime,omitempty"`
	ActualRepairTime    *float64       `json:"actualRepairTime,omitempty"`
	EstimatedCost       *float64       `json:"estimatedCost,omitempty"`
	ActualCost          *float64       `json:"actualCost,omitempty"`
	Version             int64          `json:"version"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func (w *WorkItem) ToResponse() Response {
	creator := w.CreatedBy
	estimated := w.EstimatedEffort
	r := Response{
		ID:          w.ID,
		Kind:        w.Kind,
		Title:       w.Title,
		Description: w.Description,
		Priority:    w.Priority,
		Status:      w.Status,
		AssignedTo:  w.AssignedTo,
		Location:    w.Location,
		CompletedAt: w.CompletedAt,
		Materials:   w.Materials,
		Remarks:     w.Remarks,
		Version:     w.Version,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	if r.Materials == nil {
		r.Materials = []MaterialLine{}
	}

	if w.Kind == KindDefect {
		estimatedCost, actualCost := w.EstimatedCost, w.ActualCost
		r.Category = w.Category
		r.ReportedBy = &creator
		r.RepairDate = w.DueDate
		r.EstimatedRepairTime = &estimated
		r.ActualRepairTime = w.ActualEffort
		r.EstimatedCost = &estimatedCost
		r.ActualCost = &actualCost
		return r
	}

	r.Type = w.Category
	r.CreatedBy = &creator
	r.DueDate = w.DueDate
	r.EstimatedDuration = &estimated
	r.ActualDuration = w.ActualEffort
	return r
}

type ListResponse struct {
	Items      []Response `json:"items"`
	Pagination query.Page `json:"pagination"`
}

func ToResponses(items []*WorkItem) []Response {
	out := make([]Response, len(items))
	for i, w := range items {
		out[i] = w.ToResponse()
	}
	return out
}
