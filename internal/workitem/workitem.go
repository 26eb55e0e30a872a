package workitem

import (
	"time"

	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
)

type Kind string

const (
	KindTask   Kind = "task"
	KindDefect Kind = "defect"
)

type Priority string

const (
	PriorityLow      Priority = "niski"
	PriorityMedium   Priority = "średni"
	PriorityHigh     Priority = "wysoki"
	PriorityCritical Priority = "krytyczny"
)

var Priorities = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh), string(PriorityCritical)}

var (
	taskTypes        = []string{"dzienna", "nocna", "tygodniowa", "miesięczna", "awaryjna"}
	defectCategories = []string{"mechaniczna", "elektryczna", "hydrauliczna", "pneumatyczna", "inne"}
)

type MaterialLine = workitemDatamodel.MaterialLine

type WorkItem struct {
	ID              int64
	Kind            Kind
	Title           string
	Description     string
	Category        string
	Priority        Priority
	Status          Status
	CreatedBy       int64
	AssignedTo      *int64
	Location        string
	DueDate         *time.Time
	CompletedAt     *time.Time
	Materials       []MaterialLine
	Remarks         string
	EstimatedEffort float64
	ActualEffort    *float64
	EstimatedCost   float64
	ActualCost      float64
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (w *WorkItem) Creator() int64 { return w.CreatedBy }

func (w *WorkItem) Assignee() *int64 { return w.AssignedTo }

func (w *WorkItem) State() State {
	return State{Status: w.Status, CompletedAt: w.CompletedAt}
}

// Variant binds a lifecycle machine to its resource, table and vocabulary.
type Variant struct {
	Kind       Kind
	Resource   user.Resource
	Table      string
	Machine    Machine
	Categories []string
	// AssignAction is the grid cell that gates assignment.
	AssignAction user.Action
	ListSpec     query.Spec
}

var Tasks = Variant{
	Kind:         KindTask,
	Resource:     user.ResourceTasks,
	Table:        workitemDatamodel.TableTasks,
	Machine:      TaskMachine,
	Categories:   taskTypes,
	AssignAction: user.ActionAssign,
	ListSpec: query.Spec{
		Resource: string(user.ResourceTasks),
		Filters: map[string]query.Filter{
			"status":     {Column: "status", Allowed: TaskMachine.names()},
			"type":       {Column: "category", Allowed: taskTypes},
			"priority":   {Column: "priority", Allowed: Priorities},
			"assignedTo": {Column: "assigned_to", Int: true},
			"createdBy":  {Column: "created_by", Int: true},
		},
		SearchColumns: []string{"title", "description", "location"},
		SortFields: map[string]string{
			"createdAt": "created_at",
			"updatedAt": "updated_at",
			"dueDate":   "due_date",
			"priority":  "priority",
			"status":    "status",
			"title":     "title",
		},
		DefaultSort: "createdAt",
		DefaultDesc: true,
		ScopeColumns: map[query.Field]string{
			query.FieldAssignee: "assigned_to",
			query.FieldCreator:  "created_by",
		},
	},
}

// Defects are assigned under the edit cell; no default role grants assign on defects.
var Defects = Variant{
	Kind:         KindDefect,
	Resource:     user.ResourceDefects,
	Table:        workitemDatamodel.TableDefects,
	Machine:      DefectMachine,
	Categories:   defectCategories,
	AssignAction: user.ActionEdit,
	ListSpec: query.Spec{
		Resource: string(user.ResourceDefects),
		Filters: map[string]query.Filter{
			"status":     {Column: "status", Allowed: DefectMachine.names()},
			"category":   {Column: "category", Allowed: defectCategories},
			"priority":   {Column: "priority", Allowed: Priorities},
			"assignedTo": {Column: "assigned_to", Int: true},
			"reportedBy": {Column: "created_by", Int: true},
		},
		SearchColumns: []string{"title", "description", "location"},
		SortFields: map[string]string{
			"createdAt":  "created_at",
			"updatedAt":  "updated_at",
			"repairDate": "due_date",
			"priority":   "priority",
			"status":     "status",
			"title":      "title",
		},
		DefaultSort: "createdAt",
		DefaultDesc: true,
		ScopeColumns: map[query.Field]string{
			query.FieldAssignee: "assigned_to",
			query.FieldCreator:  "created_by",
		},
	},
}

func ToDataModel(w *WorkItem) *workitemDatamodel.WorkItem {
	return &workitemDatamodel.WorkItem{
		ID:              w.ID,
		Title:           w.Title,
		Description:     w.Description,
		Category:        w.Category,
		Priority:        string(w.Priority),
		Status:          string(w.Status),
		CreatedBy:       w.CreatedBy,
		AssignedTo:      w.AssignedTo,
		Location:        w.Location,
		DueDate:         w.DueDate,
		CompletedAt:     w.CompletedAt,
		Materials:       workitemDatamodel.MaterialLines(w.Materials),
		Remarks:         w.Remarks,
		EstimatedEffort: w.EstimatedEffort,
		ActualEffort:    w.ActualEffort,
		EstimatedCost:   w.EstimatedCost,
		ActualCost:      w.ActualCost,
		Version:         w.Version,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func FromDataModel(kind Kind, row *workitemDatamodel.WorkItem) *WorkItem {
	return &WorkItem{
		ID:              row.ID,
		Kind:            kind,
		Title:           row.Title,
		Description:     row.Description,
		Category:        row.Category,
		Priority:        Priority(row.Priority),
		Status:          Status(row.Status),
		CreatedBy:       row.CreatedBy,
		AssignedTo:      row.AssignedTo,
		Location:        row.Location,
		DueDate:         row.DueDate,
		CompletedAt:     row.CompletedAt,
		Materials:       []MaterialLine(row.Materials),
		Remarks:         row.Remarks,
		EstimatedEffort: row.EstimatedEffort,
		ActualEffort:    row.ActualEffort,
		EstimatedCost:   row.EstimatedCost,
		ActualCost:      row.ActualCost,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
