package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/frahmantamala/maintenance-management/internal"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Field names the ownership reference a scope restricts on.
type Field string

const (
	FieldNone     Field = ""
	FieldAssignee Field = "assignee"
	FieldCreator  Field = "creator"
	// FieldNothing matches no record.
	FieldNothing Field = "nothing"
)

// Scope is the mandatory visibility restriction of one caller on one resource.
// The zero value is unrestricted.
type Scope struct {
	Field  Field
	UserID int64
}

func Unrestricted() Scope {
	return Scope{}
}

func RestrictTo(field Field, userID int64) Scope {
	return Scope{Field: field, UserID: userID}
}

func Nothing() Scope {
	return Scope{Field: FieldNothing}
}

func (s Scope) Restricted() bool {
	return s.Field != FieldNone
}

// Permits applies the scope to a single record.
func (s Scope) Permits(creatorID int64, assigneeID *int64) bool {
	switch s.Field {
	case FieldNone:
		return true
	case FieldCreator:
		return creatorID == s.UserID
	case FieldAssignee:
		return assigneeID != nil && *assigneeID == s.UserID
	default:
		return false
	}
}

type Params struct {
	Filters   map[string]string
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type Filter struct {
	Column  string
	Int     bool
	Allowed []string
}

type Condition struct {
	Column string
	Value  interface{}
	// Expr, when set, is used verbatim with Args instead of Column = Value.
	Expr string
	Args []interface{}
}

type Order struct {
	Column string
	Desc   bool
}

// Spec describes what a resource exposes to list queries.
type Spec struct {
	Resource      string
	Filters       map[string]Filter
	Derived       map[string]map[string]Condition
	SearchColumns []string
	SortFields    map[string]string
	DefaultSort   string
	DefaultDesc   bool
	ScopeColumns  map[Field]string
	Base          []Condition
}

// Plan is the resolved, store-agnostic list query.
type Plan struct {
	Conditions    []Condition
	SearchTerm    string
	SearchColumns []string
	Sort          []Order
	Page          int
	Limit         int
	Offset        int
	// Empty marks a plan that can match nothing, e.g. a filter contradicting the scope.
	Empty bool
}

// Resolve conjoins the scope with the caller's filters. The scope condition is
// always present in the plan and a filter can only narrow it.
func Resolve(scope Scope, params Params, spec Spec) (Plan, error) {
	plan := Plan{
		Page:  params.Page,
		Limit: params.Limit,
	}
	if plan.Page < 1 {
		plan.Page = DefaultPage
	}
	if plan.Limit < 1 {
		plan.Limit = DefaultLimit
	}
	if plan.Limit > MaxLimit {
		plan.Limit = MaxLimit
	}
	plan.Offset = (plan.Page - 1) * plan.Limit

	plan.Conditions = append(plan.Conditions, spec.Base...)

	keys := make([]string, 0, len(params.Filters))
	for k := range params.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var filterConds []Condition
	for _, key := range keys {
		value := strings.TrimSpace(params.Filters[key])
		if value == "" {
			continue
		}

		if derived, ok := spec.Derived[key]; ok {
			cond, ok := derived[value]
			if !ok {
				return Plan{}, internal.NewValidationFieldError(key, fmt.Sprintf("unsupported %s value %q", key, value), internal.ErrCodeInvalidQuery)
			}
			filterConds = append(filterConds, cond)
			continue
		}

		f, ok := spec.Filters[key]
		if !ok {
			continue
		}
		if len(f.Allowed) > 0 && !contains(f.Allowed, value) {
			return Plan{}, internal.NewValidationFieldError(key, fmt.Sprintf("unsupported %s value %q", key, value), internal.ErrCodeInvalidQuery)
		}
		if f.Int {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Plan{}, internal.NewValidationFieldError(key, fmt.Sprintf("%s must be an integer", key), internal.ErrCodeInvalidQuery)
			}
			filterConds = append(filterConds, Condition{Column: f.Column, Value: n})
			continue
		}
		filterConds = append(filterConds, Condition{Column: f.Column, Value: value})
	}

	if scope.Restricted() {
		column, ok := spec.ScopeColumns[scope.Field]
		if !ok || column == "" {
			plan.Empty = true
		} else {
			kept := filterConds[:0]
			for _, c := range filterConds {
				if c.Expr == "" && c.Column == column {
					if !sameID(c.Value, scope.UserID) {
						plan.Empty = true
					}
					continue
				}
				kept = append(kept, c)
			}
			filterConds = kept
			plan.Conditions = append(plan.Conditions, Condition{Column: column, Value: scope.UserID})
		}
	}
	plan.Conditions = append(plan.Conditions, filterConds...)

	if term := strings.TrimSpace(params.Search); term != "" && len(spec.SearchColumns) > 0 {
		plan.SearchTerm = term
		plan.SearchColumns = append([]string(nil), spec.SearchColumns...)
	}

	sortColumn, ok := spec.SortFields[params.SortBy]
	if !ok {
		sortColumn = spec.SortFields[spec.DefaultSort]
	}
	desc := spec.DefaultDesc
	switch strings.ToLower(params.SortOrder) {
	case "asc":
		desc = false
	case "desc":
		desc = true
	}
	if sortColumn != "" {
		plan.Sort = append(plan.Sort, Order{Column: sortColumn, Desc: desc})
	}
	if sortColumn != "id" {
		plan.Sort = append(plan.Sort, Order{Column: "id", Desc: desc})
	}

	return plan, nil
}

func sameID(v interface{}, id int64) bool {
	switch n := v.(type) {
	case int64:
		return n == id
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return err == nil && parsed == id
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Page is the pagination envelope returned with list responses.
type Page struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
}

func NewPage(plan Plan, total int64) Page {
	pages := 0
	if plan.Limit > 0 {
		pages = int((total + int64(plan.Limit) - 1) / int64(plan.Limit))
	}
	return Page{Current: plan.Page, Pages: pages, Total: total, Limit: plan.Limit}
}
