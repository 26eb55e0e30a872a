package user

import "sort"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleOperator   Role = "operator"
)

var Roles = []Role{RoleAdmin, RoleManager, RoleTechnician, RoleOperator}

func (r Role) Valid() bool {
	_, ok := defaultGrids[r]
	return ok
}

type Resource string

const (
	ResourceTasks     Resource = "tasks"
	ResourceDefects   Resource = "defects"
	ResourceMaterials Resource = "materials"
	ResourceUsers     Resource = "users"
	ResourceReports   Resource = "reports"
)

var Resources = []Resource{ResourceTasks, ResourceDefects, ResourceMaterials, ResourceUsers, ResourceReports}

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionAssign Action = "assign"
)

var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionAssign}

// Grid maps a resource to the actions allowed on it. A missing entry means denied.
type Grid map[Resource]map[Action]bool

func (g Grid) Allows(resource Resource, action Action) bool {
	if g == nil {
		return false
	}
	return g[resource][action]
}

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for res, actions := range g {
		copied := make(map[Action]bool, len(actions))
		for act, allowed := range actions {
			copied[act] = allowed
		}
		out[res] = copied
	}
	return out
}

// Merge returns a copy of g with every explicit entry of overrides applied on top.
// Overrides may both grant and revoke.
func (g Grid) Merge(overrides Grid) Grid {
	out := g.Clone()
	for res, actions := range overrides {
		if out[res] == nil {
			out[res] = make(map[Action]bool, len(actions))
		}
		for act, allowed := range actions {
			out[res][act] = allowed
		}
	}
	return out
}

// Allowed lists the granted actions per resource in a stable order.
func (g Grid) Allowed() map[Resource][]Action {
	out := make(map[Resource][]Action, len(g))
	for res, actions := range g {
		var granted []Action
		for act, ok := range actions {
			if ok {
				granted = append(granted, act)
			}
		}
		sort.Slice(granted, func(i, j int) bool { return granted[i] < granted[j] })
		if len(granted) > 0 {
			out[res] = granted
		}
	}
	return out
}

func grant(actions ...Action) map[Action]bool {
	m := make(map[Action]bool, len(Actions))
	for _, a := range Actions {
		m[a] = false
	}
	for _, a := range actions {
		m[a] = true
	}
	return m
}

// defaultGrids is built once and never handed out directly.
var defaultGrids = map[Role]Grid{
	RoleAdmin: {
		ResourceTasks:     grant(Actions...),
		ResourceDefects:   grant(Actions...),
		ResourceMaterials: grant(Actions...),
		ResourceUsers:     grant(Actions...),
		ResourceReports:   grant(Actions...),
	},
	RoleManager: {
		ResourceTasks:     grant(ActionView, ActionCreate, ActionEdit, ActionAssign),
		ResourceDefects:   grant(ActionView, ActionCreate, ActionEdit),
		ResourceMaterials: grant(ActionView, ActionCreate, ActionEdit),
		ResourceUsers:     grant(ActionView),
		ResourceReports:   grant(ActionView, ActionCreate),
	},
	RoleTechnician: {
		ResourceTasks:     grant(ActionView, ActionCreate, ActionEdit),
		ResourceDefects:   grant(ActionView, ActionCreate, ActionEdit),
		ResourceMaterials: grant(ActionView),
		ResourceUsers:     grant(),
		ResourceReports:   grant(ActionView),
	},
	RoleOperator: {
		ResourceTasks:     grant(ActionView),
		ResourceDefects:   grant(ActionView, ActionCreate),
		ResourceMaterials: grant(ActionView),
		ResourceUsers:     grant(),
		ResourceReports:   grant(),
	},
}

// DefaultGrid returns a private copy of the role's default grid, or an empty grid for unknown roles.
func DefaultGrid(role Role) Grid {
	g, ok := defaultGrids[role]
	if !ok {
		return Grid{}
	}
	return g.Clone()
}
