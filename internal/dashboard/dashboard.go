package dashboard

import "time"

const RecentLimit = 5

type Dashboard struct {
	Statistics       Statistics       `json:"statistics"`
	RecentActivities RecentActivities `json:"recentActivities"`
}

type Statistics struct {
	Users     UserStats     `json:"users"`
	Tasks     TaskStats     `json:"tasks"`
	Defects   DefectStats   `json:"defects"`
	Materials MaterialStats `json:"materials"`
}

type UserStats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Active  int64 `json:"active"`
}

type TaskStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

type DefectStats struct {
	Total int64 `json:"total"`
	Open  int64 `json:"open"`
}

type MaterialStats struct {
	Total    int64 `json:"total"`
	LowStock int64 `json:"lowStock"`
}

type RecentActivities struct {
	Tasks   []Activity `json:"tasks"`
	Defects []Activity `json:"defects"`
}

// Activity is a recently created work item with its people resolved to names.
type Activity struct {
	ID         int64     `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Status     string    `db:"status" json:"status"`
	Priority   string    `db:"priority" json:"priority"`
	CreatedBy  string    `db:"created_by_name" json:"createdBy"`
	AssignedTo string    `db:"assigned_to_name" json:"assignedTo,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
