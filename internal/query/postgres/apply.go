package postgres

import (
	"context"
	"strings"

	"github.com/frahmantamala/maintenance-management/internal/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Apply adds the plan's conditions and search to db.
func Apply(db *gorm.DB, plan query.Plan) *gorm.DB {
	for _, c := range plan.Conditions {
		if c.Expr != "" {
			db = db.Where(c.Expr, c.Args...)
			continue
		}
		db = db.Where(clause.Eq{Column: clause.Column{Name: c.Column}, Value: c.Value})
	}

	if plan.SearchTerm != "" && len(plan.SearchColumns) > 0 {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(plan.SearchTerm)) + "%"
		parts := make([]string, len(plan.SearchColumns))
		args := make([]interface{}, len(plan.SearchColumns))
		for i, col := range plan.SearchColumns {
			parts[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
			args[i] = pattern
		}
		db = db.Where("("+strings.Join(parts, " OR ")+")", args...)
	}

	return db
}

// Find runs the plan against db, which must already be bound to a table or model.
// It returns one page of rows and the total match count.
func Find[T any](ctx context.Context, db *gorm.DB, plan query.Plan) ([]T, int64, error) {
	out := []T{}
	if plan.Empty {
		return out, 0, nil
	}

	base := Apply(db.WithContext(ctx), plan).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base
	for _, o := range plan.Sort {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if err := q.Offset(plan.Offset).Limit(plan.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}

	return out, total, nil
}
