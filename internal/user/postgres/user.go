package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/user"
	"github.com/frahmantamala/maintenance-management/internal/query"
	queryPostgres "github.com/frahmantamala/maintenance-management/internal/query/postgres"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&userDatamodel.User{}, id).Error
}

func (r *UserRepository) Find(ctx context.Context, plan query.Plan) ([]*userDatamodel.User, int64, error) {
	return queryPostgres.Find[*userDatamodel.User](ctx, r.db.Model(&userDatamodel.User{}), plan)
}

func (r *UserRepository) FindTechnicians(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("role IN ? AND status = ?", []string{string(user.RoleTechnician), string(user.RoleManager)}, string(user.StatusActive)).
		Order("first_name ASC").
		Order("last_name ASC").
		Find(&users).Error
	return users, err
}

// CountAssignments counts tasks and defects currently assigned to the user.
func (r *UserRepository) CountAssignments(ctx context.Context, id int64) (int64, error) {
	var tasks, defects int64
	if err := r.db.WithContext(ctx).Table("tasks").Where("assigned_to = ?", id).Count(&tasks).Error; err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Table("defects").Where("assigned_to = ?", id).Count(&defects).Error; err != nil {
		return 0, err
	}
	return tasks + defects, nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}
