package dashboard

import (
	"context"
	"log/slog"

	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	Count(ctx context.Context, query string, args ...interface{}) (int64, error)
	Recent(ctx context.Context, table string, limit int) ([]Activity, error)
}

type ServiceAPI interface {
	Build(ctx context.Context) (*Dashboard, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type counter struct {
	dst   *int64
	query string
	args  []interface{}
}

// Build gathers every statistic concurrently; the first failure cancels the rest.
func (s *Service) Build(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	st := &d.Statistics
	tasks, defects := workitem.TaskMachine, workitem.DefectMachine

	counters := []counter{
		{&st.Users.Total, "SELECT COUNT(*) FROM users", nil},
		{&st.Users.Pending, "SELECT COUNT(*) FROM users WHERE status = ?", args(user.StatusPending)},
		{&st.Users.Active, "SELECT COUNT(*) FROM users WHERE status = ?", args(user.StatusActive)},
		{&st.Tasks.Total, "SELECT COUNT(*) FROM tasks", nil},
		{&st.Tasks.Completed, "SELECT COUNT(*) FROM tasks WHERE status = ?", args(tasks.Completed)},
		{&st.Tasks.Pending, "SELECT COUNT(*) FROM tasks WHERE status IN (?, ?)", args(tasks.Initial, tasks.InProgress)},
		{&st.Defects.Total, "SELECT COUNT(*) FROM defects", nil},
		{&st.Defects.Open, "SELECT COUNT(*) FROM defects WHERE status IN (?, ?)", args(defects.Initial, defects.InProgress)},
		{&st.Materials.Total, "SELECT COUNT(*) FROM materials WHERE is_active = ?", []interface{}{true}},
		{&st.Materials.LowStock, "SELECT COUNT(*) FROM materials WHERE is_active = ? AND current_stock <= min_stock", []interface{}{true}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counters {
		g.Go(func() error {
			n, err := s.store.Count(gctx, c.query, c.args...)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	g.Go(func() (err error) {
		d.RecentActivities.Tasks, err = s.store.Recent(gctx, workitemDatamodel.TableTasks, RecentLimit)
		return err
	})
	g.Go(func() (err error) {
		d.RecentActivities.Defects, err = s.store.Recent(gctx, workitemDatamodel.TableDefects, RecentLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to build dashboard", "error", err)
		return nil, err
	}
	return &d, nil
}

func args[T ~string](values ...T) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
