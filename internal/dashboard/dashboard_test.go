package dashboard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/frahmantamala/maintenance-management/internal/dashboard"
	materialDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/material"
	userDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/user"
	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDashboard(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dashboard Suite")
}

type failingStore struct{}

func (failingStore) Count(context.Context, string, ...interface{}) (int64, error) {
	return 0, errors.New("connection reset")
}

func (failingStore) Recent(context.Context, string, int) ([]dashboard.Activity, error) {
	return nil, nil
}

var _ = Describe("Service.Build", func() {
	var (
		db  *gorm.DB
		svc *dashboard.Service
		ctx context.Context
		lg  *slog.Logger
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&userDatamodel.User{}, &materialDatamodel.Material{})).To(Succeed())
		Expect(db.Table(workitemDatamodel.TableTasks).AutoMigrate(&workitemDatamodel.WorkItem{})).To(Succeed())
		Expect(db.Table(workitemDatamodel.TableDefects).AutoMigrate(&workitemDatamodel.WorkItem{})).To(Succeed())

		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
		svc = dashboard.NewService(dashboard.NewRepository(sqlx.NewDb(sqlDB, "sqlite3")), lg)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.Close()
	})

	seedUser := func(id int64, first, status string) {
		Expect(db.Create(&userDatamodel.User{
			ID: id, Email: first + "@zaklad.pl", FirstName: first, LastName: "Nowak",
			PasswordHash: "x", Status: status,
		}).Error).To(Succeed())
	}

	seedItem := func(table, title, status string, creator int64, assignee *int64, at time.Time) {
		Expect(db.Table(table).Create(&workitemDatamodel.WorkItem{
			Title: title, Description: "opis zadania", Category: "dzienna", Priority: "średni",
			Status: status, CreatedBy: creator, AssignedTo: assignee, CreatedAt: at, UpdatedAt: at,
		}).Error).To(Succeed())
	}

	It("counts every bucket and lists recent items with resolved names", func() {
		seedUser(1, "Anna", "active")
		seedUser(2, "Piotr", "active")
		seedUser(3, "Ewa", "pending")

		tech := int64(2)
		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		seedItem(workitemDatamodel.TableTasks, "Przegląd", "nowe", 1, nil, base)
		seedItem(workitemDatamodel.TableTasks, "Smarowanie", "w_trakcie", 1, &tech, base.Add(time.Hour))
		seedItem(workitemDatamodel.TableTasks, "Kalibracja", "zakończone", 1, &tech, base.Add(2*time.Hour))
		seedItem(workitemDatamodel.TableTasks, "Archiwum", "anulowane", 1, nil, base.Add(3*time.Hour))
		seedItem(workitemDatamodel.TableDefects, "Wyciek", "zgłoszona", 2, nil, base)
		seedItem(workitemDatamodel.TableDefects, "Pęknięcie", "usunięta", 2, nil, base.Add(time.Hour))

		Expect(db.Create(&materialDatamodel.Material{Name: "Filtr F7", Category: "filtry", Unit: "szt", CurrentStock: 2, MinStock: 5, CreatedBy: 1}).Error).To(Succeed())
		Expect(db.Create(&materialDatamodel.Material{Name: "Smar", Category: "smary", Unit: "kg", CurrentStock: 40, MinStock: 5, CreatedBy: 1}).Error).To(Succeed())
		retired := &materialDatamodel.Material{Name: "Stary pas", Category: "pasy", Unit: "szt", CurrentStock: 0, MinStock: 3, CreatedBy: 1}
		Expect(db.Create(retired).Error).To(Succeed())
		Expect(db.Model(retired).Update("is_active", false).Error).To(Succeed())

		d, err := svc.Build(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(d.Statistics.Users).To(Equal(dashboard.UserStats{Total: 3, Pending: 1, Active: 2}))
		Expect(d.Statistics.Tasks).To(Equal(dashboard.TaskStats{Total: 4, Completed: 1, Pending: 2}))
		Expect(d.Statistics.Defects).To(Equal(dashboard.DefectStats{Total: 2, Open: 1}))
		Expect(d.Statistics.Materials).To(Equal(dashboard.MaterialStats{Total: 2, LowStock: 1}))

		Expect(d.RecentActivities.Tasks).To(HaveLen(4))
		Expect(d.RecentActivities.Tasks[0].Title).To(Equal("Archiwum"))
		Expect(d.RecentActivities.Tasks[1].AssignedTo).To(Equal("Piotr Nowak"))
		Expect(d.RecentActivities.Tasks[1].CreatedBy).To(Equal("Anna Nowak"))
		Expect(d.RecentActivities.Tasks[0].AssignedTo).To(BeEmpty())
		Expect(d.RecentActivities.Defects).To(HaveLen(2))
	})

	It("keeps at most five recent items", func() {
		seedUser(1, "Anna", "active")
		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < 7; i++ {
			seedItem(workitemDatamodel.TableTasks, "Zadanie", "nowe", 1, nil, base.Add(time.Duration(i)*time.Minute))
		}

		d, err := svc.Build(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.RecentActivities.Tasks).To(HaveLen(dashboard.RecentLimit))
		Expect(d.RecentActivities.Defects).To(BeEmpty())
	})

	It("fails as a whole when any count fails", func() {
		_, err := dashboard.NewService(failingStore{}, lg).Build(ctx)
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})
})
