package postgres

import (
	"context"
	"testing"
	"time"

	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWorkItemRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "WorkItem Repository Suite")
}

var _ = Describe("WorkItemRepository", func() {
	var (
		db   *gorm.DB
		repo workitem.RepositoryAPI
		ctx  context.Context
		row  *workitemDatamodel.WorkItem
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Table(workitemDatamodel.TableDefects).AutoMigrate(&workitemDatamodel.WorkItem{})).To(Succeed())

		repo = NewWorkItemRepository(db, workitemDatamodel.TableDefects)
		ctx = context.Background()

		row = &workitemDatamodel.WorkItem{
			Title:       "Zużyty pas",
			Description: "Pęknięty pas napędowy",
			Category:    "mechaniczna",
			Priority:    "wysoki",
			Status:      "zgłoszona",
			CreatedBy:   5,
			Location:    "Linia 2",
			Materials:   workitemDatamodel.MaterialLines{{MaterialID: 9, Quantity: 1}},
		}
		Expect(repo.Insert(ctx, row)).To(Succeed())
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.Close()
	})

	It("stores rows in the variant's table", func() {
		var n int64
		Expect(db.Table(workitemDatamodel.TableDefects).Count(&n).Error).To(Succeed())
		Expect(n).To(Equal(int64(1)))

		got, err := repo.FindByID(ctx, row.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Version).To(Equal(int64(1)))
		Expect(got.Materials).To(HaveLen(1))
		Expect(got.Materials[0].MaterialID).To(Equal(int64(9)))
	})

	It("bumps the version on a matching update", func() {
		got, err := repo.ConditionalUpdate(ctx, row.ID, 1, map[string]interface{}{"status": "w_trakcie"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal("w_trakcie"))
		Expect(got.Version).To(Equal(int64(2)))
	})

	It("reports a conflict for a stale version", func() {
		_, err := repo.ConditionalUpdate(ctx, row.ID, 1, map[string]interface{}{"status": "w_trakcie"}, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = repo.ConditionalUpdate(ctx, row.ID, 1, map[string]interface{}{"status": "odrzucona"}, nil)
		Expect(err).To(Equal(workitem.ErrVersionConflict))

		got, err := repo.FindByID(ctx, row.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal("w_trakcie"))
	})

	It("reports a missing row as not found", func() {
		_, err := repo.ConditionalUpdate(ctx, 999, 1, map[string]interface{}{"status": "w_trakcie"}, nil)
		Expect(err).To(Equal(workitem.ErrItemNotFound))
		Expect(repo.Delete(ctx, 999)).To(Equal(workitem.ErrItemNotFound))
	})

	It("never overwrites a stored completion time", func() {
		first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		later := first.Add(24 * time.Hour)

		got, err := repo.ConditionalUpdate(ctx, row.ID, 1, map[string]interface{}{"status": "usunięta"}, &first)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CompletedAt).NotTo(BeNil())
		Expect(got.CompletedAt.Equal(first)).To(BeTrue())

		got, err = repo.ConditionalUpdate(ctx, row.ID, 2, map[string]interface{}{}, &later)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CompletedAt.Equal(first)).To(BeTrue())
		Expect(got.Version).To(Equal(int64(3)))
	})

	It("hard deletes", func() {
		Expect(repo.Delete(ctx, row.ID)).To(Succeed())
		_, err := repo.FindByID(ctx, row.ID)
		Expect(err).To(Equal(workitem.ErrItemNotFound))
	})
})
