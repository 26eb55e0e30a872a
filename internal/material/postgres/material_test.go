package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/frahmantamala/maintenance-management/internal/material"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMaterialRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Material Repository Suite")
}

var _ = Describe("MaterialRepository stock writes", func() {
	var (
		sqlDB *sql.DB
		mock  sqlmock.Sqlmock
		repo  material.RepositoryAPI
		ctx   context.Context
	)

	subtractPattern := regexp.QuoteMeta(
		"UPDATE materials SET current_stock = current_stock - $1, updated_at = $2 WHERE id = $3 AND is_active AND current_stock >= $4 RETURNING *")
	addPattern := regexp.QuoteMeta(
		"UPDATE materials SET current_stock = current_stock + $1, updated_at = $2 WHERE id = $3 AND is_active RETURNING *")
	selectPattern := regexp.QuoteMeta(`SELECT * FROM "materials" WHERE id = $1`)
	columns := []string{"id", "name", "category", "unit", "current_stock", "min_stock", "max_stock", "is_active"}

	BeforeEach(func() {
		var err error
		sqlDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())

		db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		repo = NewMaterialRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		sqlDB.Close()
	})

	It("subtracts with a single guarded update and no re-read", func() {
		mock.ExpectQuery(subtractPattern).
			WithArgs(int64(6), sqlmock.AnyArg(), int64(7), int64(6)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Filtr F7", "filtry", "szt", 2, 5, 100, true))

		row, err := repo.SubtractStock(ctx, 7, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(row.CurrentStock).To(Equal(int64(2)))
	})

	It("reports insufficient stock when the guard matched nothing", func() {
		mock.ExpectQuery(subtractPattern).
			WithArgs(int64(6), sqlmock.AnyArg(), int64(7), int64(6)).
			WillReturnRows(sqlmock.NewRows(columns))
		mock.ExpectQuery(selectPattern).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Filtr F7", "filtry", "szt", 2, 5, 100, true))

		_, err := repo.SubtractStock(ctx, 7, 6)
		Expect(err).To(Equal(material.ErrInsufficientStock))
	})

	It("reports an inactive material as not found", func() {
		mock.ExpectQuery(subtractPattern).
			WillReturnRows(sqlmock.NewRows(columns))
		mock.ExpectQuery(selectPattern).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Filtr F7", "filtry", "szt", 9, 5, 100, false))

		_, err := repo.SubtractStock(ctx, 7, 1)
		Expect(err).To(Equal(material.ErrMaterialNotFound))
	})

	It("reports a missing material as not found", func() {
		mock.ExpectQuery(subtractPattern).
			WillReturnRows(sqlmock.NewRows(columns))
		mock.ExpectQuery(selectPattern).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.SubtractStock(ctx, 7, 1)
		Expect(err).To(Equal(material.ErrMaterialNotFound))
	})

	It("adds with an unconditional increment", func() {
		mock.ExpectQuery(addPattern).
			WithArgs(int64(20), sqlmock.AnyArg(), int64(7)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Filtr F7", "filtry", "szt", 120, 5, 100, true))

		row, err := repo.AddStock(ctx, 7, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(row.CurrentStock).To(Equal(int64(120)))
	})

	It("reports a missing or inactive material on add", func() {
		mock.ExpectQuery(addPattern).
			WithArgs(int64(20), sqlmock.AnyArg(), int64(7)).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.AddStock(ctx, 7, 20)
		Expect(err).To(Equal(material.ErrMaterialNotFound))
	})
})
