package workitem_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/auth"
	workitemDatamodel "github.com/frahmantamala/maintenance-management/internal/core/datamodel/workitem"
	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	workitemPostgres "github.com/frahmantamala/maintenance-management/internal/workitem/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type directory map[int64]*user.User

func (d directory) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishSync(ctx context.Context, e events.Event) error {
	return p.Publish(ctx, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type transitions struct{ seen []string }

func (t *transitions) Transition(kind, from, to string) {
	t.seen = append(t.seen, kind+":"+from+">"+to)
}

func member(id int64, role user.Role) *user.User {
	return &user.User{
		ID:          id,
		Email:       string(role) + "@zaklad.pl",
		Role:        role,
		Status:      user.StatusActive,
		Permissions: user.DefaultGrid(role),
	}
}

func code(err error) internal.ErrorCode {
	appErr, ok := internal.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	return appErr.Code
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		tasks     *workitem.Service
		defects   *workitem.Service
		publisher *recordingPublisher
		recorder  *transitions

		admin, manager, tech, otherTech, operator, suspended *user.User
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

		Expect(db.Table(workitemDatamodel.TableTasks).AutoMigrate(&workitemDatamodel.WorkItem{})).To(Succeed())
		Expect(db.Table(workitemDatamodel.TableDefects).AutoMigrate(&workitemDatamodel.WorkItem{})).To(Succeed())

		admin = member(1, user.RoleAdmin)
		manager = member(2, user.RoleManager)
		tech = member(3, user.RoleTechnician)
		otherTech = member(4, user.RoleTechnician)
		operator = member(5, user.RoleOperator)
		suspended = member(6, user.RoleTechnician)
		suspended.Status = user.StatusSuspended
		users := directory{}
		for _, u := range []*user.User{admin, manager, tech, otherTech, operator, suspended} {
			users[u.ID] = u
		}

		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		guard := auth.NewGuard(lg, nil)
		publisher = &recordingPublisher{}
		recorder = &transitions{}
		ctx = context.Background()

		tasks = workitem.NewService(workitem.Tasks, workitemPostgres.NewWorkItemRepository(db, workitemDatamodel.TableTasks), guard, users, publisher, lg).
			WithRecorder(recorder)
		defects = workitem.NewService(workitem.Defects, workitemPostgres.NewWorkItemRepository(db, workitemDatamodel.TableDefects), guard, users, publisher, lg).
			WithRecorder(recorder)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.Close()
	})

	newDefect := func(caller *user.User) *workitem.WorkItem {
		d, err := defects.Create(ctx, caller, workitem.CreateDTO{
			Title:       "Wyciek oleju",
			Description: "Wyciek oleju z prasy hydraulicznej nr 3",
			Category:    "hydrauliczna",
			Location:    "Hala A",
		})
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	newTask := func(caller *user.User) *workitem.WorkItem {
		t, err := tasks.Create(ctx, caller, workitem.CreateDTO{
			Title:       "Smarowanie łożysk",
			Description: "Smarowanie łożysk linii pakującej",
			Type:        "tygodniowa",
		})
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	It("walks a defect from report to repair across roles", func() {
		d1 := newDefect(operator)
		Expect(d1.Status).To(Equal(workitem.Status("zgłoszona")))
		Expect(d1.CreatedBy).To(Equal(operator.ID))
		Expect(d1.Priority).To(Equal(workitem.PriorityMedium))

		_, err := defects.Get(ctx, tech, d1.ID)
		Expect(code(err)).To(Equal(internal.ErrCodeDefectNotFound))

		_, err = defects.Update(ctx, operator, d1.ID, workitem.UpdateDTO{Status: status("usunięta")})
		Expect(code(err)).To(Equal(internal.ErrCodePermissionDenied))

		assigned, err := defects.Assign(ctx, manager, d1.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(assigned.Status).To(Equal(workitem.Status("w_trakcie")))
		Expect(*assigned.AssignedTo).To(Equal(tech.ID))

		seen, err := defects.Get(ctx, tech, d1.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen.ID).To(Equal(d1.ID))

		repaired, err := defects.Update(ctx, tech, d1.ID, workitem.UpdateDTO{Status: status("usunięta")})
		Expect(err).NotTo(HaveOccurred())
		Expect(repaired.Status).To(Equal(workitem.Status("usunięta")))
		Expect(repaired.CompletedAt).NotTo(BeNil())

		again, err := defects.Update(ctx, tech, d1.ID, workitem.UpdateDTO{Status: status("usunięta")})
		Expect(err).NotTo(HaveOccurred())
		Expect(again.CompletedAt.Equal(*repaired.CompletedAt)).To(BeTrue())

		Expect(publisher.types()).To(Equal([]string{
			events.EventTypeWorkItemAssigned,
			events.EventTypeWorkItemCompleted,
		}))
		Expect(recorder.seen).To(Equal([]string{
			"defect:zgłoszona>w_trakcie",
			"defect:w_trakcie>usunięta",
		}))
	})

	It("lets the operator still see their own report", func() {
		d1 := newDefect(operator)
		items, page, err := defects.List(ctx, operator, query.Params{})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].ID).To(Equal(d1.ID))
		Expect(page.Total).To(Equal(int64(1)))
	})

	It("keeps a technician's list scoped even with a hostile assignee filter", func() {
		mine := newTask(manager)
		theirs := newTask(manager)
		_, err := tasks.Assign(ctx, manager, mine.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(err).NotTo(HaveOccurred())
		_, err = tasks.Assign(ctx, manager, theirs.ID, workitem.AssignDTO{AssignedTo: otherTech.ID})
		Expect(err).NotTo(HaveOccurred())

		items, _, err := tasks.List(ctx, tech, query.Params{})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].ID).To(Equal(mine.ID))

		items, page, err := tasks.List(ctx, tech, query.Params{Filters: map[string]string{"assignedTo": "4"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(BeEmpty())
		Expect(page.Total).To(BeZero())

		all, _, err := tasks.List(ctx, manager, query.Params{})
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(2))
	})

	It("reopens a completed task on reassignment", func() {
		t := newTask(manager)
		_, err := tasks.Assign(ctx, manager, t.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(err).NotTo(HaveOccurred())
		done, err := tasks.Update(ctx, tech, t.ID, workitem.UpdateDTO{Status: status("zakończone")})
		Expect(err).NotTo(HaveOccurred())
		Expect(done.CompletedAt).NotTo(BeNil())

		reopened, err := tasks.Assign(ctx, manager, t.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(reopened.Status).To(Equal(workitem.Status("w_trakcie")))
		Expect(reopened.CompletedAt.Equal(*done.CompletedAt)).To(BeTrue())
	})

	It("refuses edits by a technician on items assigned to someone else", func() {
		t := newTask(manager)
		_, err := tasks.Assign(ctx, manager, t.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(err).NotTo(HaveOccurred())

		title := "Nowy tytuł zadania"
		_, err = tasks.Update(ctx, otherTech, t.ID, workitem.UpdateDTO{Title: &title})
		Expect(code(err)).To(Equal(internal.ErrCodeTaskNotFound))
	})

	It("refuses operator edits even when an override grants edit", func() {
		d1 := newDefect(operator)
		operator.ApplyOverrides(user.Grid{user.ResourceDefects: {user.ActionEdit: true}})

		_, err := defects.Update(ctx, operator, d1.ID, workitem.UpdateDTO{Status: status("usunięta")})
		Expect(code(err)).To(Equal(internal.ErrCodeNotOwner))
	})

	It("gates defect assignment on defects:edit", func() {
		d1 := newDefect(operator)
		_, err := defects.Assign(ctx, operator, d1.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(code(err)).To(Equal(internal.ErrCodePermissionDenied))

		_, err = tasks.Assign(ctx, tech, newTask(manager).ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(code(err)).To(Equal(internal.ErrCodePermissionDenied))
	})

	It("keeps a technician from reassigning a defect assigned to them", func() {
		d := newDefect(operator)
		_, err := defects.Assign(ctx, manager, d.ID, workitem.AssignDTO{AssignedTo: tech.ID})
		Expect(err).NotTo(HaveOccurred())

		_, err = defects.Assign(ctx, tech, d.ID, workitem.AssignDTO{AssignedTo: otherTech.ID})
		Expect(code(err)).To(Equal(internal.ErrCodeNotOwner))

		got, err := defects.Get(ctx, manager, d.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*got.AssignedTo).To(Equal(tech.ID))

		title := "Wyciek oleju pod prasą"
		_, err = defects.Update(ctx, tech, d.ID, workitem.UpdateDTO{Title: &title})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an inactive assignee", func() {
		t := newTask(manager)
		_, err := tasks.Assign(ctx, manager, t.ID, workitem.AssignDTO{AssignedTo: suspended.ID})
		Expect(code(err)).To(Equal(internal.ErrCodeValidationFailed))
		appErr, _ := internal.IsAppError(err)
		details := appErr.Details.(internal.ValidationErrors)
		Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeAssigneeInactive)))
	})

	It("ignores an assignee sent by a caller who may not assign", func() {
		d, err := defects.Create(ctx, tech, workitem.CreateDTO{
			Title:       "Iskrzenie",
			Description: "Iskrzenie w szafie sterowniczej",
			Category:    "elektryczna",
			Location:    "Hala B",
			AssignedTo:  &otherTech.ID,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.AssignedTo).To(BeNil())
	})

	It("honors an assignee sent by a manager on create", func() {
		t, err := tasks.Create(ctx, manager, workitem.CreateDTO{
			Title:       "Przegląd sprężarki",
			Description: "Przegląd miesięczny sprężarki",
			Type:        "miesięczna",
			AssignedTo:  &tech.ID,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(*t.AssignedTo).To(Equal(tech.ID))
		Expect(t.Status).To(Equal(workitem.Status("nowe")))
	})

	It("validates the variant vocabulary", func() {
		_, err := tasks.Create(ctx, manager, workitem.CreateDTO{
			Title:       "Zadanie",
			Description: "Opis zadania testowego",
			Type:        "hydrauliczna",
		})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		details := appErr.Details.(internal.ValidationErrors)
		Expect(details.Errors[0].Field).To(Equal("type"))
		Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidCategory)))

		_, err = defects.Create(ctx, operator, workitem.CreateDTO{
			Title:       "Usterka",
			Description: "Opis usterki testowej",
			Category:    "inne",
		})
		appErr, _ = internal.IsAppError(err)
		details = appErr.Details.(internal.ValidationErrors)
		Expect(details.Errors[0].Field).To(Equal("location"))
	})

	It("rejects a stale version", func() {
		t := newTask(manager)
		title := "Smarowanie łożysk linii 2"
		_, err := tasks.Update(ctx, manager, t.ID, workitem.UpdateDTO{Title: &title, Version: &t.Version})
		Expect(err).NotTo(HaveOccurred())

		_, err = tasks.Update(ctx, manager, t.ID, workitem.UpdateDTO{Title: &title, Version: &t.Version})
		Expect(err).To(Equal(workitem.ErrVersionConflict))
	})

	It("hard deletes for admins only", func() {
		t := newTask(manager)
		Expect(code(tasks.Delete(ctx, manager, t.ID))).To(Equal(internal.ErrCodePermissionDenied))
		Expect(tasks.Delete(ctx, admin, t.ID)).To(Succeed())

		_, err := tasks.Get(ctx, admin, t.ID)
		Expect(code(err)).To(Equal(internal.ErrCodeTaskNotFound))
	})

	It("treats a suspended caller as inactive", func() {
		_, _, err := tasks.List(ctx, suspended, query.Params{})
		Expect(code(err)).To(Equal(internal.ErrCodeAccountSuspended))
	})
})
