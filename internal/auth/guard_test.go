package auth

import (
	"context"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubRecord struct {
	creator  int64
	assignee *int64
}

func (r stubRecord) Creator() int64   { return r.creator }
func (r stubRecord) Assignee() *int64 { return r.assignee }

func ptr(v int64) *int64 { return &v }

type countingRecorder struct {
	reasons []string
}

func (c *countingRecorder) AuthzDenied(resource, action, reason string) {
	c.reasons = append(c.reasons, reason)
}

func activeUser(id int64, role user.Role) *user.User {
	u := user.NewPending("u@example.com", "A", "B", "")
	u.ID = id
	u.ChangeRole(role)
	u.Status = user.StatusActive
	return u
}

var _ = Describe("Guard", func() {
	var (
		guard    *Guard
		recorder *countingRecorder
		ctx      context.Context
	)

	BeforeEach(func() {
		recorder = &countingRecorder{}
		guard = NewGuard(discardLogger(), recorder)
		ctx = context.Background()
	})

	Describe("Authorize", func() {
		It("requires a caller", func() {
			err := guard.Authorize(ctx, nil, user.ResourceTasks, user.ActionView)
			Expect(internal.IsType(err, internal.ErrorTypeUnauthenticated)).To(BeTrue())
		})

		It("ignores the grid of a suspended account", func() {
			admin := activeUser(1, user.RoleAdmin)
			admin.Status = user.StatusSuspended

			err := guard.Authorize(ctx, admin, user.ResourceTasks, user.ActionView)
			Expect(internal.IsType(err, internal.ErrorTypeAccountInactive)).To(BeTrue())
			Expect(recorder.reasons).To(ConsistOf("inactive"))
		})

		DescribeTable("follows the default grids",
			func(role user.Role, resource user.Resource, action user.Action, allowed bool) {
				err := guard.Authorize(ctx, activeUser(7, role), resource, action)
				if allowed {
					Expect(err).ToNot(HaveOccurred())
				} else {
					Expect(internal.IsType(err, internal.ErrorTypeForbidden)).To(BeTrue())
				}
			},
			Entry("admin deletes users", user.RoleAdmin, user.ResourceUsers, user.ActionDelete, true),
			Entry("manager assigns tasks", user.RoleManager, user.ResourceTasks, user.ActionAssign, true),
			Entry("manager cannot delete tasks", user.RoleManager, user.ResourceTasks, user.ActionDelete, false),
			Entry("technician cannot assign tasks", user.RoleTechnician, user.ResourceTasks, user.ActionAssign, false),
			Entry("technician cannot edit materials", user.RoleTechnician, user.ResourceMaterials, user.ActionEdit, false),
			Entry("operator reports defects", user.RoleOperator, user.ResourceDefects, user.ActionCreate, true),
			Entry("operator cannot create tasks", user.RoleOperator, user.ResourceTasks, user.ActionCreate, false),
			Entry("operator cannot view reports", user.RoleOperator, user.ResourceReports, user.ActionView, false),
		)

		It("honors an override that grants an action", func() {
			op := activeUser(3, user.RoleOperator)
			op.ApplyOverrides(user.Grid{user.ResourceReports: {user.ActionView: true}})

			Expect(guard.Authorize(ctx, op, user.ResourceReports, user.ActionView)).To(Succeed())
		})
	})

	Describe("VisibilityScope", func() {
		It("is unrestricted for managers and admins", func() {
			Expect(guard.VisibilityScope(activeUser(1, user.RoleAdmin), user.ResourceTasks).Restricted()).To(BeFalse())
			Expect(guard.VisibilityScope(activeUser(2, user.RoleManager), user.ResourceDefects).Restricted()).To(BeFalse())
		})

		It("restricts technicians to their assignments", func() {
			scope := guard.VisibilityScope(activeUser(5, user.RoleTechnician), user.ResourceTasks)
			Expect(scope).To(Equal(query.RestrictTo(query.FieldAssignee, 5)))
		})

		It("restricts operators to what they created", func() {
			scope := guard.VisibilityScope(activeUser(9, user.RoleOperator), user.ResourceDefects)
			Expect(scope).To(Equal(query.RestrictTo(query.FieldCreator, 9)))
		})

		It("leaves materials unrestricted for every role", func() {
			Expect(guard.VisibilityScope(activeUser(9, user.RoleOperator), user.ResourceMaterials).Restricted()).To(BeFalse())
		})

		It("matches nothing for an inactive caller", func() {
			u := activeUser(1, user.RoleAdmin)
			u.Status = user.StatusPending
			Expect(guard.VisibilityScope(u, user.ResourceTasks)).To(Equal(query.Nothing()))
		})
	})

	Describe("CheckVisible", func() {
		It("reports another technician's task as not found", func() {
			tech := activeUser(5, user.RoleTechnician)
			err := guard.CheckVisible(tech, user.ResourceTasks, stubRecord{creator: 1, assignee: ptr(6)})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeTaskNotFound))
		})

		It("hides unassigned defects from technicians", func() {
			tech := activeUser(5, user.RoleTechnician)
			err := guard.CheckVisible(tech, user.ResourceDefects, stubRecord{creator: 5})
			Expect(internal.IsType(err, internal.ErrorTypeNotFound)).To(BeTrue())
		})

		It("shows operators their own reports", func() {
			op := activeUser(9, user.RoleOperator)
			Expect(guard.CheckVisible(op, user.ResourceDefects, stubRecord{creator: 9})).To(Succeed())
		})
	})

	Describe("CheckOwnership", func() {
		It("keeps operators from editing even with an override", func() {
			op := activeUser(9, user.RoleOperator)
			op.ApplyOverrides(user.Grid{user.ResourceDefects: {user.ActionEdit: true}})
			rec := stubRecord{creator: 9}

			Expect(guard.Authorize(ctx, op, user.ResourceDefects, user.ActionEdit)).To(Succeed())
			err := guard.CheckOwnership(op, user.ResourceDefects, user.ActionEdit, rec)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
			Expect(appErr.Code).To(Equal(internal.ErrCodeNotOwner))
		})

		It("lets a technician edit an item assigned to them", func() {
			tech := activeUser(5, user.RoleTechnician)
			Expect(guard.CheckOwnership(tech, user.ResourceTasks, user.ActionEdit, stubRecord{creator: 1, assignee: ptr(5)})).To(Succeed())
		})

		It("places no extra rule on managers", func() {
			mgr := activeUser(2, user.RoleManager)
			Expect(guard.CheckOwnership(mgr, user.ResourceTasks, user.ActionEdit, stubRecord{creator: 1})).To(Succeed())
		})
	})

	Describe("CanAssign", func() {
		It("refuses technicians even where the grid cell is granted", func() {
			tech := activeUser(5, user.RoleTechnician)
			Expect(guard.Authorize(ctx, tech, user.ResourceDefects, user.ActionEdit)).To(Succeed())
			Expect(guard.CanAssign(tech, user.ResourceDefects, user.ActionEdit)).To(BeFalse())
			Expect(guard.CheckOwnership(tech, user.ResourceDefects, user.ActionAssign, stubRecord{creator: 1, assignee: ptr(5)})).NotTo(Succeed())
		})

		It("allows managers through the grid cell", func() {
			mgr := activeUser(2, user.RoleManager)
			Expect(guard.CanAssign(mgr, user.ResourceDefects, user.ActionEdit)).To(BeTrue())
			Expect(guard.CanAssign(mgr, user.ResourceTasks, user.ActionAssign)).To(BeTrue())
		})

		It("refuses a nil caller", func() {
			Expect(guard.CanAssign(nil, user.ResourceTasks, user.ActionAssign)).To(BeFalse())
		})
	})

	Describe("Admit", func() {
		It("checks the grid before the scope", func() {
			op := activeUser(9, user.RoleOperator)
			err := guard.Admit(ctx, op, user.ResourceTasks, user.ActionDelete, stubRecord{creator: 1})
			Expect(internal.IsType(err, internal.ErrorTypeForbidden)).To(BeTrue())
		})
	})
})
