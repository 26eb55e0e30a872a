package user_test

import (
	"github.com/frahmantamala/maintenance-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Permission grid", func() {
	Describe("DefaultGrid", func() {
		It("hands out an independent copy", func() {
			g := user.DefaultGrid(user.RoleManager)
			g[user.ResourceTasks][user.ActionDelete] = true

			Expect(user.DefaultGrid(user.RoleManager).Allows(user.ResourceTasks, user.ActionDelete)).To(BeFalse())
		})

		It("is empty for an unknown role", func() {
			Expect(user.DefaultGrid(user.Role("janitor"))).To(BeEmpty())
		})

		It("gives no role an assign column on defects except admin", func() {
			for _, role := range user.Roles {
				allowed := user.DefaultGrid(role).Allows(user.ResourceDefects, user.ActionAssign)
				Expect(allowed).To(Equal(role == user.RoleAdmin), string(role))
			}
		})
	})

	Describe("Merge", func() {
		It("can both grant and revoke", func() {
			base := user.DefaultGrid(user.RoleTechnician)
			merged := base.Merge(user.Grid{
				user.ResourceMaterials: {user.ActionEdit: true},
				user.ResourceTasks:     {user.ActionCreate: false},
			})

			Expect(merged.Allows(user.ResourceMaterials, user.ActionEdit)).To(BeTrue())
			Expect(merged.Allows(user.ResourceTasks, user.ActionCreate)).To(BeFalse())
			Expect(merged.Allows(user.ResourceTasks, user.ActionView)).To(BeTrue())
			Expect(base.Allows(user.ResourceMaterials, user.ActionEdit)).To(BeFalse())
		})
	})

	Describe("Allowed", func() {
		It("lists granted actions in a stable order and skips empty resources", func() {
			allowed := user.DefaultGrid(user.RoleOperator).Allowed()

			Expect(allowed).To(HaveKeyWithValue(user.ResourceDefects, []user.Action{user.ActionCreate, user.ActionView}))
			Expect(allowed).NotTo(HaveKey(user.ResourceUsers))
		})
	})

	Describe("User", func() {
		var u *user.User

		BeforeEach(func() {
			u = user.NewPending("Someone@Example.com ", "Ewa", "Lis", "hash")
		})

		It("starts pending with no effective permissions", func() {
			Expect(u.Email).To(Equal("someone@example.com"))
			Expect(u.Status).To(Equal(user.StatusPending))
			Expect(user.EffectivePermissions(u)).To(BeEmpty())
		})

		It("honors the grid only while active", func() {
			u.ChangeRole(user.RoleManager)
			Expect(user.EffectivePermissions(u)).To(BeEmpty())

			u.Status = user.StatusActive
			Expect(user.EffectivePermissions(u).Allows(user.ResourceTasks, user.ActionAssign)).To(BeTrue())

			u.Status = user.StatusSuspended
			Expect(user.EffectivePermissions(u)).To(BeEmpty())
		})

		It("discards overrides on a role change", func() {
			u.ChangeRole(user.RoleTechnician)
			u.Status = user.StatusActive
			u.ApplyOverrides(user.Grid{user.ResourceMaterials: {user.ActionEdit: true}})
			Expect(user.EffectivePermissions(u).Allows(user.ResourceMaterials, user.ActionEdit)).To(BeTrue())

			u.ChangeRole(user.RoleOperator)
			u.ChangeRole(user.RoleTechnician)

			Expect(u.PermissionOverrides).To(BeEmpty())
			Expect(user.EffectivePermissions(u)).To(Equal(user.DefaultGrid(user.RoleTechnician)))
		})

		It("keeps earlier overrides when new ones are merged", func() {
			u.ChangeRole(user.RoleOperator)
			u.ApplyOverrides(user.Grid{user.ResourceReports: {user.ActionView: true}})
			u.ApplyOverrides(user.Grid{user.ResourceTasks: {user.ActionView: false}})

			Expect(u.Permissions.Allows(user.ResourceReports, user.ActionView)).To(BeTrue())
			Expect(u.Permissions.Allows(user.ResourceTasks, user.ActionView)).To(BeFalse())
		})
	})
})
