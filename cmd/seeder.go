package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/frahmantamala/maintenance-management/internal/material"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with an administrator, a technician and sample materials, tasks and defects.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		deps, err := initializeDependencies(ctx)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close(ctx)

		if clearData {
			for _, table := range []string{"defects", "tasks", "materials", "users"} {
				if err := deps.Gorm.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		admin, err := seedAccount(ctx, deps, "admin@zaklad.pl", "Anna", "Nowak", user.RoleAdmin, nil)
		if err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
		tech, err := seedAccount(ctx, deps, "technik@zaklad.pl", "Piotr", "Wiśniewski", user.RoleTechnician, admin)
		if err != nil {
			log.Fatalf("failed to seed technician: %v", err)
		}

		var existing int64
		if err := deps.Gorm.Raw("SELECT COUNT(*) FROM materials").Row().Scan(&existing); err != nil {
			log.Fatalf("failed to count materials: %v", err)
		}
		if existing > 0 {
			fmt.Println("materials already present; skipping sample data")
			return
		}

		materials := []material.CreateDTO{
			{Name: "Filtr powietrza F7", Category: "filtry", Unit: "szt", CurrentStock: 12, MinStock: 5, UnitPrice: 89.9},
			{Name: "Pasek klinowy SPA 1250", Category: "napędy", Unit: "szt", CurrentStock: 3, MinStock: 4, UnitPrice: 42.5},
			{Name: "Olej hydrauliczny HLP 46", Category: "oleje", Unit: "l", CurrentStock: 120, MinStock: 40, UnitPrice: 14.2},
			{Name: "Łożysko 6204-2RS", Category: "łożyska", Unit: "szt", CurrentStock: 0, MinStock: 10, UnitPrice: 11},
		}
		for _, dto := range materials {
			if _, err := deps.Materials.Create(ctx, admin, dto); err != nil {
				log.Fatalf("failed to seed material %s: %v", dto.Name, err)
			}
			fmt.Println("Seeded material:", dto.Name)
		}

		tasks := []workitem.CreateDTO{
			{Title: "Wymiana filtrów w centrali wentylacyjnej", Description: "Wymiana filtrów F7 w centrali nawiewnej hali A", Type: "miesięczna", Priority: workitem.PriorityMedium, Location: "Hala A", AssignedTo: &tech.ID},
			{Title: "Przegląd sprężarki", Description: "Kontrola ciśnienia, wycieków i poziomu oleju", Type: "tygodniowa", Priority: workitem.PriorityHigh, Location: "Sprężarkownia"},
		}
		for _, dto := range tasks {
			if _, err := deps.Tasks.Create(ctx, admin, dto); err != nil {
				log.Fatalf("failed to seed task %s: %v", dto.Title, err)
			}
			fmt.Println("Seeded task:", dto.Title)
		}

		defects := []workitem.CreateDTO{
			{Title: "Wyciek oleju z prasy", Description: "Kapie olej spod cylindra głównego prasy P-3", Category: "hydrauliczna", Priority: workitem.PriorityCritical, Location: "Linia 2"},
		}
		for _, dto := range defects {
			if _, err := deps.Defects.Create(ctx, tech, dto); err != nil {
				log.Fatalf("failed to seed defect %s: %v", dto.Title, err)
			}
			fmt.Println("Seeded defect:", dto.Title)
		}

		fmt.Println("Sample data seeded successfully")
	},
}

// seedAccount registers and approves an account unless the email is taken. A nil
// approver means the account approves itself, which only the bootstrap admin does.
func seedAccount(ctx context.Context, deps *Dependencies, email, first, last string, role user.Role, approver *user.User) (*user.User, error) {
	if u, err := deps.Users.GetByEmail(ctx, email); err == nil {
		fmt.Println("account already exists:", email)
		return u, nil
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return nil, err
	}

	hash, err := deps.Auth.HashPassword("password")
	if err != nil {
		return nil, err
	}

	u := user.NewPending(email, first, last, hash)
	if err := deps.Users.Register(ctx, u); err != nil {
		return nil, err
	}

	actor := u.ID
	if approver != nil {
		actor = approver.ID
	}
	approved, err := deps.Users.Approve(ctx, actor, u.ID, user.ApproveDTO{Role: role})
	if err != nil {
		return nil, err
	}
	fmt.Printf("Seeded %s account: %s\n", role, email)
	return approved, nil
}
