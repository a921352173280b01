package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

func seedVehicle(t *testing.T, s *Store) model.Vehicle {
	t.Helper()
	v := model.Vehicle{PlateNumber: "FO-1", Model: "Transit", Mileage: 100}
	if err := s.CreateVehicle(context.Background(), &v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return v
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	v := seedVehicle(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q store.Queries) error {
		a := model.VehicleAssignment{VehicleID: v.ID, UserID: 5, Status: model.AssignmentActive}
		if err := q.CreateAssignment(ctx, &a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}
	cur, err := s.ActiveAssignmentForVehicle(ctx, v.ID)
	if err != nil || cur != nil {
		t.Fatalf("rolled back assignment visible: %+v %v", cur, err)
	}
}

func TestCancelledContextAbortsCommit(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	v := seedVehicle(t, s)

	err := s.InTx(ctx, func(q store.Queries) error {
		a := model.VehicleAssignment{VehicleID: v.ID, UserID: 5, Status: model.AssignmentActive}
		if err := q.CreateAssignment(ctx, &a); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if apperr.KindOf(err) != apperr.KindTransient {
		t.Fatalf("err = %v, want transient", err)
	}
	if cur, _ := s.ActiveAssignmentForVehicle(context.Background(), v.ID); cur != nil {
		t.Fatalf("aborted assignment visible: %+v", cur)
	}
}

func TestActiveAssignmentUniqueUnderConcurrency(t *testing.T) {
	s := New()
	ctx := context.Background()
	v := seedVehicle(t, s)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := model.VehicleAssignment{VehicleID: v.ID, UserID: uint64(i + 1), Status: model.AssignmentActive}
			errs[i] = s.CreateAssignment(ctx, &a)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) != apperr.KindConflict:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d assignments created, want 1", ok)
	}
	all, _ := s.ListAssignments(ctx, policy.Scope{All: true})
	if len(all) != 1 {
		t.Fatalf("%d assignments stored, want 1", len(all))
	}
}

func TestDuplicateCheckoutConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	v := seedVehicle(t, s)
	a := model.VehicleAssignment{VehicleID: v.ID, UserID: 5, Status: model.AssignmentActive}
	if err := s.CreateAssignment(ctx, &a); err != nil {
		t.Fatal(err)
	}
	first := model.WalkaroundInspection{AssignmentID: a.ID, Type: model.InspectionCheckout, Mileage: 100}
	if err := s.CreateWalkaround(ctx, &first); err != nil {
		t.Fatal(err)
	}
	dup := model.WalkaroundInspection{AssignmentID: a.ID, Type: model.InspectionCheckout, Mileage: 100}
	if err := s.CreateWalkaround(ctx, &dup); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate checkout err = %v", err)
	}
}

func TestScopedListing(t *testing.T) {
	s := New()
	ctx := context.Background()
	cust := uint64(3)
	p1 := model.Project{Code: "P1", ManagerID: 7, CustomerID: &cust, Status: model.ProjectPending}
	p2 := model.Project{Code: "P2", ManagerID: 8, Status: model.ProjectInProgress}
	for _, p := range []*model.Project{&p1, &p2} {
		if err := s.CreateProject(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AddProjectMember(ctx, model.ProjectMember{ProjectID: p1.ID, UserID: 5}); err != nil {
		t.Fatal(err)
	}

	foreman := model.Actor{ID: 5, Role: model.RoleForeman, Active: true}
	got, err := s.ListProjects(ctx, policy.ScopeFor(foreman, policy.Project), store.ProjectFilter{})
	if err != nil || len(got) != 2 {
		t.Fatalf("foreman sees %d projects (%v), want 2", len(got), err)
	}
	got, _ = s.ListProjects(ctx, policy.ScopeFor(foreman, policy.Project), store.ProjectFilter{Status: model.ProjectPending})
	if len(got) != 1 || got[0].ID != p1.ID {
		t.Fatalf("status filter returned %+v", got)
	}

	nobody := model.Actor{ID: 9, Role: model.RoleCustomer, Active: true}
	got, err = s.ListProjects(ctx, policy.ScopeFor(nobody, policy.Project), store.ProjectFilter{})
	if err != nil || len(got) != 0 {
		t.Fatalf("unaffiliated customer sees %d projects (%v)", len(got), err)
	}
}

func TestProjectDeleteCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := model.Project{Code: "P1", ManagerID: 7}
	if err := s.CreateProject(ctx, &p); err != nil {
		t.Fatal(err)
	}
	m := model.SiteModule{ProjectID: p.ID, Site: model.SiteA, ModuleID: 1, RequiredPhotoCount: 2}
	if err := s.CreateSiteModule(ctx, &m); err != nil {
		t.Fatal(err)
	}
	item := model.ChecklistProgress{ModuleInstanceID: m.ID, ChecklistItemID: 1, RequiredCount: 2}
	if err := s.CreateChecklistProgress(ctx, &item); err != nil {
		t.Fatal(err)
	}
	photo := model.Photo{ModuleInstanceID: m.ID, UserID: 5, Ref: "a.jpg"}
	if err := s.CreatePhoto(ctx, &photo); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSiteModule(ctx, m.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("module survived project delete: %v", err)
	}
	if _, err := s.GetPhoto(ctx, photo.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("photo survived project delete: %v", err)
	}
	if items, _ := s.ListChecklistProgress(ctx, m.ID); len(items) != 0 {
		t.Fatalf("checklist survived project delete: %+v", items)
	}
}

func TestEmailUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := model.User{Email: "Ops@Example.com", Role: model.RoleField, Active: true}
	if err := s.CreateUser(ctx, &a); err != nil {
		t.Fatal(err)
	}
	b := model.User{Email: "ops@example.com ", Role: model.RoleQA, Active: true}
	if err := s.CreateUser(ctx, &b); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate email err = %v", err)
	}
	if u, err := s.GetUserByEmail(ctx, "OPS@example.com"); err != nil || u.ID != a.ID {
		t.Fatalf("lookup by email: %+v %v", u, err)
	}
}
