package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/queue"
)

func TestAssignVehicleAlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	holder := f.user(t, "holder@example.com", model.RoleField, nil)
	user5 := f.user(t, "user5@example.com", model.RoleField, nil)

	v, err := f.svc.CreateVehicle(ctx, admin, VehicleInput{PlateNumber: "fo-3", Model: "Transit", Mileage: 1200})
	if err != nil {
		t.Fatal(err)
	}
	first, err := f.svc.AssignVehicle(ctx, admin, v.ID, holder.ID)
	if err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	ev := f.notes.wait(t, queue.KindVehicleAssigned)
	if ev.Recipients[0] != holder.ID {
		t.Fatalf("notified %v", ev.Recipients)
	}

	_, err = f.svc.AssignVehicle(ctx, admin, v.ID, user5.ID)
	wantKind(t, err, apperr.KindConflict)

	after, err := f.svc.GetAssignment(ctx, admin, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after != first {
		t.Fatalf("existing assignment changed:\n got %+v\nwant %+v", after, first)
	}
	list, _ := f.svc.ListAssignments(ctx, admin)
	if len(list) != 1 {
		t.Fatalf("assignments = %d, want 1", len(list))
	}
}

func TestConcurrentAssignmentsLeaveOneActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	v, err := f.svc.CreateVehicle(ctx, admin, VehicleInput{PlateNumber: "FO-9"})
	if err != nil {
		t.Fatal(err)
	}
	const n = 16
	users := make([]model.Actor, n)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("driver%d@example.com", i), model.RoleField, nil)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(u model.Actor) {
			defer wg.Done()
			_, err := f.svc.AssignVehicle(ctx, u, v.ID, u.ID)
			mu.Lock()
			defer mu.Unlock()
			switch apperr.KindOf(err) {
			case "":
				ok++
			case apperr.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(users[i])
	}
	wg.Wait()

	if ok != 1 || conflicts != n-1 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, n-1)
	}
	list, err := f.svc.ListAssignments(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	active := 0
	for _, a := range list {
		if a.VehicleID == v.ID && a.Status == model.AssignmentActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active assignments = %d", active)
	}
}

func TestReturnVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	driver := f.user(t, "driver@example.com", model.RoleField, nil)
	other := f.user(t, "other@example.com", model.RoleField, nil)

	v, _ := f.svc.CreateVehicle(ctx, admin, VehicleInput{PlateNumber: "FO-1", Mileage: 500})
	a, err := f.svc.AssignVehicle(ctx, driver, v.ID, 0)
	if err != nil || a.UserID != driver.ID || a.StartingMileage != 500 {
		t.Fatalf("self assignment = %+v, %v", a, err)
	}

	_, err = f.svc.ReturnVehicle(ctx, other, a.ID, 600)
	wantKind(t, err, apperr.KindAccessDenied)

	_, err = f.svc.ReturnVehicle(ctx, driver, a.ID, 499)
	wantKind(t, err, apperr.KindValidation)
	if e, _ := apperr.As(err); e.Field != "ending_mileage" {
		t.Fatalf("field = %q", e.Field)
	}
	still, _ := f.svc.GetAssignment(ctx, driver, a.ID)
	if still.Status != model.AssignmentActive || still.EndingMileage != nil {
		t.Fatalf("failed return wrote: %+v", still)
	}

	done, err := f.svc.ReturnVehicle(ctx, driver, a.ID, 640)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if done.Status != model.AssignmentReturned || *done.EndingMileage != 640 || done.ReturnedDate == nil {
		t.Fatalf("returned = %+v", done)
	}
	veh, _ := f.svc.GetVehicle(ctx, admin, v.ID)
	if veh.Mileage != 640 {
		t.Fatalf("vehicle mileage = %d", veh.Mileage)
	}
	_, err = f.svc.ReturnVehicle(ctx, driver, a.ID, 700)
	wantKind(t, err, apperr.KindConflict)

	// Returned vehicles can be assigned again.
	if _, err := f.svc.AssignVehicle(ctx, admin, v.ID, other.ID); err != nil {
		t.Fatalf("reassign after return: %v", err)
	}
}

func TestWalkaroundOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	driver := f.user(t, "driver@example.com", model.RoleField, nil)
	v, _ := f.svc.CreateVehicle(ctx, admin, VehicleInput{PlateNumber: "FO-2", Mileage: 100})
	a, err := f.svc.AssignVehicle(ctx, admin, v.ID, driver.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.RecordWalkaround(ctx, driver, a.ID, WalkaroundInput{Type: model.InspectionCheckin, Mileage: 150})
	wantKind(t, err, apperr.KindValidation)
	if list, _ := f.svc.ListWalkarounds(ctx, driver, a.ID); len(list) != 0 {
		t.Fatalf("rejected checkin was stored")
	}

	if _, err := f.svc.RecordWalkaround(ctx, driver, a.ID, WalkaroundInput{Type: model.InspectionCheckout, Mileage: 100}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	_, err = f.svc.RecordWalkaround(ctx, driver, a.ID, WalkaroundInput{Type: model.InspectionCheckout, Mileage: 100})
	wantKind(t, err, apperr.KindConflict)

	_, err = f.svc.RecordWalkaround(ctx, driver, a.ID, WalkaroundInput{Type: model.InspectionCheckin, Mileage: 90})
	wantKind(t, err, apperr.KindValidation)
	in, err := f.svc.RecordWalkaround(ctx, driver, a.ID, WalkaroundInput{Type: model.InspectionCheckin, Mileage: 180, FuelLow: true})
	if err != nil || !in.FuelLow {
		t.Fatalf("checkin = %+v, %v", in, err)
	}
	list, _ := f.svc.ListWalkarounds(ctx, driver, a.ID)
	if len(list) != 2 || list[0].Type != model.InspectionCheckout {
		t.Fatalf("walkarounds = %+v", list)
	}
}

func TestRegularInspectionWithDamages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	qa := f.user(t, "qa@example.com", model.RoleQA, nil)
	customer := f.user(t, "c@example.com", model.RoleCustomer, ptr(uint64(1)))
	v, _ := f.svc.CreateVehicle(ctx, admin, VehicleInput{PlateNumber: "FO-5", Mileage: 1000})

	in := RegularInspectionInput{Mileage: 1100, Damages: []DamageInput{
		{Location: "front bumper", Severity: "Minor"},
		{Location: "windshield", Severity: "severe", Description: "crack"},
	}}
	_, err := f.svc.RecordRegularInspection(ctx, qa, v.ID, in)
	wantKind(t, err, apperr.KindAccessDenied)

	if _, err := f.svc.AssignVehicle(ctx, admin, v.ID, qa.ID); err != nil {
		t.Fatal(err)
	}
	bad := in
	bad.Damages = []DamageInput{{Location: "door", Severity: "catastrophic"}}
	_, err = f.svc.RecordRegularInspection(ctx, qa, v.ID, bad)
	wantKind(t, err, apperr.KindValidation)

	ins, err := f.svc.RecordRegularInspection(ctx, qa, v.ID, in)
	if err != nil {
		t.Fatalf("inspection: %v", err)
	}
	got, err := f.svc.GetRegularInspection(ctx, qa, ins.ID)
	if err != nil || len(got.Damages) != 2 || got.Damages[0].Severity != "minor" {
		t.Fatalf("inspection = %+v, %v", got, err)
	}
	if list, _ := f.svc.ListRegularInspections(ctx, customer, 0); len(list) != 0 {
		t.Fatalf("customer sees inspections")
	}

	if err := f.svc.DeleteRegularInspection(ctx, admin, ins.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.GetRegularInspection(ctx, admin, ins.ID)
	wantKind(t, err, apperr.KindNotFound)
}
