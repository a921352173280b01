package service

import (
	"context"
	"strings"
	"testing"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
)

func TestSelfUpdateExcludesPrivilegedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "admin@example.com", model.RoleAdmin, nil)
	field := f.user(t, "field@example.com", model.RoleField, nil)
	other := f.user(t, "other@example.com", model.RoleField, nil)

	u, err := f.svc.UpdateUser(ctx, field, field.ID, UserPatch{Name: ptr("Field Tech"), Phone: ptr("555-0100")})
	if err != nil || u.Name != "Field Tech" || u.Phone != "555-0100" {
		t.Fatalf("self update = %+v, %v", u, err)
	}

	_, err = f.svc.UpdateUser(ctx, field, field.ID, UserPatch{Role: ptr(model.RoleAdmin)})
	wantKind(t, err, apperr.KindAccessDenied)
	_, err = f.svc.UpdateUser(ctx, field, field.ID, UserPatch{Active: ptr(false)})
	wantKind(t, err, apperr.KindAccessDenied)
	_, err = f.svc.UpdateUser(ctx, field, other.ID, UserPatch{Name: ptr("x")})
	wantKind(t, err, apperr.KindAccessDenied)
	_, err = f.svc.UpdateUser(ctx, field, 999, UserPatch{Name: ptr("x")})
	wantKind(t, err, apperr.KindNotFound)

	got, err := f.svc.GetUser(ctx, field, field.ID)
	if err != nil || got.Role != model.RoleField {
		t.Fatalf("role changed: %+v, %v", got, err)
	}
}

func TestLastAdminGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)

	_, err := f.svc.UpdateUser(ctx, admin, admin.ID, UserPatch{Role: ptr(model.RolePM)})
	wantKind(t, err, apperr.KindConflict)
	wantKind(t, f.svc.DeactivateUser(ctx, admin, admin.ID), apperr.KindConflict)

	second := f.user(t, "admin2@example.com", model.RoleAdmin, nil)
	if err := f.svc.DeactivateUser(ctx, admin, second.ID); err != nil {
		t.Fatalf("deactivate second admin: %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	pm := f.user(t, "pm@example.com", model.RolePM, nil)

	in := NewUser{Email: "New@Example.com", Password: "long-enough", Name: "New", Role: model.RoleForeman}
	if _, err := f.svc.CreateUser(ctx, pm, in); apperr.KindOf(err) != apperr.KindAccessDenied {
		t.Fatalf("pm created a user: %v", err)
	}
	u, err := f.svc.CreateUser(ctx, admin, in)
	if err != nil || u.Email != "new@example.com" || !u.Active {
		t.Fatalf("create = %+v, %v", u, err)
	}
	_, err = f.svc.CreateUser(ctx, admin, in)
	wantKind(t, err, apperr.KindConflict)

	in.Email, in.Role = "bad@example.com", "boss"
	_, err = f.svc.CreateUser(ctx, admin, in)
	wantKind(t, err, apperr.KindValidation)
}

func TestEmergencyContactsAreSelfOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	qa := f.user(t, "qa@example.com", model.RoleQA, nil)
	other := f.user(t, "other@example.com", model.RoleQA, nil)

	c, err := f.svc.AddEmergencyContact(ctx, qa, qa.ID, ContactInput{Name: "Pat", Relationship: "sibling", Phone: "555-0101"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.AddEmergencyContact(ctx, other, qa.ID, ContactInput{Name: "Mallory", Phone: "555"})
	wantKind(t, err, apperr.KindAccessDenied)
	_, err = f.svc.UpdateEmergencyContact(ctx, other, c.ID, ContactInput{Name: "Mallory", Phone: "555"})
	wantKind(t, err, apperr.KindAccessDenied)

	if _, err := f.svc.UpdateEmergencyContact(ctx, admin, c.ID, ContactInput{Name: "Pat Q", Phone: "555-0102"}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	list, err := f.svc.ListEmergencyContacts(ctx, qa, qa.ID)
	if err != nil || len(list) != 1 || list[0].Name != "Pat Q" {
		t.Fatalf("list = %+v, %v", list, err)
	}
	if err := f.svc.DeleteEmergencyContact(ctx, qa, c.ID); err != nil {
		t.Fatal(err)
	}
}

func TestEquipmentSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	holder := f.user(t, "field@example.com", model.RoleField, nil)
	other := f.user(t, "other@example.com", model.RoleField, nil)

	e, err := f.svc.IssueEquipment(ctx, admin, EquipmentInput{UserID: holder.ID, Name: "Harness", SerialNumber: "H-1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.IssueEquipment(ctx, holder, EquipmentInput{UserID: holder.ID, Name: "Drill"})
	wantKind(t, err, apperr.KindAccessDenied)
	_, err = f.svc.UpdateEquipment(ctx, holder, e.ID, ptr("Renamed"), nil)
	wantKind(t, err, apperr.KindAccessDenied)

	sig := func() Upload {
		return Upload{Filename: "sig.png", ContentType: "image/png", Body: strings.NewReader("png")}
	}
	_, err = f.svc.SignEquipment(ctx, other, e.ID, sig())
	wantKind(t, err, apperr.KindAccessDenied)
	if f.files.Len() != 0 {
		t.Fatalf("denied signature left an object behind")
	}

	signed, err := f.svc.SignEquipment(ctx, holder, e.ID, sig())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.SignedAt == nil || !f.files.Has(signed.SignatureRef) {
		t.Fatalf("signature not recorded: %+v", signed)
	}

	list, err := f.svc.ListEquipment(ctx, other)
	if err != nil || len(list) != 0 {
		t.Fatalf("other sees %+v, %v", list, err)
	}
}
