package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/derive"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/queue"
)

func jpeg() Upload {
	return Upload{Filename: "site.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg-bytes")}
}

func TestPhotoUploadCompletesModule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	pm := f.user(t, "pm@example.com", model.RolePM, nil)
	field := f.user(t, "field@example.com", model.RoleField, nil)
	p := f.project(t, admin, "P-1", pm.ID, nil)
	if _, err := f.svc.TransitionProject(ctx, pm, p.ID, model.ProjectInProgress); err != nil {
		t.Fatal(err)
	}

	mod, err := f.svc.CreateModule(ctx, pm, p.ID, NewModule{
		Site: model.SiteA, ModuleID: 12,
		Items: []ChecklistItemInput{{ChecklistItemID: 1, Label: "Foundation", RequiredCount: 4}},
	})
	if err != nil {
		t.Fatalf("create module: %v", err)
	}
	if mod.RequiredPhotoCount != 4 || mod.Status != model.ModuleNotStarted || mod.CompletionPercentage != 0 {
		t.Fatalf("new module = %+v", mod.SiteModule)
	}

	var res PhotoResult
	for i := 0; i < 3; i++ {
		if res, err = f.svc.UploadPhoto(ctx, field, mod.ID, 1, jpeg()); err != nil {
			t.Fatalf("upload %d: %v", i+1, err)
		}
	}
	m := res.Module
	if m.CompletionPercentage != 75 || m.Status != model.ModuleInProgress || m.CompletedAt != nil {
		t.Fatalf("after 3 uploads: %+v", m.SiteModule)
	}
	f.notes.none(t, queue.KindModuleCompleted)

	res, err = f.svc.UploadPhoto(ctx, field, mod.ID, 1, jpeg())
	if err != nil {
		t.Fatal(err)
	}
	m = res.Module
	if m.CompletionPercentage != 100 || m.Status != model.ModuleCompleted || m.CompletedAt == nil {
		t.Fatalf("after 4 uploads: %+v", m.SiteModule)
	}
	if !m.Items[0].IsCompleted || m.Items[0].UploadedCount != 4 {
		t.Fatalf("item = %+v", m.Items[0])
	}
	ev := f.notes.wait(t, queue.KindModuleCompleted)
	if ev.Recipients[0] != pm.ID {
		t.Fatalf("completion notified %v, want manager", ev.Recipients)
	}
	if f.files.Len() != 4 {
		t.Fatalf("stored objects = %d", f.files.Len())
	}

	// Removing a photo reopens the module and clears completed_at.
	back, err := f.svc.DeletePhoto(ctx, field, res.Photo.ID)
	if err != nil {
		t.Fatalf("delete photo: %v", err)
	}
	if back.Status != model.ModuleInProgress || back.CompletionPercentage != 75 || back.CompletedAt != nil {
		t.Fatalf("after delete: %+v", back.SiteModule)
	}
	if f.files.Has(res.Photo.Ref) {
		t.Fatalf("deleted photo object still stored")
	}
}

func TestUploadsMatchDerivedPercentage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	pm := f.user(t, "pm@example.com", model.RolePM, nil)
	p := f.project(t, admin, "P-1", pm.ID, nil)

	mod, err := f.svc.CreateModule(ctx, pm, p.ID, NewModule{
		Site: model.SiteB, ModuleID: 3,
		Items: []ChecklistItemInput{
			{ChecklistItemID: 10, RequiredCount: 2},
			{ChecklistItemID: 11, RequiredCount: 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// The third photo on item 10 must not complete the module while 11 is empty.
	uploads := []uint64{10, 10, 10, 11}
	for i, item := range uploads {
		res, err := f.svc.UploadPhoto(ctx, pm, mod.ID, item, jpeg())
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		m := res.Module
		if want := derive.Percentage(m.UploadedPhotoCount, m.RequiredPhotoCount); m.CompletionPercentage != want {
			t.Fatalf("upload %d: percentage %d, want %d", i, m.CompletionPercentage, want)
		}
		allDone := true
		for _, it := range m.Items {
			allDone = allDone && it.UploadedCount >= it.RequiredCount
		}
		if (m.Status == model.ModuleCompleted) != allDone {
			t.Fatalf("upload %d: status %s with items %+v", i, m.Status, m.Items)
		}
	}

	view, _ := f.svc.GetModule(ctx, pm, mod.ID)
	if view.Status != model.ModuleCompleted {
		t.Fatalf("final status = %s", view.Status)
	}

	_, err = f.svc.UploadPhoto(ctx, pm, mod.ID, 0, jpeg())
	wantKind(t, err, apperr.KindValidation)
	_, err = f.svc.UploadPhoto(ctx, pm, mod.ID, 99, jpeg())
	wantKind(t, err, apperr.KindValidation)
}

func TestConcurrentUploadsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	pm := f.user(t, "pm@example.com", model.RolePM, nil)
	p := f.project(t, admin, "P-1", pm.ID, nil)
	mod, err := f.svc.CreateModule(ctx, pm, p.ID, NewModule{Site: model.SiteA, ModuleID: 1, RequiredPhotoCount: 8})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.UploadPhoto(ctx, pm, mod.ID, 0, jpeg()); err != nil {
				t.Errorf("upload: %v", err)
			}
		}()
	}
	wg.Wait()

	view, err := f.svc.GetModule(ctx, pm, mod.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.UploadedPhotoCount != 8 || view.Status != model.ModuleCompleted {
		t.Fatalf("module = %+v", view.SiteModule)
	}
	photos, _ := f.svc.ListPhotos(ctx, pm, mod.ID)
	if len(photos) != 8 {
		t.Fatalf("photos = %d", len(photos))
	}
}

func TestDeniedUploadStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	pm := f.user(t, "pm@example.com", model.RolePM, nil)
	customer := f.user(t, "c@example.com", model.RoleCustomer, ptr(uint64(5)))
	p := f.project(t, admin, "P-1", pm.ID, ptr(uint64(5)))
	mod, _ := f.svc.CreateModule(ctx, pm, p.ID, NewModule{Site: model.SiteA, ModuleID: 1, RequiredPhotoCount: 2})

	_, err := f.svc.UploadPhoto(ctx, customer, mod.ID, 0, jpeg())
	wantKind(t, err, apperr.KindAccessDenied)
	_, err = f.svc.UploadPhoto(ctx, pm, 404, 0, jpeg())
	wantKind(t, err, apperr.KindNotFound)
	if f.files.Len() != 0 {
		t.Fatalf("objects stored for rejected uploads: %d", f.files.Len())
	}

	// Customers still read the modules of their projects.
	if _, err := f.svc.ListModules(ctx, customer, p.ID); err != nil {
		t.Fatalf("customer list modules: %v", err)
	}
}

func TestDeleteModuleRemovesPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", model.RoleAdmin, nil)
	pm := f.user(t, "pm@example.com", model.RolePM, nil)
	p := f.project(t, admin, "P-1", pm.ID, nil)
	mod, _ := f.svc.CreateModule(ctx, pm, p.ID, NewModule{Site: model.SiteA, ModuleID: 1, RequiredPhotoCount: 2})
	if _, err := f.svc.UploadPhoto(ctx, pm, mod.ID, 0, jpeg()); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.DeleteModule(ctx, pm, mod.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.GetModule(ctx, pm, mod.ID)
	wantKind(t, err, apperr.KindNotFound)
	if f.files.Len() != 0 {
		t.Fatalf("photo objects left: %d", f.files.Len())
	}
}
