package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/derive"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/store"
)

// ModuleView is a module instance with the progress of its checklist items.
type ModuleView struct {
	model.SiteModule
	Items []model.ChecklistProgress `json:"items"`
}

// ChecklistItemInput declares one checklist item of a new module.
type ChecklistItemInput struct {
	ChecklistItemID uint64
	Label           string
	RequiredCount   int
}

// NewModule places a module on a project site. RequiredPhotoCount is used
// only when the module has no checklist items.
type NewModule struct {
	Site               model.Site
	ModuleID           uint64
	RequiredPhotoCount int
	Items              []ChecklistItemInput
}

// PhotoResult is an accepted photo with the module state it produced.
type PhotoResult struct {
	Photo  model.Photo `json:"photo"`
	URL    string      `json:"url,omitempty"`
	Module ModuleView  `json:"module"`
}

// CreateModule places a module with its checklist on a project site.
func (s *Service) CreateModule(ctx context.Context, actor model.Actor, projectID uint64, in NewModule) (ModuleView, error) {
	if in.Site != model.SiteA && in.Site != model.SiteB {
		return ModuleView{}, apperr.Invalid("site", "must be A or B")
	}
	if in.ModuleID == 0 {
		return ModuleView{}, apperr.Invalid("module_id", "is required")
	}
	if in.RequiredPhotoCount < 0 {
		return ModuleView{}, apperr.Invalid("required_photo_count", "must not be negative")
	}
	seen := map[uint64]bool{}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.ChecklistItemID == 0 {
			return ModuleView{}, apperr.Invalid(field+".checklist_item_id", "is required")
		}
		if it.RequiredCount < 0 {
			return ModuleView{}, apperr.Invalid(field+".required_count", "must not be negative")
		}
		if seen[it.ChecklistItemID] {
			return ModuleView{}, apperr.Invalid(field+".checklist_item_id", "item %d listed twice", it.ChecklistItemID)
		}
		seen[it.ChecklistItemID] = true
	}

	var out ModuleView
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		t, err := projectTarget(ctx, q, actor, projectID, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.SiteModule, policy.Create, t); err != nil {
			return err
		}
		m := model.SiteModule{
			ProjectID: projectID, Site: in.Site, ModuleID: in.ModuleID,
			RequiredPhotoCount: in.RequiredPhotoCount, Status: model.ModuleNotStarted,
		}
		if err := q.CreateSiteModule(ctx, &m); err != nil {
			return err
		}
		items := make([]model.ChecklistProgress, 0, len(in.Items))
		for _, it := range in.Items {
			c := derive.ChecklistItem(model.ChecklistProgress{
				ModuleInstanceID: m.ID, ChecklistItemID: it.ChecklistItemID,
				Label: it.Label, RequiredCount: it.RequiredCount,
			})
			if err := q.CreateChecklistProgress(ctx, &c); err != nil {
				return err
			}
			items = append(items, c)
		}
		m = derive.Module(m, items, s.now())
		if err := q.UpdateSiteModule(ctx, m); err != nil {
			return err
		}
		out = ModuleView{SiteModule: m, Items: items}
		return nil
	})
	return out, err
}

// GetModule returns a module instance with its checklist progress.
func (s *Service) GetModule(ctx context.Context, actor model.Actor, id uint64) (ModuleView, error) {
	m, t, err := moduleTarget(ctx, s.Store, actor, id, false)
	if err != nil {
		return ModuleView{}, err
	}
	if err := authorize(actor, policy.SiteModule, policy.Read, t); err != nil {
		return ModuleView{}, err
	}
	items, err := s.Store.ListChecklistProgress(ctx, id)
	if err != nil {
		return ModuleView{}, err
	}
	return ModuleView{SiteModule: m, Items: items}, nil
}

// ListModules lists the modules of a project the actor may read.
func (s *Service) ListModules(ctx context.Context, actor model.Actor, projectID uint64) ([]ModuleView, error) {
	t, err := projectTarget(ctx, s.Store, actor, projectID, false)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.SiteModule, policy.Read, t); err != nil {
		return nil, err
	}
	mods, err := s.Store.ListSiteModules(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]ModuleView, 0, len(mods))
	for _, m := range mods {
		items, err := s.Store.ListChecklistProgress(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ModuleView{SiteModule: m, Items: items})
	}
	return out, nil
}

// DeleteModule removes a module instance with its checklist and photos.
func (s *Service) DeleteModule(ctx context.Context, actor model.Actor, id uint64) error {
	var refs []string
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		_, t, err := moduleTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.SiteModule, policy.Delete, t); err != nil {
			return err
		}
		photos, err := q.ListPhotos(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range photos {
			refs = append(refs, p.Ref)
		}
		return q.DeleteSiteModule(ctx, id)
	})
	if err == nil {
		s.removeFiles(refs...)
	}
	return err
}

// UploadPhoto stores a photo for a module, optionally against one of its
// checklist items, and recomputes the module in the same transaction as
// the photo insert. Concurrent uploads to one module serialise on the
// module row so no increment is lost.
func (s *Service) UploadPhoto(ctx context.Context, actor model.Actor, moduleID, checklistItemID uint64, up Upload) (PhotoResult, error) {
	if up.Body == nil {
		return PhotoResult{}, apperr.Invalid("photo", "a file is required")
	}
	// Decide before the upload so a denied request leaves no object behind.
	_, t, err := moduleTarget(ctx, s.Store, actor, moduleID, false)
	if err != nil {
		return PhotoResult{}, err
	}
	if err := authorize(actor, policy.Photo, policy.Create, t); err != nil {
		return PhotoResult{}, err
	}

	obj, undo, err := s.putFile(ctx, "photos/"+strconv.FormatUint(moduleID, 10), &up)
	if err != nil {
		return PhotoResult{}, err
	}

	var (
		out     PhotoResult
		prev    model.ModuleStatus
		manager uint64
	)
	err = s.Store.InTx(ctx, func(q store.Queries) error {
		m, t, err := moduleTarget(ctx, q, actor, moduleID, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Photo, policy.Create, t); err != nil {
			return err
		}
		items, err := q.ListChecklistProgress(ctx, moduleID)
		if err != nil {
			return err
		}
		idx, err := itemIndex(items, checklistItemID)
		if err != nil {
			return err
		}

		p := model.Photo{ModuleInstanceID: moduleID, ChecklistItemID: checklistItemID, UserID: actor.ID, Ref: obj.Key}
		if err := q.CreatePhoto(ctx, &p); err != nil {
			return err
		}
		if idx >= 0 {
			items[idx].UploadedCount++
			items[idx] = derive.ChecklistItem(items[idx])
			if err := q.UpdateChecklistProgress(ctx, items[idx]); err != nil {
				return err
			}
		} else {
			m.UploadedPhotoCount++
		}

		prev = m.Status
		m = derive.Module(m, items, s.now())
		if err := q.UpdateSiteModule(ctx, m); err != nil {
			return err
		}
		manager = t.Project.ManagerID
		out = PhotoResult{Photo: p, URL: obj.URL, Module: ModuleView{SiteModule: m, Items: items}}
		return nil
	})
	if err != nil {
		undo()
		return PhotoResult{}, err
	}

	if prev != model.ModuleCompleted && out.Module.Status == model.ModuleCompleted {
		s.emit(queue.KindModuleCompleted, manager,
			fmt.Sprintf("Module %d on site %s completed", out.Module.ModuleID, out.Module.Site),
			map[string]string{
				"project_id":         strconv.FormatUint(out.Module.ProjectID, 10),
				"module_instance_id": strconv.FormatUint(out.Module.ID, 10),
			})
	}
	return out, nil
}

// DeletePhoto removes a photo and reverses its count on the module.
func (s *Service) DeletePhoto(ctx context.Context, actor model.Actor, photoID uint64) (ModuleView, error) {
	var (
		out ModuleView
		ref string
	)
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		p, err := q.GetPhoto(ctx, photoID)
		if gone, err := absent(err); gone || err != nil {
			if err != nil {
				return err
			}
			return authorize(actor, policy.Photo, policy.Delete, policy.Target{Absent: true})
		}
		m, t, err := moduleTarget(ctx, q, actor, p.ModuleInstanceID, true)
		if err != nil {
			return err
		}
		t.OwnerID = p.UserID
		if err := authorize(actor, policy.Photo, policy.Delete, t); err != nil {
			return err
		}
		items, err := q.ListChecklistProgress(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := q.DeletePhoto(ctx, photoID); err != nil {
			return err
		}
		idx, _ := itemIndex(items, p.ChecklistItemID)
		switch {
		case idx >= 0 && items[idx].UploadedCount > 0:
			items[idx].UploadedCount--
			items[idx] = derive.ChecklistItem(items[idx])
			if err := q.UpdateChecklistProgress(ctx, items[idx]); err != nil {
				return err
			}
		case idx < 0 && m.UploadedPhotoCount > 0:
			m.UploadedPhotoCount--
		}
		m = derive.Module(m, items, s.now())
		if err := q.UpdateSiteModule(ctx, m); err != nil {
			return err
		}
		ref = p.Ref
		out = ModuleView{SiteModule: m, Items: items}
		return nil
	})
	if err != nil {
		return ModuleView{}, err
	}
	s.removeFiles(ref)
	return out, nil
}

// ListPhotos lists the photos of a module the actor may read.
func (s *Service) ListPhotos(ctx context.Context, actor model.Actor, moduleID uint64) ([]model.Photo, error) {
	_, t, err := moduleTarget(ctx, s.Store, actor, moduleID, false)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.Photo, policy.Read, t); err != nil {
		return nil, err
	}
	return s.Store.ListPhotos(ctx, moduleID)
}

// itemIndex finds the checklist item a photo counts towards. Modules with a
// checklist require the item; modules without one accept none.
func itemIndex(items []model.ChecklistProgress, checklistItemID uint64) (int, error) {
	if checklistItemID == 0 {
		if len(items) > 0 {
			return -1, apperr.Invalid("checklist_item_id", "module has a checklist; name the item")
		}
		return -1, nil
	}
	for i, it := range items {
		if it.ChecklistItemID == checklistItemID {
			return i, nil
		}
	}
	return -1, apperr.Invalid("checklist_item_id", "item %d is not on this module", checklistItemID)
}

func moduleTarget(ctx context.Context, q store.Queries, actor model.Actor, id uint64, forUpdate bool) (model.SiteModule, policy.Target, error) {
	var (
		m   model.SiteModule
		err error
	)
	if forUpdate {
		m, err = q.GetSiteModuleForUpdate(ctx, id)
	} else {
		m, err = q.GetSiteModule(ctx, id)
	}
	if gone, err := absent(err); gone || err != nil {
		return m, policy.Target{Absent: gone}, err
	}
	t, err := projectTarget(ctx, q, actor, m.ProjectID, false)
	return m, t, err
}

// removeFiles deletes objects whose records are gone. Failures only leave
// an orphaned object behind.
func (s *Service) removeFiles(keys ...string) {
	if s.Files == nil {
		return
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		_ = s.Files.Delete(context.Background(), k)
	}
}
