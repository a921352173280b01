package memory

import (
	"context"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

// ---- certifications ----

func (v *view) CreateCertification(_ context.Context, c *model.Certification) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.users[c.UserID]; !ok {
		return apperr.NotFound("user %d not found", c.UserID)
	}
	c.ID = st.next("certs")
	c.UpdatedAt = v.clock()
	st.certs[c.ID] = *c
	return nil
}

func (v *view) GetCertification(_ context.Context, id uint64) (model.Certification, error) {
	st, done := v.begin()
	defer done()
	c, ok := st.certs[id]
	if !ok {
		return model.Certification{}, apperr.NotFound("certification %d not found", id)
	}
	return c, nil
}

func (v *view) UpdateCertification(_ context.Context, c model.Certification) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.certs[c.ID]; !ok {
		return apperr.NotFound("certification %d not found", c.ID)
	}
	c.UpdatedAt = v.clock()
	st.certs[c.ID] = c
	return nil
}

func (v *view) DeleteCertification(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.certs[id]; !ok {
		return apperr.NotFound("certification %d not found", id)
	}
	delete(st.certs, id)
	return nil
}

func (v *view) ListCertifications(_ context.Context, scope policy.Scope) ([]model.Certification, error) {
	st, done := v.begin()
	defer done()
	out := []model.Certification{}
	for _, c := range st.certs {
		if scope.Match(policy.Row{OwnerID: c.UserID}) {
			out = append(out, c)
		}
	}
	return sortByID(out, func(c model.Certification) uint64 { return c.ID }), nil
}

// ---- receipts ----

func (v *view) CreateReceipt(_ context.Context, r *model.Receipt) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.projects[r.ProjectID]; !ok {
		return apperr.NotFound("project %d not found", r.ProjectID)
	}
	r.ID = st.next("receipts")
	r.CreatedAt = v.clock()
	st.receipts[r.ID] = *r
	return nil
}

func (v *view) GetReceipt(_ context.Context, id uint64) (model.Receipt, error) {
	st, done := v.begin()
	defer done()
	r, ok := st.receipts[id]
	if !ok {
		return model.Receipt{}, apperr.NotFound("receipt %d not found", id)
	}
	return r, nil
}

func (v *view) GetReceiptForUpdate(ctx context.Context, id uint64) (model.Receipt, error) {
	return v.GetReceipt(ctx, id)
}

func (v *view) UpdateReceipt(_ context.Context, r model.Receipt) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.receipts[r.ID]; !ok {
		return apperr.NotFound("receipt %d not found", r.ID)
	}
	st.receipts[r.ID] = r
	return nil
}

func (v *view) DeleteReceipt(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.receipts[id]; !ok {
		return apperr.NotFound("receipt %d not found", id)
	}
	delete(st.receipts, id)
	return nil
}

func (v *view) ListReceipts(_ context.Context, scope policy.Scope, f store.ReceiptFilter) ([]model.Receipt, error) {
	st, done := v.begin()
	defer done()
	out := []model.Receipt{}
	for _, r := range st.receipts {
		if f.ProjectID != 0 && r.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if scope.Match(st.row(r.UserID, r.ProjectID)) {
			out = append(out, r)
		}
	}
	return sortByID(out, func(r model.Receipt) uint64 { return r.ID }), nil
}

// ---- equipment ----

func (v *view) CreateEquipment(_ context.Context, e *model.Equipment) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.users[e.UserID]; !ok {
		return apperr.NotFound("user %d not found", e.UserID)
	}
	for _, other := range st.equipment {
		if e.SerialNumber != "" && other.SerialNumber == e.SerialNumber {
			return apperr.Conflict("serial %s already issued", e.SerialNumber)
		}
	}
	e.ID = st.next("equipment")
	e.CreatedAt = v.clock()
	st.equipment[e.ID] = *e
	return nil
}

func (v *view) GetEquipment(_ context.Context, id uint64) (model.Equipment, error) {
	st, done := v.begin()
	defer done()
	e, ok := st.equipment[id]
	if !ok {
		return model.Equipment{}, apperr.NotFound("equipment %d not found", id)
	}
	return e, nil
}

func (v *view) UpdateEquipment(_ context.Context, e model.Equipment) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.equipment[e.ID]; !ok {
		return apperr.NotFound("equipment %d not found", e.ID)
	}
	st.equipment[e.ID] = e
	return nil
}

func (v *view) DeleteEquipment(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.equipment[id]; !ok {
		return apperr.NotFound("equipment %d not found", id)
	}
	delete(st.equipment, id)
	return nil
}

func (v *view) ListEquipment(_ context.Context, scope policy.Scope) ([]model.Equipment, error) {
	st, done := v.begin()
	defer done()
	out := []model.Equipment{}
	for _, e := range st.equipment {
		if scope.Match(policy.Row{OwnerID: e.UserID}) {
			out = append(out, e)
		}
	}
	return sortByID(out, func(e model.Equipment) uint64 { return e.ID }), nil
}

// ---- emergency contacts ----

func (v *view) CreateEmergencyContact(_ context.Context, c *model.EmergencyContact) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.users[c.UserID]; !ok {
		return apperr.NotFound("user %d not found", c.UserID)
	}
	c.ID = st.next("contacts")
	c.CreatedAt = v.clock()
	st.contacts[c.ID] = *c
	return nil
}

func (v *view) GetEmergencyContact(_ context.Context, id uint64) (model.EmergencyContact, error) {
	st, done := v.begin()
	defer done()
	c, ok := st.contacts[id]
	if !ok {
		return model.EmergencyContact{}, apperr.NotFound("emergency contact %d not found", id)
	}
	return c, nil
}

func (v *view) UpdateEmergencyContact(_ context.Context, c model.EmergencyContact) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.contacts[c.ID]; !ok {
		return apperr.NotFound("emergency contact %d not found", c.ID)
	}
	st.contacts[c.ID] = c
	return nil
}

func (v *view) DeleteEmergencyContact(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.contacts[id]; !ok {
		return apperr.NotFound("emergency contact %d not found", id)
	}
	delete(st.contacts, id)
	return nil
}

func (v *view) ListEmergencyContacts(_ context.Context, userID uint64) ([]model.EmergencyContact, error) {
	st, done := v.begin()
	defer done()
	out := []model.EmergencyContact{}
	for _, c := range st.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return sortByID(out, func(c model.EmergencyContact) uint64 { return c.ID }), nil
}
