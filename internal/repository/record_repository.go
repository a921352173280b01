package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

// ---- certifications ----

const certColumns = "id,user_id,name,issued_date,expiration_date,status,document_ref,updated_at"

func scanCert(row scanner) (model.Certification, error) {
	var (
		c      model.Certification
		issued sql.NullTime
		status string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &issued, &c.ExpirationDate, &status, &c.DocumentRef, &c.UpdatedAt)
	c.IssuedDate = fromNullTime(issued)
	c.Status = model.CertificationStatus(status)
	return c, err
}

func (q *Queries) CreateCertification(ctx context.Context, c *model.Certification) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "certification",
		"INSERT INTO certifications (user_id,name,issued_date,expiration_date,status,document_ref,updated_at) VALUES (?,?,?,?,?,?,?)",
		c.UserID, c.Name, toNullTime(c.IssuedDate), c.ExpirationDate, string(c.Status), c.DocumentRef, now)
	if err != nil {
		return err
	}
	c.ID, c.UpdatedAt = id, now
	return nil
}

func (q *Queries) GetCertification(ctx context.Context, id uint64) (model.Certification, error) {
	c, err := scanCert(q.db.QueryRowContext(ctx,
		"SELECT "+certColumns+" FROM certifications WHERE id=? LIMIT 1", id))
	return c, mapErr(err, "certification")
}

func (q *Queries) UpdateCertification(ctx context.Context, c model.Certification) error {
	return q.exec(ctx, "certification",
		"UPDATE certifications SET name=?,issued_date=?,expiration_date=?,status=?,document_ref=? WHERE id=?",
		c.Name, toNullTime(c.IssuedDate), c.ExpirationDate, string(c.Status), c.DocumentRef, c.ID)
}

func (q *Queries) DeleteCertification(ctx context.Context, id uint64) error {
	return q.exec(ctx, "certification", "DELETE FROM certifications WHERE id=?", id)
}

func (q *Queries) ListCertifications(ctx context.Context, scope policy.Scope) ([]model.Certification, error) {
	where, args := scopeSQL(scope, scopeColumns{Owner: "user_id"})
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+certColumns+" FROM certifications WHERE "+where+" ORDER BY expiration_date, id", args...)
	if err != nil {
		return nil, mapErr(err, "certifications")
	}
	defer rows.Close()
	out := []model.Certification{}
	for rows.Next() {
		c, err := scanCert(rows)
		if err != nil {
			return nil, mapErr(err, "certifications")
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "certifications")
}

// ---- receipts ----

const receiptColumns = "r.id,r.project_id,r.user_id,r.amount_cents,r.category,r.description,r.image_ref,r.status,r.decided_by,r.decided_at,r.exported_at,r.created_at"

func scanReceipt(row scanner) (model.Receipt, error) {
	var (
		r                 model.Receipt
		status            string
		decidedBy         sql.NullInt64
		decidedAt, export sql.NullTime
	)
	err := row.Scan(&r.ID, &r.ProjectID, &r.UserID, &r.AmountCents, &r.Category, &r.Description, &r.ImageRef,
		&status, &decidedBy, &decidedAt, &export, &r.CreatedAt)
	r.Status = model.ReceiptStatus(status)
	r.DecidedBy = fromNullID(decidedBy)
	r.DecidedAt = fromNullTime(decidedAt)
	r.ExportedAt = fromNullTime(export)
	return r, err
}

func (q *Queries) CreateReceipt(ctx context.Context, r *model.Receipt) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "receipt",
		"INSERT INTO receipts (project_id,user_id,amount_cents,category,description,image_ref,status,created_at) VALUES (?,?,?,?,?,?,?,?)",
		r.ProjectID, r.UserID, r.AmountCents, r.Category, r.Description, r.ImageRef, string(r.Status), now)
	if err != nil {
		return err
	}
	r.ID, r.CreatedAt = id, now
	return nil
}

func (q *Queries) GetReceipt(ctx context.Context, id uint64) (model.Receipt, error) {
	r, err := scanReceipt(q.db.QueryRowContext(ctx,
		"SELECT "+receiptColumns+" FROM receipts r WHERE r.id=? LIMIT 1", id))
	return r, mapErr(err, "receipt")
}

// GetReceiptForUpdate locks the receipt so two approvers cannot both move it
// out of pending.
func (q *Queries) GetReceiptForUpdate(ctx context.Context, id uint64) (model.Receipt, error) {
	r, err := scanReceipt(q.db.QueryRowContext(ctx,
		"SELECT "+receiptColumns+" FROM receipts r WHERE r.id=?"+q.lock(), id))
	return r, mapErr(err, "receipt")
}

func (q *Queries) UpdateReceipt(ctx context.Context, r model.Receipt) error {
	return q.exec(ctx, "receipt",
		"UPDATE receipts SET amount_cents=?,category=?,description=?,image_ref=?,status=?,decided_by=?,decided_at=?,exported_at=? WHERE id=?",
		r.AmountCents, r.Category, r.Description, r.ImageRef, string(r.Status), toNullID(r.DecidedBy),
		toNullTime(r.DecidedAt), toNullTime(r.ExportedAt), r.ID)
}

func (q *Queries) DeleteReceipt(ctx context.Context, id uint64) error {
	return q.exec(ctx, "receipt", "DELETE FROM receipts WHERE id=?", id)
}

func (q *Queries) ListReceipts(ctx context.Context, scope policy.Scope, f store.ReceiptFilter) ([]model.Receipt, error) {
	where, args := scopeSQL(scope, scopeColumns{Owner: "r.user_id", ProjectID: "r.project_id", Project: true})
	if f.ProjectID != 0 {
		where += " AND r.project_id = ?"
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		where += " AND r.status = ?"
		args = append(args, string(f.Status))
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+receiptColumns+" FROM receipts r JOIN projects p ON p.id = r.project_id WHERE "+where+" ORDER BY r.id", args...)
	if err != nil {
		return nil, mapErr(err, "receipts")
	}
	defer rows.Close()
	out := []model.Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, mapErr(err, "receipts")
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err(), "receipts")
}

// ---- equipment ----

const equipmentColumns = "id,user_id,name,serial_number,signature_ref,signed_at,created_at"

func scanEquipment(row scanner) (model.Equipment, error) {
	var (
		e      model.Equipment
		serial sql.NullString
		signed sql.NullTime
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &serial, &e.SignatureRef, &signed, &e.CreatedAt)
	e.SerialNumber = serial.String
	e.SignedAt = fromNullTime(signed)
	return e, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (q *Queries) CreateEquipment(ctx context.Context, e *model.Equipment) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "equipment serial",
		"INSERT INTO equipment (user_id,name,serial_number,signature_ref,signed_at,created_at) VALUES (?,?,?,?,?,?)",
		e.UserID, e.Name, nullString(e.SerialNumber), e.SignatureRef, toNullTime(e.SignedAt), now)
	if err != nil {
		return err
	}
	e.ID, e.CreatedAt = id, now
	return nil
}

func (q *Queries) GetEquipment(ctx context.Context, id uint64) (model.Equipment, error) {
	e, err := scanEquipment(q.db.QueryRowContext(ctx,
		"SELECT "+equipmentColumns+" FROM equipment WHERE id=? LIMIT 1", id))
	return e, mapErr(err, "equipment")
}

func (q *Queries) UpdateEquipment(ctx context.Context, e model.Equipment) error {
	return q.exec(ctx, "equipment",
		"UPDATE equipment SET user_id=?,name=?,serial_number=?,signature_ref=?,signed_at=? WHERE id=?",
		e.UserID, e.Name, nullString(e.SerialNumber), e.SignatureRef, toNullTime(e.SignedAt), e.ID)
}

func (q *Queries) DeleteEquipment(ctx context.Context, id uint64) error {
	return q.exec(ctx, "equipment", "DELETE FROM equipment WHERE id=?", id)
}

func (q *Queries) ListEquipment(ctx context.Context, scope policy.Scope) ([]model.Equipment, error) {
	where, args := scopeSQL(scope, scopeColumns{Owner: "user_id"})
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+equipmentColumns+" FROM equipment WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, mapErr(err, "equipment")
	}
	defer rows.Close()
	out := []model.Equipment{}
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, mapErr(err, "equipment")
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err(), "equipment")
}

// ---- emergency contacts ----

func (q *Queries) CreateEmergencyContact(ctx context.Context, c *model.EmergencyContact) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "emergency contact",
		"INSERT INTO emergency_contacts (user_id,name,relationship,phone,created_at) VALUES (?,?,?,?,?)",
		c.UserID, c.Name, c.Relationship, c.Phone, now)
	if err != nil {
		return err
	}
	c.ID, c.CreatedAt = id, now
	return nil
}

func (q *Queries) GetEmergencyContact(ctx context.Context, id uint64) (model.EmergencyContact, error) {
	var c model.EmergencyContact
	err := q.db.QueryRowContext(ctx,
		"SELECT id,user_id,name,relationship,phone,created_at FROM emergency_contacts WHERE id=? LIMIT 1", id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Relationship, &c.Phone, &c.CreatedAt)
	return c, mapErr(err, "emergency contact")
}

func (q *Queries) UpdateEmergencyContact(ctx context.Context, c model.EmergencyContact) error {
	return q.exec(ctx, "emergency contact",
		"UPDATE emergency_contacts SET name=?,relationship=?,phone=? WHERE id=?",
		c.Name, c.Relationship, c.Phone, c.ID)
}

func (q *Queries) DeleteEmergencyContact(ctx context.Context, id uint64) error {
	return q.exec(ctx, "emergency contact", "DELETE FROM emergency_contacts WHERE id=?", id)
}

func (q *Queries) ListEmergencyContacts(ctx context.Context, userID uint64) ([]model.EmergencyContact, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id,user_id,name,relationship,phone,created_at FROM emergency_contacts WHERE user_id=? ORDER BY id", userID)
	if err != nil {
		return nil, mapErr(err, "emergency contacts")
	}
	defer rows.Close()
	out := []model.EmergencyContact{}
	for rows.Next() {
		var c model.EmergencyContact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Relationship, &c.Phone, &c.CreatedAt); err != nil {
			return nil, mapErr(err, "emergency contacts")
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "emergency contacts")
}
