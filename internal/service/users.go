package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
	"github.com/iliyamo/field-operations/internal/utils"
)

// NewUser is an account created by an admin.
type NewUser struct {
	Email               string
	Password            string
	Name                string
	Phone               string
	Role                model.Role
	CustomerAffiliation *uint64
}

// UserPatch changes a user. Nil fields are left alone; Role, Active and
// CustomerAffiliation are admin-only.
type UserPatch struct {
	Name                *string
	Phone               *string
	Role                *model.Role
	Active              *bool
	CustomerAffiliation *uint64 // zero clears the affiliation
}

func (p UserPatch) fields() []string {
	var f []string
	if p.Name != nil {
		f = append(f, "name")
	}
	if p.Phone != nil {
		f = append(f, "phone")
	}
	if p.Role != nil {
		f = append(f, "role")
	}
	if p.Active != nil {
		f = append(f, "active")
	}
	if p.CustomerAffiliation != nil {
		f = append(f, "customer_affiliation")
	}
	return f
}

// CreateUser registers an account. Only admins create accounts.
func (s *Service) CreateUser(ctx context.Context, actor model.Actor, in NewUser) (model.User, error) {
	if err := authorize(actor, policy.User, policy.Create, policy.Target{}); err != nil {
		return model.User{}, err
	}
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return model.User{}, apperr.Invalid("email", "a valid email is required")
	}
	if !in.Role.Valid() {
		return model.User{}, apperr.Invalid("role", "unknown role %q", in.Role)
	}
	hash, err := utils.HashPassword(in.Password, s.Opts.BcryptCost)
	if errors.Is(err, utils.ErrWeakPassword) {
		return model.User{}, apperr.Invalid("password", "must be at least %d characters", utils.MinPasswordLen)
	}
	if err != nil {
		return model.User{}, err
	}
	now := s.now()
	u := model.User{
		Email: in.Email, PasswordHash: hash, Name: strings.TrimSpace(in.Name), Phone: in.Phone,
		Role: in.Role, Active: true, CustomerAffiliation: in.CustomerAffiliation,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Store.CreateUser(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUser returns a profile the actor may read.
func (s *Service) GetUser(ctx context.Context, actor model.Actor, id uint64) (model.User, error) {
	u, err := s.Store.GetUser(ctx, id)
	gone, err := absent(err)
	if err != nil {
		return model.User{}, err
	}
	if err := authorize(actor, policy.User, policy.Read, policy.Target{Absent: gone, OwnerID: id}); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// ListUsers lists the profiles visible to the actor.
func (s *Service) ListUsers(ctx context.Context, actor model.Actor) ([]model.User, error) {
	if err := authorize(actor, policy.User, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(actor, policy.User)
	if scope.Empty() {
		return []model.User{}, nil
	}
	return s.Store.ListUsers(ctx, scope)
}

// UpdateUser applies p. Deactivating an account revokes its refresh tokens,
// and the last active admin cannot be demoted or deactivated.
func (s *Service) UpdateUser(ctx context.Context, actor model.Actor, id uint64, p UserPatch) (model.User, error) {
	if p.Role != nil && !p.Role.Valid() {
		return model.User{}, apperr.Invalid("role", "unknown role %q", *p.Role)
	}
	var out model.User
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		u, err := q.GetUser(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		t := policy.Target{Absent: gone, OwnerID: id, Fields: p.fields()}
		if err := authorize(actor, policy.User, policy.Update, t); err != nil {
			return err
		}
		wasAdmin := u.Role == model.RoleAdmin && u.Active
		if p.Name != nil {
			u.Name = strings.TrimSpace(*p.Name)
		}
		if p.Phone != nil {
			u.Phone = strings.TrimSpace(*p.Phone)
		}
		if p.Role != nil {
			u.Role = *p.Role
		}
		if p.Active != nil {
			u.Active = *p.Active
		}
		if p.CustomerAffiliation != nil {
			if *p.CustomerAffiliation == 0 {
				u.CustomerAffiliation = nil
			} else {
				v := *p.CustomerAffiliation
				u.CustomerAffiliation = &v
			}
		}
		if wasAdmin && (u.Role != model.RoleAdmin || !u.Active) {
			if err := lastAdminGuard(ctx, q); err != nil {
				return err
			}
		}
		u.UpdatedAt = s.now()
		if err := q.UpdateUser(ctx, u); err != nil {
			return err
		}
		if !u.Active {
			if err := q.RevokeUserRefreshTokens(ctx, u.ID); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	return out, err
}

// DeactivateUser is the delete operation on accounts: the row stays for the
// history it owns, the account stops resolving and loses its sessions.
func (s *Service) DeactivateUser(ctx context.Context, actor model.Actor, id uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		u, err := q.GetUser(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.User, policy.Delete, policy.Target{Absent: gone, OwnerID: id}); err != nil {
			return err
		}
		if !u.Active {
			return nil
		}
		if u.Role == model.RoleAdmin {
			if err := lastAdminGuard(ctx, q); err != nil {
				return err
			}
		}
		u.Active = false
		u.UpdatedAt = s.now()
		if err := q.UpdateUser(ctx, u); err != nil {
			return err
		}
		return q.RevokeUserRefreshTokens(ctx, id)
	})
}

func lastAdminGuard(ctx context.Context, q store.Queries) error {
	n, err := q.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apperr.Conflict("the last active admin cannot be demoted or deactivated")
	}
	return nil
}

// ---- emergency contacts ----

// ContactInput is the editable part of an emergency contact.
type ContactInput struct {
	Name         string
	Relationship string
	Phone        string
}

func (in ContactInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return apperr.Invalid("phone", "is required")
	}
	return nil
}

// AddEmergencyContact adds a contact to userID's profile.
func (s *Service) AddEmergencyContact(ctx context.Context, actor model.Actor, userID uint64, in ContactInput) (model.EmergencyContact, error) {
	if err := in.validate(); err != nil {
		return model.EmergencyContact{}, err
	}
	_, err := s.Store.GetUser(ctx, userID)
	gone, err := absent(err)
	if err != nil {
		return model.EmergencyContact{}, err
	}
	if err := authorize(actor, policy.EmergencyContact, policy.Create, policy.Target{Absent: gone, OwnerID: userID}); err != nil {
		return model.EmergencyContact{}, err
	}
	c := model.EmergencyContact{
		UserID: userID, Name: strings.TrimSpace(in.Name), Relationship: strings.TrimSpace(in.Relationship),
		Phone: strings.TrimSpace(in.Phone), CreatedAt: s.now(),
	}
	if err := s.Store.CreateEmergencyContact(ctx, &c); err != nil {
		return model.EmergencyContact{}, err
	}
	return c, nil
}

// ListEmergencyContacts lists the contacts on userID's profile.
func (s *Service) ListEmergencyContacts(ctx context.Context, actor model.Actor, userID uint64) ([]model.EmergencyContact, error) {
	if err := authorize(actor, policy.EmergencyContact, policy.Read, policy.Target{OwnerID: userID}); err != nil {
		return nil, err
	}
	return s.Store.ListEmergencyContacts(ctx, userID)
}

// UpdateEmergencyContact replaces the editable fields of a contact.
func (s *Service) UpdateEmergencyContact(ctx context.Context, actor model.Actor, id uint64, in ContactInput) (model.EmergencyContact, error) {
	if err := in.validate(); err != nil {
		return model.EmergencyContact{}, err
	}
	var out model.EmergencyContact
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetEmergencyContact(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.EmergencyContact, policy.Update, policy.Target{Absent: gone, OwnerID: c.UserID}); err != nil {
			return err
		}
		c.Name = strings.TrimSpace(in.Name)
		c.Relationship = strings.TrimSpace(in.Relationship)
		c.Phone = strings.TrimSpace(in.Phone)
		if err := q.UpdateEmergencyContact(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// DeleteEmergencyContact removes a contact.
func (s *Service) DeleteEmergencyContact(ctx context.Context, actor model.Actor, id uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetEmergencyContact(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.EmergencyContact, policy.Delete, policy.Target{Absent: gone, OwnerID: c.UserID}); err != nil {
			return err
		}
		return q.DeleteEmergencyContact(ctx, id)
	})
}

// ---- equipment ----

// EquipmentInput is what an admin records when issuing equipment.
type EquipmentInput struct {
	UserID       uint64
	Name         string
	SerialNumber string
}

// IssueEquipment records equipment handed to a user.
func (s *Service) IssueEquipment(ctx context.Context, actor model.Actor, in EquipmentInput) (model.Equipment, error) {
	if err := authorize(actor, policy.Equipment, policy.Create, policy.Target{OwnerID: in.UserID}); err != nil {
		return model.Equipment{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Equipment{}, apperr.Invalid("name", "is required")
	}
	if _, err := s.Store.GetUser(ctx, in.UserID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return model.Equipment{}, apperr.Invalid("user_id", "user %d does not exist", in.UserID)
		}
		return model.Equipment{}, err
	}
	e := model.Equipment{
		UserID: in.UserID, Name: strings.TrimSpace(in.Name),
		SerialNumber: strings.TrimSpace(in.SerialNumber), CreatedAt: s.now(),
	}
	if err := s.Store.CreateEquipment(ctx, &e); err != nil {
		return model.Equipment{}, err
	}
	return e, nil
}

// GetEquipment returns one equipment record.
func (s *Service) GetEquipment(ctx context.Context, actor model.Actor, id uint64) (model.Equipment, error) {
	e, err := s.Store.GetEquipment(ctx, id)
	gone, err := absent(err)
	if err != nil {
		return model.Equipment{}, err
	}
	if err := authorize(actor, policy.Equipment, policy.Read, policy.Target{Absent: gone, OwnerID: e.UserID}); err != nil {
		return model.Equipment{}, err
	}
	return e, nil
}

// ListEquipment lists the equipment visible to the actor.
func (s *Service) ListEquipment(ctx context.Context, actor model.Actor) ([]model.Equipment, error) {
	if err := authorize(actor, policy.Equipment, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(actor, policy.Equipment)
	if scope.Empty() {
		return []model.Equipment{}, nil
	}
	return s.Store.ListEquipment(ctx, scope)
}

// UpdateEquipment changes name or serial number. Admin only.
func (s *Service) UpdateEquipment(ctx context.Context, actor model.Actor, id uint64, name, serial *string) (model.Equipment, error) {
	var fields []string
	if name != nil {
		fields = append(fields, "name")
	}
	if serial != nil {
		fields = append(fields, "serial_number")
	}
	var out model.Equipment
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		e, err := q.GetEquipment(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Equipment, policy.Update, policy.Target{Absent: gone, OwnerID: e.UserID, Fields: fields}); err != nil {
			return err
		}
		if name != nil {
			if strings.TrimSpace(*name) == "" {
				return apperr.Invalid("name", "is required")
			}
			e.Name = strings.TrimSpace(*name)
		}
		if serial != nil {
			e.SerialNumber = strings.TrimSpace(*serial)
		}
		if err := q.UpdateEquipment(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// SignEquipment stores the holder's signature image and stamps signed_at.
func (s *Service) SignEquipment(ctx context.Context, actor model.Actor, id uint64, sig Upload) (model.Equipment, error) {
	signed := policy.Target{Fields: []string{"signature_ref"}}
	e, err := s.Store.GetEquipment(ctx, id)
	gone, err := absent(err)
	if err != nil {
		return model.Equipment{}, err
	}
	signed.Absent, signed.OwnerID = gone, e.UserID
	if err := authorize(actor, policy.Equipment, policy.Update, signed); err != nil {
		return model.Equipment{}, err
	}
	if sig.Body == nil {
		return model.Equipment{}, apperr.Invalid("signature", "an image is required")
	}

	obj, undo, err := s.putFile(ctx, "signatures", &sig)
	if err != nil {
		return model.Equipment{}, err
	}
	var out model.Equipment
	err = s.Store.InTx(ctx, func(q store.Queries) error {
		e, err := q.GetEquipment(ctx, id)
		if err != nil {
			return err
		}
		signed.OwnerID = e.UserID
		if err := authorize(actor, policy.Equipment, policy.Update, signed); err != nil {
			return err
		}
		now := s.now()
		e.SignatureRef = obj.Key
		e.SignedAt = &now
		if err := q.UpdateEquipment(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		undo()
		return model.Equipment{}, err
	}
	return out, nil
}

// DeleteEquipment removes an equipment record. Admin only.
func (s *Service) DeleteEquipment(ctx context.Context, actor model.Actor, id uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		e, err := q.GetEquipment(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Equipment, policy.Delete, policy.Target{Absent: gone, OwnerID: e.UserID}); err != nil {
			return err
		}
		return q.DeleteEquipment(ctx, id)
	})
}
