package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/store"
)

// VehicleInput describes a vehicle.
type VehicleInput struct {
	PlateNumber string
	Model       string
	Mileage     int
}

// VehiclePatch changes a vehicle. Mileage never goes backwards.
type VehiclePatch struct {
	PlateNumber *string
	Model       *string
	Mileage     *int
}

// CreateVehicle registers a vehicle. Admin only.
func (s *Service) CreateVehicle(ctx context.Context, actor model.Actor, in VehicleInput) (model.Vehicle, error) {
	if err := authorize(actor, policy.Vehicle, policy.Create, policy.Target{}); err != nil {
		return model.Vehicle{}, err
	}
	in.PlateNumber = strings.ToUpper(strings.TrimSpace(in.PlateNumber))
	if in.PlateNumber == "" {
		return model.Vehicle{}, apperr.Invalid("plate_number", "is required")
	}
	if in.Mileage < 0 {
		return model.Vehicle{}, apperr.Invalid("mileage", "must not be negative")
	}
	v := model.Vehicle{PlateNumber: in.PlateNumber, Model: strings.TrimSpace(in.Model), Mileage: in.Mileage}
	if err := s.Store.CreateVehicle(ctx, &v); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

// GetVehicle returns one vehicle.
func (s *Service) GetVehicle(ctx context.Context, actor model.Actor, id uint64) (model.Vehicle, error) {
	v, err := s.Store.GetVehicle(ctx, id)
	gone, err := absent(err)
	if err != nil {
		return model.Vehicle{}, err
	}
	if err := authorize(actor, policy.Vehicle, policy.Read, policy.Target{Absent: gone}); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

// ListVehicles lists the fleet for actors that may see it.
func (s *Service) ListVehicles(ctx context.Context, actor model.Actor) ([]model.Vehicle, error) {
	if err := authorize(actor, policy.Vehicle, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	if policy.ScopeFor(actor, policy.Vehicle).Empty() {
		return []model.Vehicle{}, nil
	}
	return s.Store.ListVehicles(ctx)
}

// UpdateVehicle applies p. Admin only.
func (s *Service) UpdateVehicle(ctx context.Context, actor model.Actor, id uint64, p VehiclePatch) (model.Vehicle, error) {
	var out model.Vehicle
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		v, err := q.GetVehicleForUpdate(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Vehicle, policy.Update, policy.Target{Absent: gone}); err != nil {
			return err
		}
		if p.PlateNumber != nil {
			plate := strings.ToUpper(strings.TrimSpace(*p.PlateNumber))
			if plate == "" {
				return apperr.Invalid("plate_number", "is required")
			}
			v.PlateNumber = plate
		}
		if p.Model != nil {
			v.Model = strings.TrimSpace(*p.Model)
		}
		if p.Mileage != nil {
			if *p.Mileage < v.Mileage {
				return apperr.Invalid("mileage", "must not be below the recorded %d", v.Mileage)
			}
			v.Mileage = *p.Mileage
		}
		if err := q.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// ---- assignments ----

// AssignVehicle hands vehicleID to userID. The vehicle row is locked, the
// active assignment checked and the new row inserted in one transaction;
// the store's unique index on active assignments backs the check, so two
// concurrent requests can never both succeed.
func (s *Service) AssignVehicle(ctx context.Context, actor model.Actor, vehicleID, userID uint64) (model.VehicleAssignment, error) {
	if userID == 0 {
		userID = actor.ID
	}
	if err := authorize(actor, policy.VehicleAssignment, policy.Create, policy.Target{OwnerID: userID}); err != nil {
		return model.VehicleAssignment{}, err
	}
	var (
		out   model.VehicleAssignment
		plate string
	)
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		v, err := q.GetVehicleForUpdate(ctx, vehicleID)
		if err != nil {
			return err
		}
		active, err := q.ActiveAssignmentForVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflict("vehicle %d is already assigned (assignment %d)", vehicleID, active.ID)
		}
		u, err := q.GetUser(ctx, userID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Invalid("user_id", "user %d does not exist", userID)
		}
		if err != nil {
			return err
		}
		if !u.Active || u.Role == model.RoleCustomer {
			return apperr.Invalid("user_id", "user %d cannot hold a vehicle", userID)
		}
		a := model.VehicleAssignment{
			VehicleID: vehicleID, UserID: userID, Status: model.AssignmentActive,
			StartingMileage: v.Mileage, AssignedBy: actor.ID, AssignedDate: s.now(),
		}
		if err := q.CreateAssignment(ctx, &a); err != nil {
			return err
		}
		out, plate = a, v.PlateNumber
		return nil
	})
	if err != nil {
		return model.VehicleAssignment{}, err
	}
	s.emit(queue.KindVehicleAssigned, out.UserID, fmt.Sprintf("Vehicle %s assigned to you", plate),
		map[string]string{
			"vehicle_id":    strconv.FormatUint(out.VehicleID, 10),
			"assignment_id": strconv.FormatUint(out.ID, 10),
		})
	return out, nil
}

// ReturnVehicle closes an active assignment. The ending mileage must not be
// below the starting mileage; the vehicle's mileage is moved forward to it.
func (s *Service) ReturnVehicle(ctx context.Context, actor model.Actor, assignmentID uint64, endingMileage int) (model.VehicleAssignment, error) {
	var out model.VehicleAssignment
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		a, err := q.GetAssignmentForUpdate(ctx, assignmentID)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.VehicleAssignment, policy.Transition, policy.Target{Absent: gone, OwnerID: a.UserID}); err != nil {
			return err
		}
		if a.Status != model.AssignmentActive {
			return apperr.Conflict("assignment %d is already %s", a.ID, a.Status)
		}
		if endingMileage < a.StartingMileage {
			return apperr.Invalid("ending_mileage", "must be at least the starting mileage %d", a.StartingMileage)
		}
		now := s.now()
		end := endingMileage
		a.Status = model.AssignmentReturned
		a.EndingMileage = &end
		a.ReturnedDate = &now
		if err := q.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		v, err := q.GetVehicleForUpdate(ctx, a.VehicleID)
		if err != nil {
			return err
		}
		if end > v.Mileage {
			v.Mileage = end
			if err := q.UpdateVehicle(ctx, v); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	return out, err
}

// GetAssignment returns one assignment.
func (s *Service) GetAssignment(ctx context.Context, actor model.Actor, id uint64) (model.VehicleAssignment, error) {
	a, err := s.Store.GetAssignment(ctx, id)
	gone, err := absent(err)
	if err != nil {
		return model.VehicleAssignment{}, err
	}
	if err := authorize(actor, policy.VehicleAssignment, policy.Read, policy.Target{Absent: gone, OwnerID: a.UserID}); err != nil {
		return model.VehicleAssignment{}, err
	}
	return a, nil
}

// ListAssignments lists the assignments visible to the actor.
func (s *Service) ListAssignments(ctx context.Context, actor model.Actor) ([]model.VehicleAssignment, error) {
	if err := authorize(actor, policy.VehicleAssignment, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(actor, policy.VehicleAssignment)
	if scope.Empty() {
		return []model.VehicleAssignment{}, nil
	}
	return s.Store.ListAssignments(ctx, scope)
}

// ---- walkaround inspections ----

// WalkaroundInput is a walkaround inspection report.
type WalkaroundInput struct {
	Type      model.InspectionType
	Mileage   int
	HasDamage bool
	FuelLow   bool
	Notes     string
	PhotoRefs []string
}

// RecordWalkaround records the checkout or checkin inspection of an
// assignment. A checkout may be recorded once, while the assignment is
// active; a checkin needs the checkout first and may not read a lower
// mileage than it.
func (s *Service) RecordWalkaround(ctx context.Context, actor model.Actor, assignmentID uint64, in WalkaroundInput) (model.WalkaroundInspection, error) {
	if in.Type != model.InspectionCheckout && in.Type != model.InspectionCheckin {
		return model.WalkaroundInspection{}, apperr.Invalid("type", "must be checkout or checkin")
	}
	if in.Mileage < 0 {
		return model.WalkaroundInspection{}, apperr.Invalid("mileage", "must not be negative")
	}
	var out model.WalkaroundInspection
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		a, err := q.GetAssignmentForUpdate(ctx, assignmentID)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Inspection, policy.Create, policy.Target{Absent: gone, OwnerID: a.UserID}); err != nil {
			return err
		}
		existing, err := q.ListWalkarounds(ctx, assignmentID)
		if err != nil {
			return err
		}
		var checkout, checkin *model.WalkaroundInspection
		for i := range existing {
			switch existing[i].Type {
			case model.InspectionCheckout:
				checkout = &existing[i]
			case model.InspectionCheckin:
				checkin = &existing[i]
			}
		}

		switch in.Type {
		case model.InspectionCheckout:
			if checkout != nil {
				return apperr.Conflict("assignment %d already has a checkout inspection", assignmentID)
			}
			if a.Status != model.AssignmentActive {
				return apperr.Conflict("assignment %d is %s", assignmentID, a.Status)
			}
			if in.Mileage < a.StartingMileage {
				return apperr.Invalid("mileage", "must be at least the starting mileage %d", a.StartingMileage)
			}
		case model.InspectionCheckin:
			if checkout == nil {
				return apperr.Invalid("type", "a checkin requires a checkout inspection first")
			}
			if checkin != nil {
				return apperr.Conflict("assignment %d already has a checkin inspection", assignmentID)
			}
			if in.Mileage < checkout.Mileage {
				return apperr.Invalid("mileage", "must be at least the checkout mileage %d", checkout.Mileage)
			}
		}

		w := model.WalkaroundInspection{
			AssignmentID: assignmentID, Type: in.Type, Mileage: in.Mileage, HasDamage: in.HasDamage,
			FuelLow: in.FuelLow, Notes: strings.TrimSpace(in.Notes), PhotoRefs: in.PhotoRefs,
			InspectorID: actor.ID,
		}
		if w.PhotoRefs == nil {
			w.PhotoRefs = []string{}
		}
		if err := q.CreateWalkaround(ctx, &w); err != nil {
			return err
		}
		out = w
		return nil
	})
	return out, err
}

// ListWalkarounds lists the walkaround inspections of an assignment.
func (s *Service) ListWalkarounds(ctx context.Context, actor model.Actor, assignmentID uint64) ([]model.WalkaroundInspection, error) {
	a, err := s.Store.GetAssignment(ctx, assignmentID)
	gone, err := absent(err)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.VehicleAssignment, policy.Read, policy.Target{Absent: gone, OwnerID: a.UserID}); err != nil {
		return nil, err
	}
	return s.Store.ListWalkarounds(ctx, assignmentID)
}

// ---- regular inspections ----

// Damage severities.
var severities = []string{"minor", "moderate", "severe"}

// DamageInput is one damage finding of a regular inspection.
type DamageInput struct {
	Location    string
	Severity    string
	Description string
	PhotoRef    string
}

// RegularInspectionInput is a periodic inspection report.
type RegularInspectionInput struct {
	Mileage int
	Passed  bool
	Notes   string
	Damages []DamageInput
}

// RecordRegularInspection stores a periodic inspection and its damage items
// together. qa and field staff may inspect only the vehicle they hold.
func (s *Service) RecordRegularInspection(ctx context.Context, actor model.Actor, vehicleID uint64, in RegularInspectionInput) (model.RegularInspection, error) {
	damages := make([]model.DamageItem, 0, len(in.Damages))
	for i, d := range in.Damages {
		field := fmt.Sprintf("damages[%d]", i)
		if strings.TrimSpace(d.Location) == "" {
			return model.RegularInspection{}, apperr.Invalid(field+".location", "is required")
		}
		sev := strings.ToLower(strings.TrimSpace(d.Severity))
		if !slices.Contains(severities, sev) {
			return model.RegularInspection{}, apperr.Invalid(field+".severity", "must be one of %s", strings.Join(severities, ", "))
		}
		damages = append(damages, model.DamageItem{
			Location: strings.TrimSpace(d.Location), Severity: sev,
			Description: strings.TrimSpace(d.Description), PhotoRef: d.PhotoRef,
		})
	}
	var out model.RegularInspection
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		v, err := q.GetVehicleForUpdate(ctx, vehicleID)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		t := policy.Target{Absent: gone}
		if !gone {
			active, err := q.ActiveAssignmentForVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			if active != nil {
				t.OwnerID = active.UserID
			}
		}
		if err := authorize(actor, policy.Inspection, policy.Create, t); err != nil {
			return err
		}
		if in.Mileage < v.Mileage {
			return apperr.Invalid("mileage", "must not be below the recorded %d", v.Mileage)
		}
		ins := model.RegularInspection{
			VehicleID: vehicleID, InspectorID: actor.ID, Mileage: in.Mileage, Passed: in.Passed,
			Notes: strings.TrimSpace(in.Notes), InspectedAt: s.now(), Damages: damages,
		}
		if err := q.CreateRegularInspection(ctx, &ins); err != nil {
			return err
		}
		if in.Mileage > v.Mileage {
			v.Mileage = in.Mileage
			if err := q.UpdateVehicle(ctx, v); err != nil {
				return err
			}
		}
		out = ins
		return nil
	})
	return out, err
}

// GetRegularInspection returns an inspection with its damage items.
func (s *Service) GetRegularInspection(ctx context.Context, actor model.Actor, id uint64) (model.RegularInspection, error) {
	ins, err := s.Store.GetRegularInspection(ctx, id)
	gone, err := absent(err)
	if err != nil {
		return model.RegularInspection{}, err
	}
	if err := authorize(actor, policy.Inspection, policy.Read, policy.Target{Absent: gone}); err != nil {
		return model.RegularInspection{}, err
	}
	return ins, nil
}

// ListRegularInspections lists inspections, of one vehicle when vehicleID
// is set.
func (s *Service) ListRegularInspections(ctx context.Context, actor model.Actor, vehicleID uint64) ([]model.RegularInspection, error) {
	if err := authorize(actor, policy.Inspection, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	if policy.ScopeFor(actor, policy.Inspection).Empty() {
		return []model.RegularInspection{}, nil
	}
	return s.Store.ListRegularInspections(ctx, vehicleID)
}

// DeleteRegularInspection removes an inspection and its damage items.
func (s *Service) DeleteRegularInspection(ctx context.Context, actor model.Actor, id uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		_, err := q.GetRegularInspection(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Inspection, policy.Delete, policy.Target{Absent: gone}); err != nil {
			return err
		}
		return q.DeleteRegularInspection(ctx, id)
	})
}
