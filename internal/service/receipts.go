package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/export"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/store"
)

// receiptTransitions is the monotonic receipt lifecycle. Nothing leads back
// to pending.
var receiptTransitions = map[model.ReceiptStatus][]model.ReceiptStatus{
	model.ReceiptPending:  {model.ReceiptApproved, model.ReceiptRejected},
	model.ReceiptApproved: {model.ReceiptExported},
}

// CanTransitionReceipt reports whether from -> to is a defined transition.
func CanTransitionReceipt(from, to model.ReceiptStatus) bool {
	for _, s := range receiptTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReceiptInput is a submitted expense.
type ReceiptInput struct {
	ProjectID   uint64
	AmountCents int64
	Category    string
	Description string
}

// ReceiptPatch changes a pending receipt.
type ReceiptPatch struct {
	AmountCents *int64
	Category    *string
	Description *string
}

// SubmitReceipt records a pending receipt for the actor, with an optional
// image of the paper receipt.
func (s *Service) SubmitReceipt(ctx context.Context, actor model.Actor, in ReceiptInput, image *Upload) (model.Receipt, error) {
	if in.AmountCents <= 0 {
		return model.Receipt{}, apperr.Invalid("amount_cents", "must be positive")
	}
	if strings.TrimSpace(in.Category) == "" {
		return model.Receipt{}, apperr.Invalid("category", "is required")
	}
	t, err := projectTarget(ctx, s.Store, actor, in.ProjectID, false)
	if err != nil {
		return model.Receipt{}, err
	}
	t.OwnerID = actor.ID
	if err := authorize(actor, policy.Receipt, policy.Create, t); err != nil {
		return model.Receipt{}, err
	}

	obj, undo, err := s.putFile(ctx, "receipts/"+strconv.FormatUint(in.ProjectID, 10), image)
	if err != nil {
		return model.Receipt{}, err
	}
	r := model.Receipt{
		ProjectID: in.ProjectID, UserID: actor.ID, AmountCents: in.AmountCents,
		Category: strings.ToLower(strings.TrimSpace(in.Category)), Description: strings.TrimSpace(in.Description),
		ImageRef: obj.Key, Status: model.ReceiptPending, CreatedAt: s.now(),
	}
	if err := s.Store.CreateReceipt(ctx, &r); err != nil {
		undo()
		return model.Receipt{}, err
	}
	return r, nil
}

// GetReceipt returns a receipt the actor may read.
func (s *Service) GetReceipt(ctx context.Context, actor model.Actor, id uint64) (model.Receipt, error) {
	r, t, err := receiptTarget(ctx, s.Store, actor, id, false)
	if err != nil {
		return model.Receipt{}, err
	}
	if err := authorize(actor, policy.Receipt, policy.Read, t); err != nil {
		return model.Receipt{}, err
	}
	return r, nil
}

// ListReceipts lists the visible receipts.
func (s *Service) ListReceipts(ctx context.Context, actor model.Actor, f store.ReceiptFilter) ([]model.Receipt, error) {
	if err := authorize(actor, policy.Receipt, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(actor, policy.Receipt)
	if scope.Empty() {
		return []model.Receipt{}, nil
	}
	return s.Store.ListReceipts(ctx, scope, f)
}

// UpdateReceipt edits a receipt that is still pending.
func (s *Service) UpdateReceipt(ctx context.Context, actor model.Actor, id uint64, p ReceiptPatch) (model.Receipt, error) {
	var out model.Receipt
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		r, t, err := receiptTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Receipt, policy.Update, t); err != nil {
			return err
		}
		if r.Status != model.ReceiptPending {
			return apperr.Conflict("receipt %d is %s and can no longer be edited", id, r.Status)
		}
		if p.AmountCents != nil {
			if *p.AmountCents <= 0 {
				return apperr.Invalid("amount_cents", "must be positive")
			}
			r.AmountCents = *p.AmountCents
		}
		if p.Category != nil {
			if strings.TrimSpace(*p.Category) == "" {
				return apperr.Invalid("category", "is required")
			}
			r.Category = strings.ToLower(strings.TrimSpace(*p.Category))
		}
		if p.Description != nil {
			r.Description = strings.TrimSpace(*p.Description)
		}
		if err := q.UpdateReceipt(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// DeleteReceipt withdraws a pending receipt.
func (s *Service) DeleteReceipt(ctx context.Context, actor model.Actor, id uint64) error {
	var ref string
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		r, t, err := receiptTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Receipt, policy.Delete, t); err != nil {
			return err
		}
		if r.Status != model.ReceiptPending {
			return apperr.Conflict("receipt %d is %s and can no longer be withdrawn", id, r.Status)
		}
		ref = r.ImageRef
		return q.DeleteReceipt(ctx, id)
	})
	if err == nil {
		s.removeFiles(ref)
	}
	return err
}

// TransitionReceipt moves a receipt to status to. pending -> approved and
// pending -> rejected are decisions of an approver; approved -> exported
// normally happens through ExportReceipts. Every other move, including any
// move back to pending, is a conflict.
func (s *Service) TransitionReceipt(ctx context.Context, actor model.Actor, id uint64, to model.ReceiptStatus) (model.Receipt, error) {
	action := policy.Approve
	switch to {
	case model.ReceiptApproved, model.ReceiptRejected:
	case model.ReceiptExported:
		action = policy.Export
	case model.ReceiptPending:
	default:
		return model.Receipt{}, apperr.Invalid("status", "unknown status %q", to)
	}
	var out model.Receipt
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		r, t, err := receiptTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Receipt, action, t); err != nil {
			return err
		}
		if !CanTransitionReceipt(r.Status, to) {
			return apperr.Conflict("receipt %d cannot move from %s to %s", id, r.Status, to)
		}
		now := s.now()
		r.Status = to
		if to == model.ReceiptExported {
			r.ExportedAt = &now
		} else {
			decider := actor.ID
			r.DecidedBy, r.DecidedAt = &decider, &now
		}
		if err := q.UpdateReceipt(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return model.Receipt{}, err
	}
	if to == model.ReceiptApproved || to == model.ReceiptRejected {
		s.emit(queue.KindReceiptDecided, out.UserID, fmt.Sprintf("Receipt %d %s", out.ID, out.Status),
			map[string]string{
				"receipt_id": strconv.FormatUint(out.ID, 10),
				"project_id": strconv.FormatUint(out.ProjectID, 10),
				"status":     string(out.Status),
			})
	}
	return out, nil
}

// ApproveReceipt is TransitionReceipt to approved.
func (s *Service) ApproveReceipt(ctx context.Context, actor model.Actor, id uint64) (model.Receipt, error) {
	return s.TransitionReceipt(ctx, actor, id, model.ReceiptApproved)
}

// RejectReceipt is TransitionReceipt to rejected.
func (s *Service) RejectReceipt(ctx context.Context, actor model.Actor, id uint64) (model.Receipt, error) {
	return s.TransitionReceipt(ctx, actor, id, model.ReceiptRejected)
}

// ExportReceipts renders the approved receipts of a project (of every
// project for an admin when projectID is zero) as a workbook and moves them
// to exported. The workbook is built inside the transaction, so a failure
// leaves every receipt approved.
func (s *Service) ExportReceipts(ctx context.Context, actor model.Actor, projectID uint64) (*bytes.Buffer, []model.Receipt, error) {
	var (
		buf      *bytes.Buffer
		exported []model.Receipt
	)
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		t := policy.Target{}
		if projectID != 0 {
			var err error
			if t, err = projectTarget(ctx, q, actor, projectID, true); err != nil {
				return err
			}
		}
		if err := authorize(actor, policy.Receipt, policy.Export, t); err != nil {
			return err
		}
		approved, err := q.ListReceipts(ctx, policy.Scope{All: true},
			store.ReceiptFilter{ProjectID: projectID, Status: model.ReceiptApproved})
		if err != nil {
			return err
		}
		now := s.now()
		exported = make([]model.Receipt, 0, len(approved))
		for _, r := range approved {
			locked, err := q.GetReceiptForUpdate(ctx, r.ID)
			if err != nil {
				return err
			}
			if locked.Status != model.ReceiptApproved {
				continue
			}
			exported = append(exported, locked)
		}
		if buf, err = export.Receipts(exported); err != nil {
			return err
		}
		for i := range exported {
			exported[i].Status = model.ReceiptExported
			exported[i].ExportedAt = &now
			if err := q.UpdateReceipt(ctx, exported[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return buf, exported, nil
}

func receiptTarget(ctx context.Context, q store.Queries, actor model.Actor, id uint64, forUpdate bool) (model.Receipt, policy.Target, error) {
	var (
		r   model.Receipt
		err error
	)
	if forUpdate {
		r, err = q.GetReceiptForUpdate(ctx, id)
	} else {
		r, err = q.GetReceipt(ctx, id)
	}
	if gone, err := absent(err); gone || err != nil {
		return r, policy.Target{Absent: gone}, err
	}
	t, err := projectTarget(ctx, q, actor, r.ProjectID, false)
	if err != nil {
		return r, t, err
	}
	t.OwnerID = r.UserID
	return r, t, nil
}
