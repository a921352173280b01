package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/derive"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/store"
)

// CertificationInput describes a certification held by a user.
type CertificationInput struct {
	UserID         uint64
	Name           string
	IssuedDate     *time.Time
	ExpirationDate time.Time
	DocumentRef    string
}

// CertificationPatch changes a certification. Nil fields are left alone.
type CertificationPatch struct {
	Name           *string
	IssuedDate     *time.Time
	ExpirationDate *time.Time
	DocumentRef    *string
}

// CreateCertification records a certification with its status derived for
// today.
func (s *Service) CreateCertification(ctx context.Context, actor model.Actor, in CertificationInput) (model.Certification, error) {
	if in.UserID == 0 {
		in.UserID = actor.ID
	}
	if err := authorize(actor, policy.Certification, policy.Create, policy.Target{OwnerID: in.UserID}); err != nil {
		return model.Certification{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Certification{}, apperr.Invalid("name", "is required")
	}
	if in.ExpirationDate.IsZero() {
		return model.Certification{}, apperr.Invalid("expiration_date", "is required")
	}
	if in.IssuedDate != nil && in.IssuedDate.After(in.ExpirationDate) {
		return model.Certification{}, apperr.Invalid("issued_date", "must not be after the expiration date")
	}
	if _, err := s.Store.GetUser(ctx, in.UserID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return model.Certification{}, apperr.Invalid("user_id", "user %d does not exist", in.UserID)
		}
		return model.Certification{}, err
	}
	c := model.Certification{
		UserID: in.UserID, Name: strings.TrimSpace(in.Name), IssuedDate: in.IssuedDate,
		ExpirationDate: in.ExpirationDate, DocumentRef: in.DocumentRef,
		Status: model.CertActive, UpdatedAt: s.now(),
	}
	c, _ = derive.Certification(c, s.now())
	if err := s.Store.CreateCertification(ctx, &c); err != nil {
		return model.Certification{}, err
	}
	if derive.Degraded(model.CertActive, c.Status) {
		s.certificationNotice(c)
	}
	return c, nil
}

// GetCertification returns a certification with its status recomputed and,
// when it changed, persisted.
func (s *Service) GetCertification(ctx context.Context, actor model.Actor, id uint64) (model.Certification, error) {
	var (
		out      model.Certification
		degraded bool
	)
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetCertification(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Certification, policy.Read, policy.Target{Absent: gone, OwnerID: c.UserID}); err != nil {
			return err
		}
		out, degraded, err = s.refreshCertification(ctx, q, c)
		return err
	})
	if err != nil {
		return model.Certification{}, err
	}
	if degraded {
		s.certificationNotice(out)
	}
	return out, nil
}

// ListCertifications lists the visible certifications, recomputing and
// persisting every status that moved since the last read.
func (s *Service) ListCertifications(ctx context.Context, actor model.Actor) ([]model.Certification, error) {
	if err := authorize(actor, policy.Certification, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(actor, policy.Certification)
	if scope.Empty() {
		return []model.Certification{}, nil
	}
	var (
		out      []model.Certification
		degraded []model.Certification
	)
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		certs, err := q.ListCertifications(ctx, scope)
		if err != nil {
			return err
		}
		out = make([]model.Certification, 0, len(certs))
		for _, c := range certs {
			next, worse, err := s.refreshCertification(ctx, q, c)
			if err != nil {
				return err
			}
			if worse {
				degraded = append(degraded, next)
			}
			out = append(out, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, c := range degraded {
		s.certificationNotice(c)
	}
	return out, nil
}

// UpdateCertification applies p and re-derives the status.
func (s *Service) UpdateCertification(ctx context.Context, actor model.Actor, id uint64, p CertificationPatch) (model.Certification, error) {
	var (
		out      model.Certification
		degraded bool
	)
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetCertification(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Certification, policy.Update, policy.Target{Absent: gone, OwnerID: c.UserID}); err != nil {
			return err
		}
		prev := c.Status
		if p.Name != nil {
			if strings.TrimSpace(*p.Name) == "" {
				return apperr.Invalid("name", "is required")
			}
			c.Name = strings.TrimSpace(*p.Name)
		}
		if p.IssuedDate != nil {
			c.IssuedDate = p.IssuedDate
		}
		if p.ExpirationDate != nil {
			c.ExpirationDate = *p.ExpirationDate
		}
		if p.DocumentRef != nil {
			c.DocumentRef = *p.DocumentRef
		}
		if c.IssuedDate != nil && c.IssuedDate.After(c.ExpirationDate) {
			return apperr.Invalid("issued_date", "must not be after the expiration date")
		}
		c, _ = derive.Certification(c, s.now())
		c.UpdatedAt = s.now()
		if err := q.UpdateCertification(ctx, c); err != nil {
			return err
		}
		out, degraded = c, derive.Degraded(prev, c.Status)
		return nil
	})
	if err != nil {
		return model.Certification{}, err
	}
	if degraded {
		s.certificationNotice(out)
	}
	return out, nil
}

// DeleteCertification removes a certification. Admin only.
func (s *Service) DeleteCertification(ctx context.Context, actor model.Actor, id uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetCertification(ctx, id)
		gone, err := absent(err)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Certification, policy.Delete, policy.Target{Absent: gone, OwnerID: c.UserID}); err != nil {
			return err
		}
		return q.DeleteCertification(ctx, id)
	})
}

// refreshCertification recomputes c for today and writes it back only when
// the status moved, so repeated reads on one day write nothing.
func (s *Service) refreshCertification(ctx context.Context, q store.Queries, c model.Certification) (model.Certification, bool, error) {
	prev := c.Status
	next, changed := derive.Certification(c, s.now())
	if !changed {
		return next, false, nil
	}
	next.UpdatedAt = s.now()
	if err := q.UpdateCertification(ctx, next); err != nil {
		return c, false, err
	}
	return next, derive.Degraded(prev, next.Status), nil
}

func (s *Service) certificationNotice(c model.Certification) {
	subject := fmt.Sprintf("Certification %q expires on %s", c.Name, c.ExpirationDate.Format(time.DateOnly))
	if c.Status == model.CertExpired {
		subject = fmt.Sprintf("Certification %q expired on %s", c.Name, c.ExpirationDate.Format(time.DateOnly))
	}
	s.emit(queue.KindCertificationDegraded, c.UserID, subject, map[string]string{
		"certification_id": strconv.FormatUint(c.ID, 10),
		"status":           string(c.Status),
	})
}
