// Package derive recomputes aggregate fields from their source facts. Every
// function here is pure: given the same inputs it returns the same values,
// so running a recompute twice never double counts.
package derive

import (
	"time"

	"github.com/iliyamo/field-operations/internal/model"
)

// ExpiringWindow is how far ahead of its expiration date a certification is
// reported as expiring_soon.
const ExpiringWindow = 30 * 24 * time.Hour

// Percentage returns round(uploaded/required*100) rounded half up and
// clamped to [0,100]. A target of zero photos is already complete.
func Percentage(uploaded, required int) int {
	if required <= 0 {
		return 100
	}
	if uploaded <= 0 {
		return 0
	}
	p := (uploaded*100*2 + required) / (required * 2)
	if p > 100 {
		return 100
	}
	return p
}

// Status is driven solely by count comparison.
func Status(uploaded, required int) model.ModuleStatus {
	switch {
	case uploaded >= required:
		return model.ModuleCompleted
	case uploaded <= 0:
		return model.ModuleNotStarted
	default:
		return model.ModuleInProgress
	}
}

// ChecklistItem recomputes the completion flag of a single checklist item.
func ChecklistItem(item model.ChecklistProgress) model.ChecklistProgress {
	item.IsCompleted = item.UploadedCount >= item.RequiredCount
	return item
}

// Module recomputes the aggregate progress of a module instance.
//
// When the module has checklist items the totals come from them: required is
// the sum of item targets, uploaded the sum of item counts each capped at its
// target, so extra photos on one item never hide a missing photo on another.
// Without items the module's own counters are used.
//
// completed_at is stamped with now on the first transition into completed,
// kept while the module stays completed and cleared if it regresses.
func Module(m model.SiteModule, items []model.ChecklistProgress, now time.Time) model.SiteModule {
	if len(items) > 0 {
		required, uploaded := 0, 0
		for _, it := range items {
			required += it.RequiredCount
			uploaded += min(it.UploadedCount, it.RequiredCount)
		}
		m.RequiredPhotoCount = required
		m.UploadedPhotoCount = uploaded
	}
	if m.UploadedPhotoCount < 0 {
		m.UploadedPhotoCount = 0
	}
	m.CompletionPercentage = Percentage(m.UploadedPhotoCount, m.RequiredPhotoCount)
	m.Status = Status(m.UploadedPhotoCount, m.RequiredPhotoCount)
	switch {
	case m.Status == model.ModuleCompleted && m.CompletedAt == nil:
		at := now.UTC()
		m.CompletedAt = &at
	case m.Status != model.ModuleCompleted:
		m.CompletedAt = nil
	}
	return m
}

// CertificationStatus compares calendar dates only: expired strictly before
// today, expiring_soon from today through today+30 days, active otherwise.
func CertificationStatus(expiration, today time.Time) model.CertificationStatus {
	exp := dateOf(expiration)
	day := dateOf(today)
	switch {
	case exp.Before(day):
		return model.CertExpired
	case !exp.After(day.Add(ExpiringWindow)):
		return model.CertExpiringSoon
	default:
		return model.CertActive
	}
}

// Certification returns c with its status recomputed for today and whether
// the status changed.
func Certification(c model.Certification, today time.Time) (model.Certification, bool) {
	next := CertificationStatus(c.ExpirationDate, today)
	changed := next != c.Status
	c.Status = next
	return c, changed
}

// Degraded reports whether moving from prev to next is a step towards
// expiry, which is what holders get notified about.
func Degraded(prev, next model.CertificationStatus) bool {
	return rank(next) > rank(prev)
}

func rank(s model.CertificationStatus) int {
	switch s {
	case model.CertExpiringSoon:
		return 1
	case model.CertExpired:
		return 2
	default:
		return 0
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
