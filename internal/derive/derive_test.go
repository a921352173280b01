package derive

import (
	"testing"
	"time"

	"github.com/iliyamo/field-operations/internal/model"
)

func TestPercentage(t *testing.T) {
	cases := []struct {
		uploaded, required, want int
	}{
		{0, 4, 0},
		{3, 4, 75},
		{4, 4, 100},
		{9, 4, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds half up
		{0, 0, 100},
		{-2, 5, 0},
	}
	for _, tc := range cases {
		if got := Percentage(tc.uploaded, tc.required); got != tc.want {
			t.Errorf("Percentage(%d,%d) = %d, want %d", tc.uploaded, tc.required, got, tc.want)
		}
	}
}

func TestModuleFourPhotos(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := model.SiteModule{ID: 1, RequiredPhotoCount: 4, UploadedPhotoCount: 3}

	m = Module(m, nil, now)
	if m.CompletionPercentage != 75 || m.Status != model.ModuleInProgress || m.CompletedAt != nil {
		t.Fatalf("after 3 uploads: %+v", m)
	}

	m.UploadedPhotoCount++
	m = Module(m, nil, now)
	if m.CompletionPercentage != 100 || m.Status != model.ModuleCompleted {
		t.Fatalf("after 4 uploads: %+v", m)
	}
	if m.CompletedAt == nil || !m.CompletedAt.Equal(now) {
		t.Fatalf("completed_at = %v, want %v", m.CompletedAt, now)
	}
}

func TestModuleIdempotent(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []model.ChecklistProgress{
		{RequiredCount: 2, UploadedCount: 2},
		{RequiredCount: 2, UploadedCount: 2},
	}
	m := Module(model.SiteModule{}, items, first)
	again := Module(m, items, first.Add(time.Hour))
	if again.CompletedAt == nil || !again.CompletedAt.Equal(first) {
		t.Fatalf("completed_at restamped: %v", again.CompletedAt)
	}
	if again.UploadedPhotoCount != m.UploadedPhotoCount || again.CompletionPercentage != m.CompletionPercentage {
		t.Fatalf("recompute changed values: %+v vs %+v", m, again)
	}
}

func TestModuleItemsCapOvershoot(t *testing.T) {
	items := []model.ChecklistProgress{
		{RequiredCount: 2, UploadedCount: 5},
		{RequiredCount: 2, UploadedCount: 0},
	}
	m := Module(model.SiteModule{}, items, time.Now())
	if m.Status == model.ModuleCompleted {
		t.Fatalf("module completed while an item has no photos")
	}
	if m.RequiredPhotoCount != 4 || m.UploadedPhotoCount != 2 || m.CompletionPercentage != 50 {
		t.Fatalf("unexpected aggregate %+v", m)
	}
}

func TestModuleRegressionClearsCompletedAt(t *testing.T) {
	now := time.Now()
	m := Module(model.SiteModule{RequiredPhotoCount: 1, UploadedPhotoCount: 1}, nil, now)
	if m.CompletedAt == nil {
		t.Fatalf("expected completed_at")
	}
	m.UploadedPhotoCount = 0
	m = Module(m, nil, now)
	if m.Status != model.ModuleNotStarted || m.CompletedAt != nil {
		t.Fatalf("regressed module: %+v", m)
	}
}

func TestCertificationStatusWindow(t *testing.T) {
	today := time.Date(2026, 6, 15, 17, 30, 0, 0, time.UTC)
	day := 24 * time.Hour
	cases := []struct {
		name string
		exp  time.Time
		want model.CertificationStatus
	}{
		{"yesterday", today.Add(-day), model.CertExpired},
		{"today", today, model.CertExpiringSoon},
		{"ten days", today.Add(10 * day), model.CertExpiringSoon},
		{"thirty days", today.Add(30 * day), model.CertExpiringSoon},
		{"thirty one days", today.Add(31 * day), model.CertActive},
	}
	for _, tc := range cases {
		if got := CertificationStatus(tc.exp, today); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCertificationExpiringThenExpired(t *testing.T) {
	today := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	c := model.Certification{ExpirationDate: today.AddDate(0, 0, 10)}

	c, changed := Certification(c, today)
	if c.Status != model.CertExpiringSoon || !changed {
		t.Fatalf("got %q changed=%v", c.Status, changed)
	}
	c, changed = Certification(c, today)
	if changed {
		t.Fatalf("second recompute reported a change")
	}

	c.ExpirationDate = today.AddDate(0, 0, -1)
	c, _ = Certification(c, today)
	if c.Status != model.CertExpired {
		t.Fatalf("got %q, want expired", c.Status)
	}
}

func TestDegraded(t *testing.T) {
	if !Degraded(model.CertActive, model.CertExpiringSoon) || !Degraded(model.CertExpiringSoon, model.CertExpired) {
		t.Fatalf("expected degradation")
	}
	if Degraded(model.CertExpired, model.CertActive) || Degraded(model.CertActive, model.CertActive) {
		t.Fatalf("renewal is not degradation")
	}
}
