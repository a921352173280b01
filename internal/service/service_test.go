package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/storage"
	"github.com/iliyamo/field-operations/internal/store/memory"
	"github.com/iliyamo/field-operations/internal/utils"
)

// recorder captures notifications sent from notify.Async goroutines.
type recorder struct{ ch chan queue.NotificationEvent }

func newRecorder() *recorder { return &recorder{ch: make(chan queue.NotificationEvent, 64)} }

func (r *recorder) Notify(_ context.Context, ev queue.NotificationEvent) error {
	r.ch <- ev
	return nil
}

func (r *recorder) wait(t *testing.T, kind string) queue.NotificationEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s notification", kind)
		}
	}
}

func (r *recorder) none(t *testing.T, kind string) {
	t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				t.Fatalf("unexpected %s notification: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

type fixture struct {
	svc   *Service
	store *memory.Store
	files *storage.Memory
	notes *recorder
	today time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	files := storage.NewMemory()
	notes := newRecorder()
	svc := New(st, files, notes, Options{
		JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost,
	})
	f := &fixture{svc: svc, store: st, files: files, notes: notes,
		today: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	svc.Clock = func() time.Time { return f.today }
	return f
}

// user stores an account directly and returns its actor.
func (f *fixture) user(t *testing.T, email string, role model.Role, affiliation *uint64) model.Actor {
	t.Helper()
	hash, err := utils.HashPassword("password-"+email, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := model.User{Email: email, PasswordHash: hash, Name: email, Role: role, Active: true, CustomerAffiliation: affiliation}
	if err := f.store.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return model.ActorOf(u)
}

func (f *fixture) project(t *testing.T, admin model.Actor, code string, manager uint64, customer *uint64) model.Project {
	t.Helper()
	p, err := f.svc.CreateProject(context.Background(), admin, NewProject{
		Code: code, Name: "Project " + code, ManagerID: manager, CustomerID: customer,
	})
	if err != nil {
		t.Fatalf("create project %s: %v", code, err)
	}
	return p
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %q (%v), want %q", got, err, kind)
	}
}

func ptr[T any](v T) *T { return &v }
