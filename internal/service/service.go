// Package service holds the identity operations and the resource lifecycle
// controllers. Every operation takes the calling model.Actor explicitly,
// asks the policy engine before touching a record and runs its
// check-then-write sequence inside one store transaction.
package service

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/notify"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/storage"
	"github.com/iliyamo/field-operations/internal/store"
)

// Options are the credential settings of the identity operations.
type Options struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Service bundles the collaborators of every operation.
type Service struct {
	Store  store.Store
	Files  storage.FileStore
	Notify notify.Notifier
	Opts   Options

	// Clock is the source of "now" and "today". Tests pin it.
	Clock func() time.Time
}

// New wires a Service. A nil notifier drops notifications.
func New(st store.Store, files storage.FileStore, n notify.Notifier, opts Options) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	s := &Service{
		Store:  st,
		Files:  files,
		Notify: n,
		Opts:   opts,
		Clock:  func() time.Time { return time.Now().UTC() },
	}
	// Stores that stamp rows themselves follow Clock, even when it is
	// replaced after New.
	if c, ok := st.(interface{ SetClock(func() time.Time) }); ok {
		c.SetClock(s.now)
	}
	return s
}

func (s *Service) now() time.Time { return s.Clock().UTC() }

// Upload is a file received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

func authorize(actor model.Actor, r policy.Resource, a policy.Action, t policy.Target) error {
	return policy.Authorize(actor, r, a, t).Err()
}

// absent turns a not_found lookup into an Absent target so the policy
// engine reports it; any other error is returned as is.
func absent(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if apperr.KindOf(err) == apperr.KindNotFound {
		return true, nil
	}
	return false, err
}

// projectTarget loads the project and the actor's team membership.
func projectTarget(ctx context.Context, q store.Queries, actor model.Actor, projectID uint64, forUpdate bool) (policy.Target, error) {
	var (
		p   model.Project
		err error
	)
	if forUpdate {
		p, err = q.GetProjectForUpdate(ctx, projectID)
	} else {
		p, err = q.GetProject(ctx, projectID)
	}
	if gone, err := absent(err); gone || err != nil {
		return policy.Target{Absent: gone}, err
	}
	t := policy.Target{Project: &p}
	if actor.Role == model.RoleForeman {
		if t.ActorIsMember, err = q.IsProjectMember(ctx, projectID, actor.ID); err != nil {
			return policy.Target{}, err
		}
	}
	return t, nil
}

// emit sends ev after the surrounding transaction committed.
func (s *Service) emit(kind string, to uint64, subject string, attrs map[string]string) {
	if to == 0 {
		return
	}
	notify.Async(s.Notify, queue.NotificationEvent{
		Kind:       kind,
		Recipients: []uint64{to},
		Subject:    subject,
		Attributes: attrs,
		OccurredAt: s.now(),
	})
}

// putFile stores an upload and returns a function that removes it again,
// used when the transaction recording the reference fails.
func (s *Service) putFile(ctx context.Context, prefix string, up *Upload) (storage.Object, func(), error) {
	if up == nil || up.Body == nil {
		return storage.Object{}, func() {}, nil
	}
	if s.Files == nil {
		return storage.Object{}, nil, apperr.Transient(nil, "file store is not configured")
	}
	obj, err := s.Files.Put(ctx, prefix, up.Filename, up.ContentType, up.Body)
	if err != nil {
		return storage.Object{}, nil, apperr.Transient(err, "store upload")
	}
	undo := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Files.Delete(ctx, obj.Key)
	}
	return obj, undo, nil
}
