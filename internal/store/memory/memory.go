// Package memory is an in-process implementation of store.Store. Every
// transaction holds the store lock for its whole duration and works on a
// private copy of the state that replaces the shared one on commit, so
// transactions are serialisable and a failed one leaves no trace. It backs
// STORE_BACKEND=memory and the service tests.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

type token struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

type state struct {
	seq map[string]uint64

	users       map[uint64]model.User
	tokens      map[string]token
	projects    map[uint64]model.Project
	members     map[uint64]map[uint64]model.ProjectMember // project -> user -> row
	modules     map[uint64]model.SiteModule
	checklist   map[uint64]model.ChecklistProgress
	photos      map[uint64]model.Photo
	reports     map[uint64]model.DailyReport
	vehicles    map[uint64]model.Vehicle
	assignments map[uint64]model.VehicleAssignment
	walkarounds map[uint64]model.WalkaroundInspection
	inspections map[uint64]model.RegularInspection
	certs       map[uint64]model.Certification
	receipts    map[uint64]model.Receipt
	equipment   map[uint64]model.Equipment
	contacts    map[uint64]model.EmergencyContact
}

func newState() *state {
	return &state{
		seq:         map[string]uint64{},
		users:       map[uint64]model.User{},
		tokens:      map[string]token{},
		projects:    map[uint64]model.Project{},
		members:     map[uint64]map[uint64]model.ProjectMember{},
		modules:     map[uint64]model.SiteModule{},
		checklist:   map[uint64]model.ChecklistProgress{},
		photos:      map[uint64]model.Photo{},
		reports:     map[uint64]model.DailyReport{},
		vehicles:    map[uint64]model.Vehicle{},
		assignments: map[uint64]model.VehicleAssignment{},
		walkarounds: map[uint64]model.WalkaroundInspection{},
		inspections: map[uint64]model.RegularInspection{},
		certs:       map[uint64]model.Certification{},
		receipts:    map[uint64]model.Receipt{},
		equipment:   map[uint64]model.Equipment{},
		contacts:    map[uint64]model.EmergencyContact{},
	}
}

// clone copies every table. Records are values; the slices they carry are
// never mutated in place, so sharing them between copies is safe.
func (s *state) clone() *state {
	c := &state{
		seq:         maps.Clone(s.seq),
		users:       maps.Clone(s.users),
		tokens:      maps.Clone(s.tokens),
		projects:    maps.Clone(s.projects),
		members:     make(map[uint64]map[uint64]model.ProjectMember, len(s.members)),
		modules:     maps.Clone(s.modules),
		checklist:   maps.Clone(s.checklist),
		photos:      maps.Clone(s.photos),
		reports:     maps.Clone(s.reports),
		vehicles:    maps.Clone(s.vehicles),
		assignments: maps.Clone(s.assignments),
		walkarounds: maps.Clone(s.walkarounds),
		inspections: maps.Clone(s.inspections),
		certs:       maps.Clone(s.certs),
		receipts:    maps.Clone(s.receipts),
		equipment:   maps.Clone(s.equipment),
		contacts:    maps.Clone(s.contacts),
	}
	for pid, team := range s.members {
		c.members[pid] = maps.Clone(team)
	}
	return c
}

func (s *state) next(table string) uint64 {
	s.seq[table]++
	return s.seq[table]
}

// row builds the scope row of a record owned by ownerID under projectID.
func (s *state) row(ownerID, projectID uint64) policy.Row {
	r := policy.Row{OwnerID: ownerID}
	if p, ok := s.projects[projectID]; ok {
		r.Project = &p
		for uid := range s.members[projectID] {
			r.Members = append(r.Members, uid)
		}
	}
	return r
}

// Store is the in-memory store.Store.
type Store struct {
	*view

	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
	s.view = &view{store: s}
	return s
}

// InTx runs fn on a private copy of the state and publishes the copy only
// when fn succeeds and ctx is still live.
func (s *Store) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return apperr.Transient(err, "transaction not started")
	}
	work := s.state.clone()
	if err := fn(&view{tx: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Transient(err, "transaction aborted")
	}
	s.state = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// SetClock replaces the source of created and updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// view implements store.Queries either on the shared state, taking the lock
// per call, or on a transaction's private copy.
type view struct {
	store *Store
	tx    *state
	now   func() time.Time
}

func (v *view) begin() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.Lock()
	return v.store.state, v.store.mu.Unlock
}

// clock runs with the state lock held, either taken by begin or by InTx.
func (v *view) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return v.store.now()
}

func sortByID[T any](rows []T, id func(T) uint64) []T {
	slices.SortFunc(rows, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return rows
}

// ---- users ----

func (v *view) GetUser(_ context.Context, id uint64) (model.User, error) {
	st, done := v.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return model.User{}, apperr.NotFound("user %d not found", id)
	}
	return u, nil
}

func (v *view) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	st, done := v.begin()
	defer done()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, apperr.NotFound("user %s not found", email)
}

func (v *view) CreateUser(_ context.Context, u *model.User) error {
	st, done := v.begin()
	defer done()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range st.users {
		if other.Email == u.Email {
			return apperr.Conflict("email %s already registered", u.Email)
		}
	}
	now := v.clock()
	u.ID = st.next("users")
	u.CreatedAt, u.UpdatedAt = now, now
	st.users[u.ID] = *u
	return nil
}

func (v *view) UpdateUser(_ context.Context, u model.User) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.users[u.ID]; !ok {
		return apperr.NotFound("user %d not found", u.ID)
	}
	for _, other := range st.users {
		if other.ID != u.ID && other.Email == u.Email {
			return apperr.Conflict("email %s already registered", u.Email)
		}
	}
	u.UpdatedAt = v.clock()
	st.users[u.ID] = u
	return nil
}

func (v *view) CountAdmins(_ context.Context) (int, error) {
	st, done := v.begin()
	defer done()
	n := 0
	for _, u := range st.users {
		if u.Role == model.RoleAdmin && u.Active {
			n++
		}
	}
	return n, nil
}

func (v *view) ListUsers(_ context.Context, scope policy.Scope) ([]model.User, error) {
	st, done := v.begin()
	defer done()
	out := []model.User{}
	for _, u := range st.users {
		if scope.Match(policy.Row{OwnerID: u.ID}) {
			out = append(out, u)
		}
	}
	return sortByID(out, func(u model.User) uint64 { return u.ID }), nil
}

// ---- refresh tokens ----

func (v *view) StoreRefreshToken(_ context.Context, userID uint64, hash string, exp time.Time) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.tokens[hash]; ok {
		return apperr.Conflict("refresh token already stored")
	}
	st.tokens[hash] = token{userID: userID, expiresAt: exp}
	return nil
}

func (v *view) ValidateRefreshToken(_ context.Context, hash string, now time.Time) (uint64, error) {
	st, done := v.begin()
	defer done()
	t, ok := st.tokens[hash]
	if !ok || t.revoked || now.After(t.expiresAt) {
		return 0, apperr.NotFound("refresh token not found")
	}
	return t.userID, nil
}

func (v *view) RevokeRefreshToken(_ context.Context, hash string) error {
	st, done := v.begin()
	defer done()
	if t, ok := st.tokens[hash]; ok {
		t.revoked = true
		st.tokens[hash] = t
	}
	return nil
}

func (v *view) RevokeUserRefreshTokens(_ context.Context, userID uint64) error {
	st, done := v.begin()
	defer done()
	for h, t := range st.tokens {
		if t.userID == userID {
			t.revoked = true
			st.tokens[h] = t
		}
	}
	return nil
}
