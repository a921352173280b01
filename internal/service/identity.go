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

// ErrInvalidCredentials is returned for a wrong email or password, an
// unknown or expired token and an inactive account. The caller answers 401
// without saying which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is the token pair handed out on login and refresh.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Login verifies email and password and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	u, err := s.Store.GetUserByEmail(ctx, email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !u.Active || !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, s.Store, u)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in the same transaction, so a token can be used once.
func (s *Service) Refresh(ctx context.Context, raw string) (Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	var out Session
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		uid, err := q.ValidateRefreshToken(ctx, hash, s.now())
		if apperr.KindOf(err) == apperr.KindNotFound {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if err := q.RevokeRefreshToken(ctx, hash); err != nil {
			return err
		}
		u, err := q.GetUser(ctx, uid)
		if err != nil {
			return err
		}
		if !u.Active {
			return ErrInvalidCredentials
		}
		out, err = s.issue(ctx, q, u)
		return err
	})
	return out, err
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	return s.Store.RevokeRefreshToken(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
}

// ResolveToken turns a bearer access token into the acting user. The user
// is reloaded so deactivation and role changes apply immediately.
func (s *Service) ResolveToken(ctx context.Context, raw string) (model.Actor, error) {
	uid, _, err := utils.ParseAccessToken(s.Opts.JWTSecret, raw)
	if err != nil {
		return model.Actor{}, ErrInvalidCredentials
	}
	u, err := s.Store.GetUser(ctx, uid)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return model.Actor{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Actor{}, err
	}
	if !u.Active {
		return model.Actor{}, ErrInvalidCredentials
	}
	return model.ActorOf(u), nil
}

// ChangePassword replaces the actor's own password and signs out every
// other session.
func (s *Service) ChangePassword(ctx context.Context, actor model.Actor, current, next string) error {
	if err := authorize(actor, policy.User, policy.Update, policy.Target{OwnerID: actor.ID}); err != nil {
		return err
	}
	hash, err := utils.HashPassword(next, s.Opts.BcryptCost)
	if errors.Is(err, utils.ErrWeakPassword) {
		return apperr.Invalid("new_password", "must be at least %d characters", utils.MinPasswordLen)
	}
	if err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(q store.Queries) error {
		u, err := q.GetUser(ctx, actor.ID)
		if err != nil {
			return err
		}
		if !utils.VerifyPassword(u.PasswordHash, current) {
			return apperr.Invalid("current_password", "does not match")
		}
		u.PasswordHash = hash
		u.UpdatedAt = s.now()
		if err := q.UpdateUser(ctx, u); err != nil {
			return err
		}
		return q.RevokeUserRefreshTokens(ctx, u.ID)
	})
}

// SeedAdmin creates the first admin account when no active admin exists.
// It reports whether an account was created.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}
	hash, err := utils.HashPassword(password, s.Opts.BcryptCost)
	if err != nil {
		return false, err
	}
	created := false
	err = s.Store.InTx(ctx, func(q store.Queries) error {
		n, err := q.CountAdmins(ctx)
		if err != nil || n > 0 {
			return err
		}
		now := s.now()
		u := model.User{
			Email: email, PasswordHash: hash, Name: "Administrator",
			Role: model.RoleAdmin, Active: true, CreatedAt: now, UpdatedAt: now,
		}
		if err := q.CreateUser(ctx, &u); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Service) issue(ctx context.Context, q store.Queries, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.Opts.JWTSecret, u.ID, string(u.Role), s.Opts.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.Opts.RefreshTTLDays, s.now())
	if err != nil {
		return Session{}, err
	}
	if err := q.StoreRefreshToken(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
