package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
)

const userColumns = "id,email,password_hash,name,phone,role,is_active,customer_affiliation,created_at,updated_at"

type scanner interface{ Scan(dest ...any) error }

func scanUser(row scanner) (model.User, error) {
	var (
		u    model.User
		role string
		aff  sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &role, &u.Active, &aff, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.Role(role)
	u.CustomerAffiliation = fromNullID(aff)
	return u, err
}

func fromNullID(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}

func toNullID(p *uint64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (q *Queries) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, mapErr(err, "user")
}

// GetUserByEmail fetches a user by normalized email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, mapErr(err, "user")
}

// CreateUser inserts u; PasswordHash must already be a bcrypt hash.
func (q *Queries) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	id, err := q.insert(ctx, "user "+u.Email,
		"INSERT INTO users (email,password_hash,name,phone,role,is_active,customer_affiliation,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.Name, u.Phone, string(u.Role), u.Active, toNullID(u.CustomerAffiliation), now, now)
	if err != nil {
		return err
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return nil
}

func (q *Queries) UpdateUser(ctx context.Context, u model.User) error {
	return q.exec(ctx, "user",
		"UPDATE users SET email=?,password_hash=?,name=?,phone=?,role=?,is_active=?,customer_affiliation=? WHERE id=?",
		u.Email, u.PasswordHash, u.Name, u.Phone, string(u.Role), u.Active, toNullID(u.CustomerAffiliation), u.ID)
}

func (q *Queries) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role='admin' AND is_active=1").Scan(&n)
	return n, mapErr(err, "users")
}

func (q *Queries) ListUsers(ctx context.Context, scope policy.Scope) ([]model.User, error) {
	where, args := scopeSQL(scope, scopeColumns{Owner: "id"})
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, mapErr(err, "users")
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(err, "users")
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err(), "users")
}
