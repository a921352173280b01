package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query method runs
// unchanged inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements store.Queries over a connection or a transaction.
type Queries struct {
	db dbtx
	// inTx enables FOR UPDATE on locking reads.
	inTx bool
}

// Store is the MySQL store.Store.
type Store struct {
	*Queries
	DB *sql.DB
}

var _ store.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{Queries: &Queries{db: db}, DB: db}
}

// InTx runs fn inside a single transaction. A cancelled ctx rolls the
// transaction back; database/sql does this when the context ends.
func (s *Store) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Queries{db: tx, inTx: true}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Transient(err, "transaction aborted")
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err, "commit transaction")
	}
	committed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.DB.PingContext(ctx), "database")
}

// lock returns the locking suffix for reads that must hold the row.
func (q *Queries) lock() string {
	if q.inTx {
		return " FOR UPDATE"
	}
	return ""
}
