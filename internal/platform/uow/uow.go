// Package uow implements the re-entrant unit of work: one database
// transaction shared by a logical request or handler chain, opened at the
// first Begin and torn down only when the outermost scope ends.
package uow

import (
	"context"
	"database/sql"

	"tally/pkg/domainerrors"
)

// UnitOfWork guards one *sql.Tx behind a depth counter. Entering at depth 0
// opens a transaction; nested entries reuse it. Any error surfaced through
// Scope.End poisons the whole unit, so partial nested success is never
// preserved: the outermost End rolls everything back.
//
// A UnitOfWork belongs to exactly one request or consumer delivery and must
// not be shared across goroutines.
type UnitOfWork struct {
	db       *sql.DB
	tx       *sql.Tx
	depth    int
	poisoned bool
}

// New builds an idle unit of work over the database pool.
func New(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Tx exposes the active transaction for stores. Nil outside a scope.
func (u *UnitOfWork) Tx() *sql.Tx { return u.tx }

// Depth reports the current nesting depth.
func (u *UnitOfWork) Depth() int { return u.depth }

// Scope is the guard returned by Begin and consumed exactly once by End.
type Scope struct {
	u    *UnitOfWork
	done bool
}

// Begin enters the unit of work. The first entry opens the transaction;
// nested entries share it and only bump the depth.
func (u *UnitOfWork) Begin(ctx context.Context) (*Scope, error) {
	if u.depth == 0 {
		tx, err := u.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "begin transaction")
		}
		u.tx = tx
		u.poisoned = false
	}
	u.depth++
	return &Scope{u: u}, nil
}

// End leaves the scope. A non-nil err at any nesting level poisons the unit.
// When the outermost scope ends, the transaction commits if the unit is
// clean and rolls back otherwise; either way the connection is released and
// the depth returns to 0.
func (s *Scope) End(err error) error {
	if s.done {
		return nil
	}
	s.done = true

	u := s.u
	if err != nil {
		u.poisoned = true
	}
	u.depth--
	if u.depth > 0 {
		return err
	}
	u.depth = 0

	tx := u.tx
	u.tx = nil
	if tx == nil {
		return err
	}

	if u.poisoned {
		if rbErr := tx.Rollback(); rbErr != nil && err == nil {
			return domainerrors.Wrap(rbErr, domainerrors.CodeInternal, "rollback transaction")
		}
		return err
	}
	if cErr := tx.Commit(); cErr != nil {
		return domainerrors.Wrap(cErr, domainerrors.CodeInternal, "commit transaction")
	}
	return nil
}

// Run executes fn inside a scope, ending it with fn's error. Panics still
// roll the unit back before propagating.
func (u *UnitOfWork) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	scope, err := u.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = scope.End(domainerrors.New(domainerrors.CodeInternal, "panic in unit of work"))
			panic(r)
		}
	}()
	return scope.End(fn(ctx))
}

type ctxKey struct{}

// WithUnitOfWork stores the request's unit of work in context for stores and
// nested event handlers.
func WithUnitOfWork(ctx context.Context, u *UnitOfWork) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, u)
}

// From extracts the unit of work from context.
func From(ctx context.Context) (*UnitOfWork, bool) {
	u, ok := ctx.Value(ctxKey{}).(*UnitOfWork)
	return u, ok
}
