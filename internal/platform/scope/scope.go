// Package scope runs one logical operation — an HTTP request or a consumer
// delivery — inside its own unit of work and outbound message batch.
//
// The contract: storage writes and event-handler side effects share one
// transaction; the outbound batch is flushed to the broker only after that
// transaction commits, and is discarded wholesale when anything fails. No
// message is ever delivered for a transaction that did not commit.
package scope

import (
	"context"
	"database/sql"
	"log/slog"

	"tally/internal/platform/uow"
	"tally/pkg/domainerrors"
	"tally/pkg/mq"
	"tally/pkg/requestcontext"
)

// recovery maps an error code to its logging treatment. Every code rolls
// back and clears the outbound batch; what differs is how loudly it is
// reported.
var recovery = map[domainerrors.Code]slog.Level{
	domainerrors.CodeNotFound:     slog.LevelWarn,
	domainerrors.CodeInvalidState: slog.LevelWarn,
	domainerrors.CodeConflict:     slog.LevelError,
	domainerrors.CodeTransient:    slog.LevelError,
	domainerrors.CodeProtocol:     slog.LevelError,
	domainerrors.CodeInternal:     slog.LevelError,
}

// Runner builds per-operation scopes over shared process resources.
type Runner struct {
	db  *sql.DB
	cfg mq.ConnConfig
	log *slog.Logger
}

func NewRunner(db *sql.DB, cfg mq.ConnConfig, log *slog.Logger) *Runner {
	return &Runner{db: db, cfg: cfg, log: log}
}

// Do executes fn with a fresh unit of work and publisher in context. On
// success the unit commits and the pending batch is flushed; flush failures
// are logged but do not fail the already-committed operation. On error the
// unit rolls back, the batch is cleared, and the error is dispatched by
// code.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u := uow.New(r.db)
	pub := mq.NewPublisher(r.cfg, r.log)
	ctx = uow.WithUnitOfWork(ctx, u)
	ctx = mq.WithPublisher(ctx, pub)

	if err := u.Run(ctx, fn); err != nil {
		pub.Clear()
		level := recovery[domainerrors.CodeOf(err)]
		r.log.Log(ctx, level, "operation failed",
			"error", err,
			"code", string(domainerrors.CodeOf(err)),
			"traceId", requestcontext.TraceID(ctx))
		return err
	}

	if pub.Pending() > 0 {
		// Best effort after commit: partial flush leaves the remainder
		// pending, see mq.Publisher.Flush.
		_ = pub.Flush(ctx)
	}
	return nil
}
