package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"tally/pkg/domainerrors"
)

// DefaultRestartBudget bounds how many worker restarts the supervisor grants
// in total before giving up.
const DefaultRestartBudget = 10

// Worker is one supervised consume loop, typically one per exchange.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor owns a fixed set of workers and restarts any that exit, against
// a restart budget shared by all of them. A worker failing with ErrConnect
// burns the whole budget: if the broker cannot even be reached there is no
// point cycling workers. Exhausting the budget terminates the supervisor.
type Supervisor struct {
	workers []Worker
	budget  int64
	log     *slog.Logger
}

func NewSupervisor(log *slog.Logger, budget int, workers ...Worker) *Supervisor {
	if budget <= 0 {
		budget = DefaultRestartBudget
	}
	return &Supervisor{workers: workers, budget: int64(budget), log: log}
}

// Run blocks until ctx is cancelled (graceful shutdown: in-flight handling
// finishes inside each worker) or the restart budget is exhausted.
func (s *Supervisor) Run(ctx context.Context) error {
	var restarts atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	for _, w := range s.workers {
		g.Go(func() error {
			for {
				err := w.Run(ctx)
				if ctx.Err() != nil {
					return nil
				}
				switch {
				case err == nil:
					s.log.Warn("worker exited, restarting", "worker", w.Name)
				case errors.Is(err, ErrConnect):
					s.log.Error("worker cannot reach broker, stopping supervisor", "worker", w.Name, "error", err)
					restarts.Store(s.budget)
					return err
				default:
					s.log.Error("worker failed, restarting", "worker", w.Name, "error", err)
				}
				if restarts.Add(1) > s.budget {
					return domainerrors.New(domainerrors.CodeInternal, "restart budget exhausted")
				}
			}
		})
	}
	return g.Wait()
}
