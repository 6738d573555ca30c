package reactions_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/ddd"
	"tally/internal/invoice/messages"
	"tally/internal/invoice/models"
	"tally/internal/invoice/reactions"
	"tally/internal/invoice/service"
	"tally/internal/invoice/store"
	"tally/internal/platform/uow"
	"tally/pkg/mq"
	"tally/pkg/requestcontext"
	"tally/pkg/testutil"
)

type fixture struct {
	svc   *service.Service
	store *store.MemoryStore
	pub   *mq.Publisher
	ctx   context.Context
	u     *uow.UnitOfWork
}

// newFixture wires the bus with reactions and builds a request-like context
// carrying a unit of work and a publisher.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.Default()

	st := store.NewMemory()
	bus := ddd.NewBus()
	svc := service.New(st, bus, log)
	reactions.Register(bus, st, "tally", nil, log)

	u := uow.New(testutil.NewFakeDB().DB)
	pub := mq.NewPublisher(mq.ConnConfig{Exchange: "test"}, log)

	ctx := requestcontext.WithActor(context.Background(), ddd.Actor{ID: "user-1", Name: "Alice"})
	ctx = requestcontext.WithTraceID(ctx, "trace-req")
	ctx = requestcontext.WithTime(ctx, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	ctx = uow.WithUnitOfWork(ctx, u)
	ctx = mq.WithPublisher(ctx, pub)

	return &fixture{svc: svc, store: st, pub: pub, ctx: ctx, u: u}
}

func TestVoidQueuesOutboundNotification(t *testing.T) {
	f := newFixture(t)

	var id string
	err := f.u.Run(f.ctx, func(ctx context.Context) error {
		var err error
		id, err = f.svc.Create(ctx, models.Details{Customer: "ACME", AmountCents: 100})
		if err != nil {
			return err
		}
		return f.svc.Void(ctx, id)
	})
	require.NoError(t, err)

	msgs := f.pub.Messages()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, messages.FunctionInvoiceVoided, m.FunctionName)
	assert.Equal(t, "trace-req", m.TraceID, "notification shares the request trace")
	assert.Equal(t, []any{messages.VoidedPayload{InvoiceID: id}}, m.Data)
}

func TestCreateQueuesNothing(t *testing.T) {
	f := newFixture(t)

	err := f.u.Run(f.ctx, func(ctx context.Context) error {
		_, err := f.svc.Create(ctx, models.Details{Customer: "ACME"})
		return err
	})
	require.NoError(t, err)

	assert.Zero(t, f.pub.Pending())
}

func TestVoidingTwoInvoicesMergesIntoOneMessage(t *testing.T) {
	f := newFixture(t)

	err := f.u.Run(f.ctx, func(ctx context.Context) error {
		for range 2 {
			id, err := f.svc.Create(ctx, models.Details{Customer: "ACME"})
			if err != nil {
				return err
			}
			if err := f.svc.Void(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	msgs := f.pub.Messages()
	require.Len(t, msgs, 1, "same trace and function merge by data concatenation")
	data, ok := msgs[0].Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestVoidedEventCarriesRequestTrace(t *testing.T) {
	f := newFixture(t)

	err := f.u.Run(f.ctx, func(ctx context.Context) error {
		id, err := f.svc.Create(ctx, models.Details{Customer: "ACME"})
		if err != nil {
			return err
		}
		return f.svc.Void(ctx, id)
	})
	require.NoError(t, err)

	records := f.store.EventRecords()
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "trace-req", rec.TraceID)
	}
}
