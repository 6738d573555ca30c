package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/ddd"
	"tally/pkg/domainerrors"
)

var (
	alice = ddd.Actor{ID: "user-1", Name: "Alice", OrganizationID: "org-1"}
	bob   = ddd.Actor{ID: "user-2", Name: "Bob", OrganizationID: "org-1"}
	now   = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
)

func TestCreate(t *testing.T) {
	inv := Create("inv-1", Details{Customer: "ACME", AmountCents: 12500}, alice, now)

	assert.Equal(t, StatusCreated, inv.Status())
	assert.Equal(t, alice, inv.Creator())
	assert.Equal(t, now, inv.CreatedAt())
	assert.Nil(t, inv.UpdatedAt())
	assert.True(t, inv.Archived())

	events := inv.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventInvoiceCreated, events[0].Name())
	assert.Equal(t, alice, events[0].Doer())

	histories := inv.OperationHistories()
	require.Len(t, histories, 1)
	assert.Equal(t, HistoryCreated, histories[0].Type)
	assert.Equal(t, now, histories[0].CreatedAt)
}

func TestUpdateRecordsOnlyChangedFields(t *testing.T) {
	inv := Create("inv-1", Details{Customer: "ACME", AmountCents: 12500}, alice, now)

	later := now.Add(time.Hour)
	require.NoError(t, inv.Update(Details{Customer: "ACME", AmountCents: 20000}, bob, later))

	histories := inv.OperationHistories()
	require.Len(t, histories, 2)
	update := histories[1]
	assert.Equal(t, HistoryUpdated, update.Type)
	assert.Equal(t, bob, update.Doer)
	require.Len(t, update.Data, 1, "unchanged fields are not recorded")
	assert.Equal(t, "amountCents", update.Data[0].Field)
	assert.Equal(t, int64(12500), update.Data[0].Before)
	assert.Equal(t, int64(20000), update.Data[0].After)

	events := inv.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventInvoiceUpdated, events[1].Name())

	assert.Equal(t, now, inv.CreatedAt(), "mutations never touch the creation time")
	require.NotNil(t, inv.UpdatedAt())
	assert.Equal(t, later, *inv.UpdatedAt())
}

func TestVoid(t *testing.T) {
	inv := Create("inv-1", Details{Customer: "ACME", AmountCents: 12500}, alice, now)

	require.NoError(t, inv.Void(bob, now.Add(time.Hour)))

	assert.Equal(t, StatusVoided, inv.Status())
	histories := inv.OperationHistories()
	require.Len(t, histories, 2)
	assert.Equal(t, HistoryVoided, histories[1].Type)
	require.Len(t, histories[1].Data, 1)
	assert.Equal(t, "status", histories[1].Data[0].Field)
	assert.Equal(t, string(StatusCreated), histories[1].Data[0].Before)
	assert.Equal(t, string(StatusVoided), histories[1].Data[0].After)

	assert.Equal(t, now, inv.CreatedAt())
	require.NotNil(t, inv.UpdatedAt())
	assert.Equal(t, now.Add(time.Hour), *inv.UpdatedAt())
}

func TestVoidedInvoiceRejectsMutations(t *testing.T) {
	inv := Create("inv-1", Details{Customer: "ACME", AmountCents: 12500}, alice, now)
	require.NoError(t, inv.Void(alice, now))

	err := inv.Update(Details{Customer: "Other"}, bob, now)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidState))

	err = inv.Void(bob, now)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidState), "voiding twice fails")

	assert.Len(t, inv.OperationHistories(), 2, "failed mutations leave no history")
	assert.Len(t, inv.Events(), 2, "failed mutations emit no events")
}

func TestDelete(t *testing.T) {
	inv := Create("inv-1", Details{Customer: "ACME", AmountCents: 12500}, alice, now)

	inv.Delete(bob)

	assert.True(t, inv.Deleted())
	events := inv.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventInvoiceDeleted, events[1].Name())
	assert.Equal(t, bob, events[1].Doer())
}

func TestReconstructedInvoiceCarriesNoPendingEvents(t *testing.T) {
	inv := New("inv-1", Details{Customer: "ACME"}, StatusCreated, nil, alice, now, nil)

	assert.False(t, inv.Archived())
	assert.Empty(t, inv.Events())
}
