package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

func sampleEvent(id string, seq uint64, sender string, ts int64) *domain.SaleEvent {
	return &domain.SaleEvent{
		EventID:   id,
		Sequence:  seq,
		Action:    "claim_tokens",
		Sender:    sender,
		Timestamp: ts,
		Status:    domain.StatusSucceeded,
		Attrs: []domain.Attribute{
			{Key: "action", Value: "claim_tokens"},
			{Key: "claimer", Value: sender},
			{Key: "token_amount", Value: "110000000000"},
		},
		Messages: []domain.Message{
			domain.TokenTransfer("TokenAddr", sender, decimal.NewFromInt(110_000_000_000)),
		},
	}
}

func TestEventStore_InsertAndRead(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEventStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleEvent("e2", 2, "Bob", 2100)))
	require.NoError(t, store.Insert(ctx, sampleEvent("e1", 1, "Bob", 1500)))
	require.NoError(t, store.Insert(ctx, sampleEvent("e3", 3, "Alice", 2200)))

	events, err := store.GetBySender(ctx, "Bob")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, uint64(2), events[1].Sequence)

	got := events[1]
	assert.Equal(t, domain.StatusSucceeded, got.Status)
	amount, ok := got.Attr("token_amount")
	require.True(t, ok)
	assert.Equal(t, "110000000000", amount)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, domain.MessageTokenTransfer, got.Messages[0].Kind)
	assert.True(t, got.Messages[0].Amount.Equal(decimal.NewFromInt(110_000_000_000)))

	ranged, err := store.GetByTimeRange(ctx, 2000, 2200)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "e2", ranged[0].EventID)
	assert.Equal(t, "e3", ranged[1].EventID)

	last, err := store.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
}

func TestEventStore_DuplicateRejected(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEventStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleEvent("dup", 1, "Bob", 1500)))
	err := store.Insert(ctx, sampleEvent("dup", 1, "Bob", 1500))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEventStore_EmptyLog(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEventStore(conn)
	ctx := context.Background()

	last, err := store.LastSequence(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)

	events, err := store.GetBySender(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, events)
}
