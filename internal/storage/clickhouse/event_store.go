package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/observability"
	"presale-ledger/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	event_id, sequence, action, sender, timestamp, status,
	attr_keys, attr_values, messages
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
// ReplacingMergeTree does not reject duplicates, so existence is checked first.
func (s *EventStore) Insert(ctx context.Context, e *domain.SaleEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	messages, err := json.Marshal(e.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	keys := make([]string, len(e.Attrs))
	values := make([]string, len(e.Attrs))
	for i, a := range e.Attrs {
		keys[i] = a.Key
		values[i] = a.Value
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO sale_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.EventID, e.Sequence, e.Action, e.Sender, e.Timestamp, string(e.Status),
		keys, values, string(messages),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	start := time.Now()
	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_event", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySender retrieves all events of a sender, ordered by sequence ASC.
func (s *EventStore) GetBySender(ctx context.Context, sender string) ([]*domain.SaleEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM sale_events FINAL
		WHERE sender = ?
		ORDER BY sequence ASC
	`

	rows, err := s.conn.Query(ctx, query, sender)
	if err != nil {
		return nil, fmt.Errorf("query by sender: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by sequence ASC.
func (s *EventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM sale_events FINAL
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY sequence ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastSequence returns the highest stored sequence, or 0 if the log is empty.
func (s *EventStore) LastSequence(ctx context.Context) (uint64, error) {
	var last uint64
	err := s.conn.QueryRow(ctx, `SELECT max(sequence) FROM sale_events`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return last, nil
}

func (s *EventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM sale_events WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvents(rows chRows) ([]*domain.SaleEvent, error) {
	var events []*domain.SaleEvent

	for rows.Next() {
		var e domain.SaleEvent
		var status, messages string
		var keys, values []string

		err := rows.Scan(
			&e.EventID, &e.Sequence, &e.Action, &e.Sender, &e.Timestamp, &status,
			&keys, &values, &messages,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if len(keys) != len(values) {
			return nil, fmt.Errorf("event %s: %d attribute keys for %d values", e.EventID, len(keys), len(values))
		}

		e.Status = domain.SaleStatus(status)
		for i := range keys {
			e.Attrs = append(e.Attrs, domain.Attribute{Key: keys[i], Value: values[i]})
		}
		if err := json.Unmarshal([]byte(messages), &e.Messages); err != nil {
			return nil, fmt.Errorf("decode messages of %s: %w", e.EventID, err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return events, nil
}
