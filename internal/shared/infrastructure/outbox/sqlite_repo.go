package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) querier(ctx context.Context) sharedPersistence.SQLiteQuerier {
	return sharedPersistence.SQLiteExecutor(ctx, r.db)
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	result, err := r.querier(ctx).ExecContext(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.RoutingKey,
		string(msg.Payload),
		msg.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	msg.ID, err = result.LastInsertId()
	return err
}

// SaveBatch stores multiple outbox messages. When a transaction is in the
// context the batch joins it; otherwise each insert is independent.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	if _, ok := sharedPersistence.SQLiteTxInfoFromContext(ctx); ok {
		for _, msg := range msgs {
			if err := r.Save(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txCtx := sharedPersistence.WithSQLiteTx(ctx, tx, true)
	for _, msg := range msgs {
		if err := r.Save(txCtx, msg); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetUnpublished retrieves unpublished, non-dead messages ordered by creation
// time, skipping messages whose retry backoff has not elapsed.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload,
		       created_at, retry_count, last_error
		FROM outbox_events
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at
		LIMIT ?`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg       Message
			eventID   string
			aggID     string
			payload   string
			createdAt string
			lastErr   sql.NullString
		)
		if err := rows.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggID,
			&msg.RoutingKey, &payload, &createdAt, &msg.RetryCount, &lastErr); err != nil {
			return nil, err
		}
		msg.EventID, _ = uuid.Parse(eventID)
		msg.AggregateID, _ = uuid.Parse(aggID)
		msg.Payload = []byte(payload)
		msg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if lastErr.Valid {
			msg.LastError = &lastErr.String
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.querier(ctx).ExecContext(ctx, `
		UPDATE outbox_events SET published_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.querier(ctx).ExecContext(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, nextRetryAt.UTC().Format(time.RFC3339), id,
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.querier(ctx).ExecContext(ctx, `
		UPDATE outbox_events SET dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), reason, id,
	)
	return err
}
