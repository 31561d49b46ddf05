package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Postgres outbox repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores a new outbox message.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	return exec.QueryRow(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.RoutingKey, msg.Payload, msg.CreatedAt,
	).Scan(&msg.ID)
}

// SaveBatch stores multiple outbox messages in the ambient transaction.
func (r *PostgresRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUnpublished retrieves unpublished, non-dead messages ordered by creation
// time, skipping messages whose retry backoff has not elapsed.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload,
		       created_at, retry_count, last_error
		FROM outbox_events
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.EventID, &msg.AggregateType, &msg.AggregateID,
			&msg.RoutingKey, &msg.Payload, &msg.CreatedAt, &msg.RetryCount, &msg.LastError); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `UPDATE outbox_events SET published_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = $1, next_retry_at = $2
		WHERE id = $3`,
		errMsg, nextRetryAt, id,
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `
		UPDATE outbox_events SET dead_lettered_at = NOW(), dead_letter_reason = $1 WHERE id = $2`,
		reason, id,
	)
	return err
}
