package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/dbx"
	"github.com/dmitrijs2005/tallysync/internal/server/migrations"
	"github.com/dmitrijs2005/tallysync/internal/server/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// OpenPostgres connects through pgx and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Migrations)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return db, nil
}

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces the row. xmax = 0 only holds for a freshly
// inserted tuple, which tells a create from an update; no returned row means
// the WHERE clause skipped a replay.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Received) (models.Outcome, error) {
	query := `
		INSERT INTO received_records (collection, id, payload, updated_at, idempotency_key, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collection, id)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at,
			idempotency_key = EXCLUDED.idempotency_key,
			received_at = EXCLUDED.received_at
			WHERE received_records.idempotency_key = '' OR received_records.idempotency_key <> EXCLUDED.idempotency_key
		RETURNING (xmax = 0) AS inserted;
	`
	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		rec.Collection, rec.ID, []byte(rec.Payload), rec.UpdatedAt, rec.IdempotencyKey, rec.ReceivedAt,
	).Scan(&inserted)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.OutcomeReplayed, nil
	case err != nil:
		return 0, fmt.Errorf("db error: %w", err)
	case inserted:
		return models.OutcomeCreated, nil
	default:
		return models.OutcomeUpdated, nil
	}
}

func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*models.Received, error) {
	query := `SELECT collection, id, payload, updated_at, idempotency_key, received_at
		FROM received_records WHERE collection = $1 AND id = $2`

	var (
		item      models.Received
		payload   []byte
		updatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, collection, id).Scan(
		&item.Collection, &item.ID, &payload, &updatedAt, &item.IdempotencyKey, &item.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}

	item.Payload = payload
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		item.UpdatedAt = &t
	}
	item.ReceivedAt = item.ReceivedAt.UTC()
	return &item, nil
}

func (r *PostgresRepository) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM received_records WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

var _ Repository = (*PostgresRepository)(nil)
