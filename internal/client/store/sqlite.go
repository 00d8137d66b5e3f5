package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/migrations"
	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore implements Repository on a local SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	collections *models.CollectionSet
	now         func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces time.Now as the source of updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// Migrate applies the embedded migrations. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Open opens (creating if needed) the database at dsn, applies migrations and
// binds the store to the configured collections.
func Open(ctx context.Context, dsn string, collections *models.CollectionSet, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, collections, opts...), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, collections *models.CollectionSet, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{db: db, collections: collections, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) check(collection string) error {
	if !s.collections.Has(collection) {
		return fmt.Errorf("%w: %q", common.ErrUnknownCollection, collection)
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, collection string, rec *models.Record) (*models.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: empty id", common.ErrValidation)
	}

	fields := models.StripReserved(rec.Fields)
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	now := s.now().UTC()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var retired int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM retired_ids WHERE collection = ? AND id = ?`, collection, rec.ID).Scan(&retired)
		if err != nil {
			return fmt.Errorf("failed to check retired ids: %w", err)
		}
		if retired > 0 {
			return fmt.Errorf("%w: %s/%s was deleted and cannot be reused", common.ErrDuplicateID, collection, rec.ID)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, id, fields, updated_at, synced, revision)
			VALUES (?, ?, ?, ?, 0, 1)
			ON CONFLICT(collection, id) DO NOTHING`,
			collection, rec.ID, string(body), now.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		if err := dbx.ExpectOne(res); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: %s/%s", common.ErrDuplicateID, collection, rec.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.Record{
		ID:         rec.ID,
		Collection: collection,
		Fields:     fields,
		UpdatedAt:  now,
		Synced:     false,
		Revision:   1,
	}, nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*models.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}

	var out *models.Record
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := getRecord(ctx, tx, collection, id)
		if err != nil {
			return err
		}

		merged := cur.Fields
		if merged == nil {
			merged = map[string]any{}
		}
		for k, v := range models.StripReserved(patch) {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		body, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode fields: %w", err)
		}
		now := s.now().UTC()

		res, err := tx.ExecContext(ctx, `
			UPDATE records
			SET fields = ?, updated_at = ?, synced = 0, revision = revision + 1
			WHERE collection = ? AND id = ?`,
			string(body), now.UnixNano(), collection, id)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		if err := dbx.ExpectOne(res); err != nil {
			return err
		}

		out = &models.Record{
			ID:         id,
			Collection: collection,
			Fields:     maps.Clone(merged),
			UpdatedAt:  now,
			Synced:     false,
			Revision:   cur.Revision + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.check(collection); err != nil {
		return err
	}
	// Deleted ids are retired; Add refuses them from then on.
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		if err := dbx.ExpectOne(res); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO retired_ids (collection, id) VALUES (?, ?)
			ON CONFLICT(collection, id) DO NOTHING`, collection, id); err != nil {
			return fmt.Errorf("failed to retire id: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	return getRecord(ctx, s.db, collection, id)
}

func (s *SQLiteStore) GetAll(ctx context.Context, collection string) ([]*models.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	return queryRecords(ctx, s.db, `
		SELECT collection, id, fields, updated_at, synced, revision
		FROM records WHERE collection = ?
		ORDER BY id`, collection)
}

func (s *SQLiteStore) GetUnsynced(ctx context.Context, collection string) ([]*models.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	return queryRecords(ctx, s.db, `
		SELECT collection, id, fields, updated_at, synced, revision
		FROM records WHERE collection = ? AND synced = 0
		ORDER BY updated_at, id`, collection)
}

func (s *SQLiteStore) CountUnsynced(ctx context.Context, collection string) (int, error) {
	if err := s.check(collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ? AND synced = 0`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, collection, id string, revision int64) (bool, error) {
	if err := s.check(collection); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET synced = 1
		WHERE collection = ? AND id = ? AND revision = ?`,
		collection, id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark synced: %w", err)
	}
	if err := dbx.ExpectOne(res); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r         models.Record
		fields    string
		updatedAt int64
		synced    int
	)
	if err := row.Scan(&r.Collection, &r.ID, &fields, &updatedAt, &synced, &r.Revision); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(fields)))
	dec.UseNumber()
	if err := dec.Decode(&r.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s/%s: %w", r.Collection, r.ID, err)
	}
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	r.Synced = synced != 0
	return &r, nil
}

func getRecord(ctx context.Context, db dbx.DBTX, collection, id string) (*models.Record, error) {
	row := db.QueryRowContext(ctx, `
		SELECT collection, id, fields, updated_at, synced, revision
		FROM records WHERE collection = ? AND id = ?`, collection, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return r, nil
}

func queryRecords(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]*models.Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
