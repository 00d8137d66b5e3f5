package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var (
	upsertQuery = regexp.MustCompile(`INSERT INTO received_records .* ON CONFLICT \(collection, id\) DO UPDATE SET .* RETURNING \(xmax = 0\) AS inserted;`)
	receivedAt  = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
)

func sample() *models.Received {
	upd := receivedAt.Add(-time.Hour)
	return &models.Received{
		Collection:     "clients",
		ID:             "c1",
		Payload:        json.RawMessage(`{"id":"c1","name":"Acme"}`),
		UpdatedAt:      &upd,
		IdempotencyKey: "k1",
		ReceivedAt:     receivedAt,
	}
}

func expectUpsert(mock sqlmock.Sqlmock, rec *models.Received) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(upsertQuery.String()).
		WithArgs(rec.Collection, rec.ID, []byte(rec.Payload), rec.UpdatedAt, rec.IdempotencyKey, rec.ReceivedAt)
}

func TestUpsert_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		want models.Outcome
	}{
		{"created", sqlmock.NewRows([]string{"inserted"}).AddRow(true), models.OutcomeCreated},
		{"updated", sqlmock.NewRows([]string{"inserted"}).AddRow(false), models.OutcomeUpdated},
		{"replayed", sqlmock.NewRows([]string{"inserted"}), models.OutcomeReplayed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			rec := sample()
			expectUpsert(mock, rec).WillReturnRows(tt.rows)

			got, err := repo.Upsert(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := sample()
	expectUpsert(mock, rec).WillReturnError(errors.New("connection reset"))

	_, err := repo.Upsert(context.Background(), rec)
	require.ErrorContains(t, err, "connection reset")
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	upd := receivedAt.Add(-time.Hour)
	mock.ExpectQuery(`SELECT collection, id, payload, updated_at, idempotency_key, received_at FROM received_records WHERE collection = \$1 AND id = \$2`).
		WithArgs("clients", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"collection", "id", "payload", "updated_at", "idempotency_key", "received_at"}).
			AddRow("clients", "c1", []byte(`{"id":"c1"}`), upd, "k1", receivedAt))

	got, err := repo.Get(context.Background(), "clients", "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1"}`, string(got.Payload))
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, upd, *got.UpdatedAt)
	assert.Equal(t, "k1", got.IdempotencyKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM received_records`).
		WithArgs("clients", "nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "clients", "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM received_records WHERE collection = \$1`).
		WithArgs("ledger").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background(), "ledger")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMemoryRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemoryRepository()

	rec := sample()
	out, err := r.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, out)

	out, err = r.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeReplayed, out)

	next := sample()
	next.IdempotencyKey = "k2"
	next.Payload = json.RawMessage(`{"id":"c1","name":"Beta"}`)
	out, err = r.Upsert(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, out)

	got, err := r.Get(ctx, "clients", "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1","name":"Beta"}`, string(got.Payload))

	n, err := r.Count(ctx, "clients")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Get(ctx, "clients", "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}
