package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-harvester/internal/extract"
)

func TestInsertRecordsInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	text := "body text"
	records := []extract.Record{
		{URL: "https://example.com/a", Title: "A", Text: &text},
		{URL: "https://example.com/b", Title: "B", ScreenshotTaken: true},
	}

	mock.ExpectExec("INSERT INTO extractions").
		WithArgs("run-1", now, "https://example.com/a", "A", &text, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO extractions").
		WithArgs("run-1", now, "https://example.com/b", "B", (*string)(nil), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertRecords(context.Background(), "run-1", now, records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordsStopsOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "pages")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "https://example.com/a", "A", pgxmock.AnyArg(), false).
		WillReturnError(errors.New("relation does not exist"))

	err = store.InsertRecords(context.Background(), "run-1", time.Now(), []extract.Record{
		{URL: "https://example.com/a", Title: "A"},
		{URL: "https://example.com/b", Title: "B"},
	})
	require.ErrorContains(t, err, "insert record https://example.com/a")
	require.NotContains(t, err.Error(), "https://example.com/b")
	// Any further Exec would have failed as unexpected and surfaced here.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "extractions")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS extractions").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, "drop table; --")
	require.Error(t, err)
	_, err = NewRecordStoreWithPool(nil, "")
	require.Error(t, err)
	_, err = NewRecordStore(context.Background(), Config{})
	require.ErrorContains(t, err, "database.dsn")
}
