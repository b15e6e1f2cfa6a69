package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/store"
)

func newMockStore(t *testing.T) (*store.PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewPostgresStoreWithDB(db), mock, db
}

func TestQueryFailuresAreWrappedNotNotFound(t *testing.T) {
	st, mock, _ := newMockStore(t)
	ctx := context.Background()
	dbErr := errors.New("connection reset")

	t.Run("company lookup", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM companies`).
			WithArgs("example.com").
			WillReturnError(dbErr)

		_, err := st.CompanyByWebID(ctx, "example.com")
		require.Error(t, err)
		assert.False(t, store.IsNotFound(err))
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("user lookup", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM users`).
			WithArgs(int64(7)).
			WillReturnError(dbErr)

		_, err := st.User(ctx, 7)
		require.Error(t, err)
		assert.False(t, store.IsNotFound(err))
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("layout list", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM layouts`).
			WillReturnError(dbErr)

		_, err := st.LayoutsByParent(ctx, 1, false, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasLayoutsPropagatesQueryError(t *testing.T) {
	st, mock, _ := newMockStore(t)
	dbErr := errors.New("relation missing")

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnError(dbErr)

	_, err := st.HasPrivateLayouts(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheckReportsPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.NewPostgresStoreWithDB(db)

	mock.ExpectPing().WillReturnError(errors.New("down"))

	assert.Error(t, st.HealthCheck(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheckFailsOnClosedPool(t *testing.T) {
	st, mock, db := newMockStore(t)
	mock.ExpectClose()
	require.NoError(t, db.Close())

	assert.Error(t, st.HealthCheck(context.Background()))
}
