// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/leadboard/internal/core"
)

func newMockRegistry(t *testing.T) (*PostgresRegistry, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresRegistry(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresRegistryRevoke(t *testing.T) {
	reg, mock := newMockRegistry(t)
	expiresAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO revoked_tokens`).
		WithArgs(core.HashToken("tok"), expiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, reg.Revoke(context.Background(), "tok", expiresAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistryRevokeWithoutExpiry(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`INSERT INTO revoked_tokens`).
		WithArgs(core.HashToken("tok"), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, reg.Revoke(context.Background(), "tok", time.Time{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistryRevokeFailure(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`INSERT INTO revoked_tokens`).
		WillReturnError(errors.New("connection reset"))

	err := reg.Revoke(context.Background(), "tok", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, core.ErrDependency)
}

func TestPostgresRegistryIsRevoked(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"revoked", true},
		{"not revoked", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, mock := newMockRegistry(t)

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs(core.HashToken("tok")).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			revoked, err := reg.IsRevoked(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.exists, revoked)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRegistryIsRevokedFailure(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(sql.ErrConnDone)

	_, err := reg.IsRevoked(context.Background(), "tok")
	assert.ErrorIs(t, err, core.ErrDependency)
}

func TestPostgresRegistryDeleteExpired(t *testing.T) {
	reg, mock := newMockRegistry(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	mock.ExpectExec(`DELETE FROM revoked_tokens`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := reg.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistryDeleteExpiredFailure(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`DELETE FROM revoked_tokens`).
		WillReturnError(errors.New("connection reset"))

	n, err := reg.DeleteExpired(context.Background())
	assert.Zero(t, n)
	assert.ErrorIs(t, err, core.ErrDependency)
}

func TestPostgresRegistryDeleteExpiredRowsAffectedFailure(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec(`DELETE FROM revoked_tokens`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver lost result")))

	_, err := reg.DeleteExpired(context.Background())
	assert.ErrorIs(t, err, core.ErrDependency)
}
