package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/cfaccess/repositories"
	"go.uber.org/zap"
)

func newMockRepository(t *testing.T) (repositories.AccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccountRepository(Wrap(db, zap.NewNop()), zap.NewNop()), mock
}

var (
	usernameQuery = regexp.QuoteMeta(`SELECT id FROM users WHERE username = $1`)
	profileQuery  = regexp.QuoteMeta(`SELECT user_id FROM user_profiles WHERE email = $1`)
)

func TestAccountRepository_GetIDByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery(usernameQuery).
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

		got, err := repo.GetIDByUsername(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(usernameQuery).
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := repo.GetIDByUsername(ctx, "user@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.Equal(t, uuid.Nil, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(usernameQuery).
			WithArgs("user@example.com").
			WillReturnError(sql.ErrConnDone)

		_, err := repo.GetIDByUsername(ctx, "user@example.com")
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NotErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetIDByProfileEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery(profileQuery).
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(id.String()))

		got, err := repo.GetIDByProfileEmail(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(profileQuery).
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

		_, err := repo.GetIDByProfileEmail(ctx, "user@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "username", "active", "created_at", "updated_at", "email", "full_name"}
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("with profile", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM users u LEFT JOIN user_profiles p`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(id.String(), "jdoe", true, now, now, "jdoe@example.com", "Jane Doe"))

		account, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
		assert.Equal(t, "jdoe", account.Username)
		assert.True(t, account.Active)
		require.NotNil(t, account.Profile)
		assert.Equal(t, "jdoe@example.com", account.Email())
		assert.Equal(t, "Jane Doe", account.Profile.FullName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without profile", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM users u LEFT JOIN user_profiles p`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(id.String(), "user@example.com", true, now, now, nil, nil))

		account, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, account.Profile)
		assert.Equal(t, "", account.Email())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM users u`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns))

		account, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.Nil(t, account)
	})
}

func TestDB_HealthCheckAndSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := Wrap(sqlDB, zap.NewNop())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	require.NoError(t, db.HealthCheck(context.Background()))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, db.InitSchema(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, db.HealthCheck(context.Background()))

	stats := db.PoolStats()
	assert.Contains(t, stats, "open")
	assert.Contains(t, stats, "in_use")

	assert.NoError(t, mock.ExpectationsWereMet())
}
