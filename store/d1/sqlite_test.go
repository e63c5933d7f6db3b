package d1

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/opendots/opendots-backend/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMock(t *testing.T) (*SQLExecutor, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLExecutor(db), mock
}

func TestSQLExecutor_Query(t *testing.T) {
	exec, mock := newSQLMock(t)
	mock.ExpectQuery("SELECT id, age FROM user_profiles").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "age"}).
			AddRow("p-1", int64(30)).
			AddRow("p-2", nil))

	rows, err := exec.Query(context.Background(), "SELECT id, age FROM user_profiles WHERE user_id = ?", "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p-1", rows[0].String("id"))
	assert.Equal(t, 30, *rows[0].IntPtr("age"))
	assert.Nil(t, rows[1].IntPtr("age"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLExecutor_Exec(t *testing.T) {
	exec, mock := newSQLMock(t)
	mock.ExpectExec("UPDATE user_profiles").
		WithArgs("Alice", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := exec.Exec(context.Background(), "UPDATE user_profiles SET display_name = ? WHERE user_id = ?", "Alice", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLExecutor_UniqueViolation(t *testing.T) {
	exec, mock := newSQLMock(t)
	mock.ExpectExec("INSERT INTO user_profiles").
		WillReturnError(errors.New("UNIQUE constraint failed: user_profiles.username"))

	_, err := exec.Exec(context.Background(), "INSERT INTO user_profiles (id) VALUES (?)", "p-1")
	assert.ErrorIs(t, err, store.ErrConflict)
}
