package d1

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/opendots/opendots-backend/store"
)

var _ Executor = (*SQLExecutor)(nil)

// SQLExecutor runs statements on a database/sql handle. It backs local
// development against a SQLite file with the D1 schema.
type SQLExecutor struct {
	db *sql.DB
}

// NewSQLExecutor wraps an open database handle.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// OpenLocal opens (creating if needed) a SQLite file.
func OpenLocal(path string) (*SQLExecutor, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open local d1 database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open local d1 database: %w", err)
	}
	return &SQLExecutor{db: db}, nil
}

func (e *SQLExecutor) Close() error {
	return e.db.Close()
}

func (e *SQLExecutor) Query(ctx context.Context, query string, params ...any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return out, nil
}

func (e *SQLExecutor) Exec(ctx context.Context, query string, params ...any) (int64, error) {
	res, err := e.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func mapSQLiteError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrCantOpen {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}
	if isUniqueViolation(err.Error()) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}
