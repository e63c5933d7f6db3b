// Package d1 implements the profile store on Cloudflare D1. Statements go
// through an Executor, which is either the D1 REST API or a local SQLite
// file with the same schema.
package d1

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Executor runs SQLite-dialect statements with positional ? parameters.
type Executor interface {
	Query(ctx context.Context, sql string, params ...any) ([]Row, error)
	// Exec returns the number of rows changed.
	Exec(ctx context.Context, sql string, params ...any) (int64, error)
}

// isUniqueViolation matches the SQLite message D1 returns for UNIQUE and
// PRIMARY KEY conflicts.
func isUniqueViolation(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed")
}

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) StringPtr(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// IntPtr reads an integer column. JSON decoding yields float64 or
// json.Number while the SQLite driver yields int64.
func (r Row) IntPtr(col string) *int {
	var n int
	switch v := r[col].(type) {
	case nil:
		return nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

func (r Row) Int(col string) int {
	if p := r.IntPtr(col); p != nil {
		return *p
	}
	return 0
}

// sqliteTimeLayouts covers ISO timestamps written by this service and the
// CURRENT_TIMESTAMP format SQLite uses for column defaults.
var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range sqliteTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
