package migrations

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// stubPG answers the handful of queries the postgres migration driver issues
// while it sets up its version table.
type stubPG struct{}

func (stubPG) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(query string) (driver.Stmt, error) { return stubStmt{query: query}, nil }
func (stubConn) Close() error                              { return nil }
func (stubConn) Begin() (driver.Tx, error)                 { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubStmt struct{ query string }

func (stubStmt) Close() error  { return nil }
func (stubStmt) NumInput() int { return -1 }

func (stubStmt) Exec([]driver.Value) (driver.Result, error) { return driver.RowsAffected(0), nil }

func (s stubStmt) Query([]driver.Value) (driver.Rows, error) {
	var v driver.Value = int64(0)
	switch {
	case strings.Contains(s.query, "CURRENT_DATABASE"):
		v = "redemption"
	case strings.Contains(s.query, "CURRENT_SCHEMA"):
		v = "public"
	case strings.Contains(s.query, "COUNT(1)"):
		v = int64(1)
	}
	return &stubRows{value: v}, nil
}

type stubRows struct {
	value driver.Value
	done  bool
}

func (*stubRows) Columns() []string { return []string{"v"} }
func (*stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.value
	return nil
}

func init() {
	sql.Register("stubpg", stubPG{})
}

func TestClosingRunnerKeepsPoolOpen(t *testing.T) {
	sqldb, err := sql.Open("stubpg", "")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	r := NewRunner(db, Options{Dir: migrationsDir}, nil)
	require.NoError(t, r.ensure())
	require.NoError(t, r.Close())

	require.NoError(t, db.PingContext(context.Background()))
	var one int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(1)").Scan(&one))
	require.Equal(t, 1, one)
}
