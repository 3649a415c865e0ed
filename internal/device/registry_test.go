package device

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// recorder is a minimal database/sql driver backend that records the
// statements Register issues and serves canned result rows. Enough to
// exercise the transaction without a live Postgres.
type recorder struct {
	stmts      []string
	committed  int
	rolledBack int
	noRow      bool
}

var recorderSeq atomic.Int64

func openRecorderDB(t *testing.T, rec *recorder) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("device-recorder-%d", recorderSeq.Add(1))
	sql.Register(name, recorderDriver{rec: rec})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type recorderDriver struct{ rec *recorder }

func (d recorderDriver) Open(string) (driver.Conn, error) {
	return &recorderConn{rec: d.rec}, nil
}

type recorderConn struct{ rec *recorder }

func (c *recorderConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (c *recorderConn) Close() error { return nil }

func (c *recorderConn) Begin() (driver.Tx, error) {
	return recorderTx{rec: c.rec}, nil
}

func (c *recorderConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.rec.stmts = append(c.rec.stmts, squash(query))
	return driver.RowsAffected(1), nil
}

func (c *recorderConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.rec.stmts = append(c.rec.stmts, squash(query))
	cols := []string{"id", "last_used", "is_active", "created_at"}
	if c.rec.noRow {
		return &recorderRows{cols: cols}, nil
	}
	now := time.Now().UTC()
	return &recorderRows{
		cols: cols,
		row:  []driver.Value{"binding-1", now, true, now},
	}, nil
}

type recorderTx struct{ rec *recorder }

func (t recorderTx) Commit() error   { t.rec.committed++; return nil }
func (t recorderTx) Rollback() error { t.rec.rolledBack++; return nil }

type recorderRows struct {
	cols []string
	row  []driver.Value
	done bool
}

func (r *recorderRows) Columns() []string { return r.cols }
func (r *recorderRows) Close() error      { return nil }

func (r *recorderRows) Next(dest []driver.Value) error {
	if r.done || r.row == nil {
		return io.EOF
	}
	copy(dest, r.row)
	r.done = true
	return nil
}

func squash(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func TestRegisterRetiresPreviousDevice(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry(openRecorderDB(t, rec))

	b, err := reg.Register(context.Background(), "u1", "d2", "Pixel 8", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !b.IsActive {
		t.Fatalf("binding not active: %+v", b)
	}
	if len(rec.stmts) != 2 {
		t.Fatalf("stmts = %d, want 2: %v", len(rec.stmts), rec.stmts)
	}
	if !strings.Contains(rec.stmts[0], "SET is_active = FALSE") ||
		!strings.Contains(rec.stmts[0], "device_id <> $2") {
		t.Fatalf("first statement does not retire the previous device: %s", rec.stmts[0])
	}
	if !strings.Contains(rec.stmts[1], "ON CONFLICT (device_id)") {
		t.Fatalf("second statement is not the upsert: %s", rec.stmts[1])
	}
	if rec.committed != 1 || rec.rolledBack != 0 {
		t.Fatalf("committed = %d, rolledBack = %d", rec.committed, rec.rolledBack)
	}
}

func TestRegisterDeviceBoundElsewhere(t *testing.T) {
	rec := &recorder{noRow: true}
	reg := NewRegistry(openRecorderDB(t, rec))

	_, err := reg.Register(context.Background(), "u1", "d-taken", "", nil)
	if !errors.Is(err, ErrBoundElsewhere) {
		t.Fatalf("err = %v, want ErrBoundElsewhere", err)
	}
	if rec.committed != 0 {
		t.Fatalf("rejected registration committed %d transactions", rec.committed)
	}
	if rec.rolledBack != 1 {
		t.Fatalf("rolledBack = %d, want 1", rec.rolledBack)
	}
}
