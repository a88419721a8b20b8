package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// historyOrder is one row of the orders table as the history query sees it.
type historyOrder struct {
	actorID   string
	status    string
	sessionID string
	items     string
}

// historyDriver is a database/sql driver serving PurchasedQuantity queries
// from memory.  It understands the one predicate that query uses.
type historyDriver struct {
	mu     sync.Mutex
	orders []historyOrder
}

func (d *historyDriver) Open(string) (driver.Conn, error) { return historyConn{d}, nil }

type historyConn struct{ d *historyDriver }

func (c historyConn) Prepare(query string) (driver.Stmt, error) {
	return historyStmt{d: c.d, query: query}, nil
}
func (historyConn) Close() error { return nil }
func (historyConn) Begin() (driver.Tx, error) { return nil, errors.New("no transactions") }

type historyStmt struct {
	d     *historyDriver
	query string
}

func (historyStmt) Close() error { return nil }
func (historyStmt) NumInput() int { return -1 }
func (historyStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("read only")
}

func (s historyStmt) Query(args []driver.Value) (driver.Rows, error) {
	if len(args) != 3 {
		return nil, errors.New("unexpected arguments")
	}
	needSession := strings.Contains(s.query, "vipps_session_id IS NOT NULL")
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []string
	for _, o := range s.d.orders {
		if o.actorID != args[0] {
			continue
		}
		paid := o.status == args[1]
		pending := o.status == args[2] && (!needSession || o.sessionID != "")
		if paid || pending {
			out = append(out, o.items)
		}
	}
	return &historyRows{items: out}, nil
}

type historyRows struct {
	items []string
	i     int
}

func (*historyRows) Columns() []string { return []string{"items_json"} }
func (*historyRows) Close() error { return nil }
func (r *historyRows) Next(dest []driver.Value) error {
	if r.i >= len(r.items) {
		return io.EOF
	}
	dest[0] = []byte(r.items[r.i])
	r.i++
	return nil
}

func TestPurchasedQuantitySkipsFailedAttempts(t *testing.T) {
	drv := &historyDriver{orders: []historyOrder{
		{actorID: "u1", status: "paid", items: `[{"product_id":"tee","quantity":2}]`},
		{actorID: "u1", status: "pending", sessionID: "sess-1", items: `[{"product_id":"tee","quantity":1},{"product_id":"mug","quantity":4}]`},
		// payment session never created
		{actorID: "u1", status: "pending", items: `[{"product_id":"tee","quantity":5}]`},
		{actorID: "u1", status: "failed", sessionID: "sess-2", items: `[{"product_id":"tee","quantity":7}]`},
		{actorID: "u2", status: "paid", items: `[{"product_id":"tee","quantity":9}]`},
	}}
	sql.Register("history-"+t.Name(), drv)
	db, err := sql.Open("history-"+t.Name(), "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	got, err := NewOrderRepo(db).PurchasedQuantity(context.Background(), "u1", "tee")
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("expected 3 purchased (paid + sessioned pending), got %d", got)
	}
}
