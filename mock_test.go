package dbtclickhouse

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/require"
)

// mockSession implements session for testing. Behavior is injected per test;
// unset functions succeed with zero values.
type mockSession struct {
	pingFn  func(ctx context.Context) error
	queryFn func(ctx context.Context, query string, args ...any) (driver.Rows, error)
	execFn  func(ctx context.Context, query string, args ...any) error
	closeFn func() error

	mu         sync.Mutex
	pingCalls  int
	queryCalls int
	execCalls  int
	closeCalls int
	lastQuery  string
}

func (m *mockSession) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.pingCalls++
	m.mu.Unlock()
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockSession) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	m.mu.Lock()
	m.queryCalls++
	m.lastQuery = query
	m.mu.Unlock()
	if m.queryFn != nil {
		return m.queryFn(ctx, query, args...)
	}
	return newMockRows(nil, nil), nil
}

func (m *mockSession) Exec(ctx context.Context, query string, args ...any) error {
	m.mu.Lock()
	m.execCalls++
	m.lastQuery = query
	m.mu.Unlock()
	if m.execFn != nil {
		return m.execFn(ctx, query, args...)
	}
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

func (m *mockSession) queried() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *mockSession) counts() (pings, queries, execs, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingCalls, m.queryCalls, m.execCalls, m.closeCalls
}

// mockColumnType implements driver.ColumnType.
type mockColumnType struct {
	name     string
	typeName string
	scanType reflect.Type
}

func (c mockColumnType) Name() string             { return c.name }
func (c mockColumnType) Nullable() bool           { return false }
func (c mockColumnType) ScanType() reflect.Type   { return c.scanType }
func (c mockColumnType) DatabaseTypeName() string { return c.typeName }

// mockRows implements driver.Rows over in-memory column metadata and
// row-major data. Scan types are derived from the first data row; columns of
// an empty result default to string.
type mockRows struct {
	columns []Column
	data    [][]any
	idx     int
	current []any
	err     error
	closed  bool
}

func newMockRows(columns []Column, data [][]any) *mockRows {
	return &mockRows{columns: columns, data: data}
}

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.current = r.data[r.idx]
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(r.current[i]))
	}
	return nil
}

func (r *mockRows) ScanStruct(any) error { return nil }

func (r *mockRows) ColumnTypes() []driver.ColumnType {
	types := make([]driver.ColumnType, len(r.columns))
	for i, col := range r.columns {
		scanType := reflect.TypeOf("")
		if len(r.data) > 0 && r.data[0][i] != nil {
			scanType = reflect.TypeOf(r.data[0][i])
		}
		types[i] = mockColumnType{name: col.Name, typeName: col.Type, scanType: scanType}
	}
	return types
}

func (r *mockRows) Totals(...any) error { return nil }

func (r *mockRows) Columns() []string {
	names := make([]string, len(r.columns))
	for i, col := range r.columns {
		names[i] = col.Name
	}
	return names
}

func (r *mockRows) Close() error {
	r.closed = true
	return nil
}

func (r *mockRows) Err() error { return r.err }

// discardLogger drops all output; tests assert on behavior, not log lines.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConnection wires a connection to the given mock session with
// validated default credentials.
func newTestConnection(t *testing.T, sess *mockSession) *Connection {
	t.Helper()
	creds := DefaultCredentials()
	require.NoError(t, creds.Validate())
	conn := NewConnection("test", creds, WithLogger(discardLogger()))
	conn.dial = func(*Credentials) (session, error) {
		return sess, nil
	}
	return conn
}

// openTestConnection additionally opens the connection.
func openTestConnection(t *testing.T, sess *mockSession) *Connection {
	t.Helper()
	conn := newTestConnection(t, sess)
	require.NoError(t, conn.Open(context.Background()))
	return conn
}
