package dbtclickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
)

// Status is the outcome marker of a statement execution. The native protocol
// reports no structured per-statement status, so StatusOK is the only value.
type Status string

// StatusOK marks a successfully executed statement.
const StatusOK Status = "OK"

// maxLoggedSQL caps how much statement text goes into a debug log line.
const maxLoggedSQL = 512

// execConfig collects per-statement options.
type execConfig struct {
	comment string
	queryID string
	params  []any
}

// ExecOption configures a single statement execution.
type ExecOption func(*execConfig)

// WithComment appends a trace comment to the statement text before it is
// sent, so the annotation shows up in the server's query log.
func WithComment(comment string) ExecOption {
	return func(cfg *execConfig) {
		cfg.comment = comment
	}
}

// WithQueryID sets the server-side query ID for the statement. Without this
// option a random UUID is assigned, so every statement can be correlated
// with the server's query log or killed by ID.
func WithQueryID(id string) ExecOption {
	return func(cfg *execConfig) {
		cfg.queryID = id
	}
}

// WithParams supplies statement bindings. Positional parameters are passed
// as-is; named parameters use the driver's named-value helpers.
func WithParams(params ...any) ExecOption {
	return func(cfg *execConfig) {
		cfg.params = params
	}
}

func newExecConfig(opts []ExecOption) execConfig {
	cfg := execConfig{queryID: uuid.NewString()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ExecuteFetch runs a statement and materializes its result rows into a
// Table. The returned status is always StatusOK on success. On any failure
// the connection is released and the error carries one of the adapter's
// error kinds.
func (c *Connection) ExecuteFetch(ctx context.Context, query string, opts ...ExecOption) (Status, *Table, error) {
	cfg := newExecConfig(opts)
	query = annotate(query, cfg.comment)

	handle, err := c.acquire()
	if err != nil {
		return "", nil, err
	}

	var table *Table
	err = c.withErrorBoundary(query, func() error {
		c.logger.Debug("executing statement",
			"connection", c.name, "query_id", cfg.queryID, "sql", truncateForLog(query))

		start := time.Now()
		rows, err := handle.Query(queryContext(ctx, cfg), query, cfg.params...)
		if err != nil {
			return err
		}
		defer rows.Close()

		table, err = materializeRows(rows)
		if err != nil {
			return err
		}

		c.logger.Debug("statement finished",
			"connection", c.name, "status", StatusOK, "elapsed_seconds", time.Since(start).Seconds())
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return StatusOK, table, nil
}

// ExecuteOnly runs a statement and discards any result data. No table is
// materialized; use it for DDL and DML where the caller does not need rows.
// Failure semantics are identical to ExecuteFetch.
func (c *Connection) ExecuteOnly(ctx context.Context, query string, opts ...ExecOption) (Status, error) {
	cfg := newExecConfig(opts)
	query = annotate(query, cfg.comment)

	handle, err := c.acquire()
	if err != nil {
		return "", err
	}

	err = c.withErrorBoundary(query, func() error {
		c.logger.Debug("executing statement",
			"connection", c.name, "query_id", cfg.queryID, "sql", truncateForLog(query))

		start := time.Now()
		if err := handle.Exec(queryContext(ctx, cfg), query, cfg.params...); err != nil {
			return err
		}

		c.logger.Debug("statement finished",
			"connection", c.name, "status", StatusOK, "elapsed_seconds", time.Since(start).Seconds())
		return nil
	})
	if err != nil {
		return "", err
	}
	return StatusOK, nil
}

// Begin starts a transaction. ClickHouse has no client-driven multi-statement
// transaction model; this exists to satisfy the uniform session-lifecycle
// contract and never fails.
func (c *Connection) Begin() error {
	return nil
}

// Commit commits a transaction. A no-op, for the same reason as Begin.
func (c *Connection) Commit() error {
	return nil
}

// queryContext attaches the statement's query ID to the driver context.
func queryContext(ctx context.Context, cfg execConfig) context.Context {
	return clickhouse.Context(ctx, clickhouse.WithQueryID(cfg.queryID))
}

// annotate appends the caller-supplied trace comment to the statement text.
func annotate(query, comment string) string {
	if comment == "" {
		return query
	}
	return query + "\n/* " + comment + " */"
}

// truncateForLog shortens statement text for debug logging so log size stays
// bounded regardless of statement size.
func truncateForLog(query string) string {
	if len(query) <= maxLoggedSQL {
		return query
	}
	return query[:maxLoggedSQL] + "..."
}
