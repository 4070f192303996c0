package dbtclickhouse

import "errors"

// Error taxonomy for the adapter. Callers match with errors.Is; the text of
// the underlying server error is preserved (trimmed) in the wrapped message
// so operators can correlate with server-side logs.
var (
	// ErrConfiguration indicates an invalid credential combination. It is
	// returned at validation time, before any network activity, and is never
	// retried.
	ErrConfiguration = errors.New("dbt-clickhouse: invalid configuration")

	// ErrConnection indicates a failure to establish a session. The
	// connection is left in StateFail.
	ErrConnection = errors.New("dbt-clickhouse: failed to connect")

	// ErrQuery indicates the server rejected or failed a statement. The
	// connection is released before this error propagates, so the caller
	// must re-open before retrying.
	ErrQuery = errors.New("dbt-clickhouse: query failed")

	// ErrRuntime indicates an unexpected failure during execution, such as
	// a transport drop. The connection is unconditionally released.
	ErrRuntime = errors.New("dbt-clickhouse: runtime error")

	// ErrNotOpen indicates a statement was attempted against a connection
	// that is not in StateOpen.
	ErrNotOpen = errors.New("dbt-clickhouse: connection is not open")
)

// isAdapterError reports whether err already belongs to the adapter's
// taxonomy. The error boundary re-raises such errors unchanged instead of
// wrapping them a second time.
func isAdapterError(err error) bool {
	for _, kind := range []error{ErrConfiguration, ErrConnection, ErrQuery, ErrRuntime, ErrNotOpen} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
