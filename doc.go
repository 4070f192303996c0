// Package dbtclickhouse manages the connection lifecycle and statement
// execution for a ClickHouse analytical database, as used by a dbt-style
// build orchestrator.
//
// The package owns four concerns:
//
//   - Validated credentials describing how to reach the server
//     (host, port, auth, TLS, timeouts, compression)
//   - A connection handle that wraps one native driver session and tracks
//     its state (init, open, fail, closed)
//   - A scoped error boundary around every statement that translates driver
//     failures into a small error taxonomy and guarantees the connection is
//     released on any failure path
//   - Materialization of driver rows into a named, column-ordered table,
//     with optional export to CSV, TSV, Parquet, or XLSX files
//
// # Basic Usage
//
//	creds := dbtclickhouse.DefaultCredentials()
//	creds.Host = "db1"
//	if err := creds.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	conn := dbtclickhouse.NewConnection("main", creds)
//	if err := conn.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Release()
//
//	status, table, err := conn.ExecuteFetch(ctx, "SELECT 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(status, table.NumRows())
//
// Credentials may also be resolved from a dbt-style profiles file; see
// LoadProfiles.
//
// # Error Semantics
//
// Every statement runs inside the error boundary. On a server-side error the
// connection is released and ErrQuery is returned with the server's message;
// on any other failure the connection is released and ErrRuntime wraps the
// cause. A connection is therefore reusable only after a clean return, and a
// handle that failed must be re-opened before the next statement.
//
// # Concurrency
//
// One Connection belongs to one worker goroutine. Cancel and Release are the
// only methods that may be called from another goroutine; Cancel forcibly
// disconnects the session so an in-flight statement fails instead of hanging.
package dbtclickhouse
