package dbtclickhouse

// Version is the adapter version reported to the server. It is embedded into
// the client info at dial time so server-side logs can attribute sessions.
const Version = "1.0.0"

// clientProduct is the product name paired with Version in the client info.
const clientProduct = "dbt-clickhouse"
