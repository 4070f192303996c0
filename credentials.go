package dbtclickhouse

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Default credential values, matching what the server itself ships with.
const (
	// DefaultHost is the host used when none is configured.
	DefaultHost = "localhost"
	// DefaultUser is the user used when none is configured.
	DefaultUser = "default"
	// DefaultSchema is the schema used when none is configured.
	DefaultSchema = "default"
	// DefaultConnectTimeout is the dial timeout in seconds.
	DefaultConnectTimeout = 10
	// DefaultSendReceiveTimeout is the statement read timeout in seconds.
	DefaultSendReceiveTimeout = 300
	// DefaultSyncRequestTimeout bounds the open-time ping, in seconds.
	DefaultSyncRequestTimeout = 5
	// DefaultCompressBlockSize is the compression buffer size in bytes.
	DefaultCompressBlockSize = 1048576
)

// Native protocol ports. Used when no port is configured.
const (
	nativePort       = 9000
	nativeSecurePort = 9440
)

// AdapterCredentials is the capability surface the orchestration layer needs
// from any backend's credentials: a type tag, a stable identity field, and a
// secret-free view for diagnostics.
type AdapterCredentials interface {
	// Type returns the backend type tag.
	Type() string
	// UniqueField returns the value used to deduplicate and display
	// connections.
	UniqueField() string
	// Redacted returns a view of the configuration safe for logging. It
	// must never contain secrets.
	Redacted() map[string]any
}

// Credentials describes how to reach a ClickHouse server. The zero value is
// not usable directly; construct with DefaultCredentials or unmarshal from a
// profiles file, then call Validate before opening a connection.
//
// Credentials are immutable after Validate and safe to share read-only
// across connections.
type Credentials struct {
	// TypeName is the backend type tag from the profiles file. If set, it
	// must be "clickhouse".
	TypeName string `yaml:"type"`
	// Host is the server host name.
	Host string `yaml:"host"`
	// Port is the native protocol port. Zero selects the default port for
	// the secure flag (9000, or 9440 with TLS).
	Port int `yaml:"port"`
	// User is the user to authenticate as.
	User string `yaml:"user"`
	// Password is the user's password. It never appears in Redacted output.
	Password string `yaml:"password"`
	// Schema is the single addressable namespace on the server.
	Schema string `yaml:"schema"`
	// Database, if set, must equal Schema. ClickHouse exposes one namespace
	// concept; Validate collapses this field to empty.
	Database string `yaml:"database"`
	// Cluster is an optional cluster name, reported in configuration errors.
	Cluster string `yaml:"cluster"`
	// Secure enables TLS.
	Secure bool `yaml:"secure"`
	// Verify enables server certificate verification when Secure is set.
	Verify bool `yaml:"verify"`
	// ConnectTimeout is the dial timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
	// SendReceiveTimeout is the statement read timeout in seconds.
	SendReceiveTimeout int `yaml:"send_receive_timeout"`
	// SyncRequestTimeout bounds the open-time ping, in seconds.
	SyncRequestTimeout int `yaml:"sync_request_timeout"`
	// CompressBlockSize is the compression buffer size in bytes.
	CompressBlockSize int `yaml:"compress_block_size"`
	// Compression names the wire compression method ("lz4", "zstd", "gzip",
	// "deflate", "br"). Empty disables compression.
	Compression string `yaml:"compression"`
}

// Compile-time capability check.
var _ AdapterCredentials = (*Credentials)(nil)

// DefaultCredentials returns credentials populated with the documented
// defaults. Callers set the fields that differ and then Validate.
func DefaultCredentials() *Credentials {
	return &Credentials{
		Host:               DefaultHost,
		User:               DefaultUser,
		Schema:             DefaultSchema,
		ConnectTimeout:     DefaultConnectTimeout,
		SendReceiveTimeout: DefaultSendReceiveTimeout,
		SyncRequestTimeout: DefaultSyncRequestTimeout,
		CompressBlockSize:  DefaultCompressBlockSize,
	}
}

// Validate fills unset fields with defaults and enforces the credential
// invariants. It must be called once before the credentials are used to open
// a connection; afterwards the Database field is always empty.
func (c *Credentials) Validate() error {
	c.applyDefaults()

	if c.TypeName != "" && c.TypeName != "clickhouse" {
		return fmt.Errorf("%w: credentials are of type %q, expected %q", ErrConfiguration, c.TypeName, "clickhouse")
	}

	// ClickHouse has a single namespace concept, exposed here as Schema.
	// A database value that disagrees is a fatal misconfiguration.
	if c.Database != "" && c.Database != c.Schema {
		return fmt.Errorf(
			"%w: schema: %s, database: %s, cluster: %s: on ClickHouse, database must be omitted or have the same value as schema",
			ErrConfiguration, c.Schema, c.Database, c.Cluster,
		)
	}
	c.Database = ""

	if c.Compression != "" {
		if _, err := compressionMethod(c.Compression); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills zero-valued fields with the documented defaults.
func (c *Credentials) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SendReceiveTimeout <= 0 {
		c.SendReceiveTimeout = DefaultSendReceiveTimeout
	}
	if c.SyncRequestTimeout <= 0 {
		c.SyncRequestTimeout = DefaultSyncRequestTimeout
	}
	if c.CompressBlockSize <= 0 {
		c.CompressBlockSize = DefaultCompressBlockSize
	}
}

// Type returns the backend type tag.
func (c *Credentials) Type() string {
	return "clickhouse"
}

// UniqueField returns the host, the stable identity used to deduplicate and
// display connections.
func (c *Credentials) UniqueField() string {
	return c.Host
}

// Redacted returns the non-secret connection fields for logging. The
// password is deliberately absent.
func (c *Credentials) Redacted() map[string]any {
	return map[string]any{
		"host":   c.Host,
		"port":   c.port(),
		"user":   c.User,
		"schema": c.Schema,
		"secure": c.Secure,
		"verify": c.Verify,
	}
}

// port resolves the configured port, falling back to the native protocol
// default for the secure flag.
func (c *Credentials) port() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Secure {
		return nativeSecurePort
	}
	return nativePort
}

func (c *Credentials) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

func (c *Credentials) sendReceiveTimeout() time.Duration {
	return time.Duration(c.SendReceiveTimeout) * time.Second
}

func (c *Credentials) syncRequestTimeout() time.Duration {
	return time.Duration(c.SyncRequestTimeout) * time.Second
}

// clientOptions builds the native driver options from the credentials. The
// client info carries the adapter name and version for server-side logs.
func (c *Credentials) clientOptions() *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", c.Host, c.port())},
		Auth: clickhouse.Auth{
			Database: c.Schema,
			Username: c.User,
			Password: c.Password,
		},
		DialTimeout:          c.connectTimeout(),
		ReadTimeout:          c.sendReceiveTimeout(),
		MaxCompressionBuffer: c.CompressBlockSize,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: clientProduct, Version: Version},
			},
		},
	}
	if c.Secure {
		opts.TLS = &tls.Config{InsecureSkipVerify: !c.Verify} //nolint:gosec // Verify is an explicit user choice
	}
	if c.Compression != "" {
		// Validate already rejected unknown names.
		method, _ := compressionMethod(c.Compression)
		opts.Compression = &clickhouse.Compression{Method: method}
	}
	return opts
}

// compressionMethod maps a configured compression name onto the native
// driver's method enum.
func compressionMethod(name string) (clickhouse.CompressionMethod, error) {
	switch strings.ToLower(name) {
	case "lz4":
		return clickhouse.CompressionLZ4, nil
	case "zstd":
		return clickhouse.CompressionZSTD, nil
	case "gzip":
		return clickhouse.CompressionGZIP, nil
	case "deflate":
		return clickhouse.CompressionDeflate, nil
	case "br", "brotli":
		return clickhouse.CompressionBrotli, nil
	default:
		return clickhouse.CompressionNone, fmt.Errorf("%w: unsupported compression method %q", ErrConfiguration, name)
	}
}
