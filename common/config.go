package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default values applied by Config.WithDefaults.
const (
	DefaultCharset           = "utf-8"
	DefaultConnectTimeout    = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultAcquireTimeout    = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxIdlePerPool    = 8
	DefaultMaxTotalPerPool   = 32
	DefaultMaxReconnect      = 3
	DefaultReconnectInterval = 500 * time.Millisecond
	DefaultReadBufferSize    = 512 * 1024
	DefaultWriteBufferSize   = 512 * 1024
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters for a goFDFS client.
// The struct is treated as immutable once the client is constructed.
type Config struct {
	// Trackers is the ordered list of tracker endpoints ("host:port").
	// Each operation starts at the next tracker round-robin and walks
	// the list in this order from there; on connect failure the next
	// one is used.
	Trackers []string

	// Charset is the text encoding for variable-length string fields
	// on the wire (group names, paths, metadata). Default "utf-8".
	Charset string

	// Per-I/O deadlines
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// AcquireTimeout bounds how long an operation waits for a pooled
	// connection when the pool is at capacity.
	AcquireTimeout time.Duration

	// Pool sizing per endpoint
	MaxIdlePerPool  int
	MaxTotalPerPool int

	// IdleTimeout is the idle-eviction threshold for pooled connections.
	IdleTimeout time.Duration

	// Reconnect policy. Reconnects happen only before an exchange
	// begins, never mid-frame.
	EnableReconnect   bool
	MaxReconnect      int
	ReconnectInterval time.Duration

	// TCP tuning
	TCPNoDelay         bool
	TCPKeepAlivePeriod time.Duration
	ReadBufferSize     int
	WriteBufferSize    int

	// Logging configuration
	LogLevel string
}

// WithDefaults returns a copy of the config with every zero field
// replaced by its default value.
func (c Config) WithDefaults() Config {
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxIdlePerPool == 0 {
		c.MaxIdlePerPool = DefaultMaxIdlePerPool
	}
	if c.MaxTotalPerPool == 0 {
		c.MaxTotalPerPool = DefaultMaxTotalPerPool
	}
	if c.MaxReconnect == 0 {
		c.MaxReconnect = DefaultMaxReconnect
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Validate checks the configuration for values the client cannot work
// with. It returns a *ConfigError describing the first offending field.
func (c Config) Validate() error {
	if len(c.Trackers) == 0 {
		return &ConfigError{Field: "Trackers", Reason: "at least one tracker endpoint is required"}
	}
	for i, tr := range c.Trackers {
		if tr == "" {
			return &ConfigError{Field: "Trackers", Reason: fmt.Sprintf("endpoint %d is empty", i)}
		}
	}
	if c.MaxTotalPerPool < 0 || c.MaxIdlePerPool < 0 {
		return &ConfigError{Field: "MaxIdlePerPool/MaxTotalPerPool", Reason: "pool sizes must not be negative"}
	}
	if c.MaxIdlePerPool > c.MaxTotalPerPool && c.MaxTotalPerPool != 0 {
		return &ConfigError{Field: "MaxIdlePerPool", Reason: "must not exceed MaxTotalPerPool"}
	}
	if c.EnableReconnect && c.MaxReconnect < 0 {
		return &ConfigError{Field: "MaxReconnect", Reason: "must not be negative"}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Trackers")
	for i, tr := range c.Trackers {
		addField(strconv.Itoa(i), tr)
	}

	addSection("Protocol")
	addField("Charset", c.Charset)

	addSection("Timeouts")
	addField("Connect", c.ConnectTimeout.String())
	addField("Read", c.ReadTimeout.String())
	addField("Write", c.WriteTimeout.String())
	addField("Acquire", c.AcquireTimeout.String())

	addSection("Pooling")
	addField("Max Idle Per Pool", strconv.Itoa(c.MaxIdlePerPool))
	addField("Max Total Per Pool", strconv.Itoa(c.MaxTotalPerPool))
	addField("Idle Timeout", c.IdleTimeout.String())

	addSection("Reconnect")
	addField("Enabled", strconv.FormatBool(c.EnableReconnect))
	addField("Max Attempts", strconv.Itoa(c.MaxReconnect))
	addField("Interval", c.ReconnectInterval.String())

	addSection("TCP")
	addField("No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("Keep Alive Period", c.TCPKeepAlivePeriod.String())
	addField("Read Buffer", strconv.Itoa(c.ReadBufferSize))
	addField("Write Buffer", strconv.Itoa(c.WriteBufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
