package client

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/goFDFS/common"
	"github.com/ValentinKolb/goFDFS/protocol"
	"github.com/ValentinKolb/goFDFS/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("client")

// Client is a FastDFS client: the executor composing tracker and
// storage exchanges into the high-level operations, and the owner of
// the per-endpoint connection pools.
type Client struct {
	config    common.Config
	codec     *protocol.Codec
	connector transport.IConnector

	pools       *xsync.MapOf[string, *transport.Pool]
	nextTracker atomic.Uint64
	closed      atomic.Bool
}

// New creates a client from the configuration. Zero config fields get
// their defaults; an unusable configuration fails with *ConfigError.
func New(config common.Config) (*Client, error) {
	return NewWithConnector(config, transport.NewTCPConnector())
}

// NewWithConnector creates a client with a custom connector. Used by
// tests and by applications that tunnel the protocol.
func NewWithConnector(config common.Config, connector transport.IConnector) (*Client, error) {
	cfg := config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := protocol.NewCodec(cfg.Charset)
	if err != nil {
		return nil, err
	}

	if err := common.InitLoggers(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &Client{
		config:    cfg,
		codec:     codec,
		connector: connector,
		pools:     xsync.NewMapOf[string, *transport.Pool](),
	}, nil
}

// Config returns the effective (defaulted) configuration.
func (c *Client) Config() common.Config { return c.config }

// Close shuts every pool down. Operations issued afterwards fail with
// ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.pools.Range(func(endpoint string, pool *transport.Pool) bool {
		pool.Close()
		c.pools.Delete(endpoint)
		return true
	})
	return nil
}

// checkClosed returns an error once the client has been closed.
func (c *Client) checkClosed() error {
	if c.closed.Load() {
		return common.ErrClientClosed
	}
	return nil
}

// --------------------------------------------------------------------------
// Exchange plumbing
// --------------------------------------------------------------------------

// pool returns the connection pool for an endpoint, creating it on
// first contact.
func (c *Client) pool(endpoint string) *transport.Pool {
	p, _ := c.pools.LoadOrCompute(endpoint, func() *transport.Pool {
		Logger.Infof("creating connection pool for %s", endpoint)
		return transport.NewPool(endpoint, c.connector, c.config, c.codec)
	})
	return p
}

// Execute performs one exchange against the given endpoint on a pooled
// connection. This is the generic escape hatch under the named
// operations; resp is populated on success.
func (c *Client) Execute(ctx context.Context, endpoint string, req protocol.IRequest, resp protocol.IResponse) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	pool := c.pool(endpoint)
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = conn.Exchange(ctx, req, resp)
	pool.Release(conn, err)
	return err
}

// trackerExchange runs a tracker request against the configured
// trackers: round-robin start, falling through to the next tracker on
// connect failure, each tried at most once. The first tracker that
// takes the exchange decides the outcome.
func (c *Client) trackerExchange(ctx context.Context, req protocol.IRequest, resp protocol.IResponse) error {
	trackers := c.config.Trackers
	start := c.nextTracker.Add(1)

	var lastErr error
	for i := 0; i < len(trackers); i++ {
		endpoint := trackers[(start+uint64(i))%uint64(len(trackers))]

		err := c.Execute(ctx, endpoint, req, resp)

		var connErr *common.ConnectError
		if errors.As(err, &connErr) {
			Logger.Warningf("tracker %s unreachable, trying next: %v", endpoint, err)
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}
