package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/goFDFS/common"
	"github.com/ValentinKolb/goFDFS/protocol"
)

// chunkSize bounds how much of a streamed payload is held in memory at
// once, in either direction.
const chunkSize = 64 * 1024

// State is the lifecycle state of a Connection.
type State int32

const (
	StateIdle State = iota
	StateInUse
	StateBroken
	StateClosed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in-use"
	case StateBroken:
		return "broken"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection owns one socket to a tracker or storage server and runs
// one exchange at a time over it. Concurrent Exchange calls are
// serialized by the connection's own mutex; the pool never hands the
// same connection to two operations.
//
// The contract is Connect/Exchange/Close. A connection that fails
// mid-frame transitions to Broken and must be discarded; the zero-cost
// way to get a fresh one is to release it to the pool and acquire
// again.
type Connection struct {
	endpoint  string
	connector IConnector
	config    common.Config
	codec     *protocol.Codec

	mu       sync.Mutex // the in-flight slot: one exchange at a time
	conn     net.Conn
	state    atomic.Int32
	lastUsed atomic.Int64 // unix nanos of last completed exchange
}

// NewConnection creates an unconnected Connection for the endpoint.
func NewConnection(endpoint string, connector IConnector, config common.Config, codec *protocol.Codec) *Connection {
	c := &Connection{
		endpoint:  endpoint,
		connector: connector,
		config:    config,
		codec:     codec,
	}
	c.lastUsed.Store(time.Now().UnixNano())
	return c
}

// Endpoint returns the "host:port" address this connection talks to.
func (c *Connection) Endpoint() string { return c.endpoint }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// LastUsed returns when the connection last completed an exchange.
func (c *Connection) LastUsed() time.Time { return time.Unix(0, c.lastUsed.Load()) }

func (c *Connection) markInUse() { c.state.Store(int32(StateInUse)) }
func (c *Connection) markIdle()  { c.state.Store(int32(StateIdle)) }
func (c *Connection) markBroken() {
	c.state.Store(int32(StateBroken))
}

// Connect establishes the TCP connection, applying the reconnect
// policy if one is configured. It never runs while a frame is on the
// wire.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if c.State() == StateClosed {
		return common.ErrPoolClosed
	}

	attempts := 1
	if c.config.EnableReconnect {
		attempts += c.config.MaxReconnect
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.ReconnectInterval):
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
		conn, err := c.connector.Connect(dialCtx, c.endpoint)
		cancel()
		if err != nil {
			lastErr = err
			Logger.Debugf("connect to %s failed (attempt %d/%d): %v", c.endpoint, i+1, attempts, err)
			continue
		}

		if err := c.connector.Upgrade(conn, c.config); err != nil {
			conn.Close()
			lastErr = err
			continue
		}

		c.conn = conn
		c.state.Store(int32(StateIdle))
		return nil
	}

	return &common.ConnectError{Endpoint: c.endpoint, Attempts: attempts, Err: lastErr}
}

// Close closes the socket and marks the connection Closed. Safe to call
// multiple times.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateClosed))
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsAvailable reports whether the connection is connected, idle and
// not observably closed. The probe is a 1ms read: a timeout means the
// peer is quiet but alive, data or EOF means the framing is gone.
func (c *Connection) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.State() != StateIdle {
		return false
	}

	var one [1]byte
	c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	_, err := c.conn.Read(one[:])
	c.conn.SetReadDeadline(time.Time{})

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Either the peer closed, or it sent bytes outside an exchange.
	return false
}

// --------------------------------------------------------------------------
// Exchange
// --------------------------------------------------------------------------

// Exchange performs exactly one request/response round trip. The
// request body is framed with the 10-byte header; a streamed request
// payload is written in bounded chunks after the body. The response
// body is either buffered and decoded into resp, or - when resp
// implements protocol.IStreamedResponse - forwarded chunk by chunk
// into its sink.
//
// A nonzero response status drains the declared body and returns a
// *common.ServerError; the connection stays usable. Every other
// failure mid-frame marks the connection Broken.
func (c *Connection) Exchange(ctx context.Context, req protocol.IRequest, resp protocol.IResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	switch c.State() {
	case StateClosed:
		return common.ErrPoolClosed
	case StateBroken:
		return &common.ProtocolError{Reason: "exchange on broken connection"}
	}
	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return err
		}
	}

	c.markInUse()

	// Encoding happens before the first byte is written, so encode
	// failures leave the connection healthy.
	body, err := req.EncodeBody(c.codec)
	if err != nil {
		c.markIdle()
		return err
	}

	var (
		stream    io.Reader
		streamLen int64
	)
	if sr, ok := req.(protocol.IStreamedRequest); ok {
		stream, streamLen = sr.Stream()
	}

	if err := c.writeRequest(ctx, req.Cmd(), body, stream, streamLen); err != nil {
		c.markBroken()
		return err
	}

	hdr, err := c.readHeader(ctx)
	if err != nil {
		c.markBroken()
		return err
	}

	if hdr.Status != 0 {
		// The error frame still declares a body; drain it so the
		// connection stays frame-aligned and reusable.
		if err := c.drain(ctx, hdr.Length); err != nil {
			c.markBroken()
			return err
		}
		c.touch()
		c.markIdle()
		return common.StatusError(hdr.Status)
	}

	if sr, ok := resp.(protocol.IStreamedResponse); ok {
		if err := c.readStreamed(ctx, hdr.Length, sr.BodySink()); err != nil {
			c.markBroken()
			return err
		}
		sr.SetBodySize(hdr.Length)
	} else {
		if err := c.readBuffered(ctx, hdr, resp); err != nil {
			c.markBroken()
			return err
		}
	}

	c.touch()
	c.markIdle()
	return nil
}

// writeRequest sends header and body in one vectored write, then the
// optional payload stream in chunks.
func (c *Connection) writeRequest(ctx context.Context, cmd byte, body []byte, stream io.Reader, streamLen int64) error {
	header := protocol.EncodeHeader(protocol.Header{
		Length: int64(len(body)) + streamLen,
		Cmd:    cmd,
	})

	c.conn.SetWriteDeadline(c.ioDeadline(ctx, c.config.WriteTimeout))
	buffers := net.Buffers{header, body}
	if _, err := buffers.WriteTo(c.conn); err != nil {
		return c.ioError(ctx, "write", err)
	}

	if stream == nil || streamLen == 0 {
		return nil
	}

	buf := make([]byte, chunkSize)
	remaining := streamLen
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := chunkSize
		if remaining < int64(n) {
			n = int(remaining)
		}
		read, err := io.ReadFull(stream, buf[:n])
		if err != nil {
			return &common.ProtocolError{Reason: "request stream ended early", Err: err}
		}

		c.conn.SetWriteDeadline(c.ioDeadline(ctx, c.config.WriteTimeout))
		if _, err := c.conn.Write(buf[:read]); err != nil {
			return c.ioError(ctx, "write", err)
		}
		remaining -= int64(read)
	}
	return nil
}

// readHeader reads exactly the 10 header bytes of the response.
func (c *Connection) readHeader(ctx context.Context) (protocol.Header, error) {
	var buf [protocol.HeaderLen]byte
	c.conn.SetReadDeadline(c.ioDeadline(ctx, c.config.ReadTimeout))
	if _, err := io.ReadFull(c.conn, buf[:]); err != nil {
		return protocol.Header{}, c.ioError(ctx, "read", err)
	}
	return protocol.DecodeHeader(buf[:])
}

// readBuffered loads the declared body and decodes it into resp.
func (c *Connection) readBuffered(ctx context.Context, hdr protocol.Header, resp protocol.IResponse) error {
	body := []byte(nil)
	if hdr.Length > 0 {
		body = make([]byte, hdr.Length)
		c.conn.SetReadDeadline(c.ioDeadline(ctx, c.config.ReadTimeout))
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return c.ioError(ctx, "read", err)
		}
	}
	return resp.DecodeBody(c.codec, body)
}

// readStreamed forwards exactly length body bytes into the sink.
func (c *Connection) readStreamed(ctx context.Context, length int64, sink protocol.ISink) error {
	if sink == nil {
		return &common.ProtocolError{Reason: "streamed response without sink"}
	}

	buf := make([]byte, chunkSize)
	remaining := length
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			sink.Release()
			return err
		}

		n := chunkSize
		if remaining < int64(n) {
			n = int(remaining)
		}
		c.conn.SetReadDeadline(c.ioDeadline(ctx, c.config.ReadTimeout))
		read, err := io.ReadFull(c.conn, buf[:n])
		if err != nil {
			sink.Release()
			return c.ioError(ctx, "read", err)
		}

		if err := sink.Write(buf[:read]); err != nil {
			sink.Release()
			return &common.StreamError{Err: err}
		}
		remaining -= int64(read)
	}

	if err := sink.Complete(); err != nil {
		return &common.StreamError{Err: err}
	}
	return nil
}

// drain discards length bytes from the connection.
func (c *Connection) drain(ctx context.Context, length int64) error {
	if length <= 0 {
		return nil
	}
	c.conn.SetReadDeadline(c.ioDeadline(ctx, c.config.ReadTimeout))
	if _, err := io.CopyN(io.Discard, c.conn, length); err != nil {
		return c.ioError(ctx, "read", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// ioDeadline combines the configured per-I/O timeout with the context
// deadline, whichever comes first.
func (c *Connection) ioDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// ioError classifies a mid-frame I/O failure: caller cancellation,
// deadline, or a broken frame.
func (c *Connection) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout := c.config.ReadTimeout
		if op == "write" {
			timeout = c.config.WriteTimeout
		}
		return &common.TimeoutError{Op: op, Endpoint: c.endpoint, Timeout: timeout}
	}

	return &common.ProtocolError{Reason: op + " failed", Err: err}
}

// touch records a completed exchange for idle-expiry bookkeeping.
func (c *Connection) touch() {
	c.lastUsed.Store(time.Now().UnixNano())
}
