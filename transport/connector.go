package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/goFDFS/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnector defines the interface for transport-specific connection
// operations. Tests substitute their own implementation.
type IConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// Upgrade applies protocol-specific settings to an established connection
	Upgrade(conn net.Conn, config common.Config) error
}

// -----------------------------------------------------------
// TCP connector
// -----------------------------------------------------------

// tcpConnector implements the IConnector interface for TCP sockets
type tcpConnector struct{}

// NewTCPConnector creates the default TCP connector.
func NewTCPConnector() IConnector {
	return &tcpConnector{}
}

func (c *tcpConnector) GetName() string {
	return "tcp"
}

func (c *tcpConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", endpoint)
}

func (c *tcpConnector) Upgrade(conn net.Conn, config common.Config) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}
	if config.TCPKeepAlivePeriod > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(config.TCPKeepAlivePeriod); err != nil {
			return err
		}
	}
	if config.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}
	if config.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}
	return nil
}
