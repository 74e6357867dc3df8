// Package transport implements the connection layer of the goFDFS
// client: the per-exchange framing loop on a single TCP connection, the
// connector abstraction that dials and tunes sockets, the per-endpoint
// connection pool and the download sinks for streamed response bodies.
//
// Key Components:
//
//   - IConnector: transport-specific dialing and socket tuning. The
//     package ships a TCP connector applying TCP_NODELAY, keep-alive
//     and the configured socket buffer sizes.
//
//   - Connection: one socket, one exchange at a time. Exchange writes
//     header and body in a single vectored write, streams the optional
//     request payload in bounded chunks, then reads the response header
//     and delivers the body either buffered or chunk by chunk into the
//     response's sink. Any mid-frame failure marks the connection
//     Broken; the pool discards it.
//
//   - Pool: a bounded per-endpoint multiset of idle connections with
//     acquire/release, a liveness check, idle expiry and an optional
//     bounded reconnect policy applied before (never during) an
//     exchange.
//
//   - Sinks: WriterSink, BufferSink and FileSink. FileSink decouples
//     network reads from disk latency with a bounded chunk queue and a
//     single drain goroutine; a full queue blocks the protocol reader,
//     which is the intended backpressure.
//
// Thread Safety:
//
//	A Connection serializes concurrent Exchange calls internally.
//	Pools are safe for concurrent use. Sinks are driven by a single
//	exchange and are not otherwise synchronized.
package transport
