// Package protocol implements the FastDFS wire codec: the fixed
// 10-byte frame header, the request body encoders and response body
// decoders for every command the client speaks, the metadata key-value
// wire format and the file-ID helpers.
//
// The package deals purely with bytes; it never touches a socket. The
// transport package drives it from the exchange loop.
//
// Framing:
//
//	bytes 0..7   body length (big-endian uint64)
//	byte  8      command code
//	byte  9      status (0 = success, errno otherwise)
//
// Fixed-width textual fields (group names, IP addresses, file
// extensions, slave prefixes) are NUL padded on encode and NUL trimmed
// on decode. Variable-length textual fields honor the configured
// charset (default UTF-8).
//
// Key Components:
//
//   - Codec: charset-aware string conversion plus the padding and
//     integer helpers every encoder/decoder shares.
//
//   - IRequest / IStreamedRequest: the capability contract of a request
//     (command code, target role, body encoding, optional payload
//     stream of known size).
//
//   - IResponse / IStreamedResponse: the decoding contract of a
//     response; streamed responses deliver their body through an ISink
//     instead of a buffer.
package protocol
