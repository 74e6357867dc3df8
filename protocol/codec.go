package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/ValentinKolb/goFDFS/common"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Codec converts between Go strings and the on-wire byte representation
// of textual fields, honoring the configured charset. A nil encoding
// means UTF-8 pass-through.
type Codec struct {
	enc encoding.Encoding
}

// NewCodec creates a codec for the given charset name ("utf-8",
// "gbk", ...). The empty string and any UTF-8 spelling yield the
// pass-through codec.
func NewCodec(charset string) (*Codec, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return &Codec{}, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, &common.ConfigError{Field: "Charset", Reason: "unknown charset " + charset}
	}
	return &Codec{enc: enc}, nil
}

// EncodeString converts a string to its wire bytes.
func (c *Codec) EncodeString(s string) ([]byte, error) {
	if c.enc == nil {
		return []byte(s), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, &common.ProtocolError{Reason: "charset encode: " + err.Error()}
	}
	return out, nil
}

// DecodeString converts wire bytes back into a string.
func (c *Codec) DecodeString(b []byte) (string, error) {
	if c.enc == nil {
		return string(b), nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", &common.ProtocolError{Reason: "charset decode: " + err.Error()}
	}
	return string(out), nil
}

// PadString encodes s and fits it into a fixed-width field of n bytes,
// NUL padded, truncated if it is too long.
func (c *Codec) PadString(s string, n int) ([]byte, error) {
	raw, err := c.EncodeString(s)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	copy(buf, raw)
	return buf, nil
}

// TrimString strips trailing NUL bytes from a fixed-width field and
// decodes the remainder.
func (c *Codec) TrimString(b []byte) (string, error) {
	return c.DecodeString(bytes.TrimRight(b, "\x00"))
}

// --------------------------------------------------------------------------
// Integer helpers
// --------------------------------------------------------------------------

// putInt64 appends an 8-byte big-endian integer to buf.
func putInt64(buf *bytes.Buffer, n int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	buf.Write(b[:])
}

// getInt64 reads an 8-byte big-endian integer.
func getInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b[:8]))
}

// getInt32 reads a 4-byte big-endian integer.
func getInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b[:4]))
}
