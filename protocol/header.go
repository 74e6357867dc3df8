package protocol

import (
	"encoding/binary"

	"github.com/ValentinKolb/goFDFS/common"
)

// Header is the fixed 10-byte frame header preceding every request and
// response body.
type Header struct {
	Length int64 // body length, excluding the header itself
	Cmd    byte
	Status byte
}

// EncodeHeader encodes a header into its 10-byte wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.Length))
	buf[8] = h.Cmd
	buf[9] = h.Status
	return buf
}

// DecodeHeader parses a 10-byte wire header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, &common.ProtocolError{Reason: "truncated header"}
	}
	return Header{
		Length: int64(binary.BigEndian.Uint64(data[0:8])),
		Cmd:    data[8],
		Status: data[9],
	}, nil
}
