package protocol

import (
	"bytes"
)

// EncodeMetadata encodes key-value pairs into the FastDFS metadata
// wire format: key<0x02>value<0x01>key<0x02>value<0x01>. Keys are
// truncated to 64 bytes and values to 256 bytes. Returns nil for an
// empty map.
func (c *Codec) EncodeMetadata(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for key, value := range meta {
		k, err := c.EncodeString(key)
		if err != nil {
			return nil, err
		}
		v, err := c.EncodeString(value)
		if err != nil {
			return nil, err
		}
		if len(k) > MaxMetaNameLen {
			k = k[:MaxMetaNameLen]
		}
		if len(v) > MaxMetaValueLen {
			v = v[:MaxMetaValueLen]
		}
		buf.Write(k)
		buf.WriteByte(FieldSeparator)
		buf.Write(v)
		buf.WriteByte(RecordSeparator)
	}
	return buf.Bytes(), nil
}

// DecodeMetadata is the inverse of EncodeMetadata. Records that do not
// consist of exactly one key and one value are skipped.
func (c *Codec) DecodeMetadata(data []byte) (map[string]string, error) {
	meta := make(map[string]string)
	if len(data) == 0 {
		return meta, nil
	}

	for _, record := range bytes.Split(data, []byte{RecordSeparator}) {
		if len(record) == 0 {
			continue
		}
		fields := bytes.Split(record, []byte{FieldSeparator})
		if len(fields) != 2 {
			continue
		}
		key, err := c.DecodeString(fields[0])
		if err != nil {
			return nil, err
		}
		value, err := c.DecodeString(fields[1])
		if err != nil {
			return nil, err
		}
		meta[key] = value
	}
	return meta, nil
}
