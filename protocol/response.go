package protocol

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/goFDFS/common"
)

// --------------------------------------------------------------------------
// Response contracts
// --------------------------------------------------------------------------

// IResponse is the decoding contract of a response body.
type IResponse interface {
	// DecodeBody populates the response from a fully-buffered body
	DecodeBody(c *Codec, body []byte) error
}

// ISink is the destination of a streamed response body. Write is
// called from the exchange loop as chunks arrive, Complete exactly
// once after the last chunk, Release on abort. A sink must not drop
// bytes; after a write error it must reject further writes.
type ISink interface {
	Write(p []byte) error
	Complete() error
	Release()
}

// IStreamedResponse marks a response whose body is delivered through a
// sink instead of a buffer. DecodeBody is not called for it.
type IStreamedResponse interface {
	IResponse
	// BodySink returns the sink the body bytes are forwarded to
	BodySink() ISink
	// SetBodySize records the number of body bytes that were streamed
	SetBodySize(n int64)
}

// --------------------------------------------------------------------------
// Generic responses
// --------------------------------------------------------------------------

// EmptyResponse is used by the status-only commands (delete, append,
// modify, truncate, set-metadata).
type EmptyResponse struct{}

func (r *EmptyResponse) DecodeBody(*Codec, []byte) error { return nil }

// DownloadResponse forwards the streamed file body into Sink. Size is
// filled by the transport with the number of bytes delivered.
type DownloadResponse struct {
	Sink ISink
	Size int64
}

func (r *DownloadResponse) DecodeBody(*Codec, []byte) error {
	return &common.ProtocolError{Reason: "download response body is streamed"}
}

func (r *DownloadResponse) BodySink() ISink { return r.Sink }

func (r *DownloadResponse) SetBodySize(n int64) { r.Size = n }

// --------------------------------------------------------------------------
// Tracker responses
// --------------------------------------------------------------------------

// StorageServer is a storage endpoint handed out by a tracker.
type StorageServer struct {
	Group          string
	IPAddr         string
	Port           int
	StorePathIndex byte // only meaningful for query-store responses
}

// Endpoint returns the "host:port" address of the storage server.
func (s *StorageServer) Endpoint() string {
	return fmt.Sprintf("%s:%d", s.IPAddr, s.Port)
}

// StorageServerResponse decodes both query-store bodies
// (group 16 + ip 16 + port 8 + store-path-index 1) and
// query-fetch/update bodies, which may omit the trailing index byte.
type StorageServerResponse struct {
	StorageServer
}

func (r *StorageServerResponse) DecodeBody(c *Codec, body []byte) error {
	const minLen = GroupNameMaxLen + IPAddressSize + PkgLenSize
	if len(body) < minLen {
		return &common.ProtocolError{Reason: fmt.Sprintf("storage server body too short: %d bytes", len(body))}
	}

	var err error
	offset := 0
	if r.Group, err = c.TrimString(body[offset : offset+GroupNameMaxLen]); err != nil {
		return err
	}
	offset += GroupNameMaxLen

	if r.IPAddr, err = c.TrimString(body[offset : offset+IPAddressSize]); err != nil {
		return err
	}
	offset += IPAddressSize

	r.Port = int(getInt64(body[offset:]))
	offset += PkgLenSize

	if len(body) > offset {
		r.StorePathIndex = body[offset]
	}
	return nil
}

// GroupInfo is one record of a list-groups response.
type GroupInfo struct {
	Name               string
	TotalMB            int64
	FreeMB             int64
	TrunkFreeMB        int64
	StorageCount       int64
	StoragePort        int64
	StorageHTTPPort    int64
	ActiveCount        int64
	CurrentWriteServer int64
	StorePathCount     int64
	SubdirCountPerPath int64
	CurrentTrunkFileID int64
}

// ListGroupsResponse decodes a sequence of fixed-size group records.
type ListGroupsResponse struct {
	Groups []GroupInfo
}

func (r *ListGroupsResponse) DecodeBody(c *Codec, body []byte) error {
	if len(body)%groupStatSize != 0 {
		return &common.ProtocolError{Reason: fmt.Sprintf("list-groups body length %d is not a multiple of %d", len(body), groupStatSize)}
	}

	r.Groups = make([]GroupInfo, 0, len(body)/groupStatSize)
	for off := 0; off < len(body); off += groupStatSize {
		rec := body[off : off+groupStatSize]

		name, err := c.TrimString(rec[:GroupNameMaxLen+1])
		if err != nil {
			return err
		}

		ints := rec[GroupNameMaxLen+1:]
		r.Groups = append(r.Groups, GroupInfo{
			Name:               name,
			TotalMB:            getInt64(ints[0:]),
			FreeMB:             getInt64(ints[8:]),
			TrunkFreeMB:        getInt64(ints[16:]),
			StorageCount:       getInt64(ints[24:]),
			StoragePort:        getInt64(ints[32:]),
			StorageHTTPPort:    getInt64(ints[40:]),
			ActiveCount:        getInt64(ints[48:]),
			CurrentWriteServer: getInt64(ints[56:]),
			StorePathCount:     getInt64(ints[64:]),
			SubdirCountPerPath: getInt64(ints[72:]),
			CurrentTrunkFileID: getInt64(ints[80:]),
		})
	}
	return nil
}

// StorageInfo is one record of a list-storages response. The 42
// traffic counters between the config block and the trunk flag are
// skipped on decode.
type StorageInfo struct {
	Status             byte
	ID                 string
	IPAddr             string
	DomainName         string
	SrcIPAddr          string
	Version            string
	JoinTime           time.Time
	UpTime             time.Time
	TotalMB            int64
	FreeMB             int64
	UploadPriority     int64
	StorePathCount     int64
	SubdirCountPerPath int64
	CurrentWritePath   int64
	StoragePort        int64
	StorageHTTPPort    int64
	IfTrunkServer      bool
}

// ListStoragesResponse decodes a sequence of fixed-size storage
// records.
type ListStoragesResponse struct {
	Storages []StorageInfo
}

func (r *ListStoragesResponse) DecodeBody(c *Codec, body []byte) error {
	if len(body)%storageStatSize != 0 {
		return &common.ProtocolError{Reason: fmt.Sprintf("list-storages body length %d is not a multiple of %d", len(body), storageStatSize)}
	}

	r.Storages = make([]StorageInfo, 0, len(body)/storageStatSize)
	for off := 0; off < len(body); off += storageStatSize {
		rec := body[off : off+storageStatSize]
		var (
			info StorageInfo
			err  error
		)

		info.Status = rec[0]
		pos := 1
		if info.ID, err = c.TrimString(rec[pos : pos+StorageIDMaxSize]); err != nil {
			return err
		}
		pos += StorageIDMaxSize
		if info.IPAddr, err = c.TrimString(rec[pos : pos+IPAddressSize]); err != nil {
			return err
		}
		pos += IPAddressSize
		if info.DomainName, err = c.TrimString(rec[pos : pos+DomainNameMaxSize]); err != nil {
			return err
		}
		pos += DomainNameMaxSize
		if info.SrcIPAddr, err = c.TrimString(rec[pos : pos+IPAddressSize]); err != nil {
			return err
		}
		pos += IPAddressSize
		if info.Version, err = c.TrimString(rec[pos : pos+VersionSize]); err != nil {
			return err
		}
		pos += VersionSize

		info.JoinTime = time.Unix(getInt64(rec[pos:]), 0)
		info.UpTime = time.Unix(getInt64(rec[pos+8:]), 0)
		info.TotalMB = getInt64(rec[pos+16:])
		info.FreeMB = getInt64(rec[pos+24:])
		info.UploadPriority = getInt64(rec[pos+32:])
		info.StorePathCount = getInt64(rec[pos+40:])
		info.SubdirCountPerPath = getInt64(rec[pos+48:])
		info.CurrentWritePath = getInt64(rec[pos+56:])
		info.StoragePort = getInt64(rec[pos+64:])
		info.StorageHTTPPort = getInt64(rec[pos+72:])

		info.IfTrunkServer = rec[storageStatSize-1] != 0

		r.Storages = append(r.Storages, info)
	}
	return nil
}

// --------------------------------------------------------------------------
// Storage responses
// --------------------------------------------------------------------------

// UploadResponse carries the location the storage server stored a new
// file under.
type UploadResponse struct {
	Group string
	Path  string
}

// FileID returns the combined "group/remote-path" identifier.
func (r *UploadResponse) FileID() string {
	return JoinFileID(r.Group, r.Path)
}

func (r *UploadResponse) DecodeBody(c *Codec, body []byte) error {
	if len(body) <= GroupNameMaxLen {
		return &common.ProtocolError{Reason: fmt.Sprintf("upload response body too short: %d bytes", len(body))}
	}

	var err error
	if r.Group, err = c.TrimString(body[:GroupNameMaxLen]); err != nil {
		return err
	}
	if r.Path, err = c.DecodeString(body[GroupNameMaxLen:]); err != nil {
		return err
	}
	return nil
}

// MetadataResponse carries the decoded metadata of a file. A zero
// length body decodes to an empty map.
type MetadataResponse struct {
	Meta map[string]string
}

func (r *MetadataResponse) DecodeBody(c *Codec, body []byte) error {
	meta, err := c.DecodeMetadata(body)
	if err != nil {
		return err
	}
	r.Meta = meta
	return nil
}

// FileInfo describes a stored file.
type FileInfo struct {
	Size       int64
	CreateTime time.Time
	CRC32      uint32
	SourceIP   string
}

// FileInfoResponse decodes a query-file-info body:
// size 8 + create-time 8 + crc32 4 + source ip 16.
type FileInfoResponse struct {
	FileInfo
}

func (r *FileInfoResponse) DecodeBody(c *Codec, body []byte) error {
	const want = 8 + 8 + 4 + IPAddressSize
	if len(body) < want {
		return &common.ProtocolError{Reason: fmt.Sprintf("file info body too short: %d bytes", len(body))}
	}

	r.Size = getInt64(body[0:])
	r.CreateTime = time.Unix(getInt64(body[8:]), 0)
	r.CRC32 = uint32(getInt32(body[16:]))

	ip, err := c.TrimString(body[20 : 20+IPAddressSize])
	if err != nil {
		return err
	}
	r.SourceIP = ip
	return nil
}
