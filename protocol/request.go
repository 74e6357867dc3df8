package protocol

import (
	"bytes"
	"io"

	"github.com/ValentinKolb/goFDFS/common"
)

// Role identifies which server role a request targets.
type Role byte

const (
	RoleTracker Role = iota
	RoleStorage
)

// String returns the string representation of a Role.
func (r Role) String() string {
	switch r {
	case RoleTracker:
		return "tracker"
	case RoleStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Request contracts
// --------------------------------------------------------------------------

// IRequest is the capability contract of a request: a command code, a
// target role and a body encoding. The transport layer frames the body
// with the 10-byte header.
type IRequest interface {
	// Cmd returns the protocol command code
	Cmd() byte
	// Role returns which server role the request must be sent to
	Role() Role
	// EncodeBody serializes the request parameters (excluding any
	// streamed payload) using the given codec
	EncodeBody(c *Codec) ([]byte, error)
}

// IStreamedRequest is implemented by requests that carry a payload
// streamed after the encoded body. The payload size must be known
// before the header is written; Stream is read but never closed.
type IStreamedRequest interface {
	IRequest
	// Stream returns the payload reader and its exact length in bytes
	Stream() (io.Reader, int64)
}

// checkStreamSize rejects unknown-length payloads before any byte hits
// the wire.
func checkStreamSize(size int64) error {
	if size < 0 {
		return &common.ConfigError{Field: "Size", Reason: "stream length must be known before upload"}
	}
	return nil
}

// --------------------------------------------------------------------------
// Tracker requests
// --------------------------------------------------------------------------

// QueryStoreRequest asks a tracker for a storage server to upload to,
// optionally pinned to a group.
type QueryStoreRequest struct {
	Group string // empty = let the tracker pick a group
}

func (r *QueryStoreRequest) Cmd() byte {
	if r.Group == "" {
		return CmdTrackerQueryStoreWithoutGroup
	}
	return CmdTrackerQueryStoreWithGroup
}

func (r *QueryStoreRequest) Role() Role { return RoleTracker }

func (r *QueryStoreRequest) EncodeBody(c *Codec) ([]byte, error) {
	if r.Group == "" {
		return nil, nil
	}
	return c.PadString(r.Group, GroupNameMaxLen)
}

// QueryFetchRequest asks a tracker which storage server holds a file,
// either for reading (query-fetch) or for mutation (query-update).
type QueryFetchRequest struct {
	ForUpdate bool
	Group     string
	Path      string
}

func (r *QueryFetchRequest) Cmd() byte {
	if r.ForUpdate {
		return CmdTrackerQueryUpdate
	}
	return CmdTrackerQueryFetchOne
}

func (r *QueryFetchRequest) Role() Role { return RoleTracker }

func (r *QueryFetchRequest) EncodeBody(c *Codec) ([]byte, error) {
	group, err := c.PadString(r.Group, GroupNameMaxLen)
	if err != nil {
		return nil, err
	}
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(group)
	buf.Write(path)
	return buf.Bytes(), nil
}

// ListGroupsRequest lists every storage group the tracker knows about.
type ListGroupsRequest struct{}

func (r *ListGroupsRequest) Cmd() byte  { return CmdTrackerListGroups }
func (r *ListGroupsRequest) Role() Role { return RoleTracker }

func (r *ListGroupsRequest) EncodeBody(*Codec) ([]byte, error) {
	return nil, nil
}

// ListStoragesRequest lists the storage servers of one group,
// optionally narrowed to a single storage ID.
type ListStoragesRequest struct {
	Group     string
	StorageID string
}

func (r *ListStoragesRequest) Cmd() byte  { return CmdTrackerListStorages }
func (r *ListStoragesRequest) Role() Role { return RoleTracker }

func (r *ListStoragesRequest) EncodeBody(c *Codec) ([]byte, error) {
	group, err := c.PadString(r.Group, GroupNameMaxLen)
	if err != nil {
		return nil, err
	}
	if r.StorageID == "" {
		return group, nil
	}
	id, err := c.EncodeString(r.StorageID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(group)
	buf.Write(id)
	return buf.Bytes(), nil
}

// --------------------------------------------------------------------------
// Storage requests
// --------------------------------------------------------------------------

// UploadRequest uploads a new file to a storage server. The payload is
// streamed; Size must be known up front.
type UploadRequest struct {
	StorePathIndex byte // from the tracker's query-store response
	Ext            string
	Appender       bool // upload as appender file (cmd 23 instead of 11)
	Size           int64
	Reader         io.Reader
}

func (r *UploadRequest) Cmd() byte {
	if r.Appender {
		return CmdStorageUploadAppenderFile
	}
	return CmdStorageUploadFile
}

func (r *UploadRequest) Role() Role { return RoleStorage }

func (r *UploadRequest) EncodeBody(c *Codec) ([]byte, error) {
	if err := checkStreamSize(r.Size); err != nil {
		return nil, err
	}
	ext, err := c.PadString(r.Ext, FileExtNameMaxLen)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(r.StorePathIndex)
	putInt64(&buf, r.Size)
	buf.Write(ext)
	return buf.Bytes(), nil
}

func (r *UploadRequest) Stream() (io.Reader, int64) { return r.Reader, r.Size }

// UploadSlaveRequest uploads a slave file (thumbnail etc.) tied to an
// existing master file.
type UploadSlaveRequest struct {
	MasterPath string
	Prefix     string
	Ext        string
	Size       int64
	Reader     io.Reader
}

func (r *UploadSlaveRequest) Cmd() byte  { return CmdStorageUploadSlaveFile }
func (r *UploadSlaveRequest) Role() Role { return RoleStorage }

func (r *UploadSlaveRequest) EncodeBody(c *Codec) ([]byte, error) {
	if err := checkStreamSize(r.Size); err != nil {
		return nil, err
	}
	master, err := c.EncodeString(r.MasterPath)
	if err != nil {
		return nil, err
	}
	prefix, err := c.PadString(r.Prefix, FilePrefixMaxLen)
	if err != nil {
		return nil, err
	}
	ext, err := c.PadString(r.Ext, FileExtNameMaxLen)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	putInt64(&buf, int64(len(master)))
	putInt64(&buf, r.Size)
	buf.Write(prefix)
	buf.Write(ext)
	buf.Write(master)
	return buf.Bytes(), nil
}

func (r *UploadSlaveRequest) Stream() (io.Reader, int64) { return r.Reader, r.Size }

// AppendRequest appends a streamed payload to an appender file.
type AppendRequest struct {
	Path   string
	Size   int64
	Reader io.Reader
}

func (r *AppendRequest) Cmd() byte  { return CmdStorageAppendFile }
func (r *AppendRequest) Role() Role { return RoleStorage }

func (r *AppendRequest) EncodeBody(c *Codec) ([]byte, error) {
	if err := checkStreamSize(r.Size); err != nil {
		return nil, err
	}
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	putInt64(&buf, int64(len(path)))
	putInt64(&buf, r.Size)
	buf.Write(path)
	return buf.Bytes(), nil
}

func (r *AppendRequest) Stream() (io.Reader, int64) { return r.Reader, r.Size }

// ModifyRequest overwrites a range of an appender file with a streamed
// payload.
type ModifyRequest struct {
	Path   string
	Offset int64
	Size   int64
	Reader io.Reader
}

func (r *ModifyRequest) Cmd() byte  { return CmdStorageModifyFile }
func (r *ModifyRequest) Role() Role { return RoleStorage }

func (r *ModifyRequest) EncodeBody(c *Codec) ([]byte, error) {
	if err := checkStreamSize(r.Size); err != nil {
		return nil, err
	}
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	putInt64(&buf, int64(len(path)))
	putInt64(&buf, r.Offset)
	putInt64(&buf, r.Size)
	buf.Write(path)
	return buf.Bytes(), nil
}

func (r *ModifyRequest) Stream() (io.Reader, int64) { return r.Reader, r.Size }

// TruncateRequest truncates an appender file to the given size.
type TruncateRequest struct {
	Path string
	Size int64
}

func (r *TruncateRequest) Cmd() byte  { return CmdStorageTruncateFile }
func (r *TruncateRequest) Role() Role { return RoleStorage }

func (r *TruncateRequest) EncodeBody(c *Codec) ([]byte, error) {
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	putInt64(&buf, int64(len(path)))
	putInt64(&buf, r.Size)
	buf.Write(path)
	return buf.Bytes(), nil
}

// DownloadRequest reads a byte range of a file. Offset 0 with Length 0
// downloads the whole file.
type DownloadRequest struct {
	Group  string
	Path   string
	Offset int64
	Length int64
}

func (r *DownloadRequest) Cmd() byte  { return CmdStorageDownloadFile }
func (r *DownloadRequest) Role() Role { return RoleStorage }

func (r *DownloadRequest) EncodeBody(c *Codec) ([]byte, error) {
	group, err := c.PadString(r.Group, GroupNameMaxLen)
	if err != nil {
		return nil, err
	}
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	putInt64(&buf, r.Offset)
	putInt64(&buf, r.Length)
	buf.Write(group)
	buf.Write(path)
	return buf.Bytes(), nil
}

// DeleteRequest removes a file from its storage group.
type DeleteRequest struct {
	Group string
	Path  string
}

func (r *DeleteRequest) Cmd() byte  { return CmdStorageDeleteFile }
func (r *DeleteRequest) Role() Role { return RoleStorage }

func (r *DeleteRequest) EncodeBody(c *Codec) ([]byte, error) {
	group, err := c.PadString(r.Group, GroupNameMaxLen)
	if err != nil {
		return nil, err
	}
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(group)
	buf.Write(path)
	return buf.Bytes(), nil
}

// SetMetadataRequest replaces or merges the metadata of a file.
type SetMetadataRequest struct {
	Group string
	Path  string
	Meta  map[string]string
	Flag  byte // MetaFlagOverwrite or MetaFlagMerge
}

func (r *SetMetadataRequest) Cmd() byte  { return CmdStorageSetMetadata }
func (r *SetMetadataRequest) Role() Role { return RoleStorage }

func (r *SetMetadataRequest) EncodeBody(c *Codec) ([]byte, error) {
	group, err := c.PadString(r.Group, GroupNameMaxLen)
	if err != nil {
		return nil, err
	}
	path, err := c.EncodeString(r.Path)
	if err != nil {
		return nil, err
	}
	meta, err := c.EncodeMetadata(r.Meta)
	if err != nil {
		return nil, err
	}
	flag := r.Flag
	if flag == 0 {
		flag = MetaFlagOverwrite
	}

	var buf bytes.Buffer
	putInt64(&buf, int64(len(path)))
	putInt64(&buf, int64(len(meta)))
	buf.WriteByte(flag)
	buf.Write(group)
	buf.Write(path)
	buf.Write(meta)
	return buf.Bytes(), nil
}

// GetMetadataRequest fetches the metadata of a file.
type GetMetadataRequest struct {
	Group string
	Path  string
}

func (r *GetMetadataRequest) Cmd() byte  { return CmdStorageGetMetadata }
func (r *GetMetadataRequest) Role() Role { return RoleStorage }

func (r *GetMetadataRequest) EncodeBody(c *Codec) ([]byte, error) {
	return (&DeleteRequest{Group: r.Group, Path: r.Path}).EncodeBody(c)
}

// FileInfoRequest queries size, timestamp and checksum of a file.
type FileInfoRequest struct {
	Group string
	Path  string
}

func (r *FileInfoRequest) Cmd() byte  { return CmdStorageQueryFileInfo }
func (r *FileInfoRequest) Role() Role { return RoleStorage }

func (r *FileInfoRequest) EncodeBody(c *Codec) ([]byte, error) {
	return (&DeleteRequest{Group: r.Group, Path: r.Path}).EncodeBody(c)
}
