package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/ValentinKolb/goFDFS/common"
	"github.com/ValentinKolb/goFDFS/protocol"
	"github.com/ValentinKolb/goFDFS/transport"
)

// --------------------------------------------------------------------------
// Upload
// --------------------------------------------------------------------------

// Upload streams size bytes from r into the given group ("" lets the
// tracker pick) and returns the file ID. The reader is borrowed, read
// to exactly size bytes and never closed. Optional metadata is set
// with a follow-up exchange.
func (c *Client) Upload(ctx context.Context, group, ext string, r io.Reader, size int64, meta map[string]string) (string, error) {
	return c.upload(ctx, group, ext, r, size, meta, false)
}

// UploadBuffer uploads an in-memory payload.
func (c *Client) UploadBuffer(ctx context.Context, group, ext string, data []byte, meta map[string]string) (string, error) {
	return c.upload(ctx, group, ext, bytes.NewReader(data), int64(len(data)), meta, false)
}

// UploadFile uploads a local file; the extension is derived from the
// filename.
func (c *Client) UploadFile(ctx context.Context, group, localPath string, meta map[string]string) (string, error) {
	file, size, err := openLocal(localPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return c.upload(ctx, group, protocol.ExtName(localPath), file, size, meta, false)
}

// UploadAppender uploads an appender file, which can later be grown
// with Append, rewritten with Modify and shrunk with Truncate.
func (c *Client) UploadAppender(ctx context.Context, group, ext string, r io.Reader, size int64, meta map[string]string) (string, error) {
	return c.upload(ctx, group, ext, r, size, meta, true)
}

// UploadAppenderBuffer uploads an in-memory payload as an appender file.
func (c *Client) UploadAppenderBuffer(ctx context.Context, group, ext string, data []byte, meta map[string]string) (string, error) {
	return c.upload(ctx, group, ext, bytes.NewReader(data), int64(len(data)), meta, true)
}

func (c *Client) upload(ctx context.Context, group, ext string, r io.Reader, size int64, meta map[string]string, appender bool) (fileID string, err error) {
	start := time.Now()
	defer func() { common.ObserveOp("upload", start, size, err) }()

	server, err := c.QueryStorage(ctx, group)
	if err != nil {
		return "", err
	}

	resp := &protocol.UploadResponse{}
	req := &protocol.UploadRequest{
		StorePathIndex: server.StorePathIndex,
		Ext:            ext,
		Appender:       appender,
		Size:           size,
		Reader:         r,
	}
	if err := c.Execute(ctx, server.Endpoint(), req, resp); err != nil {
		return "", err
	}

	fileID = resp.FileID()
	if len(meta) > 0 {
		// The file is stored either way; a failed metadata exchange
		// is reported in the log, not to the caller.
		if err := c.SetMetadata(ctx, fileID, meta, protocol.MetaFlagOverwrite); err != nil {
			Logger.Warningf("upload of %s succeeded but setting metadata failed: %v", fileID, err)
		}
	}
	return fileID, nil
}

// UploadSlave uploads a slave file (e.g. a thumbnail) attached to an
// existing master file. The slave's remote name is derived by the
// server from the master path, the prefix and the extension.
func (c *Client) UploadSlave(ctx context.Context, masterID, prefix, ext string, r io.Reader, size int64, meta map[string]string) (fileID string, err error) {
	start := time.Now()
	defer func() { common.ObserveOp("upload_slave", start, size, err) }()

	server, err := c.QueryUpdate(ctx, masterID)
	if err != nil {
		return "", err
	}
	_, masterPath, err := protocol.SplitFileID(masterID)
	if err != nil {
		return "", err
	}

	resp := &protocol.UploadResponse{}
	req := &protocol.UploadSlaveRequest{
		MasterPath: masterPath,
		Prefix:     prefix,
		Ext:        ext,
		Size:       size,
		Reader:     r,
	}
	if err := c.Execute(ctx, server.Endpoint(), req, resp); err != nil {
		return "", err
	}

	fileID = resp.FileID()
	if len(meta) > 0 {
		if err := c.SetMetadata(ctx, fileID, meta, protocol.MetaFlagOverwrite); err != nil {
			Logger.Warningf("upload of %s succeeded but setting metadata failed: %v", fileID, err)
		}
	}
	return fileID, nil
}

// UploadSlaveBuffer uploads an in-memory payload as a slave file.
func (c *Client) UploadSlaveBuffer(ctx context.Context, masterID, prefix, ext string, data []byte, meta map[string]string) (string, error) {
	return c.UploadSlave(ctx, masterID, prefix, ext, bytes.NewReader(data), int64(len(data)), meta)
}

// --------------------------------------------------------------------------
// Download
// --------------------------------------------------------------------------

// Download streams a byte range of the file into the sink (offset 0,
// length 0 = the whole file) and returns how many bytes were
// delivered. The sink is owned by the caller.
func (c *Client) Download(ctx context.Context, fileID string, offset, length int64, sink protocol.ISink) (n int64, err error) {
	start := time.Now()
	defer func() { common.ObserveOp("download", start, n, err) }()

	server, err := c.QueryFetch(ctx, fileID)
	if err != nil {
		return 0, err
	}
	group, path, err := protocol.SplitFileID(fileID)
	if err != nil {
		return 0, err
	}

	resp := &protocol.DownloadResponse{Sink: sink}
	req := &protocol.DownloadRequest{Group: group, Path: path, Offset: offset, Length: length}
	if err := c.Execute(ctx, server.Endpoint(), req, resp); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// DownloadBuffer loads a byte range of the file into memory. Meant for
// small files; use Download or DownloadToFile for anything sizable.
func (c *Client) DownloadBuffer(ctx context.Context, fileID string, offset, length int64) ([]byte, error) {
	sink := transport.NewBufferSink()
	if _, err := c.Download(ctx, fileID, offset, length, sink); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// DownloadToFile streams the whole file to a local path, creating
// parent directories as needed, and returns the number of bytes
// written.
func (c *Client) DownloadToFile(ctx context.Context, fileID, localPath string) (int64, error) {
	sink, err := transport.NewFileSink(localPath)
	if err != nil {
		return 0, err
	}
	return c.Download(ctx, fileID, 0, 0, sink)
}

// --------------------------------------------------------------------------
// Appender file mutations
// --------------------------------------------------------------------------

// Append streams size bytes from r onto the end of an appender file.
func (c *Client) Append(ctx context.Context, fileID string, r io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { common.ObserveOp("append", start, size, err) }()

	server, path, err := c.updateTarget(ctx, fileID)
	if err != nil {
		return err
	}
	return c.Execute(ctx, server.Endpoint(), &protocol.AppendRequest{Path: path, Size: size, Reader: r}, &protocol.EmptyResponse{})
}

// AppendBuffer appends an in-memory payload to an appender file.
func (c *Client) AppendBuffer(ctx context.Context, fileID string, data []byte) error {
	return c.Append(ctx, fileID, bytes.NewReader(data), int64(len(data)))
}

// Modify overwrites size bytes of an appender file starting at offset.
func (c *Client) Modify(ctx context.Context, fileID string, offset int64, r io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { common.ObserveOp("modify", start, size, err) }()

	server, path, err := c.updateTarget(ctx, fileID)
	if err != nil {
		return err
	}
	req := &protocol.ModifyRequest{Path: path, Offset: offset, Size: size, Reader: r}
	return c.Execute(ctx, server.Endpoint(), req, &protocol.EmptyResponse{})
}

// ModifyBuffer overwrites a range of an appender file with an
// in-memory payload.
func (c *Client) ModifyBuffer(ctx context.Context, fileID string, offset int64, data []byte) error {
	return c.Modify(ctx, fileID, offset, bytes.NewReader(data), int64(len(data)))
}

// Truncate shrinks (or zero-extends) an appender file to size bytes.
func (c *Client) Truncate(ctx context.Context, fileID string, size int64) (err error) {
	start := time.Now()
	defer func() { common.ObserveOp("truncate", start, 0, err) }()

	server, path, err := c.updateTarget(ctx, fileID)
	if err != nil {
		return err
	}
	return c.Execute(ctx, server.Endpoint(), &protocol.TruncateRequest{Path: path, Size: size}, &protocol.EmptyResponse{})
}

// --------------------------------------------------------------------------
// Delete / metadata / file info
// --------------------------------------------------------------------------

// Delete removes a file.
func (c *Client) Delete(ctx context.Context, fileID string) (err error) {
	start := time.Now()
	defer func() { common.ObserveOp("delete", start, 0, err) }()

	server, path, err := c.updateTarget(ctx, fileID)
	if err != nil {
		return err
	}
	group, _, _ := protocol.SplitFileID(fileID)
	return c.Execute(ctx, server.Endpoint(), &protocol.DeleteRequest{Group: group, Path: path}, &protocol.EmptyResponse{})
}

// SetMetadata replaces (protocol.MetaFlagOverwrite) or merges
// (protocol.MetaFlagMerge) the metadata of a file.
func (c *Client) SetMetadata(ctx context.Context, fileID string, meta map[string]string, flag byte) (err error) {
	start := time.Now()
	defer func() { common.ObserveOp("set_metadata", start, 0, err) }()

	server, path, err := c.updateTarget(ctx, fileID)
	if err != nil {
		return err
	}
	group, _, _ := protocol.SplitFileID(fileID)
	req := &protocol.SetMetadataRequest{Group: group, Path: path, Meta: meta, Flag: flag}
	return c.Execute(ctx, server.Endpoint(), req, &protocol.EmptyResponse{})
}

// GetMetadata fetches the metadata of a file. A file without metadata
// yields an empty map.
func (c *Client) GetMetadata(ctx context.Context, fileID string) (meta map[string]string, err error) {
	start := time.Now()
	defer func() { common.ObserveOp("get_metadata", start, 0, err) }()

	server, group, path, err := c.fetchTarget(ctx, fileID)
	if err != nil {
		return nil, err
	}

	resp := &protocol.MetadataResponse{}
	if err := c.Execute(ctx, server.Endpoint(), &protocol.GetMetadataRequest{Group: group, Path: path}, resp); err != nil {
		return nil, err
	}
	return resp.Meta, nil
}

// FileInfo queries size, creation time and checksum of a file.
func (c *Client) FileInfo(ctx context.Context, fileID string) (info *protocol.FileInfo, err error) {
	start := time.Now()
	defer func() { common.ObserveOp("file_info", start, 0, err) }()

	server, group, path, err := c.fetchTarget(ctx, fileID)
	if err != nil {
		return nil, err
	}

	resp := &protocol.FileInfoResponse{}
	if err := c.Execute(ctx, server.Endpoint(), &protocol.FileInfoRequest{Group: group, Path: path}, resp); err != nil {
		return nil, err
	}
	return &resp.FileInfo, nil
}

// Exists reports whether the file is present on its storage server.
func (c *Client) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := c.FileInfo(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// updateTarget resolves the storage server for a mutation of fileID.
func (c *Client) updateTarget(ctx context.Context, fileID string) (*protocol.StorageServer, string, error) {
	server, err := c.QueryUpdate(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	_, path, err := protocol.SplitFileID(fileID)
	if err != nil {
		return nil, "", err
	}
	return server, path, nil
}

// fetchTarget resolves the storage server for a read of fileID.
func (c *Client) fetchTarget(ctx context.Context, fileID string) (*protocol.StorageServer, string, string, error) {
	server, err := c.QueryFetch(ctx, fileID)
	if err != nil {
		return nil, "", "", err
	}
	group, path, err := protocol.SplitFileID(fileID)
	if err != nil {
		return nil, "", "", err
	}
	return server, group, path, nil
}

// openLocal opens a local file and stats its size.
func openLocal(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	return file, stat.Size(), nil
}
