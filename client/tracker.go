package client

import (
	"context"

	"github.com/ValentinKolb/goFDFS/protocol"
)

// --------------------------------------------------------------------------
// Tracker operations
// --------------------------------------------------------------------------

// QueryStorage asks a tracker for a storage server to upload to. An
// empty group lets the tracker pick one.
func (c *Client) QueryStorage(ctx context.Context, group string) (*protocol.StorageServer, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	resp := &protocol.StorageServerResponse{}
	if err := c.trackerExchange(ctx, &protocol.QueryStoreRequest{Group: group}, resp); err != nil {
		return nil, err
	}
	return &resp.StorageServer, nil
}

// QueryFetch asks a tracker which storage server holds the file, for
// reading.
func (c *Client) QueryFetch(ctx context.Context, fileID string) (*protocol.StorageServer, error) {
	return c.queryLocation(ctx, fileID, false)
}

// QueryUpdate asks a tracker which storage server to send mutations of
// the file to (append, modify, truncate, delete, metadata).
func (c *Client) QueryUpdate(ctx context.Context, fileID string) (*protocol.StorageServer, error) {
	return c.queryLocation(ctx, fileID, true)
}

func (c *Client) queryLocation(ctx context.Context, fileID string, forUpdate bool) (*protocol.StorageServer, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	group, path, err := protocol.SplitFileID(fileID)
	if err != nil {
		return nil, err
	}

	resp := &protocol.StorageServerResponse{}
	req := &protocol.QueryFetchRequest{ForUpdate: forUpdate, Group: group, Path: path}
	if err := c.trackerExchange(ctx, req, resp); err != nil {
		return nil, err
	}
	return &resp.StorageServer, nil
}

// ListGroups lists every storage group known to the trackers.
func (c *Client) ListGroups(ctx context.Context) ([]protocol.GroupInfo, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	resp := &protocol.ListGroupsResponse{}
	if err := c.trackerExchange(ctx, &protocol.ListGroupsRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// ListStorages lists the storage servers of a group; storageID narrows
// the listing to a single server ("" for all).
func (c *Client) ListStorages(ctx context.Context, group, storageID string) ([]protocol.StorageInfo, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	resp := &protocol.ListStoragesResponse{}
	req := &protocol.ListStoragesRequest{Group: group, StorageID: storageID}
	if err := c.trackerExchange(ctx, req, resp); err != nil {
		return nil, err
	}
	return resp.Storages, nil
}
