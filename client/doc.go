// Package client implements the high-level goFDFS operations. Each
// operation is a fixed composition of protocol exchanges across tracker
// and storage endpoints: an upload asks a tracker for a write target
// and then streams the file to the storage server it named, a download
// asks a tracker which storage server holds the file and then streams
// the body from there, and so on.
//
// The Client owns one connection pool per endpoint, created lazily on
// first contact. Trackers are picked round-robin from the configured
// list; a tracker that cannot be reached is skipped and the next one is
// tried, each at most once per operation. Storage endpoints returned by
// trackers are used verbatim.
//
// Usage Example:
//
//	cfg := common.Config{
//	  Trackers: []string{"192.168.1.10:22122"},
//	}
//
//	c, _ := client.New(cfg)
//	defer c.Close()
//
//	// Upload a buffer
//	fileID, _ := c.UploadBuffer(ctx, "", "txt", []byte("hello"), nil)
//
//	// Stream the file to disk
//	c.DownloadToFile(ctx, fileID, "/tmp/hello.txt")
//
//	// Clean up
//	c.Delete(ctx, fileID)
//
// Failure policy: reconnect (when enabled) is the only automatic
// recovery. A failed tracker exchange is not retried against a
// different storage server, and a failed storage exchange is not
// retried either - re-querying the tracker is an application decision.
//
// Thread Safety:
//
//	A Client is safe for concurrent use. Every in-flight operation
//	holds its own pooled connection.
package client
