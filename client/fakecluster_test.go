package client

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/goFDFS/protocol"
)

// fakeCluster is an in-process FastDFS tracker + storage pair speaking
// just enough of the wire protocol for end-to-end client tests. Files
// live in a map keyed by remote path; the group is always "group1".
type fakeCluster struct {
	t *testing.T

	mu    sync.Mutex
	files map[string][]byte
	meta  map[string]map[string]string
	ctime map[string]int64
	seq   int

	trackerAddr string
	storageAddr string
	storageHost string
	storagePort int

	storageConns atomic.Int32

	// uploadGate, when non-nil, blocks upload handling until the
	// channel is closed; uploadStarted signals a blocked upload.
	uploadGate    chan struct{}
	uploadStarted chan struct{}
}

func newFakeCluster(t *testing.T) *fakeCluster {
	t.Helper()

	c := &fakeCluster{
		t:     t,
		files: make(map[string][]byte),
		meta:  make(map[string]map[string]string),
		ctime: make(map[string]int64),
	}

	storageLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	trackerLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { storageLn.Close(); trackerLn.Close() })

	c.storageAddr = storageLn.Addr().String()
	c.trackerAddr = trackerLn.Addr().String()

	host, portStr, _ := net.SplitHostPort(c.storageAddr)
	c.storageHost = host
	c.storagePort, _ = strconv.Atoi(portStr)

	go c.acceptLoop(trackerLn, c.handleTracker)
	go c.acceptLoop(storageLn, func(conn net.Conn) {
		c.storageConns.Add(1)
		c.handleStorage(conn)
	})

	return c
}

func (c *fakeCluster) acceptLoop(ln net.Listener, handler func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go handler(conn)
	}
}

// --------------------------------------------------------------------------
// Frame plumbing
// --------------------------------------------------------------------------

func readFrame(conn net.Conn) (protocol.Header, []byte, error) {
	var hbuf [protocol.HeaderLen]byte
	if _, err := io.ReadFull(conn, hbuf[:]); err != nil {
		return protocol.Header{}, nil, err
	}
	hdr, err := protocol.DecodeHeader(hbuf[:])
	if err != nil {
		return protocol.Header{}, nil, err
	}
	body := make([]byte, hdr.Length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return protocol.Header{}, nil, err
	}
	return hdr, body, nil
}

func reply(conn net.Conn, status byte, body []byte) {
	conn.Write(protocol.EncodeHeader(protocol.Header{Length: int64(len(body)), Cmd: protocol.CmdResp, Status: status}))
	if len(body) > 0 {
		conn.Write(body)
	}
}

func be64int(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }

func put64(buf *bytes.Buffer, n int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	buf.Write(b[:])
}

func fixed(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func trimFixed(b []byte) string { return string(bytes.TrimRight(b, "\x00")) }

// --------------------------------------------------------------------------
// Tracker behavior
// --------------------------------------------------------------------------

func (c *fakeCluster) storageBody(withIndex bool) []byte {
	var buf bytes.Buffer
	buf.Write(fixed("group1", protocol.GroupNameMaxLen))
	buf.Write(fixed(c.storageHost, protocol.IPAddressSize))
	put64(&buf, int64(c.storagePort))
	if withIndex {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func (c *fakeCluster) handleTracker(conn net.Conn) {
	defer conn.Close()
	for {
		hdr, _, err := readFrame(conn)
		if err != nil {
			return
		}

		switch hdr.Cmd {
		case protocol.CmdTrackerQueryStoreWithoutGroup, protocol.CmdTrackerQueryStoreWithGroup:
			reply(conn, 0, c.storageBody(true))

		case protocol.CmdTrackerQueryFetchOne, protocol.CmdTrackerQueryUpdate:
			reply(conn, 0, c.storageBody(false))

		case protocol.CmdTrackerListGroups:
			var buf bytes.Buffer
			buf.Write(fixed("group1", protocol.GroupNameMaxLen+1))
			for _, v := range []int64{100000, 60000, 0, 1, int64(c.storagePort), 8888, 1, 0, 1, 256, 0} {
				put64(&buf, v)
			}
			reply(conn, 0, buf.Bytes())

		case protocol.CmdTrackerListStorages:
			var buf bytes.Buffer
			buf.WriteByte(protocol.StorageStatusActive)
			buf.Write(fixed("storage01", protocol.StorageIDMaxSize))
			buf.Write(fixed(c.storageHost, protocol.IPAddressSize))
			buf.Write(fixed("", protocol.DomainNameMaxSize))
			buf.Write(fixed(c.storageHost, protocol.IPAddressSize))
			buf.Write(fixed("6.12", protocol.VersionSize))
			for _, v := range []int64{1600000000, 1650000000, 100000, 60000, 10, 1, 256, 0, int64(c.storagePort), 8888} {
				put64(&buf, v)
			}
			buf.Write(make([]byte, 42*8))
			buf.WriteByte(0)
			reply(conn, 0, buf.Bytes())

		default:
			reply(conn, 22, nil)
		}
	}
}

// --------------------------------------------------------------------------
// Storage behavior
// --------------------------------------------------------------------------

func (c *fakeCluster) handleStorage(conn net.Conn) {
	defer conn.Close()
	for {
		hdr, body, err := readFrame(conn)
		if err != nil {
			return
		}

		switch hdr.Cmd {
		case protocol.CmdStorageUploadFile, protocol.CmdStorageUploadAppenderFile:
			c.handleUpload(conn, body)

		case protocol.CmdStorageUploadSlaveFile:
			c.handleUploadSlave(conn, body)

		case protocol.CmdStorageDownloadFile:
			offset := be64int(body[0:8])
			length := be64int(body[8:16])
			path := string(body[16+protocol.GroupNameMaxLen:])

			c.mu.Lock()
			data, ok := c.files[path]
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			end := int64(len(data))
			if length > 0 && offset+length < end {
				end = offset + length
			}
			if offset > int64(len(data)) {
				reply(conn, 22, nil)
				continue
			}
			reply(conn, 0, data[offset:end])

		case protocol.CmdStorageDeleteFile:
			path := string(body[protocol.GroupNameMaxLen:])
			c.mu.Lock()
			_, ok := c.files[path]
			delete(c.files, path)
			delete(c.meta, path)
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			reply(conn, 0, nil)

		case protocol.CmdStorageAppendFile:
			pathLen := be64int(body[0:8])
			path := string(body[16 : 16+pathLen])
			data := body[16+pathLen:]
			c.mu.Lock()
			old, ok := c.files[path]
			if ok {
				c.files[path] = append(append([]byte(nil), old...), data...)
			}
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			reply(conn, 0, nil)

		case protocol.CmdStorageModifyFile:
			pathLen := be64int(body[0:8])
			offset := be64int(body[8:16])
			path := string(body[24 : 24+pathLen])
			data := body[24+pathLen:]
			c.mu.Lock()
			old, ok := c.files[path]
			if ok {
				need := offset + int64(len(data))
				if int64(len(old)) < need {
					grown := make([]byte, need)
					copy(grown, old)
					old = grown
				}
				copy(old[offset:], data)
				c.files[path] = old
			}
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			reply(conn, 0, nil)

		case protocol.CmdStorageTruncateFile:
			pathLen := be64int(body[0:8])
			size := be64int(body[8:16])
			path := string(body[16 : 16+pathLen])
			c.mu.Lock()
			old, ok := c.files[path]
			if ok {
				if size <= int64(len(old)) {
					c.files[path] = old[:size]
				} else {
					grown := make([]byte, size)
					copy(grown, old)
					c.files[path] = grown
				}
			}
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			reply(conn, 0, nil)

		case protocol.CmdStorageSetMetadata:
			pathLen := be64int(body[0:8])
			metaLen := be64int(body[8:16])
			flag := body[16]
			path := string(body[17+protocol.GroupNameMaxLen : 17+protocol.GroupNameMaxLen+pathLen])
			metaBytes := body[int64(17+protocol.GroupNameMaxLen)+pathLen : int64(17+protocol.GroupNameMaxLen)+pathLen+metaLen]

			codec, _ := protocol.NewCodec("")
			parsed, _ := codec.DecodeMetadata(metaBytes)

			c.mu.Lock()
			_, ok := c.files[path]
			if ok {
				if flag == protocol.MetaFlagMerge && c.meta[path] != nil {
					for k, v := range parsed {
						c.meta[path][k] = v
					}
				} else {
					c.meta[path] = parsed
				}
			}
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			reply(conn, 0, nil)

		case protocol.CmdStorageGetMetadata:
			path := string(body[protocol.GroupNameMaxLen:])
			c.mu.Lock()
			_, ok := c.files[path]
			meta := c.meta[path]
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			codec, _ := protocol.NewCodec("")
			encoded, _ := codec.EncodeMetadata(meta)
			reply(conn, 0, encoded)

		case protocol.CmdStorageQueryFileInfo:
			path := string(body[protocol.GroupNameMaxLen:])
			c.mu.Lock()
			data, ok := c.files[path]
			created := c.ctime[path]
			c.mu.Unlock()
			if !ok {
				reply(conn, 2, nil)
				continue
			}
			var buf bytes.Buffer
			put64(&buf, int64(len(data)))
			put64(&buf, created)
			var crc [4]byte
			binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(data))
			buf.Write(crc[:])
			buf.Write(fixed(c.storageHost, protocol.IPAddressSize))
			reply(conn, 0, buf.Bytes())

		default:
			reply(conn, 22, nil)
		}
	}
}

func (c *fakeCluster) handleUpload(conn net.Conn, body []byte) {
	if gate := c.uploadGate; gate != nil {
		c.uploadStarted <- struct{}{}
		<-gate
	}

	size := be64int(body[1:9])
	ext := trimFixed(body[9:15])
	data := body[15:]
	if int64(len(data)) != size {
		reply(conn, 22, nil)
		return
	}

	c.mu.Lock()
	c.seq++
	path := fmt.Sprintf("M00/00/00/file%03d", c.seq)
	if ext != "" {
		path += "." + ext
	}
	c.files[path] = append([]byte(nil), data...)
	c.ctime[path] = time.Now().Unix()
	c.mu.Unlock()

	var buf bytes.Buffer
	buf.Write(fixed("group1", protocol.GroupNameMaxLen))
	buf.WriteString(path)
	reply(conn, 0, buf.Bytes())
}

func (c *fakeCluster) handleUploadSlave(conn net.Conn, body []byte) {
	masterLen := be64int(body[0:8])
	size := be64int(body[8:16])
	prefix := trimFixed(body[16:32])
	ext := trimFixed(body[32:38])
	master := string(body[38 : 38+masterLen])
	data := body[38+masterLen:]

	if int64(len(data)) != size {
		reply(conn, 22, nil)
		return
	}

	c.mu.Lock()
	if _, ok := c.files[master]; !ok {
		c.mu.Unlock()
		reply(conn, 2, nil)
		return
	}
	path := master + "_" + prefix
	if ext != "" {
		path += "." + ext
	}
	c.files[path] = append([]byte(nil), data...)
	c.ctime[path] = time.Now().Unix()
	c.mu.Unlock()

	var buf bytes.Buffer
	buf.Write(fixed("group1", protocol.GroupNameMaxLen))
	buf.WriteString(path)
	reply(conn, 0, buf.Bytes())
}

// fileCount returns how many files the fake storage currently holds.
func (c *fakeCluster) fileCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}
