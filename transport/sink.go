package transport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/goFDFS/protocol"
)

// fileSinkQueueDepth bounds the number of chunks buffered between the
// network reader and the disk writer: at most depth * chunkSize bytes
// of a download are ever held in memory.
const fileSinkQueueDepth = 32

// --------------------------------------------------------------------------
// WriterSink
// --------------------------------------------------------------------------

// WriterSink adapts an io.Writer to the sink contract. The writer is
// borrowed: the caller closes it.
type WriterSink struct {
	w   io.Writer
	err error
}

// NewWriterSink wraps an io.Writer.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(p []byte) error {
	if s.err != nil {
		return s.err
	}
	if _, err := s.w.Write(p); err != nil {
		s.err = err
		return err
	}
	return nil
}

func (s *WriterSink) Complete() error { return s.err }

func (s *WriterSink) Release() {}

// --------------------------------------------------------------------------
// BufferSink
// --------------------------------------------------------------------------

// BufferSink accumulates a (small) download in memory.
type BufferSink struct {
	buf bytes.Buffer
}

// NewBufferSink creates an empty in-memory sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) Write(p []byte) error {
	s.buf.Write(p)
	return nil
}

func (s *BufferSink) Complete() error { return nil }

func (s *BufferSink) Release() {}

// Bytes returns the accumulated body.
func (s *BufferSink) Bytes() []byte { return s.buf.Bytes() }

// --------------------------------------------------------------------------
// FileSink
// --------------------------------------------------------------------------

// FileSink streams a download to a file through a bounded chunk queue
// drained by a single worker goroutine, so a slow disk exerts
// backpressure on the network reader instead of growing memory.
//
// The first write error latches: every later Write returns it, and
// Complete surfaces it after the worker has drained. The file is left
// in place on failure; the caller owns it.
type FileSink struct {
	file *os.File
	ch   chan []byte
	done chan struct{}

	mu       sync.Mutex
	err      error
	finished bool
}

// NewFileSink creates (or truncates) the file and starts the drain
// worker. Parent directories are created as needed.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	s := &FileSink{
		file: file,
		ch:   make(chan []byte, fileSinkQueueDepth),
		done: make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

// drain writes queued chunks to disk until the queue is closed. After
// a disk error the remaining chunks are consumed and discarded so the
// producer never blocks forever.
func (s *FileSink) drain() {
	defer close(s.done)

	for chunk := range s.ch {
		if s.loadErr() != nil {
			continue
		}
		if _, err := s.file.Write(chunk); err != nil {
			s.storeErr(err)
		}
	}
}

func (s *FileSink) Write(p []byte) error {
	if err := s.loadErr(); err != nil {
		return err
	}

	// The exchange loop reuses its chunk buffer; queue a copy.
	chunk := make([]byte, len(p))
	copy(chunk, p)
	s.ch <- chunk
	return nil
}

// Complete flushes the queue, joins the worker and closes the file. It
// must be called exactly once after the last Write.
func (s *FileSink) Complete() error {
	s.finish()

	if err := s.loadErr(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Release aborts the sink: the worker is stopped and the file handle
// closed. Whatever was written stays on disk; the caller decides what
// to do with the partial file.
func (s *FileSink) Release() {
	s.finish()
	s.file.Close()
}

// finish closes the queue once and waits for the worker.
func (s *FileSink) finish() {
	s.mu.Lock()
	if !s.finished {
		s.finished = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *FileSink) loadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FileSink) storeErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Interface guards
var (
	_ protocol.ISink = (*WriterSink)(nil)
	_ protocol.ISink = (*BufferSink)(nil)
	_ protocol.ISink = (*FileSink)(nil)
)
