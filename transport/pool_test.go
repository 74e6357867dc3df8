package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/goFDFS/common"
	"github.com/ValentinKolb/goFDFS/protocol"
)

// startEchoServer accepts connections and answers every frame with an
// empty success response.
func startEchoServer(t *testing.T) string {
	return startServer(t, func(conn net.Conn) {
		defer conn.Close()
		for {
			if _, _, err := serverReadFrame(conn); err != nil {
				return
			}
			serverReply(conn, 0, nil)
		}
	})
}

func newTestPool(t *testing.T, endpoint string, cfg common.Config) *Pool {
	t.Helper()
	codec, _ := protocol.NewCodec("")
	p := NewPool(endpoint, NewTCPConnector(), cfg, codec)
	t.Cleanup(p.Close)
	return p
}

func TestPoolReuse(t *testing.T) {
	endpoint := startEchoServer(t)
	p := newTestPool(t, endpoint, testConfig())

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	p.Release(conn, nil)

	again, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	defer p.Release(again, nil)

	if again != conn {
		t.Error("idle connection was not reused")
	}

	idle, live := p.Stats()
	if idle != 0 || live != 1 {
		t.Errorf("stats = (%d idle, %d live), want (0, 1)", idle, live)
	}
}

func TestPoolMaxTotal(t *testing.T) {
	endpoint := startEchoServer(t)

	cfg := testConfig()
	cfg.MaxTotalPerPool = 2
	cfg.MaxIdlePerPool = 2
	cfg.AcquireTimeout = 100 * time.Millisecond
	p := newTestPool(t, endpoint, cfg)

	first, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 1 failed: %v", err)
	}
	second, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 2 failed: %v", err)
	}

	// Pool is at capacity, the third acquire must time out.
	start := time.Now()
	if _, err := p.Acquire(context.Background()); !errors.Is(err, common.ErrPoolExhausted) {
		t.Fatalf("got err %v, want ErrPoolExhausted", err)
	}
	if time.Since(start) < cfg.AcquireTimeout {
		t.Error("acquire returned before AcquireTimeout elapsed")
	}

	// A release unblocks a waiting acquire.
	done := make(chan error, 1)
	go func() {
		conn, err := p.Acquire(context.Background())
		if err == nil {
			p.Release(conn, nil)
		}
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Release(first, nil)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiting acquire failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting acquire never completed")
	}

	p.Release(second, nil)

	if _, live := p.Stats(); live > cfg.MaxTotalPerPool {
		t.Errorf("live = %d exceeds MaxTotalPerPool", live)
	}
}

func TestPoolDiscardsBroken(t *testing.T) {
	endpoint := startServer(t, func(conn net.Conn) {
		serverReadFrame(conn)
		conn.Close() // break the frame
	})
	p := newTestPool(t, endpoint, testConfig())

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	err = conn.Exchange(context.Background(), &protocol.ListGroupsRequest{}, &protocol.ListGroupsResponse{})
	if err == nil {
		t.Fatal("exchange against closing server succeeded")
	}
	if conn.State() != StateBroken {
		t.Fatalf("state = %v, want broken", conn.State())
	}

	p.Release(conn, err)

	idle, live := p.Stats()
	if idle != 0 || live != 0 {
		t.Errorf("stats = (%d idle, %d live), want (0, 0) after discarding", idle, live)
	}
}

func TestPoolMaxIdle(t *testing.T) {
	endpoint := startEchoServer(t)

	cfg := testConfig()
	cfg.MaxIdlePerPool = 1
	cfg.MaxTotalPerPool = 4
	p := newTestPool(t, endpoint, cfg)

	first, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	p.Release(first, nil)
	p.Release(second, nil) // surplus: idle set is full, must be closed

	idle, live := p.Stats()
	if idle != 1 || live != 1 {
		t.Errorf("stats = (%d idle, %d live), want (1, 1)", idle, live)
	}
}

func TestPoolSweep(t *testing.T) {
	endpoint := startEchoServer(t)

	cfg := testConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	p := newTestPool(t, endpoint, cfg)

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	p.Release(conn, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if idle, live := p.Stats(); idle == 0 && live == 0 {
			break
		}
		if time.Now().After(deadline) {
			idle, live := p.Stats()
			t.Fatalf("idle connection not swept: (%d idle, %d live)", idle, live)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPoolCloseRefusesAcquire(t *testing.T) {
	endpoint := startEchoServer(t)
	codec, _ := protocol.NewCodec("")
	p := NewPool(endpoint, NewTCPConnector(), testConfig(), codec)
	p.Close()

	if _, err := p.Acquire(context.Background()); !errors.Is(err, common.ErrPoolClosed) {
		t.Fatalf("got err %v, want ErrPoolClosed", err)
	}
}

// TestPoolInvariantsUnderConcurrency hammers acquire/release from many
// goroutines and checks the pool bounds afterwards.
func TestPoolInvariantsUnderConcurrency(t *testing.T) {
	endpoint := startEchoServer(t)

	cfg := testConfig()
	cfg.MaxTotalPerPool = 4
	cfg.MaxIdlePerPool = 2
	cfg.AcquireTimeout = 2 * time.Second
	p := newTestPool(t, endpoint, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				conn, err := p.Acquire(context.Background())
				if err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				if conn.State() == StateBroken {
					t.Error("acquire handed out a broken connection")
				}
				err = conn.Exchange(context.Background(), &protocol.ListGroupsRequest{}, &protocol.ListGroupsResponse{})
				p.Release(conn, err)
			}
		}()
	}
	wg.Wait()

	idle, live := p.Stats()
	if idle > cfg.MaxIdlePerPool {
		t.Errorf("idle = %d exceeds MaxIdlePerPool %d", idle, cfg.MaxIdlePerPool)
	}
	if live > cfg.MaxTotalPerPool {
		t.Errorf("live = %d exceeds MaxTotalPerPool %d", live, cfg.MaxTotalPerPool)
	}
}
