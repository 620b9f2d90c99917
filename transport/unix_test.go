package transport

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corelane/ipcrpc/logging"
)

func TestListenUnixAcceptsAndServes(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	l, err := ListenUnix(sockPath)
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := make(chan net.Conn, 1)
	go l.Serve(ctx, logging.New(os.Stderr, "debug"), func(conn net.Conn) {
		accepted <- conn
	})

	conn, err := DialUnix(context.Background(), sockPath)
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	defer conn.Close()

	select {
	case c := <-accepted:
		defer c.Close()
	case <-time.After(2 * time.Second):
		t.Fatalf("connection was never accepted")
	}
}

func TestListenUnixRemovesStaleSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "stale.sock")

	first, err := ListenUnix(sockPath)
	if err != nil {
		t.Fatalf("ListenUnix (first): %v", err)
	}
	// Simulate a crash: the listener's file descriptor is gone but the
	// socket file is left behind on disk.
	first.Listener.(*net.UnixListener).SetUnlinkOnClose(false)
	first.Listener.Close()

	second, err := ListenUnix(sockPath)
	if err != nil {
		t.Fatalf("ListenUnix (second, stale socket present): %v", err)
	}
	defer second.Close()
}
