package integration

import (
	"net"
	"testing"
	"time"
)

// waitForServer polls the given address until a TCP connection succeeds or
// the timeout is reached, so tests never race server startup.
func waitForServer(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("server on %s did not become ready within %v", addr, timeout)
}
