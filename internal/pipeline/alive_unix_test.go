//go:build unix

package pipeline

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func assertDead(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); err == unix.ESRCH {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("process %d still running after timeout", pid)
}
