//go:build windows

package process

import (
	"os"
	"os/exec"
	"testing"
)

func newCmd(c Command) *exec.Cmd {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	return cmd
}

func assertDead(t *testing.T, pid int) {
	t.Helper()
	p, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	p.Release()
}
