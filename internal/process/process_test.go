package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

// helperCommand re-executes the test binary as a fake external tool.
func helperCommand(timeout time.Duration, args ...string) Command {
	return Command{
		Name:    os.Args[0],
		Args:    append([]string{"-test.run=TestHelperProcess", "--"}, args...),
		Env:     []string{"GO_WANT_HELPER_PROCESS=1"},
		Timeout: timeout,
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no helper mode")
		os.Exit(2)
	}

	switch args[0] {
	case "echo":
		for i := 0; i < 100; i++ {
			fmt.Fprintf(os.Stdout, "I: out line %d\n", i)
			fmt.Fprintf(os.Stderr, "W: err line %d\n", i)
		}
		fmt.Fprint(os.Stdout, "no trailing newline")
	case "fail":
		fmt.Println("I: Using Apktool 2.11.1 on app.apk")
		fmt.Fprintln(os.Stderr, `Exception in thread "main" java.lang.OutOfMemoryError: Java heap space`)
		os.Exit(1)
	case "hang":
		// args[1]: file to write our pid to
		if len(args) > 1 {
			os.WriteFile(args[1], []byte(strconv.Itoa(os.Getpid())), 0o644)
		}
		fmt.Println("I: decoding resources...")
		time.Sleep(time.Minute)
	case "spawn":
		// args[1]: pid file for the grandchild
		child := helperCommand(0, "hang", args[1])
		cmd := newCmd(child)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(3)
		}
		time.Sleep(time.Minute)
	case "exit":
		code, _ := strconv.Atoi(args[1])
		os.Exit(code)
	}
}

func newMemoryLogger() (*memory.Handler, log.Interface) {
	h := memory.New()
	return h, &log.Logger{Handler: h, Level: log.DebugLevel}
}

func TestRunSuccessDrainsBothStreams(t *testing.T) {
	h, l := newMemoryLogger()
	r := NewRunner(l)

	if err := r.Run(context.Background(), helperCommand(30*time.Second, "echo")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var stdout, stderr int
	var sawPartial bool
	for _, e := range h.Entries {
		switch e.Fields.Get("stream") {
		case "stdout":
			stdout++
			if e.Message == "no trailing newline" {
				sawPartial = true
			}
		case "stderr":
			stderr++
		}
	}
	if stdout != 101 {
		t.Errorf("logged %d stdout lines, want 101", stdout)
	}
	if stderr != 100 {
		t.Errorf("logged %d stderr lines, want 100", stderr)
	}
	if !sawPartial {
		t.Error("final line without newline was not logged")
	}
}

func TestRunNonZeroExitKeepsOutput(t *testing.T) {
	h, l := newMemoryLogger()
	r := NewRunner(l)

	err := r.Run(context.Background(), helperCommand(30*time.Second, "fail"))
	f := pipe.AsFailure(err)
	if f == nil || f.Kind != pipe.ExternalToolError {
		t.Fatalf("Run() error = %v, want ExternalToolError", err)
	}
	if !strings.Contains(f.Output, "java.lang.OutOfMemoryError") {
		t.Errorf("failure output %q does not contain the tool's stderr", f.Output)
	}
	if !strings.Contains(f.Output, "Using Apktool") {
		t.Errorf("failure output %q does not contain the tool's stdout", f.Output)
	}
	if !strings.Contains(f.Message, "code 1") {
		t.Errorf("failure message %q does not report the exit code", f.Message)
	}

	logged := false
	for _, e := range h.Entries {
		if e.Fields.Get("stream") == "stderr" && strings.Contains(e.Message, "OutOfMemoryError") {
			logged = true
		}
	}
	if !logged {
		t.Error("stderr line was not written to the run log")
	}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"0", false},
		{"1", true},
		{"137", true},
	}
	for _, tt := range tests {
		t.Run("exit "+tt.code, func(t *testing.T) {
			_, l := newMemoryLogger()
			err := NewRunner(l).Run(context.Background(), helperCommand(30*time.Second, "exit", tt.code))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !pipe.IsKind(err, pipe.ExternalToolError) {
				t.Errorf("Run() error kind = %v, want ExternalToolError", err)
			}
		})
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, l := newMemoryLogger()
	err := NewRunner(l).Run(context.Background(), Command{
		Name:    filepath.Join(t.TempDir(), "no-such-apktool"),
		Timeout: time.Second,
	})
	if !pipe.IsKind(err, pipe.ExternalToolError) {
		t.Fatalf("Run() error = %v, want ExternalToolError", err)
	}
}

func TestRunTimeout(t *testing.T) {
	_, l := newMemoryLogger()
	r := NewRunner(l)
	r.WaitDelay = time.Second
	pidFile := filepath.Join(t.TempDir(), "pid")

	timeout := time.Second
	start := time.Now()
	err := r.Run(context.Background(), helperCommand(timeout, "hang", pidFile))
	elapsed := time.Since(start)

	f := pipe.AsFailure(err)
	if f == nil || f.Kind != pipe.Timeout {
		t.Fatalf("Run() error = %v, want Timeout", err)
	}
	if f.Message != "process timed out after 1s" {
		t.Errorf("failure message = %q", f.Message)
	}
	if !strings.Contains(f.Output, "decoding resources") {
		t.Errorf("output written before the timeout was lost: %q", f.Output)
	}
	if elapsed > timeout+5*time.Second {
		t.Errorf("Run() returned after %s, want about %s", elapsed, timeout)
	}
	assertDead(t, readPid(t, pidFile))
}

func TestResultPrefersCleanExit(t *testing.T) {
	_, l := newMemoryLogger()
	r := NewRunner(l)
	c := Command{Name: "/usr/bin/apktool", Timeout: 2 * time.Second}
	killed := fmt.Errorf("signal: killed")

	tests := []struct {
		name    string
		ctxErr  error
		waitErr error
		want    pipe.Kind
		ok      bool
	}{
		{"clean exit at the deadline", context.DeadlineExceeded, nil, 0, true},
		{"clean exit after cancel", context.Canceled, nil, 0, true},
		{"killed by the deadline", context.DeadlineExceeded, killed, pipe.Timeout, false},
		{"killed by cancel", context.Canceled, killed, pipe.Internal, false},
		{"failed on its own", nil, killed, pipe.ExternalToolError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.result(c, tt.ctxErr, tt.waitErr, "output", time.Now())
			if tt.ok {
				if err != nil {
					t.Fatalf("result() error = %v, want nil", err)
				}
				return
			}
			if !pipe.IsKind(err, tt.want) {
				t.Fatalf("result() error = %v, want %s", err, tt.want)
			}
			if f := pipe.AsFailure(err); f.Output != "output" {
				t.Errorf("Output = %q, want output", f.Output)
			}
		})
	}
}

func TestCommandRedaction(t *testing.T) {
	r := NewRunner(nil)
	r.Redact = []string{"android"}
	c := Command{Name: "jarsigner", Args: []string{"-storepass", "android", "rebuilt.apk"}}
	if got := r.redact(c); strings.Contains(got, "android") {
		t.Errorf("redact() = %q, secret leaked", got)
	}
}

func readPid(t *testing.T, path string) int {
	t.Helper()
	var data []byte
	var err error
	for i := 0; i < 50; i++ {
		if data, err = os.ReadFile(path); err == nil && len(data) > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("helper never wrote its pid: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatal(err)
	}
	return pid
}
