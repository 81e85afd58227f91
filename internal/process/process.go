// Package process runs external tools with a deadline, streaming their output
// into a run-scoped logger.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"golang.org/x/sync/errgroup"
)

// DefaultWaitDelay is how long output is still drained after a timed out
// child has been killed.
const DefaultWaitDelay = 5 * time.Second

// Command is one invocation of an external tool.
type Command struct {
	Name    string
	Args    []string
	Env     []string
	Dir     string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes commands and logs every output line to its logger.
type Runner struct {
	log log.Interface
	// WaitDelay bounds how long streams are drained after a timeout kill.
	WaitDelay time.Duration
	// Redact hides sensitive argument values (passwords) in logged command lines.
	Redact []string
}

// NewRunner returns a Runner that logs to l.
func NewRunner(l log.Interface) *Runner {
	if l == nil {
		l = log.Log
	}
	return &Runner{log: l, WaitDelay: DefaultWaitDelay}
}

// Run starts c and blocks until it exits or c.Timeout elapses.
//
// It returns nil on exit code 0. A non-zero exit is an ExternalToolError
// failure whose Output holds everything the tool printed (stdout then
// stderr). On timeout the tool and its children are killed and a Timeout
// failure is returned.
func (r *Runner) Run(ctx context.Context, c Command) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return pipe.Wrap(pipe.Internal, err, "failed to create stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return pipe.Wrap(pipe.Internal, err, "failed to create stderr pipe")
	}

	r.log.WithField("timeout", c.Timeout).Infof("running command: %s", r.redact(c))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return pipe.Wrap(pipe.ExternalToolError, err, fmt.Sprintf("failed to start %s", filepath.Base(c.Name)))
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return r.drain(stdout, "stdout", &outBuf) })
	g.Go(func() error { return r.drain(stderr, "stderr", &errBuf) })

	drained := make(chan error, 1)
	go func() { drained <- g.Wait() }()

	select {
	case <-drained:
	case <-ctx.Done():
		// the exec context watcher is killing the process group; collect
		// whatever the tool already wrote before giving up on the pipes
		select {
		case <-drained:
		case <-time.After(r.waitDelay()):
			stdout.Close()
			stderr.Close()
			<-drained
		}
	}
	waitErr := cmd.Wait()
	return r.result(c, ctx.Err(), waitErr, outBuf.String()+errBuf.String(), start)
}

// result classifies a finished process. A clean exit wins over a deadline
// that expired after the tool had already finished.
func (r *Runner) result(c Command, ctxErr, waitErr error, output string, start time.Time) error {
	switch {
	case waitErr == nil:
		r.log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Debug("command finished")
		return nil
	case errors.Is(ctxErr, context.DeadlineExceeded):
		r.log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Error("process timed out")
		return pipe.Fail(pipe.Timeout, "process timed out after %ds", int(c.Timeout.Round(time.Second)/time.Second)).WithOutput(output)
	case ctxErr != nil:
		return pipe.Wrap(pipe.Internal, ctxErr, "run canceled").WithOutput(output)
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return pipe.Fail(pipe.ExternalToolError, "%s exited with code %d", filepath.Base(c.Name), exitErr.ExitCode()).WithOutput(output)
	}
	return pipe.Wrap(pipe.ExternalToolError, waitErr, fmt.Sprintf("%s failed", filepath.Base(c.Name))).WithOutput(output)
}

// drain copies rd line by line into the log and buf until EOF.
func (r *Runner) drain(rd io.Reader, stream string, buf *bytes.Buffer) error {
	br := bufio.NewReader(rd)
	l := r.log.WithField("stream", stream)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			buf.WriteString(line)
			if text := strings.TrimRight(line, "\r\n"); text != "" {
				l.Info(text)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (r *Runner) waitDelay() time.Duration {
	if r.WaitDelay <= 0 {
		return DefaultWaitDelay
	}
	return r.WaitDelay
}

func (r *Runner) redact(c Command) string {
	s := c.String()
	for _, secret := range r.Redact {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "****")
		}
	}
	return s
}
