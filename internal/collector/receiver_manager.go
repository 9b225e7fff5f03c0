package collector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/DataDog/libdatadog/internal/config"
)

// ErrReceiverUnavailable means no live receiver process exists to hand a
// report to.
var ErrReceiverUnavailable = errors.New("crash receiver unavailable")

// managedReceiver is a spawned receiver process and the pipe the collector
// writes the handoff stream into. The process is started eagerly at init:
// fork/exec is exactly the kind of work the fault path must not do.
type managedReceiver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	waitCh chan error

	stdout *os.File
	stderr *os.File
}

// spawnReceiver launches the receiver binary and wires its stdin to a pipe
// held by the collector. Stdout and stderr go to the configured redirect
// files, or are discarded.
func spawnReceiver(rc *config.ReceiverConfig) (*managedReceiver, error) {
	if _, err := os.Stat(rc.BinaryPath); err != nil {
		return nil, fmt.Errorf("receiver binary %s: %w", rc.BinaryPath, err)
	}

	cmd := exec.Command(rc.BinaryPath, rc.Args...)
	cmd.Env = rc.Env

	r := &managedReceiver{cmd: cmd, waitCh: make(chan error, 1)}

	if rc.StdoutFile != "" {
		f, err := openRedirect(rc.StdoutFile)
		if err != nil {
			return nil, err
		}
		r.stdout = f
		cmd.Stdout = f
	}
	if rc.StderrFile != "" {
		f, err := openRedirect(rc.StderrFile)
		if err != nil {
			r.closeRedirects()
			return nil, err
		}
		r.stderr = f
		cmd.Stderr = f
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		r.closeRedirects()
		return nil, fmt.Errorf("creating receiver stdin pipe: %w", err)
	}
	r.stdin = stdin

	if err := cmd.Start(); err != nil {
		r.closeRedirects()
		return nil, fmt.Errorf("starting receiver %s: %w", rc.BinaryPath, err)
	}

	go func() {
		r.waitCh <- cmd.Wait()
	}()
	return r, nil
}

func openRedirect(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening receiver redirect %s: %w", path, err)
	}
	return f, nil
}

func (r *managedReceiver) closeRedirects() {
	if r.stdout != nil {
		r.stdout.Close()
	}
	if r.stderr != nil {
		r.stderr.Close()
	}
}

// finish closes the handoff pipe and waits, bounded by timeout, for the
// receiver to exit. The crashing process cannot afford to wait forever on
// a wedged child.
func (r *managedReceiver) finish(timeout time.Duration) error {
	r.stdin.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-r.waitCh:
		r.closeRedirects()
		return err
	case <-timer.C:
		r.cmd.Process.Kill()
		r.closeRedirects()
		return fmt.Errorf("receiver did not finish within %v", timeout)
	}
}

// kill tears the receiver down without waiting. Used on shutdown when no
// fault occurred.
func (r *managedReceiver) kill() {
	r.stdin.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	select {
	case <-r.waitCh:
	case <-time.After(time.Second):
	}
	r.closeRedirects()
}

// alive reports whether the receiver process has not yet exited.
func (r *managedReceiver) alive() bool {
	select {
	case err := <-r.waitCh:
		// Exited already; put the result back for finish.
		r.waitCh <- err
		return false
	default:
		return true
	}
}

// EnsureReceiver spawns the receiver if none is running. Idempotent: a
// live receiver is kept, a dead one is replaced.
func EnsureReceiver(rc *config.ReceiverConfig) error {
	if cur := global.receiver.Load(); cur != nil && cur.alive() {
		return nil
	}
	r, err := spawnReceiver(rc)
	if err != nil {
		return err
	}
	if old := global.receiver.Swap(r); old != nil {
		old.kill()
	}
	return nil
}

// activeReceiver returns the live receiver for the fault path, or nil.
func activeReceiver() *managedReceiver {
	r := global.receiver.Load()
	if r == nil || !r.alive() {
		return nil
	}
	return r
}
