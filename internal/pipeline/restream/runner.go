// Package restream supervises the external muxing subprocess that
// forwards captured chunks to a real-time restream target.
package restream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/meetkit/botd/internal/log"
	"github.com/meetkit/botd/internal/metrics"
	"github.com/meetkit/botd/internal/pipeline"
	"github.com/meetkit/botd/internal/procgroup"
)

// Runner manages a single ffmpeg restream process. Chunks are fed over
// stdin; the encoder's own consumption rate is the backpressure signal
// surfaced through Write.
type Runner struct {
	BinPath   string
	TargetURL string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	waitCh chan error
	closed bool

	ring      *LineRing
	quitGrace time.Duration
}

// NewRunner creates a restream runner pushing to targetURL.
func NewRunner(binPath, targetURL string, quitGrace time.Duration) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	if quitGrace <= 0 {
		quitGrace = 5 * time.Second
	}
	return &Runner{
		BinPath:   binPath,
		TargetURL: targetURL,
		ring:      NewLineRing(256),
		quitGrace: quitGrace,
		waitCh:    make(chan error, 1),
	}
}

// Start launches the subprocess. The input container is whatever the
// capture surface produces; ffmpeg probes it from the pipe. The
// process lifetime is owned by Close, not ctx: cancelling ctx must not
// kill the encoder before the quit sequence has a chance to run.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return errors.New("restream already started")
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-i", "pipe:0",
		"-c", "copy",
		"-f", "flv",
		r.TargetURL,
	}

	cmd := exec.Command(r.BinPath, args...) // #nosec G204
	procgroup.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("restream stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("restream stderr pipe: %w", err)
	}
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			_, _ = r.ring.Write(scanner.Bytes())
			_, _ = r.ring.Write([]byte("\n"))
		}
	}()

	logger := log.WithComponentFromContext(ctx, "restream")
	logger.Info().Str("command", cmd.String()).Msg("starting restream process")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("restream start: %w", err)
	}

	r.cmd = cmd
	r.stdin = stdin
	go func() {
		r.waitCh <- cmd.Wait()
	}()
	return nil
}

// Write feeds one chunk to the encoder. It blocks on the subprocess
// pipe, which is exactly the sink's backpressure; the fanout keeps that
// away from the durable path.
func (r *Runner) Write(ctx context.Context, c pipeline.Chunk) error {
	r.mu.Lock()
	stdin := r.stdin
	closed := r.closed
	r.mu.Unlock()

	if closed || stdin == nil {
		return errors.New("restream not running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := stdin.Write(c.Data); err != nil {
		return fmt.Errorf("restream write (seq=%d): %w", c.Seq, err)
	}
	return nil
}

// Close stops the subprocess: textual quit signal plus stdin EOF, a
// bounded grace period, then forceful group termination. Idempotent.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.cmd == nil {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	stdin := r.stdin
	cmd := r.cmd
	r.mu.Unlock()

	logger := log.WithComponentFromContext(ctx, "restream")

	if stdin != nil {
		_, _ = stdin.Write([]byte("q"))
		_ = stdin.Close()
	}

	// Let the quit/EOF path finish inside the grace window; signals
	// are the escalation, not the first resort.
	var err error
	select {
	case err = <-r.waitCh:
	case <-time.After(r.quitGrace):
		err = procgroup.Terminate(cmd, r.waitCh, r.quitGrace)
	case <-ctx.Done():
		err = procgroup.Terminate(cmd, r.waitCh, r.quitGrace)
	}
	reason := "clean"
	if err != nil {
		reason = "error"
		lines := r.ring.LastN(20)
		logger.Warn().Err(err).Strs("stderr", lines).Msg("restream process exited with error")
	}
	metrics.RestreamExitTotal.WithLabelValues(reason).Inc()
	return err
}

// LastLogLines returns the most recent stderr lines for diagnostics.
func (r *Runner) LastLogLines(n int) []string {
	return r.ring.LastN(n)
}
