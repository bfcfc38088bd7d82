// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetkit/botd/internal/metrics"
)

// ErrDurableSink marks a durable-sink write failure. The session cannot
// produce its primary deliverable past this point.
var ErrDurableSink = errors.New("durable sink failed")

// LiveSink receives chunks for real-time restreaming. Write blocks on
// the sink's own backpressure; the fanout isolates that from the
// durable path.
type LiveSink interface {
	Write(ctx context.Context, c Chunk) error
	Close(ctx context.Context) error
}

// Fanout delivers each chunk of a session's capture stream to the
// durable spool and, when configured, a live restream sink. Order is
// preserved per sink; the durable sink never waits on the live one.
type Fanout struct {
	spool      *Spool
	live       LiveSink // nil when restreaming is disabled
	liveBuf    int
	drainGrace time.Duration
	logger     zerolog.Logger
}

// NewFanout wires the two sinks. liveBuf bounds how far the live sink
// may lag before chunks are dropped for it (never for the spool).
func NewFanout(spool *Spool, live LiveSink, liveBuf int, drainGrace time.Duration, logger zerolog.Logger) *Fanout {
	if liveBuf <= 0 {
		liveBuf = 32
	}
	if drainGrace <= 0 {
		drainGrace = 5 * time.Second
	}
	return &Fanout{spool: spool, live: live, liveBuf: liveBuf, drainGrace: drainGrace, logger: logger}
}

// Run consumes src until it closes, then seals the spool and returns
// the artifact. A durable write failure aborts the spool and returns an
// error wrapping ErrDurableSink immediately; live-sink failures are
// logged and isolated, never escalated.
func (f *Fanout) Run(ctx context.Context, src <-chan Chunk) (Artifact, error) {
	var (
		wg     sync.WaitGroup
		liveCh chan Chunk
	)
	if f.live != nil {
		liveCh = make(chan Chunk, f.liveBuf)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.runLive(ctx, liveCh)
		}()
	}

	err := f.consume(ctx, src, liveCh)

	if liveCh != nil {
		close(liveCh)
		// Bounded drain: a stalled encoder must not hold up sealing.
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(f.drainGrace):
			f.logger.Warn().Msg("live sink did not drain within grace period")
		}
	}

	if err != nil {
		f.spool.Abort()
		return Artifact{}, err
	}
	return f.spool.Seal()
}

func (f *Fanout) consume(ctx context.Context, src <-chan Chunk, liveCh chan Chunk) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-src:
			if !ok {
				return nil
			}
			if err := f.spool.Append(c); err != nil {
				return fmt.Errorf("%w: %w", ErrDurableSink, err)
			}
			if liveCh == nil {
				continue
			}
			select {
			case liveCh <- c:
			default:
				// Live sink is behind; the durable path must not wait.
				metrics.RecordChunk("live", "dropped", 0)
			}
		}
	}
}

func (f *Fanout) runLive(ctx context.Context, in <-chan Chunk) {
	broken := false
	for c := range in {
		if broken {
			metrics.RecordChunk("live", "discarded", 0)
			continue
		}
		if err := f.live.Write(ctx, c); err != nil {
			// Isolated: the live sink failing never ends the session.
			f.logger.Warn().Err(err).Int("seq", c.Seq).Msg("live sink write failed, disabling restream for this session")
			metrics.RecordChunk("live", "error", 0)
			broken = true
			continue
		}
		metrics.RecordChunk("live", "ok", len(c.Data))
	}
}
