// SPDX-License-Identifier: MIT

// Package runner drives one admitted meeting session from join request
// to terminal state, applying the retry policy around the join phase
// and the chunk fanout during recording.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetkit/botd/internal/admission"
	"github.com/meetkit/botd/internal/domain/session/lifecycle"
	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/domain/session/store"
	"github.com/meetkit/botd/internal/log"
	"github.com/meetkit/botd/internal/metrics"
	"github.com/meetkit/botd/internal/notify"
	"github.com/meetkit/botd/internal/pipeline"
	"github.com/meetkit/botd/internal/pipeline/restream"
	"github.com/meetkit/botd/internal/provider"
	"github.com/meetkit/botd/internal/storage"
)

// Config bounds one session's execution.
type Config struct {
	LobbyWaitCeiling     time.Duration
	MaxRecordingDuration time.Duration
	StopTimeout          time.Duration

	SpoolDir    string
	ContentType string

	// Restream is optional; empty TargetURL disables the live sink.
	RestreamTargetURL string
	RestreamBinPath   string
	RestreamQuitGrace time.Duration
	LiveBuffer        int
	DrainGrace        time.Duration

	Policy lifecycle.Policy
}

// Deps are the collaborators a runner calls out to.
type Deps struct {
	Gate      *admission.Gate
	Providers *provider.Registry
	Uploader  storage.Uploader
	Notifier  *notify.Dispatcher
	Store     store.StatusStore
}

// Runner executes sessions one at a time; the admission gate guarantees
// no two Execute calls overlap process-wide.
type Runner struct {
	deps Deps
	cfg  Config

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error

	// newLiveSink builds the restream sink; overridable in tests.
	newLiveSink func(ctx context.Context) (pipeline.LiveSink, error)
}

// New creates a runner.
func New(deps Deps, cfg Config) *Runner {
	r := &Runner{deps: deps, cfg: cfg}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	r.newLiveSink = r.startRestream
	return r
}

// endRace decides which end condition wins the stop race. Later
// triggers are no-ops; exactly one termination reason is recorded.
type endRace struct {
	once sync.Once
	cond model.EndCondition
	done chan struct{}
}

func newEndRace() *endRace {
	return &endRace{done: make(chan struct{})}
}

func (e *endRace) trigger(c model.EndCondition) {
	e.once.Do(func() {
		e.cond = c
		close(e.done)
	})
}

type pipeResult struct {
	artifact pipeline.Artifact
	err      error
}

// Execute drives rec to a terminal state. The caller must hold the
// admission gate for rec.CorrelationID; Execute releases it on every
// exit path, including panics inside collaborator code.
func (r *Runner) Execute(ctx context.Context, rec *model.SessionRecord) (retErr error) {
	ctx = log.ContextWithCorrelationID(ctx, rec.CorrelationID)
	logger := log.WithComponentFromContext(ctx, "runner")

	defer r.deps.Gate.Release(rec.CorrelationID)
	defer func() {
		if p := recover(); p != nil {
			retErr = fmt.Errorf("session panic: %v", p)
			r.terminate(ctx, rec, "panic", logger)
		}
	}()

	capability, err := r.deps.Providers.ForRequest(rec.Request)
	if err != nil {
		r.terminate(ctx, rec, reasonFor(err), logger)
		return err
	}

	if err := r.joinPhase(ctx, rec, capability, logger); err != nil {
		r.leaveQuietly(capability, logger)
		r.terminate(ctx, rec, reasonFor(err), logger)
		return err
	}

	cond, artifact, err := r.recordPhase(ctx, rec, capability, logger)
	if err != nil {
		r.terminate(ctx, rec, reasonFor(err), logger)
		return err
	}

	if err := r.deliverPhase(ctx, rec, cond, artifact, logger); err != nil {
		r.terminate(ctx, rec, reasonFor(err), logger)
		return err
	}

	rec.TerminationReason = cond.String()
	if err := lifecycle.Advance(rec, model.StateCompleted, cond.String(), time.Now()); err != nil {
		return err
	}
	r.push(ctx, rec, logger)
	metrics.RecordSessionOutcome("completed", cond.String())
	logger.Info().
		Str("end_condition", cond.String()).
		Int("retries", rec.RetryCount).
		Msg("session completed")
	return nil
}

// joinPhase runs the full join attempt under the retry policy. Each
// retry re-runs the phase from scratch with identical parameters; no
// partial state survives an attempt.
func (r *Runner) joinPhase(ctx context.Context, rec *model.SessionRecord, capability provider.Capability, logger zerolog.Logger) error {
	for {
		err := r.joinOnce(ctx, rec, capability, logger)
		if err == nil {
			return nil
		}
		decision := r.cfg.Policy.Decide(err, rec.RetryCount)
		if !decision.Retry {
			logger.Warn().Err(err).Int("retries", rec.RetryCount).Msg("join failed terminally")
			return err
		}
		rec.RetryCount++
		metrics.JoinRetriesTotal.Inc()
		logger.Warn().
			Err(err).
			Int("retry", rec.RetryCount).
			Dur("backoff", decision.Delay).
			Msg("join failed, retrying after backoff")
		if serr := r.sleep(ctx, decision.Delay); serr != nil {
			return serr
		}
	}
}

func (r *Runner) joinOnce(ctx context.Context, rec *model.SessionRecord, capability provider.Capability, logger zerolog.Logger) error {
	outcome, err := capability.Join(ctx, rec.Request)
	if err != nil {
		return err
	}
	if outcome != provider.OutcomeLobby {
		return nil
	}

	// Only the first attempt can reach the lobby; lobby outcomes never
	// produce retryable failures, so this edge fires at most once.
	if rec.State == model.StateJoining {
		if err := lifecycle.Advance(rec, model.StateWaitingAdmission, "", time.Now()); err != nil {
			return err
		}
		r.push(ctx, rec, logger)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.LobbyWaitCeiling)
	defer cancel()
	if err := capability.AwaitAdmission(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return model.LobbyTimeout(fmt.Sprintf("not admitted within %s", r.cfg.LobbyWaitCeiling))
		}
		return err
	}
	return nil
}

// recordPhase runs capture, the chunk fanout and the end-condition
// race, then performs the idempotent stop sequence.
func (r *Runner) recordPhase(ctx context.Context, rec *model.SessionRecord, capability provider.Capability, logger zerolog.Logger) (model.EndCondition, pipeline.Artifact, error) {
	if err := lifecycle.Advance(rec, model.StateRecording, "", time.Now()); err != nil {
		return "", pipeline.Artifact{}, err
	}
	r.push(ctx, rec, logger)

	captureCtx, captureCancel := context.WithCancel(ctx)
	defer captureCancel()

	chunks, err := capability.Capture(captureCtx)
	if err != nil {
		r.leaveQuietly(capability, logger)
		return "", pipeline.Artifact{}, fmt.Errorf("start capture: %w", err)
	}

	spool, err := pipeline.NewSpool(r.cfg.SpoolDir, rec.CorrelationID, r.cfg.ContentType)
	if err != nil {
		r.leaveQuietly(capability, logger)
		return "", pipeline.Artifact{}, err
	}

	// The live sink outlives capture cancellation so its shutdown can
	// run the graceful quit sequence under stopCtx below.
	var live pipeline.LiveSink
	if r.cfg.RestreamTargetURL != "" {
		live, err = r.newLiveSink(ctx)
		if err != nil {
			// Restream is best-effort; the durable recording proceeds.
			logger.Warn().Err(err).Msg("live restream unavailable, recording without it")
			live = nil
		}
	}

	fanout := pipeline.NewFanout(spool, live, r.cfg.LiveBuffer, r.cfg.DrainGrace, logger)
	results := make(chan pipeResult, 1)
	go func() {
		artifact, ferr := fanout.Run(captureCtx, chunks)
		results <- pipeResult{artifact: artifact, err: ferr}
	}()

	race := newEndRace()

	// Hard ceiling, independent of collaborator-side detection: the
	// session cannot run unbounded even if detection fails.
	ceiling := time.AfterFunc(r.cfg.MaxRecordingDuration, func() {
		race.trigger(model.EndDurationExceeded)
	})
	defer ceiling.Stop()

	monitor := capability.Monitor(captureCtx)
	go func() {
		for ev := range monitor {
			race.trigger(ev.Condition)
		}
	}()

	// Watch for a durable-sink failure surfacing mid-recording.
	var pipeDone pipeResult
	pipeSeen := false
	select {
	case <-race.done:
	case pipeDone = <-results:
		pipeSeen = true
		if pipeDone.err != nil {
			race.trigger(model.EndFatalError)
		} else {
			// Capture stream ended on its own; treat as explicit stop.
			race.trigger(model.EndExplicitStop)
		}
		<-race.done
	case <-ctx.Done():
		race.trigger(model.EndExplicitStop)
		<-race.done
	}
	cond := race.cond

	// Stopping: idempotent shutdown regardless of which trigger won.
	if err := lifecycle.Advance(rec, model.StateStopping, cond.String(), time.Now()); err != nil {
		return cond, pipeline.Artifact{}, err
	}
	r.push(ctx, rec, logger)

	captureCancel()
	if !pipeSeen {
		pipeDone = <-results
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), r.cfg.StopTimeout)
	defer stopCancel()
	if live != nil {
		if err := live.Close(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("restream shutdown reported error")
		}
	}
	if err := capability.Leave(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("provider leave reported error")
	}

	if pipeDone.err != nil {
		return cond, pipeline.Artifact{}, fmt.Errorf("recording pipeline: %w", pipeDone.err)
	}
	if cond.Fatal() {
		return cond, pipeline.Artifact{}, fmt.Errorf("recording ended fatally: %s", cond)
	}
	return cond, pipeDone.artifact, nil
}

// deliverPhase uploads the sealed artifact and fans out notifications.
func (r *Runner) deliverPhase(ctx context.Context, rec *model.SessionRecord, cond model.EndCondition, artifact pipeline.Artifact, logger zerolog.Logger) error {
	if err := lifecycle.Advance(rec, model.StateUploading, "", time.Now()); err != nil {
		return err
	}
	r.push(ctx, rec, logger)

	desc, err := r.deps.Uploader.Upload(ctx, artifact)
	if err != nil {
		return model.NewKnownFailure(model.FailUpload, "upload failed after collaborator retries", false, 0, err)
	}

	if err := lifecycle.Advance(rec, model.StateNotifying, "", time.Now()); err != nil {
		return err
	}
	r.push(ctx, rec, logger)

	payload := notify.Payload{
		RecordingID: rec.CorrelationID,
		MeetingLink: rec.Request.MeetingURL,
		Status:      "completed",
		Timestamp:   time.Now().UTC(),
		Metadata: notify.Metadata{
			UserID:       rec.Request.UserID,
			TeamID:       rec.Request.TeamID,
			BotID:        rec.Request.BotID,
			ContentType:  artifact.ContentType,
			UploaderType: desc.Backend,
			Storage:      desc,
		},
		BlobURL: desc.URL,
	}
	r.deps.Notifier.Dispatch(ctx, payload)
	return nil
}

func (r *Runner) startRestream(ctx context.Context) (pipeline.LiveSink, error) {
	rs := restream.NewRunner(r.cfg.RestreamBinPath, r.cfg.RestreamTargetURL, r.cfg.RestreamQuitGrace)
	if err := rs.Start(ctx); err != nil {
		return nil, err
	}
	return rs, nil
}

// terminate forces the failed terminal state and publishes it. Safe on
// an already-terminal record.
func (r *Runner) terminate(ctx context.Context, rec *model.SessionRecord, reason string, logger zerolog.Logger) {
	if rec.State.IsTerminal() {
		return
	}
	lifecycle.Terminalize(rec, reason, time.Now())
	r.push(ctx, rec, logger)
	metrics.RecordSessionOutcome("failed", "")
	logger.Error().Str("reason", reason).Msg("session failed")
}

func (r *Runner) leaveQuietly(capability provider.Capability, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StopTimeout)
	defer cancel()
	if err := capability.Leave(ctx); err != nil {
		logger.Debug().Err(err).Msg("provider leave during failure cleanup")
	}
}

func (r *Runner) push(ctx context.Context, rec *model.SessionRecord, logger zerolog.Logger) {
	if err := r.deps.Store.Put(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("status store update failed")
	}
}

// reasonFor maps an error to the recorded termination reason.
func reasonFor(err error) string {
	if kf, ok := model.AsKnown(err); ok {
		return string(kf.Kind)
	}
	if errors.Is(err, pipeline.ErrDurableSink) {
		return string(model.FailRecordingSink)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}
