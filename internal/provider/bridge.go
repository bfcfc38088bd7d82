package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/log"
	"github.com/meetkit/botd/internal/pipeline"
)

// Bridge is the production capability binding: an HTTP client against
// the out-of-process browser automation sidecar that performs the
// actual join/navigation and media capture. One bridge per session.
type Bridge struct {
	base string
	http *http.Client
	req  model.JoinRequest

	pollEvery time.Duration
	chunkSize int
}

// NewBridgeFactory returns a Factory producing bridges against base.
// The sidecar multiplexes providers behind one API; the provider name
// travels in the join payload.
func NewBridgeFactory(base string) Factory {
	return func(req model.JoinRequest) (Capability, error) {
		if strings.TrimSpace(base) == "" {
			return nil, fmt.Errorf("automation bridge url not configured")
		}
		return &Bridge{
			base:      strings.TrimRight(base, "/"),
			http:      &http.Client{Timeout: 30 * time.Second},
			req:       req,
			pollEvery: 2 * time.Second,
			chunkSize: 256 * 1024,
		}, nil
	}
}

type bridgeJoinResponse struct {
	Status string `json:"status"` // "admitted" | "lobby" | "failed"
	Error  string `json:"error,omitempty"`
	// Retryable classification as reported by the sidecar
	Retryable  bool `json:"retryable,omitempty"`
	MaxRetries int  `json:"maxRetries,omitempty"`
}

func (b *Bridge) Join(ctx context.Context, req model.JoinRequest) (JoinOutcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode join request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+"/v1/join", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := b.http.Do(httpReq)
	if err != nil {
		return "", model.NewKnownFailure(model.FailJoinNavigation, "bridge unreachable", true, 3, err)
	}
	defer func() { _ = res.Body.Close() }()

	var jr bridgeJoinResponse
	if err := json.NewDecoder(res.Body).Decode(&jr); err != nil {
		return "", fmt.Errorf("decode join response: %w", err)
	}

	switch jr.Status {
	case "admitted":
		return OutcomeAdmitted, nil
	case "lobby":
		return OutcomeLobby, nil
	default:
		return "", model.NewKnownFailure(model.FailJoinNavigation, jr.Error, jr.Retryable, jr.MaxRetries, nil)
	}
}

type bridgeState struct {
	State  string `json:"state"` // "lobby" | "in_meeting" | "denied" | "ended"
	End    string `json:"end,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (b *Bridge) state(ctx context.Context) (bridgeState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+"/v1/state", nil)
	if err != nil {
		return bridgeState{}, err
	}
	res, err := b.http.Do(req)
	if err != nil {
		return bridgeState{}, err
	}
	defer func() { _ = res.Body.Close() }()
	var s bridgeState
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		return bridgeState{}, err
	}
	return s, nil
}

// AwaitAdmission polls the sidecar until the lobby resolves. Denial is
// a non-retryable failure; ctx expiry surfaces to the caller, which
// maps it to the lobby-timeout classification.
func (b *Bridge) AwaitAdmission(ctx context.Context) error {
	ticker := time.NewTicker(b.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s, err := b.state(ctx)
			if err != nil {
				continue // transient poll failure; the deadline bounds us
			}
			switch s.State {
			case "in_meeting":
				return nil
			case "denied":
				return model.LobbyDenied("host denied admission")
			}
		}
	}
}

// Monitor polls the sidecar state and emits the first end condition it
// observes. The channel closes when ctx is cancelled.
func (b *Bridge) Monitor(ctx context.Context) <-chan EndEvent {
	out := make(chan EndEvent, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(b.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s, err := b.state(ctx)
				if err != nil {
					continue
				}
				if cond, ok := endConditionFor(s); ok {
					select {
					case out <- EndEvent{Condition: cond, Detail: s.Detail}:
					case <-ctx.Done():
					}
					return
				}
			}
		}
	}()
	return out
}

func endConditionFor(s bridgeState) (model.EndCondition, bool) {
	if s.State != "ended" {
		return "", false
	}
	switch s.End {
	case "host_ended":
		return model.EndHostEnded, true
	case "lone_participant":
		return model.EndLoneParticipant, true
	case "inactivity":
		return model.EndInactivityTimeout, true
	case "fatal":
		return model.EndFatalError, true
	default:
		return model.EndExplicitStop, true
	}
}

// Capture opens the sidecar's media stream and slices it into chunks.
func (b *Bridge) Capture(ctx context.Context) (<-chan pipeline.Chunk, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+"/v1/media", nil)
	if err != nil {
		return nil, err
	}
	// Stream for the session lifetime; only ctx bounds it.
	res, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, model.NewKnownFailure(model.FailCaptureStart, "media stream unavailable", true, 2, err)
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return nil, model.NewKnownFailure(model.FailCaptureStart,
			fmt.Sprintf("media stream status %d", res.StatusCode), true, 2, nil)
	}

	out := make(chan pipeline.Chunk)
	go func() {
		defer close(out)
		defer func() { _ = res.Body.Close() }()
		logger := log.WithComponentFromContext(ctx, "bridge")
		seq := 0
		buf := make([]byte, b.chunkSize)
		for {
			n, err := res.Body.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case out <- pipeline.Chunk{Seq: seq, Data: data, At: time.Now()}:
					seq++
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("media stream read ended")
				}
				return
			}
		}
	}()
	return out, nil
}

// Leave tells the sidecar to exit the meeting and release the browser.
func (b *Bridge) Leave(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+"/v1/leave", nil)
	if err != nil {
		return err
	}
	res, err := b.http.Do(req)
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	return nil
}
