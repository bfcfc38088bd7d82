package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meetkit/botd/internal/metrics"
)

// Channel is one notification target.
type Channel interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// Dispatcher fans an identical payload out to every enabled channel.
// Channels run concurrently with no ordering guarantee; each failure is
// logged and counted, never returned.
type Dispatcher struct {
	channels []Channel
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over the enabled channels.
func NewDispatcher(logger zerolog.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, logger: logger}
}

// Dispatch delivers p to all channels and waits for them to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) {
	var wg sync.WaitGroup
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, p); err != nil {
				d.logger.Warn().
					Err(err).
					Str("channel", ch.Name()).
					Str("recording_id", p.RecordingID).
					Msg("notification delivery failed")
				metrics.NotifyTotal.WithLabelValues(ch.Name(), "error").Inc()
				return
			}
			metrics.NotifyTotal.WithLabelValues(ch.Name(), "ok").Inc()
		}(ch)
	}
	wg.Wait()
}
