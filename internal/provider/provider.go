// SPDX-License-Identifier: MIT

// Package provider defines the capability surface through which the
// core consumes platform-specific meeting automation. The core never
// branches on provider identity past registry selection.
package provider

import (
	"context"
	"fmt"

	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/pipeline"
)

// JoinOutcome is the result of a join attempt that did not error.
type JoinOutcome string

const (
	// OutcomeAdmitted means the bot is in the meeting room.
	OutcomeAdmitted JoinOutcome = "admitted"
	// OutcomeLobby means the bot sits in a waiting room pending a host
	// decision; the caller bounds the wait.
	OutcomeLobby JoinOutcome = "lobby"
)

// EndEvent is one end-condition signal observed by the automation
// surface while the meeting runs.
type EndEvent struct {
	Condition model.EndCondition
	Detail    string
}

// Capability is one provider's automation surface. Implementations own
// navigation, lobby detection and media capture; the core only consumes
// their outcomes.
type Capability interface {
	// Join attempts to enter the meeting. It returns OutcomeAdmitted or
	// OutcomeLobby, or an error classified per the failure taxonomy.
	Join(ctx context.Context, req model.JoinRequest) (JoinOutcome, error)

	// AwaitAdmission blocks until a lobby wait resolves: admission,
	// explicit denial (a non-retryable failure) or ctx expiry.
	AwaitAdmission(ctx context.Context) error

	// Monitor emits end conditions observed in the meeting. The channel
	// closes when monitoring stops.
	Monitor(ctx context.Context) <-chan EndEvent

	// Capture starts media capture and returns the chunk stream. The
	// stream is lazy, finite and non-restartable; it closes when capture
	// stops or ctx is cancelled.
	Capture(ctx context.Context) (<-chan pipeline.Chunk, error)

	// Leave tears the automation surface down. Idempotent.
	Leave(ctx context.Context) error
}

// Factory builds a capability for one join request.
type Factory func(req model.JoinRequest) (Capability, error)

// Registry maps the closed set of provider names to factories.
type Registry struct {
	factories map[model.Provider]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[model.Provider]Factory)}
}

// Register binds a factory to a provider name. Last registration wins;
// tests overwrite production bindings.
func (r *Registry) Register(p model.Provider, f Factory) {
	r.factories[p] = f
}

// ForRequest selects the capability for the request's provider.
func (r *Registry) ForRequest(req model.JoinRequest) (Capability, error) {
	f, ok := r.factories[req.Provider]
	if !ok {
		return nil, fmt.Errorf("no capability registered for provider %q", req.Provider)
	}
	return f(req)
}
