// SPDX-License-Identifier: MIT

package lifecycle

import (
	"time"

	"github.com/meetkit/botd/internal/domain/session/model"
)

// DefaultBackoffStep is the linear backoff unit between join attempts.
const DefaultBackoffStep = 30 * time.Second

// Decision is the outcome of classifying a join-phase failure.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy decides retry vs. terminal for join-phase failures.
// The zero value is not usable; use NewPolicy.
type Policy struct {
	// DefaultMaxRetries bounds retries for unclassified failures.
	DefaultMaxRetries int
	// BackoffStep scales the linear backoff (retryCount * step).
	// Tests shrink it; production uses DefaultBackoffStep.
	BackoffStep time.Duration
}

// NewPolicy returns a policy with the given ceiling for unclassified
// failures and the default 30s backoff step.
func NewPolicy(defaultMaxRetries int) Policy {
	return Policy{DefaultMaxRetries: defaultMaxRetries, BackoffStep: DefaultBackoffStep}
}

// Decide applies the classification rules in order:
//
//  1. lobby timeout / explicit denial: never retried
//  2. KnownFailure with Retryable=false: terminal
//  3. KnownFailure whose MaxRetries would be exceeded: terminal
//  4. anything else: retried up to DefaultMaxRetries
//
// retryCount is the number of attempts already failed; the returned
// delay is linear in the next attempt number.
func (p Policy) Decide(err error, retryCount int) Decision {
	if err == nil {
		return Decision{}
	}
	if model.IsLobbyFailure(err) {
		return Decision{}
	}
	next := retryCount + 1
	if kf, ok := model.AsKnown(err); ok {
		if !kf.Retryable {
			return Decision{}
		}
		if next > kf.MaxRetries {
			return Decision{}
		}
		return Decision{Retry: true, Delay: time.Duration(next) * p.step()}
	}
	if next > p.DefaultMaxRetries {
		return Decision{}
	}
	return Decision{Retry: true, Delay: time.Duration(next) * p.step()}
}

func (p Policy) step() time.Duration {
	if p.BackoffStep > 0 {
		return p.BackoffStep
	}
	return DefaultBackoffStep
}
