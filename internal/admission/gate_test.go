// SPDX-License-Identifier: MIT

package admission_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetkit/botd/internal/admission"
)

func TestGate_SingleWinnerUnderContention(t *testing.T) {
	gate := admission.NewGate()

	const contenders = 64
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			if ok, reason := gate.TryAcquire(fmt.Sprintf("corr-%d", id)); ok {
				assert.Equal(t, admission.ReasonAdmitted, reason)
				admitted.Add(1)
			} else {
				assert.Equal(t, admission.ReasonBusy, reason)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.True(t, gate.Busy())
}

func TestGate_ReleaseIsKeyed(t *testing.T) {
	gate := admission.NewGate()

	ok, _ := gate.TryAcquire("corr-a")
	require.True(t, ok)

	// A stale release must not free the slot for the live holder.
	gate.Release("corr-b")
	assert.True(t, gate.Busy())
	assert.Equal(t, "corr-a", gate.Holder())

	gate.Release("corr-a")
	assert.False(t, gate.Busy())
	assert.Empty(t, gate.Holder())
}

func TestGate_ReleaseIsIdempotent(t *testing.T) {
	gate := admission.NewGate()

	ok, _ := gate.TryAcquire("corr-a")
	require.True(t, ok)

	gate.Release("corr-a")
	gate.Release("corr-a")

	ok, _ = gate.TryAcquire("corr-b")
	assert.True(t, ok)

	// The old holder's late release must not evict the new one.
	gate.Release("corr-a")
	assert.Equal(t, "corr-b", gate.Holder())
}

func TestGate_SequentialReuse(t *testing.T) {
	gate := admission.NewGate()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("corr-%d", i)
		ok, _ := gate.TryAcquire(id)
		require.True(t, ok, "slot should be free on iteration %d", i)

		ok, reason := gate.TryAcquire("intruder")
		require.False(t, ok)
		require.Equal(t, admission.ReasonBusy, reason)

		gate.Release(id)
	}
	assert.False(t, gate.Busy())
}
