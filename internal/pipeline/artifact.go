// SPDX-License-Identifier: MIT

package pipeline

import "time"

// Artifact is the sealed recording produced by the durable sink.
// Never mutated after sealing; owned by the upload coordinator.
type Artifact struct {
	Path        string
	Size        int64
	ContentType string
	SealedAt    time.Time
}
