// SPDX-License-Identifier: MIT

// Package pipeline moves captured media chunks from the capture surface
// to the durable recording sink and an optional live restream sink.
package pipeline

import "time"

// Chunk is one captured media fragment. Chunks arrive roughly every
// two seconds; Seq is strictly increasing per session.
type Chunk struct {
	Seq  int
	Data []byte
	At   time.Time
}
