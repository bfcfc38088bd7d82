// SPDX-License-Identifier: MIT

// Package storage defines the durable-upload collaborator surface and
// the local filesystem backend.
package storage

import (
	"context"
	"fmt"

	"github.com/meetkit/botd/internal/pipeline"
)

// Descriptor locates an uploaded recording. Uploaders that retry do so
// internally; an error from Upload means retries are exhausted.
type Descriptor struct {
	Backend     string `json:"backend"`
	Bucket      string `json:"bucket,omitempty"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Uploader hands a sealed artifact to durable storage.
type Uploader interface {
	Upload(ctx context.Context, artifact pipeline.Artifact) (Descriptor, error)
}

// Open creates an uploader for the configured backend. Object-store
// transports live outside this repo; their names are reserved so a
// misconfiguration fails loudly at startup rather than at upload time.
func Open(backend, root string) (Uploader, error) {
	switch backend {
	case "", "local":
		return NewLocal(root), nil
	case "s3", "azure":
		return nil, fmt.Errorf("storage backend %q requires the external uploader sidecar", backend)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}
