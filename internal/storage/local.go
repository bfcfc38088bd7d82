// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/meetkit/botd/internal/pipeline"
)

// Local stores recordings under a directory tree. It is the default
// backend for single-host deployments and tests.
type Local struct {
	root string
}

// NewLocal creates a filesystem uploader rooted at root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Upload copies the artifact into the store atomically and reports a
// file URL that round-trips to byte-identical content.
func (l *Local) Upload(ctx context.Context, artifact pipeline.Artifact) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	if err := os.MkdirAll(l.root, 0o750); err != nil {
		return Descriptor{}, fmt.Errorf("create storage root: %w", err)
	}

	key := filepath.Base(artifact.Path)
	dst := filepath.Join(l.root, key)

	src, err := os.Open(artifact.Path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = src.Close() }()

	pending, err := renameio.NewPendingFile(dst, renameio.WithTempDir(l.root), renameio.WithPermissions(0o640))
	if err != nil {
		return Descriptor{}, fmt.Errorf("create upload target: %w", err)
	}
	if _, err := io.Copy(pending, src); err != nil {
		_ = pending.Cleanup()
		return Descriptor{}, fmt.Errorf("copy artifact: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return Descriptor{}, fmt.Errorf("finalize upload: %w", err)
	}

	return Descriptor{
		Backend:     "local",
		Key:         key,
		URL:         "file://" + dst,
		ContentType: artifact.ContentType,
		Size:        artifact.Size,
	}, nil
}
