// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/meetkit/botd/internal/metrics"
)

// Spool is the durable sink. Chunks are appended in order to a pending
// file; Seal promotes it atomically so a crash mid-recording never
// leaves a half-written file under the final name.
type Spool struct {
	pending *renameio.PendingFile
	path    string
	size    int64
	ctype   string
	sealed  bool
}

// NewSpool creates the pending recording file under dir. The final name
// is derived from the correlation ID so one session maps to one file.
func NewSpool(dir, correlationID, contentType string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	final := filepath.Join(dir, correlationID+extensionFor(contentType))
	pending, err := renameio.NewPendingFile(final,
		renameio.WithTempDir(dir),
		renameio.WithPermissions(0o640),
	)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &Spool{pending: pending, path: final, ctype: contentType}, nil
}

// Append writes one chunk. An error here is session-fatal: the primary
// deliverable can no longer be produced.
func (s *Spool) Append(c Chunk) error {
	n, err := s.pending.Write(c.Data)
	s.size += int64(n)
	if err != nil {
		metrics.RecordChunk("durable", "error", 0)
		return fmt.Errorf("spool write (seq=%d): %w", c.Seq, err)
	}
	metrics.RecordChunk("durable", "ok", n)
	return nil
}

// Seal fsyncs and atomically renames the pending file into place,
// producing the immutable recording artifact.
func (s *Spool) Seal() (Artifact, error) {
	if s.sealed {
		return Artifact{}, fmt.Errorf("spool already sealed")
	}
	if err := s.pending.CloseAtomicallyReplace(); err != nil {
		return Artifact{}, fmt.Errorf("seal spool: %w", err)
	}
	s.sealed = true
	return Artifact{
		Path:        s.path,
		Size:        s.size,
		ContentType: s.ctype,
		SealedAt:    time.Now(),
	}, nil
}

// Abort discards the pending file. Safe after a failed Append or when
// the session fails before sealing; a no-op once sealed.
func (s *Spool) Abort() {
	if s.sealed {
		return
	}
	_ = s.pending.Cleanup()
}

func extensionFor(contentType string) string {
	switch contentType {
	case "video/mp4":
		return ".mp4"
	case "audio/webm":
		return ".weba"
	default:
		return ".webm"
	}
}
