// SPDX-License-Identifier: MIT

// Package notify dispatches completion notifications. Delivery is
// strictly best-effort: once the upload has succeeded, no channel
// failure can change the session's terminal status.
package notify

import (
	"time"

	"github.com/meetkit/botd/internal/storage"
)

// Metadata carries the bookkeeping fields consumers key on.
type Metadata struct {
	UserID       string             `json:"userId"`
	TeamID       string             `json:"teamId"`
	BotID        string             `json:"botId,omitempty"`
	ContentType  string             `json:"contentType"`
	UploaderType string             `json:"uploaderType"`
	Storage      storage.Descriptor `json:"storage"`
}

// Payload is sent identically to every enabled channel, once per
// completed upload.
type Payload struct {
	RecordingID string    `json:"recordingId"`
	MeetingLink string    `json:"meetingLink"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Metadata    Metadata  `json:"metadata"`
	BlobURL     string    `json:"blobUrl,omitempty"`
}
