// SPDX-License-Identifier: MIT

package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// JoinRequest describes one meeting the bot should join and record.
// Immutable once accepted; it correlates to exactly one session.
type JoinRequest struct {
	Provider    Provider `json:"provider"`
	MeetingURL  string   `json:"meetingUrl"`
	DisplayName string   `json:"displayName,omitempty"`
	TeamID      string   `json:"teamId"`
	UserID      string   `json:"userId"`
	BearerToken string   `json:"bearerToken,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	BotID       string   `json:"botId,omitempty"`
	EventID     string   `json:"eventId,omitempty"`

	// WebinarRegistration carries provider-specific registration data for
	// webinars that require it; opaque to the core.
	WebinarRegistration map[string]string `json:"webinarRegistration,omitempty"`
}

var errEmptyMeetingURL = errors.New("meeting url must not be empty")

// Validate checks the request before admission. It rejects unknown
// providers and malformed meeting URLs so a session is never created
// for a request the automation surface cannot act on.
func (r JoinRequest) Validate() error {
	if !r.Provider.Known() {
		return fmt.Errorf("unknown provider %q", r.Provider)
	}
	if strings.TrimSpace(r.MeetingURL) == "" {
		return errEmptyMeetingURL
	}
	u, err := url.Parse(r.MeetingURL)
	if err != nil {
		return fmt.Errorf("meeting url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("meeting url: unsupported scheme %q", u.Scheme)
	}
	if r.TeamID == "" {
		return errors.New("teamId must not be empty")
	}
	if r.UserID == "" {
		return errors.New("userId must not be empty")
	}
	return nil
}
