// SPDX-License-Identifier: MIT

package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meetkit/botd/internal/domain/session/model"
)

func TestJoinRequest_Validate(t *testing.T) {
	valid := model.JoinRequest{
		Provider:   model.ProviderZoom,
		MeetingURL: "https://zoom.example.com/j/123456",
		TeamID:     "team-1",
		UserID:     "user-1",
	}

	tests := []struct {
		name    string
		mutate  func(*model.JoinRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*model.JoinRequest) {}},
		{
			name:    "unknown provider",
			mutate:  func(r *model.JoinRequest) { r.Provider = "webex" },
			wantErr: "unknown provider",
		},
		{
			name:    "empty url",
			mutate:  func(r *model.JoinRequest) { r.MeetingURL = "  " },
			wantErr: "meeting url",
		},
		{
			name:    "non-http scheme",
			mutate:  func(r *model.JoinRequest) { r.MeetingURL = "ftp://zoom.example.com/j/1" },
			wantErr: "unsupported scheme",
		},
		{
			name:    "missing team",
			mutate:  func(r *model.JoinRequest) { r.TeamID = "" },
			wantErr: "teamId",
		},
		{
			name:    "missing user",
			mutate:  func(r *model.JoinRequest) { r.UserID = "" },
			wantErr: "userId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSessionRecord_CloneIsDeep(t *testing.T) {
	rec := model.NewRecord("corr-1", model.JoinRequest{
		Provider:            model.ProviderTeams,
		MeetingURL:          "https://teams.example.com/m/1",
		TeamID:              "t",
		UserID:              "u",
		WebinarRegistration: map[string]string{"email": "a@example.com"},
	}, time.Now())

	cp := rec.Clone()
	cp.History[0].Note = "mutated"
	cp.Request.WebinarRegistration["email"] = "b@example.com"

	assert.Empty(t, rec.History[0].Note)
	assert.Equal(t, "a@example.com", rec.Request.WebinarRegistration["email"])
}

func TestKnownFailure_Unwrap(t *testing.T) {
	cause := assert.AnError
	kf := model.NewKnownFailure(model.FailUpload, "put failed", false, 0, cause)

	got, ok := model.AsKnown(kf)
	assert.True(t, ok)
	assert.Equal(t, model.FailUpload, got.Kind)
	assert.ErrorIs(t, kf, cause)
	assert.Contains(t, kf.Error(), "put failed")
}

func TestEndCondition_Fatal(t *testing.T) {
	assert.True(t, model.EndFatalError.Fatal())
	for _, c := range []model.EndCondition{
		model.EndDurationExceeded,
		model.EndInactivityTimeout,
		model.EndHostEnded,
		model.EndLoneParticipant,
		model.EndExplicitStop,
	} {
		assert.False(t, c.Fatal(), "%s must complete the session", c)
	}
}
