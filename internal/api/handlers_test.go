// SPDX-License-Identifier: MIT

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetkit/botd/internal/admission"
	"github.com/meetkit/botd/internal/api"
	"github.com/meetkit/botd/internal/domain/session/lifecycle"
	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/domain/session/runner"
	"github.com/meetkit/botd/internal/domain/session/store"
	"github.com/meetkit/botd/internal/notify"
	"github.com/meetkit/botd/internal/pipeline"
	"github.com/meetkit/botd/internal/provider"
	"github.com/meetkit/botd/internal/storage"
)

// slowCapability parks in the lobby so the session slot stays occupied
// for the duration of a test.
type slowCapability struct{}

func (slowCapability) Join(context.Context, model.JoinRequest) (provider.JoinOutcome, error) {
	return provider.OutcomeLobby, nil
}

func (slowCapability) AwaitAdmission(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowCapability) Monitor(ctx context.Context) <-chan provider.EndEvent {
	out := make(chan provider.EndEvent)
	go func() {
		defer close(out)
		<-ctx.Done()
	}()
	return out
}

func (slowCapability) Capture(context.Context) (<-chan pipeline.Chunk, error) {
	ch := make(chan pipeline.Chunk)
	close(ch)
	return ch, nil
}

func (slowCapability) Leave(context.Context) error { return nil }

// faultyStore simulates a status-store outage on writes.
type faultyStore struct {
	store.StatusStore
}

func (faultyStore) Put(context.Context, *model.SessionRecord) error {
	return errors.New("badger: disk full")
}

type testEnv struct {
	srv     *api.Server
	store   store.StatusStore
	cancel  context.CancelFunc
	manager *runner.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, store.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, st store.StatusStore) *testEnv {
	t.Helper()

	registry := provider.NewRegistry()
	for _, p := range []model.Provider{model.ProviderZoom, model.ProviderMeet, model.ProviderTeams} {
		registry.Register(p, func(model.JoinRequest) (provider.Capability, error) {
			return slowCapability{}, nil
		})
	}

	uploader, err := storage.Open("local", t.TempDir())
	require.NoError(t, err)

	r := runner.New(runner.Deps{
		Gate:      admission.NewGate(),
		Providers: registry,
		Uploader:  uploader,
		Notifier:  notify.NewDispatcher(zerolog.Nop()),
		Store:     st,
	}, runner.Config{
		LobbyWaitCeiling:     time.Minute,
		MaxRecordingDuration: time.Minute,
		StopTimeout:          time.Second,
		SpoolDir:             t.TempDir(),
		ContentType:          "video/webm",
		Policy:               lifecycle.NewPolicy(0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	m := runner.NewManager(ctx, r)
	t.Cleanup(func() {
		cancel()
		m.Wait()
	})

	return &testEnv{
		srv:     api.NewServer(m, st, 0, nil),
		store:   st,
		cancel:  cancel,
		manager: m,
	}
}

func joinBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(model.JoinRequest{
		Provider:   model.ProviderMeet,
		MeetingURL: "https://meet.example.com/abc",
		TeamID:     "team-1",
		UserID:     "user-1",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestJoin_AcceptedThenBusy(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", joinBody(t)))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted["correlationId"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", joinBody(t)))
	assert.Equal(t, http.StatusConflict, rr.Code, "second join while busy must be rejected")
}

func TestJoin_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rr, httptest.NewRequest(
		http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJoin_InvalidRequest(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(model.JoinRequest{Provider: "webex", MeetingURL: "https://x", TeamID: "t", UserID: "u"})

	rr := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown provider")
}

func TestJoin_StoreWriteFailure(t *testing.T) {
	env := newTestEnvWithStore(t, faultyStore{store.NewMemoryStore()})
	router := env.srv.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", joinBody(t)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code, "persistence fault is not the client's error")
	assert.Contains(t, rr.Body.String(), "status store unavailable")

	// The slot must come back so a later request can be admitted.
	assert.False(t, env.manager.Busy())
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()

	rec := model.NewRecord("corr-known", model.JoinRequest{
		Provider:   model.ProviderZoom,
		MeetingURL: "https://zoom.example.com/j/1",
		TeamID:     "t",
		UserID:     "u",
	}, time.Now())
	require.NoError(t, env.store.Put(context.Background(), rec))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/corr-known", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.SessionRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "corr-known", got.CorrelationID)
	assert.Equal(t, model.StateJoining, got.State)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/corr-missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, false, status["busy"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", joinBody(t)))
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, true, status["busy"])
	assert.NotEmpty(t, status["correlationId"])
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	env := newTestEnv(t)
	srv := api.NewServer(env.manager, env.store, 0, func() bool { return false })

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	router.ServeHTTP(rr, req)
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-Id"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"), "a request id must be minted when absent")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
