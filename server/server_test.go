package server_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/nspcc-dev/nosedive/server"
	"github.com/nspcc-dev/nosedive/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	callerHeader = "X-Caller-Identity"
	admin        = "admin"
)

type testServer struct {
	h     http.Handler
	clock *clock.Mock
}

func newTestServer(t *testing.T) *testServer {
	reg := prometheus.NewRegistry()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	svc, err := service.New(service.Prm{
		Logger:     zaptest.NewLogger(t),
		Store:      storage.NewMemoryStore(),
		Clock:      clk,
		Admin:      admin,
		Registerer: reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	srv, err := server.New(server.Prm{
		Logger:       zaptest.NewLogger(t),
		Ledger:       svc,
		CallerHeader: callerHeader,
		Gatherer:     reg,
	})
	require.NoError(t, err)

	return &testServer{h: srv, clock: clk}
}

func (s *testServer) do(method, path, caller, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}

	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	_, err := server.New(server.Prm{CallerHeader: callerHeader})
	require.Error(t, err)

	_, err = server.New(server.Prm{Ledger: failingLedger{}})
	require.Error(t, err)
}

func TestServer_Register(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/register", "alice", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, rec.Header().Get(server.RequestIDHeader))

	rec = s.do(http.MethodPost, "/register", "alice", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"error":"this account has already been registered: [alice]"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/register", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/status/alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"rating":2,"given":0,"received":1}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/status/bob", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "[bob]")

	rec = s.do(http.MethodGet, "/register", "alice", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Rate(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"alice", "bob"} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/register", id, "").Code)
	}

	rec := s.do(http.MethodPost, "/rate/alice", "bob", `{"rating":4.5}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/status/alice", "", "")
	require.JSONEq(t, `{"rating":2.625,"given":0,"received":2}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/status/bob", "", "")
	require.JSONEq(t, `{"rating":2,"given":1,"received":1}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/rate/alice", "bob", `{"rating":4.5}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "300", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "you have rated this account recently, try again later")

	s.clock.Add(299*time.Second + time.Millisecond)
	rec = s.do(http.MethodPost, "/rate/alice", "bob", `{"rating":4.5}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	for name, tc := range map[string]struct {
		path, caller, body string
		code               int
	}{
		"invalid rating": {"/rate/alice", "bob", `{"rating":4.3}`, http.StatusBadRequest},
		"out of range":   {"/rate/alice", "bob", `{"rating":5.5}`, http.StatusBadRequest},
		"self rating":    {"/rate/bob", "bob", `{"rating":3}`, http.StatusBadRequest},
		"missing rating": {"/rate/alice", "bob", `{}`, http.StatusBadRequest},
		"unknown field":  {"/rate/alice", "bob", `{"rating":3,"stars":1}`, http.StatusBadRequest},
		"broken body":    {"/rate/alice", "bob", `{"rating":`, http.StatusBadRequest},
		"unknown ratee":  {"/rate/carol", "bob", `{"rating":3}`, http.StatusNotFound},
		"unknown rater":  {"/rate/alice", "carol", `{"rating":3}`, http.StatusNotFound},
		"missing caller": {"/rate/alice", "", `{"rating":3}`, http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tc.path, tc.caller, tc.body)
			require.Equal(t, tc.code, rec.Code)
			require.NotEmpty(t, rec.Body.String())
		})
	}

	rec = s.do(http.MethodGet, "/status/alice", "", "")
	require.JSONEq(t, `{"rating":2.625,"given":0,"received":2}`, rec.Body.String())
}

func TestServer_Timestamps(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"alice", "bob"} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/register", id, "").Code)
	}

	rec := s.do(http.MethodGet, "/timestamps/alice", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())

	require.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/rate/alice", "bob", `{"rating":1}`).Code)

	rec = s.do(http.MethodGet, "/timestamps/alice", "bob", "")
	require.JSONEq(t, `{"you_rated_at":1704067200000000000}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/timestamps/bob", "alice", "")
	require.JSONEq(t, `{"they_rated_at":1704067200000000000}`, rec.Body.String())

	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/timestamps/alice", "", "").Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/timestamps/carol", "bob", "").Code)
}

func TestServer_Patch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/policy", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"cooldown_seconds":300,"rejection_message":"you have rated this account recently, try again later"}`, rec.Body.String())

	const setTwo = `{"patches":[{"set_voting_interval":{"cooldown_seconds":2,"rejection_message":"slow down"}}]}`

	rec = s.do(http.MethodPost, "/patch", "alice", setTwo)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/patch", admin, setTwo)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/policy", "", "")
	require.JSONEq(t, `{"cooldown_seconds":2,"rejection_message":"slow down"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/patch", admin, `{"patches":[{"set_voting_interval":null}]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/policy", "", "")
	require.JSONEq(t, `null`, rec.Body.String())

	rec = s.do(http.MethodPost, "/patch", admin, `{"patches":[]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	for name, body := range map[string]string{
		"unknown kind": `{"patches":[{"set_fee":1}]}`,
		"two kinds":    `{"patches":[{"set_voting_interval":null,"set_fee":1}]}`,
		"no kind":      `{"patches":[{}]}`,
		"bad interval": `{"patches":[{"set_voting_interval":{"cooldown_seconds":-1}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/patch", admin, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec = s.do(http.MethodGet, "/policy", "", "")
	require.JSONEq(t, `null`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/register", "alice", "").Code)
	require.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/register", "alice", "").Code)

	rec := s.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `nosedive_invocations_total{method="register",result="ok"} 1`)
	require.Contains(t, body, `nosedive_invocations_total{method="register",result="already_registered"} 1`)
	require.Contains(t, body, `nosedive_registered_identities 1`)
}

func TestServer_RequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/policy", nil)
	req.Header.Set(server.RequestIDHeader, "req-1")

	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	require.Equal(t, "req-1", rec.Header().Get(server.RequestIDHeader))
}

type failingLedger struct{}

var errStorage = errors.New("disk is on fire")

func (failingLedger) Register(ledger.Identity) error { return errStorage }

func (failingLedger) Status(ledger.Identity) (ledger.UserState, error) {
	return ledger.UserState{}, errStorage
}

func (failingLedger) RatingTimestamps(_, _ ledger.Identity) (ledger.Timestamps, error) {
	return ledger.Timestamps{}, errStorage
}

func (failingLedger) Rate(_, _ ledger.Identity, _ float32) error { return errStorage }

func (failingLedger) PatchState(ledger.Identity, []ledger.Patch) error { return errStorage }

func (failingLedger) Policy() (*ledger.ThrottlePolicy, error) { return nil, errStorage }

func TestServer_InternalError(t *testing.T) {
	srv, err := server.New(server.Prm{
		Logger:       zaptest.NewLogger(t),
		Ledger:       failingLedger{},
		CallerHeader: callerHeader,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/status/alice", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	require.NotContains(t, rec.Body.String(), errStorage.Error())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
