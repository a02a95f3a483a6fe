package sender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalis-app/probe/internal/cache"
	"github.com/vitalis-app/probe/internal/models"
)

type fakeBacklog struct {
	cached  []models.ReportPayload
	cleared int
}

func (b *fakeBacklog) Cache(p models.ReportPayload) { b.cached = append(b.cached, p) }
func (b *fakeBacklog) Clear()                       { b.cleared++ }

type fakeRecorder struct {
	ok     int
	failed []string
}

func (r *fakeRecorder) DeliverySucceeded()         { r.ok++ }
func (r *fakeRecorder) DeliveryFailed(kind string) { r.failed = append(r.failed, kind) }

func testPayload() models.ReportPayload {
	return models.ReportPayload{
		ClientID:      "3f1c2b9e-1d2a-4a55-9b0e-7d0c9f1a2b3c",
		ClientName:    "edge-01",
		ClientTags:    []string{"prod", "eu"},
		ClientPurpose: "web",
		Hostname:      "edge-01.local",
		Platform:      "linux",
		StaticInfo:    models.StaticInfo{CPUModel: "EPYC", CPUCores: 16},
		DynamicStatus: models.DynamicStatus{CPUUsage: 42, NetworkDownload: 2048},
	}
}

func TestDeliver_SuccessClearsBacklog(t *testing.T) {
	var gotPath, gotType string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	backlog := &fakeBacklog{}
	rec := &fakeRecorder{}
	c := New(srv.URL+"/", backlog, zap.NewNop(), WithRecorder(rec))

	require.NoError(t, c.Deliver(context.Background(), testPayload()))

	assert.Equal(t, "/api/reports", gotPath)
	assert.Equal(t, "application/json", gotType)
	for _, key := range []string{"clientId", "clientName", "clientTags", "clientPurpose", "hostname", "platform", "staticInfo", "dynamicStatus"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, 1, backlog.cleared)
	assert.Empty(t, backlog.cached)
	assert.Equal(t, 1, rec.ok)
}

// A successful fresh delivery clears the entire backlog, including entries
// that were never retried in this run. This is the chosen policy: the
// collector is reachable again, so older reports are not replayed.
func TestDeliver_SuccessClearsEntireBacklog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	backlog := cache.New(dir, 10, 3, zap.NewNop())
	for _, name := range []string{"stale-1", "stale-2", "stale-3"} {
		p := testPayload()
		p.ClientName = name
		backlog.Cache(p)
	}
	require.Equal(t, 3, backlog.Len())

	c := New(srv.URL, backlog, zap.NewNop())
	require.NoError(t, c.Deliver(context.Background(), testPayload()))

	assert.Zero(t, backlog.Len())
	data, err := os.ReadFile(filepath.Join(dir, cache.FileName))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

// endlessBody never reaches EOF.
type endlessBody struct{}

func (endlessBody) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}

func (endlessBody) Close() error { return nil }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestSend_BoundedResponseDrain(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       endlessBody{},
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})}
	c := New("http://collector.test", nil, zap.NewNop(), WithHTTPClient(hc))

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), testPayload()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Send kept reading an endless response body")
	}
}

func TestDeliver_ServerErrorCachesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backlog := &fakeBacklog{}
	rec := &fakeRecorder{}
	c := New(srv.URL, backlog, zap.NewNop(), WithRecorder(rec))

	err := c.Deliver(context.Background(), testPayload())
	require.Error(t, err)

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindServer, derr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, derr.StatusCode)
	assert.Contains(t, err.Error(), "503")

	require.Len(t, backlog.cached, 1)
	assert.Equal(t, "edge-01", backlog.cached[0].ClientName)
	assert.Zero(t, backlog.cleared)
	assert.Equal(t, []string{"server"}, rec.failed)
}

func TestDeliver_ConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	backlog := &fakeBacklog{}
	c := New(url, backlog, zap.NewNop())

	err := c.Deliver(context.Background(), testPayload())

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindNetwork, derr.Kind)
	assert.Len(t, backlog.cached, 1)
}

func TestDeliver_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	backlog := &fakeBacklog{}
	c := New(srv.URL, backlog, zap.NewNop(),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	err := c.Deliver(context.Background(), testPayload())

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindNetwork, derr.Kind)
	assert.Len(t, backlog.cached, 1)
}

func TestSend_NeverTouchesBacklog(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	backlog := &fakeBacklog{}
	c := New(srv.URL, backlog, zap.NewNop())

	assert.Error(t, c.Send(context.Background(), testPayload()))
	status.Store(http.StatusOK)
	assert.NoError(t, c.Send(context.Background(), testPayload()))

	assert.Empty(t, backlog.cached)
	assert.Zero(t, backlog.cleared)
}

func TestSend_InvalidURLIsOther(t *testing.T) {
	c := New("://bad", nil, zap.NewNop())

	err := c.Send(context.Background(), testPayload())

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindOther, derr.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "server", KindServer.String())
	assert.Equal(t, "other", KindOther.String())
}
