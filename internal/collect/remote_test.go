package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteProbeComputesDrift(t *testing.T) {
	// Remote clock 45 seconds behind local: drift must come out +45.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/info", r.URL.Path)
		fmt.Fprintf(w, `{"name":"testmint","time":%d}`, time.Now().Unix()-45)
	}))
	defer srv.Close()

	res := NewRemoteProbe(srv.URL, time.Second).Check(context.Background())

	assert.True(t, res.Health.Reachable)
	assert.GreaterOrEqual(t, res.Health.LatencyMs, int64(0))
	require.NotNil(t, res.Health.ClockDriftSec)
	assert.InDelta(t, 45, *res.Health.ClockDriftSec, 1)
	require.NotNil(t, res.Health.RemoteTimeUnix)
	assert.NotEmpty(t, res.Info)
}

func TestRemoteProbeNoTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"testmint"}`)
	}))
	defer srv.Close()

	res := NewRemoteProbe(srv.URL, time.Second).Check(context.Background())

	assert.True(t, res.Health.Reachable)
	assert.Nil(t, res.Health.ClockDriftSec)
	assert.Nil(t, res.Health.RemoteTimeUnix)
}

func TestRemoteProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewRemoteProbe(url, time.Second).Check(context.Background())

	assert.False(t, res.Health.Reachable)
	assert.GreaterOrEqual(t, res.Health.LatencyMs, int64(0))
	assert.NotEmpty(t, res.Health.Error)
	assert.Nil(t, res.Health.ClockDriftSec)
	assert.Nil(t, res.Info)
}

func TestRemoteProbeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewRemoteProbe(srv.URL, time.Second).Check(context.Background())

	assert.False(t, res.Health.Reachable)
	assert.NotEmpty(t, res.Health.Error)
}

func TestRemoteProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	start := time.Now()
	res := NewRemoteProbe(srv.URL, 50*time.Millisecond).Check(context.Background())

	assert.False(t, res.Health.Reachable)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "timeout must cut the probe short")
}

func TestFetchJSONErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRemoteProbe(srv.URL, time.Second).FetchJSON(context.Background(), "/v1/keysets")
	require.Error(t, err)
}
