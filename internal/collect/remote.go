package collect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mintdeck/mintdeck/internal/models"
)

// DefaultProbeTimeout bounds the mint info probe.
const DefaultProbeTimeout = 10 * time.Second

// maxInfoBody caps how much of the info response is read; the mint's
// info payload is small and anything larger is suspect.
const maxInfoBody = 1 << 20

// InfoResult is the outcome of one probe: the health figures plus the
// raw info payload for passthrough to the dashboard when reachable.
type InfoResult struct {
	Health models.RemoteHealth
	Info   json.RawMessage
}

// RemoteProbe checks the mint's /v1/info endpoint with a hard timeout.
// Check never returns an error; every failure mode collapses into
// Reachable=false with the latency measured up to the failure point.
type RemoteProbe struct {
	baseURL string
	client  *http.Client
}

// NewRemoteProbe creates a probe against baseURL (scheme + host, no
// trailing slash required).
func NewRemoteProbe(baseURL string, timeout time.Duration) *RemoteProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &RemoteProbe{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured mint address.
func (p *RemoteProbe) BaseURL() string { return p.baseURL }

// Check issues one timed GET against the info endpoint.
func (p *RemoteProbe) Check(ctx context.Context) InfoResult {
	start := time.Now()
	fail := func(err error) InfoResult {
		return InfoResult{Health: models.RemoteHealth{
			Reachable: false,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/info", nil)
	if err != nil {
		return fail(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBody))
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return fail(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return InfoResult{Health: models.RemoteHealth{
			Reachable: false,
			LatencyMs: latency,
			Error:     resp.Status,
		}}
	}

	health := models.RemoteHealth{Reachable: true, LatencyMs: latency}

	// Drift is only computable when the mint reports its clock.
	var payload struct {
		Time *int64 `json:"time"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Time != nil {
		remote := *payload.Time
		drift := time.Now().Unix() - remote
		health.RemoteTimeUnix = &remote
		health.ClockDriftSec = &drift
	}

	return InfoResult{Health: health, Info: json.RawMessage(body)}
}

// FetchJSON issues a GET against the mint API path (for passthrough
// endpoints) and returns the raw body. Unlike Check, failures surface as
// errors: the caller decides how to report a failed proxy call.
func (p *RemoteProbe) FetchJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return json.RawMessage(body), nil
}

// RemoteStatusError reports a non-2xx reply from the mint.
type RemoteStatusError struct {
	Status int
	Body   string
}

func (e *RemoteStatusError) Error() string {
	return "mint returned status " + http.StatusText(e.Status)
}
