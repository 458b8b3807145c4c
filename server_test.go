package gogoblin

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ledger LedgerClient) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(newTestEngine(ledger)))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServerIndexAndHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newStubLedger())

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "index", path: "/", want: "Goblin"},
		{name: "health", path: "/healthz", want: `"status":"ok"`},
		{name: "prometheus", path: "/metrics", want: "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.want)
		})
	}
}

func TestServerValidateAddress(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newStubLedger())
	valid := testAddress(t, 9)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantValid  bool
		wantReason InvalidReason
	}{
		{name: "valid", body: `{"address":"` + valid + `"}`, wantStatus: http.StatusOK, wantValid: true},
		{name: "system program", body: `{"address":"` + SystemProgramID + `"}`, wantStatus: http.StatusOK, wantValid: true},
		{name: "bad format", body: `{"address":"0OIl"}`, wantStatus: http.StatusBadRequest, wantReason: ReasonInvalidFormat},
		{name: "off curve", body: `{"address":"` + offCurveAddress(t) + `"}`, wantStatus: http.StatusBadRequest, wantReason: ReasonNotOnCurve},
		{name: "missing", body: `{}`, wantStatus: http.StatusBadRequest, wantReason: ReasonInvalidFormat},
		{name: "wrong type", body: `{"address":42}`, wantStatus: http.StatusBadRequest, wantReason: ReasonInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/api/validate-address", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var decoded validateAddressResponse
			require.NoError(t, json.Unmarshal(body, &decoded))
			assert.Equal(t, tt.wantValid, decoded.Valid)
			assert.Equal(t, tt.wantReason, decoded.Reason)
			if !tt.wantValid {
				assert.NotEmpty(t, decoded.Error)
			}
		})
	}
}

func TestServerMetricsRejectsEmptyAddresses(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newStubLedger())

	for _, body := range []string{`{}`, `{"addresses":[]}`, `{"addresses":"abc"}`} {
		resp, data := postJSON(t, ts.URL+"/api/metrics", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, string(data), "addresses must be a non-empty array")
	}
}

func TestServerMetricsRejectsInvertedRange(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newStubLedger())
	body := `{"addresses":["` + testAddress(t, 1) + `"],"range":"custom","start":"2024-03-20T00:00:00Z","end":"2024-03-10T00:00:00Z"}`

	resp, _ := postJSON(t, ts.URL+"/api/metrics", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	alice := testAddress(t, 1)
	bob := testAddress(t, 2)

	ledger := newStubLedger()
	ledger.addTransfer("s1", time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC), alice, bob, 1_500_000_000)

	ts := newTestServer(t, ledger)
	body := `{"addresses":["` + alice + `","bad"],"start":"2024-03-10T00:00:00Z","end":"2024-03-20T00:00:00Z"}`

	resp, data := postJSON(t, ts.URL+"/api/metrics", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"totalTransactions", "totalSOLVolume", "totalUSDCVolume", "addressMetrics", "dailyData", "fetchedAt"} {
		assert.Contains(t, raw, key)
	}

	var metrics AggregateMetrics
	require.NoError(t, json.Unmarshal(data, &metrics))
	assert.Equal(t, 1, metrics.TotalTransactions)
	assert.InDelta(t, 1.5, metrics.TotalSOLVolume, 1e-12)
	assert.Equal(t, testNow, metrics.FetchedAt)

	require.Contains(t, metrics.PerAddress, alice)
	assert.Equal(t, DailyBucket{Count: 1, SOLVolume: 1.5}, metrics.PerAddress[alice].DailyData["2024-03-12"])
	require.Contains(t, metrics.PerAddress, "bad")
	assert.NotEmpty(t, metrics.PerAddress["bad"].Error)
}
