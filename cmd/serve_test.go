//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return &env{Store: st}
}

func seedReport(t *testing.T, e *env, addr string) {
	t.Helper()
	report := &model.Report{
		TokenTicker:     "TST",
		ContractAddress: addr,
		Chain:           model.ChainSolana,
		FinalScore:      78.5,
		FinalAssessment: model.AssessmentPositive,
		Timestamp:       time.Now().UTC(),
		MarketPosition:  model.NewDomainResult(80, "ok", nil),
		SocialSentiment: model.NewDomainResult(70, "ok", nil),
		HolderAnalysis:  model.NewDomainResult(80, "ok", nil),
		TokenSafety:     model.NewDomainResult(85, "ok", nil),
	}
	require.NoError(t, e.Store.WriteOnce(context.Background(), report))
}

func TestBuildRouter_Health(t *testing.T) {
	router := buildRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_Analyze_Accepted(t *testing.T) {
	// With a nil orchestrator, the goroutine returns without running.
	router := buildRouter(context.Background(), newTestEnv(t))

	payload, _ := json.Marshal(map[string]string{
		"ticker":           "TST",
		"contract_address": "mint123",
		"chain":            "solana",
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "mint123", resp["contract"])
	assert.NotEmpty(t, resp["run_id"])

	time.Sleep(10 * time.Millisecond)
}

func TestBuildRouter_Analyze_Invalid(t *testing.T) {
	router := buildRouter(context.Background(), newTestEnv(t))

	tests := []struct {
		name string
		body string
	}{
		{"malformed_json", `{nope`},
		{"unknown_chain", `{"ticker": "TST", "contract_address": "mint123", "chain": "dogechain"}`},
		{"missing_ticker", `{"contract_address": "mint123", "chain": "solana"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte(tt.body))))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestBuildRouter_Reports(t *testing.T) {
	e := newTestEnv(t)
	seedReport(t, e, "mint123")
	router := buildRouter(context.Background(), e)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?chain=solana", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var reports []model.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "mint123", reports[0].ContractAddress)
}

func TestBuildRouter_ReportByAddress(t *testing.T) {
	e := newTestEnv(t)
	seedReport(t, e, "mint123")
	router := buildRouter(context.Background(), e)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/mint123", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var report model.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 78.5, report.FinalScore)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildRouter_Metrics(t *testing.T) {
	e := newTestEnv(t)
	seedReport(t, e, "mint123")
	router := buildRouter(context.Background(), e)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap["reports_total"])
}

func TestBuildRouter_Cors(t *testing.T) {
	router := buildRouter(context.Background(), newTestEnv(t))

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunServer_GracefulDrain(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusNoContent)
	})

	// Find a free port.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := &http.Server{Addr: addr, Handler: mux}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- runServer(ctx, srv) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/ok")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	codes := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err != nil {
			codes <- 0
			return
		}
		resp.Body.Close()
		codes <- resp.StatusCode
	}()

	<-started
	cancel()
	// Shutdown is underway; the in-flight request must still complete.
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Equal(t, http.StatusNoContent, <-codes)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
