package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/util"
)

func newTestServer(t *testing.T) (*device.MockClient, *daemon.Engine, http.Handler) {
	t.Helper()

	dir := t.TempDir()
	cfg := util.DefaultConfig()
	cfg.DataDir = dir
	cfg.LogFile = ""
	cfg.RecordingsDir = filepath.Join(dir, "recordings")

	client := device.NewMockClient(gomock.NewController(t))
	e, err := daemon.New(cfg, daemon.WithClient(client), daemon.WithoutPersistence())
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	e.Registry().ReplaceAll(map[string]model.DeviceReading{
		"10.0.0.2":  {Address: "10.0.0.2", Model: "Antminer S19", Hashrate: model.Float(95), Power: model.Float(3250)},
		"10.0.0.10": {Address: "10.0.0.10", Model: "Whatsminer M30S", Hashrate: model.Float(88), Power: model.Float(3400)},
	})

	return client, e, NewServer(e, 0).Routes()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIGetMinersSortsAndFilters(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/miners?sort=hashrate&desc=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []model.MinerEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "10.0.0.2", entries[0].Address)

	rec = do(h, http.MethodGet, "/api/miners?search=whatsminer", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "10.0.0.10", entries[0].Address)

	rec = do(h, http.MethodGet, "/api/miners?sort=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIGetMiner(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/miners/10.0.0.2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Antminer S19")

	rec = do(h, http.MethodGet, "/api/miners/10.0.0.99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIMinerAction(t *testing.T) {
	client, _, h := newTestServer(t)

	client.EXPECT().Pause(gomock.Any(), "10.0.0.2").Return(nil)
	client.EXPECT().Fetch(gomock.Any(), "10.0.0.2").Return(model.DeviceReading{Address: "10.0.0.2"}, nil).AnyTimes()

	rec := do(h, http.MethodPost, "/api/miners/10.0.0.2/pause", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	client.EXPECT().Resume(gomock.Any(), "10.0.0.10").Return(errors.New("connection refused"))
	rec = do(h, http.MethodPost, "/api/miners/10.0.0.10/resume", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(h, http.MethodPost, "/api/miners/10.0.0.2/reboot", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/miners/10.0.0.2/refresh", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAPIStartScan(t *testing.T) {
	client, e, h := newTestServer(t)

	release := make(chan struct{})
	client.EXPECT().Enumerate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ iprange.Range) ([]model.DeviceReading, error) {
			<-release
			return nil, nil
		})
	defer close(release)

	rec := do(h, http.MethodPost, "/api/scan", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no saved ranges")

	rec = do(h, http.MethodPost, "/api/scan", `{"start":"10.0.0.1","end":"10.0.1.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "subnet mismatch")

	rec = do(h, http.MethodPost, "/api/scan", `{"start":"10.0.0.1","end":"10.0.0.5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, e.Progress().IsScanning())

	rec = do(h, http.MethodPost, "/api/scan", `{"start":"10.0.0.1","end":"10.0.0.5"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPIExport(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Address", rows[0][0])
	assert.Equal(t, "10.0.0.2", rows[1][0])
}

func TestAPIStatsAndDashboard(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2.0, stats["count"])
	assert.InDelta(t, 183.0, stats["total_hashrate_ths"], 1e-9)

	rec = do(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "10.0.0.10")

	rec = do(h, http.MethodGet, "/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "#")
}

func TestAPIGetProgressIdle(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["scanning"])
	assert.Equal(t, 0.0, body["elapsed_seconds"])
	assert.Equal(t, 0.0, body["last_pass_seconds"])
}
