package workspace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlersEnv(t *testing.T) (http.Handler, *Service, *EventBus) {
	t.Helper()
	root := t.TempDir()
	osfs := afero.NewOsFs()
	writeTree(t, osfs, root, map[string]string{
		"a.txt":              "alpha",
		"b/c.txt":            "charlie",
		"node_modules/x.txt": "x-ray",
	})
	setMtime(t, osfs, root+"/b/c.txt", time.Now().Add(-48*time.Hour))
	setMtime(t, osfs, root+"/a.txt", time.Now().Add(-time.Minute))

	bus := NewEventBus()
	svc := NewService(ServiceConfig{
		Fs:       osfs,
		Root:     root,
		Pattern:  func() string { return "^node_modules$" },
		Notifier: bus,
	})
	t.Cleanup(svc.Close)
	return NewHandlers(svc, bus).Router(), svc, bus
}

func doRequest(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleRecent_Empty(t *testing.T) {
	h, _, _ := setupHandlersEnv(t)

	w := doRequest(t, h, http.MethodGet, "/api/recent", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["items"].([]interface{})
	assert.Empty(t, items)
}

func TestHandleRecent_WithData(t *testing.T) {
	h, svc, _ := setupHandlersEnv(t)
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	w := doRequest(t, h, http.MethodGet, "/api/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []RecentItemResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "a.txt", resp.Items[0].RelativePath)
	assert.Equal(t, FreshToday, resp.Items[0].Freshness)
	assert.Contains(t, resp.Items[0].Age, "ago")
	assert.Equal(t, "b/c.txt", resp.Items[1].RelativePath)
	assert.Equal(t, FreshWeek, resp.Items[1].Freshness)

	w = doRequest(t, h, http.MethodGet, "/api/recent?limit=1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)

	w = doRequest(t, h, http.MethodGet, "/api/recent?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRefresh(t *testing.T) {
	h, svc, _ := setupHandlersEnv(t)

	w := doRequest(t, h, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["files"])
	assert.Equal(t, 2, svc.Ranked().Len())

	w = doRequest(t, h, http.MethodGet, "/api/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_MethodMismatch(t *testing.T) {
	h, _, _ := setupHandlersEnv(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/compress", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/compress/selection", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/recent", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/stats", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := doRequest(t, h, tt.method, tt.target, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleCompress(t *testing.T) {
	h, svc, _ := setupHandlersEnv(t)

	w := doRequest(t, h, http.MethodPost, "/api/compress", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res ArchiveResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, strings.HasPrefix(res.OutputPath, svc.Root()))
	assert.True(t, strings.HasSuffix(res.OutputPath, ".zip"))
	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, FormatSize(res.SizeBytes), res.HumanSize)
}

func TestHandleCompressSelection(t *testing.T) {
	h, svc, _ := setupHandlersEnv(t)

	body, _ := json.Marshal(SelectionRequest{Paths: []string{"b"}})
	w := doRequest(t, h, http.MethodPost, "/api/compress/selection", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	names, err := ListArchive(context.Background(), afero.NewOsFs(), svc.Root()+"/"+SelectionArchiveName)
	require.NoError(t, err)
	assert.Equal(t, []string{"b/c.txt"}, names)
}

func TestHandleCompressSelection_Errors(t *testing.T) {
	h, _, _ := setupHandlersEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{not json", http.StatusBadRequest},
		{"empty selection", `{"paths": []}`, http.StatusBadRequest},
		{"outside root", `{"paths": ["/etc/passwd"]}`, http.StatusBadRequest},
		{"missing item", `{"paths": ["nope.txt"]}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPost, "/api/compress/selection", []byte(tt.body))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHandleStats(t *testing.T) {
	h, svc, _ := setupHandlersEnv(t)
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	w := doRequest(t, h, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, svc.Root(), resp.Root)
	assert.Equal(t, 2, resp.Files)
	assert.False(t, resp.LastScan.IsZero())
	assert.False(t, resp.RefreshPending)
	assert.NotZero(t, resp.DiskTotal)
}

func TestMetricsEndpoint(t *testing.T) {
	h, svc, _ := setupHandlersEnv(t)
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	w := doRequest(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vsxc_scans_total")
}

func TestHandleSSE(t *testing.T) {
	h, _, bus := setupHandlersEnv(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	// Keep publishing until the handler has subscribed and relayed one.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.ArchiveFailed("boom")
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), line)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, EventArchiveFailed, ev.Type)
	assert.Equal(t, "boom", ev.Message)
}
