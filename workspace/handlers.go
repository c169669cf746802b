package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/tomasen/realip"
)

// RecentItemResponse is a single ranked file in the API response.
type RecentItemResponse struct {
	RankedItem
	Age string `json:"age"`
}

// StatsResponse holds aggregate workspace statistics.
type StatsResponse struct {
	Root           string     `json:"root"`
	DiskTotal      uint64     `json:"diskTotal"`
	DiskFree       uint64     `json:"diskFree"`
	Files          int        `json:"files"`
	LastScan       time.Time  `json:"lastScan"`
	RefreshPending bool       `json:"refreshPending"`
	RecentErrors   []LogEntry `json:"recentErrors"`
}

// SelectionRequest is the request body for selection compression.
type SelectionRequest struct {
	Paths []string `json:"paths"`
}

// Handlers holds the HTTP handlers for the workspace API.
type Handlers struct {
	svc *Service
	bus *EventBus
}

// NewHandlers creates the HTTP handlers. bus may be nil when no SSE
// endpoint is needed.
func NewHandlers(svc *Service, bus *EventBus) *Handlers {
	return &Handlers{svc: svc, bus: bus}
}

// Router returns the API routes.
func (h *Handlers) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)
	// Routes sit on the top-level router so a method mismatch answers 405.
	r.HandleFunc("/api/recent", h.HandleRecent).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", h.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/compress", h.HandleCompress).Methods(http.MethodPost)
	r.HandleFunc("/api/compress/selection", h.HandleCompressSelection).Methods(http.MethodPost)
	r.HandleFunc("/api/stats", h.HandleStats).Methods(http.MethodGet)
	if h.bus != nil {
		r.HandleFunc("/api/events", h.HandleSSE).Methods(http.MethodGet)
	}
	r.Handle("/metrics", MetricsHandler())
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub("http").Debug("request", "method", r.Method, "path", r.URL.Path, "client", realip.FromRequest(r))
		next.ServeHTTP(w, r)
	})
}

// HandleRecent handles GET /api/recent?limit=<n>
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	now := nowFunc()
	ranked := h.svc.Ranked().Annotated(now)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	items := make([]RecentItemResponse, 0, len(ranked))
	for _, it := range ranked {
		items = append(items, RecentItemResponse{
			RankedItem: it,
			Age:        humanize.RelTime(it.ModifiedAt, now, "ago", "from now"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
	})
}

// HandleRefresh handles POST /api/refresh
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	list, err := h.svc.Refresh(r.Context())
	if err != nil {
		l.Warn("refresh failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files":     list.Len(),
		"scannedAt": list.ScannedAt,
	})
}

// HandleCompress handles POST /api/compress
func (h *Handlers) HandleCompress(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	l.Info("HTTP compress whole tree", "root", h.svc.Root())
	res, err := h.svc.CompressWholeTree(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCompressSelection handles POST /api/compress/selection
func (h *Handlers) HandleCompressSelection(w http.ResponseWriter, r *http.Request) {
	l := sub("handlers")
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.Warn("compress selection: bad body", "err", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	l.Info("HTTP compress selection", "count", len(req.Paths))
	res, err := h.svc.CompressSelection(r.Context(), req.Paths, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStats handles GET /api/stats
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	list := h.svc.Ranked()
	resp := StatsResponse{
		Root:           h.svc.Root(),
		Files:          list.Len(),
		LastScan:       list.ScannedAt,
		RefreshPending: h.svc.RefreshPending(),
		RecentErrors:   RecentErrors(),
	}
	if usage, err := disk.UsageWithContext(r.Context(), h.svc.Root()); err == nil {
		resp.DiskTotal = usage.Total
		resp.DiskFree = usage.Free
	} else {
		sub("handlers").Debug("disk usage unavailable", "root", h.svc.Root(), "err", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSSE handles GET /api/events (Server-Sent Events stream).
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data) //nolint:errcheck
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n") //nolint:errcheck
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps core errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var outside *SelectionOutsideRootError
	switch {
	case errors.As(err, &outside), errors.Is(err, ErrNoSelection):
		status = http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
