package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/racharron/abd/internal/world"
)

const (
	// DefaultPairsLimit is returned by /api/pairs without a limit
	DefaultPairsLimit = 100

	// MaxRequestBody bounds POST bodies
	MaxRequestBody = 64 << 10
)

// stateResponse is the /api/state payload
type stateResponse struct {
	Sequence  uint64                  `json:"sequence"`
	Timestamp time.Time               `json:"timestamp"`
	Extent    float64                 `json:"extent"`
	Stats     world.StepStats         `json:"stats"`
	Bodies    []world.BodySnapshot    `json:"bodies,omitempty"`
	Contacts  []world.ContactSnapshot `json:"contacts"`
	EventLog  map[string]interface{}  `json:"eventLog"`
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.world.GetSnapshot()

	resp := stateResponse{
		Sequence:  snap.Sequence,
		Timestamp: snap.Timestamp,
		Extent:    snap.Extent,
		Stats:     snap.Stats,
		Contacts:  snap.Contacts,
		EventLog:  h.world.GetEventLogStats(),
	}
	if withBodies, _ := strconv.ParseBool(r.URL.Query().Get("bodies")); withBodies {
		resp.Bodies = snap.Bodies
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetIslands(w http.ResponseWriter, r *http.Request) {
	snap := h.world.GetSnapshot()

	largest := 0
	for _, n := range snap.Islands {
		largest = max(largest, n)
	}
	writeJSON(w, map[string]interface{}{
		"step":        snap.Stats.Step,
		"count":       len(snap.Islands),
		"interacting": snap.Stats.Interacting,
		"largest":     largest,
		"sizes":       snap.Islands,
	})
}

// parseLimit reads ?limit=N, falling back to def.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

func (h *routerHandlers) handleGetPairs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, DefaultPairsLimit)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := h.world.GetSnapshot()
	pairs := snap.Pairs[:min(limit, len(snap.Pairs))]
	writeJSON(w, map[string]interface{}{
		"step":      snap.Stats.Step,
		"total":     snap.Stats.Pairs,
		"truncated": len(pairs) < snap.Stats.Pairs,
		"pairs":     pairs,
	})
}

func (h *routerHandlers) handleGetContacts(w http.ResponseWriter, r *http.Request) {
	snap := h.world.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"step":     snap.Stats.Step,
		"minToi":   snap.Stats.MinTOI,
		"contacts": snap.Contacts,
	})
}

func (h *routerHandlers) handleSnapshotPNG(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Rendering disabled", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, h.world.GetSnapshot()); err != nil {
		log.Printf("⚠️ Snapshot render failed: %v", err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleTOI(w http.ResponseWriter, r *http.Request) {
	var req TOIRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := RunTOI(req)
	if errors.Is(err, ErrInvalidQuery) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	RecordTOIQuery(req.Kind)
	writeJSON(w, resp)
}

func (h *routerHandlers) handleStep(w http.ResponseWriter, r *http.Request) {
	stats := h.world.Step()
	log.Printf("⏭️ Manual step %d requested by %s", stats.Step, GetClientIP(r))
	writeJSON(w, stats)
}

// stepMessage is the payload of a world:step stream message
func stepMessage(snap *world.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"sequence": snap.Sequence,
		"stats":    snap.Stats,
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
