package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/trimline-app/trimline/services/schedule-service/internal/realtime"
	"github.com/trimline-app/trimline/services/schedule-service/internal/timeline"
)

// LiveTimeline caches the most recently composed items per barber. The
// synchronizer's apply callback writes it; the live endpoint reads it.
type LiveTimeline struct {
	mu      sync.RWMutex
	items   map[string][]timeline.Item
	updated map[string]int64
}

func NewLiveTimeline() *LiveTimeline {
	return &LiveTimeline{
		items:   map[string][]timeline.Item{},
		updated: map[string]int64{},
	}
}

func (l *LiveTimeline) Set(barberID string, items []timeline.Item, atMillis int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[barberID] = items
	l.updated[barberID] = atMillis
}

func (l *LiveTimeline) Get(barberID string) ([]timeline.Item, int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items, ok := l.items[barberID]
	return items, l.updated[barberID], ok
}

type LiveHandler struct {
	live  *LiveTimeline
	syncs map[string]*realtime.Synchronizer
}

func NewLiveHandler(live *LiveTimeline, syncs map[string]*realtime.Synchronizer) *LiveHandler {
	return &LiveHandler{live: live, syncs: syncs}
}

// liveResponse omits updated_at entirely until the first refresh has landed,
// so clients can tell a not-yet-refreshed barber from an empty timeline.
type liveResponse struct {
	BarberID  string            `json:"barber_id"`
	Connected bool              `json:"connected"`
	Exhausted bool              `json:"exhausted,omitempty"`
	UpdatedAt *int64            `json:"updated_at,omitempty"`
	Items     []timelineItemDTO `json:"items"`
}

// Live serves GET /api/v1/timeline/live: the synchronizer-maintained snapshot
// plus the connectivity signal. Exhausted=true means automatic reconnection
// gave up and the client should fall back to manual refresh.
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	barberID := strings.TrimSpace(r.URL.Query().Get("barber_id"))
	if barberID == "" {
		http.Error(w, "barber_id is required", http.StatusBadRequest)
		return
	}
	s, ok := h.syncs[barberID]
	if !ok {
		http.Error(w, "barber not watched", http.StatusNotFound)
		return
	}

	items, updatedAt, refreshed := h.live.Get(barberID)
	exhausted := false
	select {
	case <-s.Exhausted():
		exhausted = true
	default:
	}
	resp := liveResponse{
		BarberID:  barberID,
		Connected: s.Connected(),
		Exhausted: exhausted,
		Items:     toItemDTOs(items),
	}
	if refreshed {
		resp.UpdatedAt = &updatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
