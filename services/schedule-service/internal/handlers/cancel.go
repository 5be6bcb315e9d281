package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trimline-app/trimline/services/schedule-service/internal/cancel"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/storage"
)

type CancelHandler struct {
	engine *cancel.Engine
	logger *slog.Logger
	// refresh, when set, nudges the live synchronizers after a successful
	// mutation so the change shows up without waiting for the feed event.
	refresh func(ctx context.Context)
}

func NewCancelHandler(engine *cancel.Engine, logger *slog.Logger, refresh func(ctx context.Context)) *CancelHandler {
	return &CancelHandler{engine: engine, logger: logger, refresh: refresh}
}

type cancelRequest struct {
	ReservationID   string `json:"reservation_id"`
	Actor           string `json:"actor"`
	Reason          string `json:"reason"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type cancelResponse struct {
	Success             bool   `json:"success"`
	ConcurrencyConflict bool   `json:"concurrency_conflict,omitempty"`
	Error               string `json:"error,omitempty"`
}

type bulkCancelRequest struct {
	ReservationIDs []string `json:"reservation_ids"`
	Actor          string   `json:"actor"`
	Reason         string   `json:"reason"`
}

func parseActor(raw string) (model.Actor, bool) {
	switch model.Actor(strings.TrimSpace(raw)) {
	case model.ActorCustomer:
		return model.ActorCustomer, true
	case model.ActorBarber:
		return model.ActorBarber, true
	}
	return "", false
}

// Cancel serves POST /api/v1/reservations/cancel. A stale expected_version
// yields 409 with concurrency_conflict=true; the client should refetch and
// retry with the current version.
func (h *CancelHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	actor, ok := parseActor(req.Actor)
	if !ok {
		http.Error(w, "actor must be customer or barber", http.StatusBadRequest)
		return
	}

	res := h.engine.Cancel(r.Context(), strings.TrimSpace(req.ReservationID), actor, req.Reason, req.ExpectedVersion)
	switch {
	case res.Success:
		if h.refresh != nil {
			h.refresh(r.Context())
		}
		writeJSON(w, http.StatusOK, cancelResponse{Success: true})
	case res.ConcurrencyConflict:
		writeJSON(w, http.StatusConflict, cancelResponse{
			ConcurrencyConflict: true,
			Error:               "reservation changed underneath you; refresh and retry",
		})
	case errors.Is(res.Err, cancel.ErrMissingReservationID):
		http.Error(w, res.Err.Error(), http.StatusBadRequest)
	case errors.Is(res.Err, storage.ErrNotFound):
		http.Error(w, res.Err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("cancel failed", "reservation_id", req.ReservationID, "err", res.Err)
		writeJSON(w, http.StatusInternalServerError, cancelResponse{Error: "cancellation failed"})
	}
}

// BulkCancel serves POST /api/v1/reservations/bulk-cancel. Partial failure is
// reported as counts plus per-id reasons, never as a single pass/fail flag.
func (h *CancelHandler) BulkCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req bulkCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.ReservationIDs) == 0 {
		http.Error(w, "reservation_ids is required", http.StatusBadRequest)
		return
	}
	actor, ok := parseActor(req.Actor)
	if !ok {
		http.Error(w, "actor must be customer or barber", http.StatusBadRequest)
		return
	}

	out := h.engine.BulkCancel(r.Context(), req.ReservationIDs, actor, req.Reason)
	if out.Succeeded > 0 && h.refresh != nil {
		h.refresh(r.Context())
	}
	writeJSON(w, http.StatusOK, out)
}
