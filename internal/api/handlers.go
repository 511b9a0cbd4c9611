// Package api exposes the relay's operational surface over HTTP: health,
// monitor control, counters, and resend-queue depth. It carries no message
// traffic.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/LeventeLantos/signal-relay/internal/metrics"
	"github.com/LeventeLantos/signal-relay/internal/monitor"
	"github.com/LeventeLantos/signal-relay/internal/resend"
)

type Handler struct {
	mon      *monitor.Monitor
	counters *metrics.Counters
	queue    *resend.Queue
}

func NewHandler(mon *monitor.Monitor, counters *metrics.Counters, queue *resend.Queue) *Handler {
	return &Handler{mon: mon, counters: counters, queue: queue}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) MonitorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":  h.mon.IsRunning(),
		"failures": h.mon.ConsecutiveFailures(),
	})
}

func (h *Handler) MonitorStart(w http.ResponseWriter, r *http.Request) {
	h.mon.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.mon.IsRunning()})
}

func (h *Handler) MonitorStop(w http.ResponseWriter, r *http.Request) {
	h.mon.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.mon.IsRunning()})
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.counters.Snapshot())
}

func (h *Handler) ResendQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"size": h.queue.Size()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
