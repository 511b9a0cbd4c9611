package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/monitor/status", h.MonitorStatus)
	mux.HandleFunc("POST /v1/monitor/start", h.MonitorStart)
	mux.HandleFunc("POST /v1/monitor/stop", h.MonitorStop)

	mux.HandleFunc("GET /v1/metrics", h.Metrics)
	mux.HandleFunc("GET /v1/resend/queue", h.ResendQueue)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("signal-relay"))
	})

	return mux
}
