package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dskvich/brahmos-bot/pkg/api/response"
)

// StorageChecker reports whether the backing store answers.
type StorageChecker interface {
	PingContext(ctx context.Context) error
}

type HealthReport struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Storage string `json:"storage"`
}

type health struct {
	storage   StorageChecker
	startedAt time.Time
	writer    response.JSONResponseWriter
}

// NewHealth builds the /healthz handler. storage may be nil for the file backend.
func NewHealth(storage StorageChecker, startedAt time.Time) *health {
	return &health{
		storage:   storage,
		startedAt: startedAt,
		writer:    response.JSONResponseWriter{},
	}
}

func (h *health) Check(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{
		Status:  "ok",
		Uptime:  time.Since(h.startedAt).Truncate(time.Second).String(),
		Storage: "file",
	}

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.storage.PingContext(ctx); err != nil {
			h.writer.WriteErrorResponse(w, http.StatusServiceUnavailable, "storage unavailable: "+err.Error())
			return
		}
		report.Storage = "ok"
	}

	h.writer.WriteSuccessResponse(w, report)
}
