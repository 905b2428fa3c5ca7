package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/missioncommand/internal/api/apierr"
)

// writeError writes err as the response. Server-side failures are logged
// here, the only place they are seen with their cause.
func writeError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if status := apierr.Status(err); status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	apierr.WriteError(w, err)
}
