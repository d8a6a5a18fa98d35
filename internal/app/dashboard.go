package app

import (
	"log/slog"
	"net/http"

	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/view"
)

// dashboardHandler renders the landing page of the admin area.
func dashboardHandler(templates *view.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{"Identity": shared.IdentityFromContext(r.Context())}
		if err := templates.Page(w, r, "pages/dashboard.html", "Dashboard", data); err != nil {
			logger.Error("render dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
