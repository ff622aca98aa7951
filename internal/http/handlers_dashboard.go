package http

import (
	"errors"
	"net/http"

	"bankroll/internal/core"
	applog "bankroll/internal/log"
	"bankroll/internal/services"
)

// handleDashboard renders the calendar view. A failed fetch still answers
// 200 with an empty month and a warning, so the client can keep navigating.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	nav, err := parseNavigator(r.URL.Query(), s.ledger.Location(), s.now())
	if err != nil {
		queryError(err).Write(w)
		return
	}

	d, err := s.ledger.Dashboard(r.Context(), sess.UserID, nav)
	view := newDashboardView(d)
	if err != nil {
		if !errors.Is(err, services.ErrFetchFailed) {
			s.logFailure(r, "Failed to build dashboard", applog.OpRead, err)
			ErrorFor(err).Write(w)
			return
		}
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Dashboard built without records",
			applog.FieldUserID, sess.UserID,
			applog.FieldError, err.Error())
		view.Warning = "Could not load records, showing an empty month"
	}
	NewJSONResponse().Body(view).Write(w)
}

// handleCalendar returns the bare grid layout of a month.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	win, _, err := parseWindowQuery(r.URL.Query(), s.ledger.Location(), s.now())
	if err != nil {
		queryError(err).Write(w)
		return
	}
	NewJSONResponse().Body(newGridView(core.BuildGrid(win))).Write(w)
}
