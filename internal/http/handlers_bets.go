package http

import (
	"net/http"

	"bankroll/internal/core"
	applog "bankroll/internal/log"
)

type recordListResponse struct {
	Window  *windowView  `json:"window,omitempty"`
	Records []recordView `json:"records"`
}

// handleListRecords returns every record of the caller, or only those of the
// requested month when year or month is given.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	loc := s.ledger.Location()

	win, explicit, err := parseWindowQuery(r.URL.Query(), loc, s.now())
	if err != nil {
		queryError(err).Write(w)
		return
	}

	var records []core.BetRecord
	if explicit {
		records, err = s.ledger.RecordsInWindow(r.Context(), sess.UserID, win)
	} else {
		records, err = s.ledger.Records(r.Context(), sess.UserID)
	}
	if err != nil {
		s.logFailure(r, "Failed to list records", applog.OpList, err)
		ErrorFor(err).Write(w)
		return
	}

	body := recordListResponse{Records: newRecordViews(records, loc)}
	if explicit {
		body.Window = &windowView{Year: win.Year, Month: int(win.Month)}
	}
	NewJSONResponse().Body(body).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req createRecordRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		requestError(err).Write(w)
		return
	}
	in, err := req.toInput(sess.UserID, s.ledger.Location())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	rec, err := s.ledger.Create(r.Context(), in)
	if err != nil {
		s.logFailure(r, "Failed to create record", applog.OpCreate, err)
		ErrorFor(err).Write(w)
		return
	}
	s.events.LogRecordCreated(r.Context(), rec.UserID, rec.ID, core.FormatAmount(rec.Amount), string(rec.Status), rec.Description)
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(newRecordView(rec, s.ledger.Location())).
		Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	id, err := parseRecordID(r.PathValue("id"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.ledger.Delete(r.Context(), sess.UserID, id); err != nil {
		s.logFailure(r, "Failed to delete record", applog.OpDelete, err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type clearMonthResponse struct {
	Window  windowView `json:"window"`
	Deleted int64      `json:"deleted"`
}

// handleClearMonth deletes every record of one month. year and month are
// mandatory so a bare DELETE never wipes the current month by accident.
func (s *Server) handleClearMonth(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	win, explicit, err := parseWindowQuery(r.URL.Query(), s.ledger.Location(), s.now())
	if err != nil {
		queryError(err).Write(w)
		return
	}
	q := r.URL.Query()
	if !explicit || q.Get("year") == "" || q.Get("month") == "" {
		UnprocessableEntityError("Parameters year and month are required").Write(w)
		return
	}

	n, err := s.ledger.ClearMonth(r.Context(), sess.UserID, win)
	if err != nil {
		s.logFailure(r, "Failed to clear month", applog.OpClear, err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().
		Body(clearMonthResponse{
			Window:  windowView{Year: win.Year, Month: int(win.Month)},
			Deleted: n,
		}).
		Write(w)
}

type initialBankResponse struct {
	InitialBank string `json:"initialBank"`
}

func (s *Server) handleSetInitialBank(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req initialBankRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		requestError(err).Write(w)
		return
	}
	amount, err := core.ParseAmount(string(req.InitialBank))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := s.ledger.SetInitialBank(r.Context(), sess.UserID, amount); err != nil {
		s.logFailure(r, "Failed to save initial bank", applog.OpCreate, err)
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(initialBankResponse{InitialBank: amount.StringFixed(2)}).Write(w)
}

// queryError maps a bad query parameter: non-numeric values are a 400,
// out-of-range calendar values a 422.
func queryError(err error) *JSONResponseBuilder {
	resp := ErrorFor(err)
	if resp.statusCode == http.StatusInternalServerError {
		return BadRequestError(err.Error())
	}
	return resp
}

func (s *Server) logFailure(r *http.Request, msg, op string, err error) {
	fields := applog.NewFields().WithUser(sessionFrom(r.Context()).UserID)
	if ErrorFor(err).statusCode >= http.StatusInternalServerError {
		s.events.LogError(r.Context(), msg, err, applog.ComponentRecords, op, fields)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRecords).
		InfoContext(r.Context(), msg, fields.WithOperation(op).WithError(err).ToSlice()...)
}
