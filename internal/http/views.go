package http

import (
	"time"

	"bankroll/internal/auth"
	"bankroll/internal/core"
)

// Amounts are rendered as fixed two-decimal strings so clients never see
// float rounding.

type recordView struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Status      string  `json:"status"`
	Date        *string `json:"date"` // YYYY-MM-DD, null when unknown
	CreatedAt   string  `json:"createdAt,omitempty"`
}

func newRecordView(r core.BetRecord, loc *time.Location) recordView {
	v := recordView{
		ID:          r.ID,
		Description: r.Description,
		Amount:      r.Amount.StringFixed(2),
		Status:      string(core.StatusFromAmount(r.Amount)),
	}
	if r.HasDate() {
		d := r.Date.In(loc).Format(time.DateOnly)
		v.Date = &d
	}
	if !r.CreatedAt.IsZero() {
		v.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func newRecordViews(records []core.BetRecord, loc *time.Location) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, newRecordView(r, loc))
	}
	return out
}

type sessionView struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expiresAt"`
}

func newSessionView(s auth.Session) sessionView {
	return sessionView{
		Token:     s.Token,
		UserID:    s.UserID,
		Email:     s.Email,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

type windowView struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type gridView struct {
	Year          int   `json:"year"`
	Month         int   `json:"month"`
	DaysInMonth   int   `json:"daysInMonth"`
	LeadingBlanks int   `json:"leadingBlanks"`
	Weeks         int   `json:"weeks"`
	Cells         []int `json:"cells"`
}

func newGridView(g core.CalendarGrid) gridView {
	return gridView{
		Year:          g.Window.Year,
		Month:         int(g.Window.Month),
		DaysInMonth:   g.Days,
		LeadingBlanks: g.LeadingBlanks,
		Weeks:         g.Weeks(),
		Cells:         g.Cells(),
	}
}

type dayCellView struct {
	Day      int    `json:"day"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Selected bool   `json:"selected,omitempty"`
}

type monthView struct {
	Total   string  `json:"total"`
	Count   int     `json:"count"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"winRate"`
}

type monthTotalView struct {
	Month int    `json:"month"`
	Total string `json:"total"`
	Count int    `json:"count"`
}

type bankrollView struct {
	InitialBank string `json:"initialBank"`
	Profit      string `json:"profit"`
	CurrentBank string `json:"currentBank"`
}

type dashboardView struct {
	Window         windowView       `json:"window"`
	State          string           `json:"state"`
	SelectedDay    int              `json:"selectedDay,omitempty"`
	Grid           gridView         `json:"grid"`
	Cells          []dayCellView    `json:"cells"`
	Month          monthView        `json:"month"`
	Year           []monthTotalView `json:"year"`
	Bankroll       bankrollView     `json:"bankroll"`
	AllTimeWinRate float64          `json:"allTimeWinRate"`
	DayRecords     []recordView     `json:"dayRecords,omitempty"`
	Warning        string           `json:"warning,omitempty"`
}

func newDashboardView(d core.Dashboard) dashboardView {
	loc := d.Window.Location
	if loc == nil {
		loc = time.UTC
	}
	v := dashboardView{
		Window:      windowView{Year: d.Window.Year, Month: int(d.Window.Month)},
		State:       string(d.State),
		SelectedDay: d.SelectedDay,
		Grid:        newGridView(d.Grid),
		Cells:       make([]dayCellView, 0, len(d.Cells)),
		Month: monthView{
			Total:   d.Month.Total.StringFixed(2),
			Count:   d.Month.Count,
			Wins:    d.Month.Wins,
			Losses:  d.Month.Losses,
			WinRate: d.Month.WinRate,
		},
		Year: make([]monthTotalView, 0, len(d.Year)),
		Bankroll: bankrollView{
			InitialBank: d.Bankroll.InitialBank.StringFixed(2),
			Profit:      d.Bankroll.Profit.StringFixed(2),
			CurrentBank: d.Bankroll.CurrentBank.StringFixed(2),
		},
		AllTimeWinRate: d.AllTimeWinRate,
	}
	for _, c := range d.Cells {
		v.Cells = append(v.Cells, dayCellView{
			Day:      c.Day,
			Total:    c.Total.StringFixed(2),
			Count:    c.Count,
			Wins:     c.Wins,
			Losses:   c.Losses,
			Selected: c.Selected,
		})
	}
	for _, mt := range d.Year {
		v.Year = append(v.Year, monthTotalView{Month: int(mt.Month), Total: mt.Total.StringFixed(2), Count: mt.Count})
	}
	if d.DayRecords != nil {
		v.DayRecords = newRecordViews(d.DayRecords, loc)
	}
	return v
}
