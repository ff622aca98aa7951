package core

import "github.com/shopspring/decimal"

// DayCell is one calendar cell; blank cells have Day == 0.
type DayCell struct {
	Day      int
	Total    decimal.Decimal
	Count    int
	Wins     int
	Losses   int
	Selected bool
}

// Dashboard is everything the calendar view shows for one navigator state.
type Dashboard struct {
	Window         Window
	State          NavState
	SelectedDay    int
	Grid           CalendarGrid
	Cells          []DayCell
	Month          MonthSummary
	Year           []MonthTotal
	Bankroll       Bankroll
	AllTimeWinRate float64
	DayRecords     []BetRecord // records of the selected day, nil while viewing
}

// BuildDashboard derives the whole view from the user's full record history.
// Month aggregates are scoped to the navigator window; the bankroll and the
// all-time win rate are not.
func BuildDashboard(records []BetRecord, nav Navigator, initialBank decimal.Decimal) Dashboard {
	w := nav.Window
	month := Summarize(records, w)
	grid := BuildGrid(w)

	cells := make([]DayCell, 0, grid.LeadingBlanks+grid.Days)
	for _, day := range grid.Cells() {
		if day == 0 {
			cells = append(cells, DayCell{Total: decimal.Zero})
			continue
		}
		ds := month.Day(day)
		cells = append(cells, DayCell{
			Day:      day,
			Total:    ds.Total,
			Count:    ds.Count,
			Wins:     ds.Wins,
			Losses:   ds.Losses,
			Selected: day == nav.Day,
		})
	}

	d := Dashboard{
		Window:         w,
		State:          nav.State(),
		SelectedDay:    nav.Day,
		Grid:           grid,
		Cells:          cells,
		Month:          month,
		Year:           YearOverview(records, w.Year, w.Location),
		Bankroll:       NewBankroll(initialBank, records),
		AllTimeWinRate: WinRate(records),
	}
	if nav.State() == DaySelected {
		d.DayRecords = RecordsOnDay(records, w, nav.Day)
	}
	return d
}
