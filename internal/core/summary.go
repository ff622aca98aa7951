package core

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInitialBank is the bankroll baseline when a user never set one.
var DefaultInitialBank = decimal.NewFromInt(1000)

// DaySummary aggregates the records of one calendar day.
type DaySummary struct {
	Day    int
	Total  decimal.Decimal
	Count  int
	Wins   int
	Losses int
}

// MonthSummary is a compact summary for a specific year+month.
type MonthSummary struct {
	Window  Window
	Total   decimal.Decimal
	Count   int
	Wins    int
	Losses  int
	WinRate float64
	Days    []DaySummary // only days with records, ascending
}

// MonthTotal is one entry of the year overview.
type MonthTotal struct {
	Month time.Month
	Total decimal.Decimal
	Count int
}

// Bankroll is derived on every read and never persisted.
type Bankroll struct {
	InitialBank decimal.Decimal
	Profit      decimal.Decimal
	CurrentBank decimal.Decimal
}

// InWindow returns the records dated inside the window, in input order.
func InWindow(records []BetRecord, w Window) []BetRecord {
	var out []BetRecord
	for _, r := range records {
		if w.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// DailyTotal sums the amounts logged on day within the window.
func DailyTotal(records []BetRecord, w Window, day int) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if onDay(w, r.Date, day) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// DailyCount counts the records logged on day within the window.
func DailyCount(records []BetRecord, w Window, day int) int {
	n := 0
	for _, r := range records {
		if onDay(w, r.Date, day) {
			n++
		}
	}
	return n
}

// DailyWins counts the non-negative records logged on day within the window.
func DailyWins(records []BetRecord, w Window, day int) int {
	n := 0
	for _, r := range records {
		if onDay(w, r.Date, day) && r.IsWin() {
			n++
		}
	}
	return n
}

// DailyLosses counts the negative records logged on day within the window.
func DailyLosses(records []BetRecord, w Window, day int) int {
	n := 0
	for _, r := range records {
		if onDay(w, r.Date, day) && !r.IsWin() {
			n++
		}
	}
	return n
}

func onDay(w Window, t time.Time, day int) bool {
	return day > 0 && w.DayOf(t) == day
}

// MonthlyTotal sums every amount dated inside the window.
func MonthlyTotal(records []BetRecord, w Window) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if w.Contains(r.Date) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// WinRate is wins / (wins + losses) * 100 rounded to one decimal, or 0 when
// there is nothing to count.
func WinRate(records []BetRecord) float64 {
	wins := 0
	for _, r := range records {
		if r.IsWin() {
			wins++
		}
	}
	return winRate(wins, len(records)-wins)
}

func winRate(wins, losses int) float64 {
	decided := wins + losses
	if decided == 0 {
		return 0
	}
	rate := float64(wins) / float64(decided) * 100
	return math.Round(rate*10) / 10
}

// RunningBankroll is initialBank plus every amount ever logged, regardless of
// the window on screen.
func RunningBankroll(initialBank decimal.Decimal, records []BetRecord) decimal.Decimal {
	return initialBank.Add(sumAmounts(records))
}

// NewBankroll derives the bankroll state from the full record history.
func NewBankroll(initialBank decimal.Decimal, records []BetRecord) Bankroll {
	profit := sumAmounts(records)
	return Bankroll{
		InitialBank: initialBank,
		Profit:      profit,
		CurrentBank: initialBank.Add(profit),
	}
}

func sumAmounts(records []BetRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// Summarize aggregates the window in one pass.
func Summarize(records []BetRecord, w Window) MonthSummary {
	s := MonthSummary{Window: w, Total: decimal.Zero}
	byDay := make(map[int]*DaySummary)
	for _, r := range records {
		day := w.DayOf(r.Date)
		if day == 0 {
			continue
		}
		ds, ok := byDay[day]
		if !ok {
			ds = &DaySummary{Day: day, Total: decimal.Zero}
			byDay[day] = ds
		}
		ds.Total = ds.Total.Add(r.Amount)
		ds.Count++
		s.Total = s.Total.Add(r.Amount)
		s.Count++
		if r.IsWin() {
			ds.Wins++
			s.Wins++
		} else {
			ds.Losses++
			s.Losses++
		}
	}
	s.WinRate = winRate(s.Wins, s.Losses)
	for _, ds := range byDay {
		s.Days = append(s.Days, *ds)
	}
	sort.Slice(s.Days, func(i, j int) bool { return s.Days[i].Day < s.Days[j].Day })
	return s
}

// Day returns the summary of a day, zero-valued when nothing was logged.
func (s MonthSummary) Day(day int) DaySummary {
	for _, ds := range s.Days {
		if ds.Day == day {
			return ds
		}
	}
	return DaySummary{Day: day, Total: decimal.Zero}
}

// YearOverview returns the total of each month of year, January first.
func YearOverview(records []BetRecord, year int, loc *time.Location) []MonthTotal {
	out := make([]MonthTotal, 12)
	for i := range out {
		out[i] = MonthTotal{Month: time.Month(i + 1), Total: decimal.Zero}
	}
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		w := Window{Year: year, Location: loc}
		t := r.Date.In(w.loc())
		if t.Year() != year {
			continue
		}
		mt := &out[t.Month()-1]
		mt.Total = mt.Total.Add(r.Amount)
		mt.Count++
	}
	return out
}

// RecordsOnDay returns a sorted copy of the records logged on day.
func RecordsOnDay(records []BetRecord, w Window, day int) []BetRecord {
	var out []BetRecord
	for _, r := range records {
		if onDay(w, r.Date, day) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
