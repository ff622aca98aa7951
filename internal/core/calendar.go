package core

import (
	"errors"
	"time"
)

// Window is the year+month currently selected for display and aggregation.
type Window struct {
	Year     int
	Month    time.Month
	Location *time.Location // nil means UTC
}

// NavState is the state of the calendar view.
type NavState string

const (
	Viewing     NavState = "viewing"
	DaySelected NavState = "day_selected"
)

// ErrNoDaySelected is returned when a day-scoped action runs while viewing a month.
var ErrNoDaySelected = errors.New("no day selected")

// NewWindow builds a window for the given year and month (1-12).
func NewWindow(year, month int, loc *time.Location) (Window, error) {
	w := Window{Year: year, Month: time.Month(month), Location: loc}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// WindowOf returns the window containing t, in t's location.
func WindowOf(t time.Time) Window {
	return Window{Year: t.Year(), Month: t.Month(), Location: t.Location()}
}

func (w Window) Validate() error {
	if w.Year < 1 || w.Year > 9999 {
		return ErrInvalidYear
	}
	if w.Month < time.January || w.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Contains reports whether t falls on a day of the window. The zero time is
// never contained.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	lt := t.In(w.loc())
	return lt.Year() == w.Year && lt.Month() == w.Month
}

// DayOf returns the day of month of t in the window's location, or 0 when t
// falls outside the window.
func (w Window) DayOf(t time.Time) int {
	if !w.Contains(t) {
		return 0
	}
	return t.In(w.loc()).Day()
}

// Bounds returns the first and last instants used to clear the month:
// the first day at 00:00:00 and the last day at 23:59:59.
func (w Window) Bounds() (start, end time.Time) {
	loc := w.loc()
	start = time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, loc)
	end = time.Date(w.Year, w.Month, DaysInMonth(w.Year, w.Month), 23, 59, 59, 0, loc)
	return start, end
}

// Shift returns the window offset by the given number of months.
func (w Window) Shift(offset int) Window {
	y, m := ChangeMonth(w.Year, w.Month, offset)
	return Window{Year: y, Month: m, Location: w.Location}
}

// DaysInMonth returns the Gregorian day count of the month (28-31).
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalises to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekdayOffset returns the weekday index (0=Sunday..6=Saturday) of the
// first day of the month.
func FirstWeekdayOffset(year int, month time.Month) int {
	return int(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday())
}

// ChangeMonth moves (year, month) by offset months, rolling over years.
func ChangeMonth(year int, month time.Month, offset int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + offset
	y := floorDiv(idx, 12)
	return y, time.Month(idx-y*12) + 1
}

// SelectMonth picks a month by zero-based index within year. Indexes outside
// 0..11 roll over into neighbouring years.
func SelectMonth(year, monthIndex int) (int, time.Month) {
	return ChangeMonth(year, time.January, monthIndex)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CalendarGrid lays a month out in weeks starting on Sunday.
type CalendarGrid struct {
	Window        Window
	LeadingBlanks int
	Days          int
}

// BuildGrid computes the calendar layout of the window.
func BuildGrid(w Window) CalendarGrid {
	return CalendarGrid{
		Window:        w,
		LeadingBlanks: FirstWeekdayOffset(w.Year, w.Month),
		Days:          DaysInMonth(w.Year, w.Month),
	}
}

// Cells returns the grid as a flat slice where 0 marks a leading blank.
func (g CalendarGrid) Cells() []int {
	cells := make([]int, 0, g.LeadingBlanks+g.Days)
	for i := 0; i < g.LeadingBlanks; i++ {
		cells = append(cells, 0)
	}
	for d := 1; d <= g.Days; d++ {
		cells = append(cells, d)
	}
	return cells
}

// Weeks returns the number of grid rows needed for the month.
func (g CalendarGrid) Weeks() int {
	return (g.LeadingBlanks + g.Days + 6) / 7
}

// Navigator holds the view state: the month on screen and an optional day.
// It is a value; every method returns the next state.
type Navigator struct {
	Window Window
	Day    int // 0 while viewing the month
}

func NewNavigator(w Window) Navigator {
	return Navigator{Window: w}
}

func (n Navigator) State() NavState {
	if n.Day > 0 {
		return DaySelected
	}
	return Viewing
}

// SelectDay moves to DaySelected. It never touches records.
func (n Navigator) SelectDay(day int) (Navigator, error) {
	if day < 1 || day > DaysInMonth(n.Window.Year, n.Window.Month) {
		return n, ErrInvalidDay
	}
	n.Day = day
	return n, nil
}

// ClearSelection returns to Viewing the same month.
func (n Navigator) ClearSelection() Navigator {
	n.Day = 0
	return n
}

// Shift moves the view by offset months and drops the day selection.
func (n Navigator) Shift(offset int) Navigator {
	return Navigator{Window: n.Window.Shift(offset)}
}

// SelectMonth jumps to a month of the current year by zero-based index and
// drops the day selection.
func (n Navigator) SelectMonth(monthIndex int) Navigator {
	y, m := SelectMonth(n.Window.Year, monthIndex)
	return Navigator{Window: Window{Year: y, Month: m, Location: n.Window.Location}}
}

// SelectedDate returns the noon instant of the selected day.
func (n Navigator) SelectedDate() (time.Time, error) {
	if n.Day == 0 {
		return time.Time{}, ErrNoDaySelected
	}
	return time.Date(n.Window.Year, n.Window.Month, n.Day, EntryHour, 0, 0, 0, n.Window.loc()), nil
}
