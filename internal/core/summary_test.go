package core

import (
	"testing"
	"time"
)

func betAt(id int64, amount string, date time.Time) BetRecord {
	return BetRecord{ID: id, UserID: "u1", Amount: dec(amount), Date: date}
}

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func marchScenario() []BetRecord {
	return []BetRecord{
		betAt(1, "50", noon(2024, time.March, 5)),
		betAt(2, "-30", noon(2024, time.March, 5)),
		betAt(3, "20", noon(2024, time.March, 7)),
	}
}

func TestMarchScenario(t *testing.T) {
	records := marchScenario()
	w := Window{Year: 2024, Month: time.March}

	if got := DailyTotal(records, w, 5); !got.Equal(dec("20")) {
		t.Fatalf("dailyTotal(5) = %s", got)
	}
	if got := DailyTotal(records, w, 7); !got.Equal(dec("20")) {
		t.Fatalf("dailyTotal(7) = %s", got)
	}
	if got := MonthlyTotal(records, w); !got.Equal(dec("40")) {
		t.Fatalf("monthlyTotal = %s", got)
	}
	if got := WinRate(records); got != 66.7 {
		t.Fatalf("winRate = %v", got)
	}
	if got := RunningBankroll(DefaultInitialBank, records); !got.Equal(dec("1040")) {
		t.Fatalf("runningBankroll = %s", got)
	}
	if DailyCount(records, w, 5) != 2 || DailyWins(records, w, 5) != 1 || DailyLosses(records, w, 5) != 1 {
		t.Fatalf("unexpected day 5 counts")
	}
	if DailyCount(records, w, 0) != 0 {
		t.Fatalf("day 0 must never match")
	}
}

func TestEmptyRecords(t *testing.T) {
	w := Window{Year: 2024, Month: time.March}
	if WinRate(nil) != 0 {
		t.Fatalf("winRate of empty must be 0")
	}
	if !MonthlyTotal(nil, w).IsZero() || !DailyTotal(nil, w, 1).IsZero() {
		t.Fatalf("empty totals must be zero")
	}
	s := Summarize(nil, w)
	if s.Count != 0 || len(s.Days) != 0 || !s.Total.IsZero() || s.WinRate != 0 {
		t.Fatalf("unexpected empty summary %+v", s)
	}
	if !RunningBankroll(DefaultInitialBank, nil).Equal(DefaultInitialBank) {
		t.Fatalf("bankroll of empty history must equal initial bank")
	}
}

func TestMonthlyTotalEqualsSumOfDailyTotals(t *testing.T) {
	records := append(marchScenario(),
		betAt(4, "-12.5", noon(2024, time.March, 31)),
		betAt(5, "7.25", noon(2024, time.April, 1)),
		betAt(6, "99", time.Time{}),
	)
	w := Window{Year: 2024, Month: time.March}
	sum := dec("0")
	for d := 1; d <= DaysInMonth(w.Year, w.Month); d++ {
		sum = sum.Add(DailyTotal(records, w, d))
	}
	if !sum.Equal(MonthlyTotal(records, w)) {
		t.Fatalf("sum of daily totals %s != monthly total %s", sum, MonthlyTotal(records, w))
	}
	if !Summarize(records, w).Total.Equal(sum) {
		t.Fatalf("summary total disagrees with daily totals")
	}
}

func TestAggregatesStableUnderReordering(t *testing.T) {
	records := marchScenario()
	reversed := []BetRecord{records[2], records[1], records[0]}
	w := Window{Year: 2024, Month: time.March}

	if !RunningBankroll(DefaultInitialBank, records).Equal(RunningBankroll(DefaultInitialBank, reversed)) {
		t.Fatalf("bankroll depends on order")
	}
	if WinRate(records) != WinRate(reversed) {
		t.Fatalf("win rate depends on order")
	}
	a, b := Summarize(records, w), Summarize(reversed, w)
	if !a.Total.Equal(b.Total) || len(a.Days) != len(b.Days) || a.Days[0].Day != 5 || b.Days[0].Day != 5 {
		t.Fatalf("summary depends on order: %+v vs %+v", a, b)
	}
	if records[0].ID != 1 {
		t.Fatalf("input mutated")
	}
}

func TestWinRateBounds(t *testing.T) {
	sets := [][]BetRecord{
		{betAt(1, "1", noon(2024, 1, 1))},
		{betAt(1, "-1", noon(2024, 1, 1))},
		{betAt(1, "0", noon(2024, 1, 1)), betAt(2, "-1", noon(2024, 1, 1))},
	}
	for i, s := range sets {
		wr := WinRate(s)
		if wr < 0 || wr > 100 {
			t.Fatalf("case %d win rate out of range: %v", i, wr)
		}
	}
	if WinRate(sets[2]) != 50 {
		t.Fatalf("zero amount must count as a win")
	}
}

func TestUndatedRecordsExcludedFromDateScopedAggregates(t *testing.T) {
	records := []BetRecord{betAt(1, "10", time.Time{}), betAt(2, "5", noon(2024, 1, 1))}
	w := Window{Year: 2024, Month: time.January}
	if !MonthlyTotal(records, w).Equal(dec("5")) {
		t.Fatalf("undated record leaked into monthly total")
	}
	if !RunningBankroll(dec("0"), records).Equal(dec("15")) {
		t.Fatalf("undated record must still count toward the bankroll")
	}
	if len(InWindow(records, w)) != 1 {
		t.Fatalf("undated record leaked into window")
	}
}

func TestClearedMonthLeavesOtherMonthsUntouched(t *testing.T) {
	records := append(marchScenario(), betAt(9, "15", noon(2024, time.April, 2)))
	march := Window{Year: 2024, Month: time.March}
	start, end := march.Bounds()

	var kept []BetRecord
	for _, r := range records {
		if r.Date.Before(start) || r.Date.After(end) {
			kept = append(kept, r)
		}
	}
	if !MonthlyTotal(kept, march).IsZero() || len(Summarize(kept, march).Days) != 0 {
		t.Fatalf("cleared month still has aggregates")
	}
	if !MonthlyTotal(kept, march.Shift(1)).Equal(dec("15")) {
		t.Fatalf("april changed after clearing march")
	}
}

func TestYearOverview(t *testing.T) {
	records := append(marchScenario(),
		betAt(4, "-10", noon(2024, time.December, 31)),
		betAt(5, "100", noon(2023, time.December, 31)),
	)
	ov := YearOverview(records, 2024, nil)
	if len(ov) != 12 {
		t.Fatalf("expected 12 months, got %d", len(ov))
	}
	if !ov[2].Total.Equal(dec("40")) || ov[2].Count != 3 {
		t.Fatalf("unexpected march %+v", ov[2])
	}
	if !ov[11].Total.Equal(dec("-10")) {
		t.Fatalf("unexpected december %+v", ov[11])
	}
	if !ov[0].Total.IsZero() {
		t.Fatalf("previous year leaked into january")
	}
}

func TestWindowLocationShiftsDay(t *testing.T) {
	// 01:00 UTC on the 6th is still the 5th in a UTC-3 calendar.
	records := []BetRecord{betAt(1, "10", time.Date(2024, 3, 6, 1, 0, 0, 0, time.UTC))}
	w := Window{Year: 2024, Month: time.March, Location: time.FixedZone("BRT", -3*3600)}
	if DailyCount(records, w, 5) != 1 || DailyCount(records, w, 6) != 0 {
		t.Fatalf("day must be computed in the window location")
	}
}

func TestRecordsOnDaySorted(t *testing.T) {
	records := []BetRecord{
		betAt(3, "1", noon(2024, 1, 2)),
		betAt(1, "1", noon(2024, 1, 2)),
		betAt(2, "1", noon(2024, 1, 3)),
	}
	got := RecordsOnDay(records, Window{Year: 2024, Month: 1}, 2)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected order %+v", got)
	}
}
