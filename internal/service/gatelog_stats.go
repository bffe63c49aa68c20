package service

import (
	"sort"
	"time"

	"societyhub/internal/model"
)

const dayLayout = "2006-01-02"

// GateStats are the independent daily counters of one calendar day.
type GateStats struct {
	Day     string    `json:"day"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Entries int       `json:"entries"`
	Exits   int       `json:"exits"`
	Inside  int       `json:"inside"`
}

// DailyCount holds the entries and exits of one day.
type DailyCount struct {
	Day     string `json:"day"`
	Entries int    `json:"entries"`
	Exits   int    `json:"exits"`
}

// DayBounds returns [local midnight, next local midnight) of the day holding
// t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// ComputeDayStats counts entries and exits falling inside [start, end) and
// every active log as inside. A log entering before start and exiting inside
// the day counts as an exit only.
func ComputeDayStats(logs []*model.GateLog, start, end time.Time) GateStats {
	stats := GateStats{Day: start.Format(dayLayout), From: start, To: end}
	for _, l := range logs {
		if within(l.EntryTime, start, end) {
			stats.Entries++
		}
		if l.ExitTime != nil && within(*l.ExitTime, start, end) {
			stats.Exits++
		}
		if l.Active() {
			stats.Inside++
		}
	}
	return stats
}

// ActiveOnly returns the logs with no exit, preserving order.
func ActiveOnly(logs []*model.GateLog) []*model.GateLog {
	out := make([]*model.GateLog, 0, len(logs))
	for _, l := range logs {
		if l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// GroupByHouse groups logs by associated house. Logs without a house are left out.
func GroupByHouse(logs []*model.GateLog) map[string][]*model.GateLog {
	groups := make(map[string][]*model.GateLog)
	for _, l := range logs {
		if h := l.House(); h != "" {
			groups[h] = append(groups[h], l)
		}
	}
	return groups
}

// ComputeDailyCounts buckets entries and exits into the local days of
// [start, start+days), oldest first, including days with no traffic.
func ComputeDailyCounts(logs []*model.GateLog, start time.Time, days int, loc *time.Location) []DailyCount {
	counts := make([]DailyCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(dayLayout)
		counts[i].Day = day
		index[day] = i
	}
	bump := func(t time.Time, exit bool) {
		i, ok := index[t.In(loc).Format(dayLayout)]
		if !ok {
			return
		}
		if exit {
			counts[i].Exits++
		} else {
			counts[i].Entries++
		}
	}
	for _, l := range logs {
		bump(l.EntryTime, false)
		if l.ExitTime != nil {
			bump(*l.ExitTime, true)
		}
	}
	return counts
}

func sortByEntry(logs []*model.GateLog) {
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].EntryTime.Before(logs[j].EntryTime) })
}
