package analytics

import "time"

// bestDayRatio: days within this fraction of the peak average count as best.
const bestDayRatio = 0.9

// WeekdayStats aggregates samples falling on one weekday.
type WeekdayStats struct {
	Day     time.Weekday `json:"day"`
	Average float64      `json:"average"`
	Total   float64      `json:"total"`
	Count   int          `json:"count"`
}

// ByWeekday aggregates the series per weekday. Weekdays with no samples are
// omitted; output is ordered Sunday through Saturday.
func ByWeekday(samples []Sample) []WeekdayStats {
	var totals [7]float64
	var counts [7]int
	for _, s := range samples {
		d := s.Date.Weekday()
		totals[d] += s.Value
		counts[d]++
	}

	out := make([]WeekdayStats, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if counts[d] == 0 {
			continue
		}
		out = append(out, WeekdayStats{
			Day:     d,
			Average: totals[d] / float64(counts[d]),
			Total:   totals[d],
			Count:   counts[d],
		})
	}
	return out
}

// BestDays returns the weekdays whose average is within 90% of the peak
// average. An empty series yields no days.
func BestDays(samples []Sample) []time.Weekday {
	stats := ByWeekday(samples)
	if len(stats) == 0 {
		return nil
	}
	var peak float64
	for _, s := range stats {
		if s.Average > peak {
			peak = s.Average
		}
	}
	var out []time.Weekday
	for _, s := range stats {
		if s.Average >= bestDayRatio*peak {
			out = append(out, s.Day)
		}
	}
	return out
}
