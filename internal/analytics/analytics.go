// Package analytics derives dashboard summary statistics from visitor
// records. Everything here is pure and recomputed from scratch per call.
package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"visitlog/internal/visitor"
)

// WeekdayAverage is the average visit count for one weekday, Monday first.
type WeekdayAverage struct {
	Name    string  `json:"name"`
	Average float64 `json:"average"`
}

// Summary is the derived view the dashboard renders.
type Summary struct {
	TotalVisitors   int              `json:"totalVisitors"`
	AverageStay     string           `json:"averageStay"`
	PeakHours       string           `json:"peakHours"`
	WeeklyAverages  []WeekdayAverage `json:"weeklyAverages"`
	WordFrequencies map[string]int   `json:"wordFrequencies"`
}

var weekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var stopWords = map[string]struct{}{
	"a": {}, "the": {}, "and": {}, "is": {}, "in": {}, "it": {}, "to": {},
	"of": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {}, "from": {},
	"as": {}, "an": {}, "that": {}, "this": {},
}

// Cutoff is the start of the trailing 30-day window, aligned to midnight in
// now's location. Callers can use it to pre-filter at the store before
// handing records to Window.
func Cutoff(now time.Time) time.Time {
	cutoff := now.AddDate(0, 0, -30)
	return time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, now.Location())
}

// Window keeps records whose checkin falls within the trailing 30 days of
// now.
func Window(records []visitor.Record, now time.Time) []visitor.Record {
	cutoff := Cutoff(now)

	var out []visitor.Record
	for _, rec := range records {
		if !rec.Checkin.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

// Summarize computes the full summary over the supplied records, which are
// normally pre-filtered through Window.
func Summarize(records []visitor.Record) Summary {
	return Summary{
		TotalVisitors:   len(records),
		AverageStay:     averageStay(records),
		PeakHours:       peakHours(records),
		WeeklyAverages:  weeklyAverages(records),
		WordFrequencies: wordFrequencies(records),
	}
}

// averageStay is the mean completed-visit duration. Visits with a missing
// checkout or a non-positive duration are excluded outright.
func averageStay(records []visitor.Record) string {
	var total time.Duration
	count := 0
	for _, rec := range records {
		if rec.Checkout == nil {
			continue
		}
		d := rec.Checkout.Sub(rec.Checkin)
		if d <= 0 {
			continue
		}
		total += d
		count++
	}
	if count == 0 {
		return "0 mins"
	}
	return formatDuration(total / time.Duration(count))
}

// formatDuration renders with the largest unit: one decimal for days and
// hours, whole minutes otherwise.
func formatDuration(d time.Duration) string {
	days := d.Hours() / 24
	hours := d.Hours()
	switch {
	case days >= 1:
		return fmt.Sprintf("%.1f days", days)
	case hours >= 1:
		return fmt.Sprintf("%.1f hrs", hours)
	default:
		return fmt.Sprintf("%d mins", int(math.Round(d.Minutes())))
	}
}

// peakHours returns the busiest check-in hour as "{h}-{h+1}", the upper bound
// zero-padded. Ties go to the hour first encountered in record order.
func peakHours(records []visitor.Record) string {
	if len(records) == 0 {
		return "---"
	}
	counts := make(map[int]int)
	max := 0
	for _, rec := range records {
		h := rec.Checkin.Hour()
		counts[h]++
		if counts[h] > max {
			max = counts[h]
		}
	}
	best := 0
	for _, rec := range records {
		if h := rec.Checkin.Hour(); counts[h] == max {
			best = h
			break
		}
	}
	return fmt.Sprintf("%d-%02d", best, best+1)
}

// weeklyAverages divides each weekday's visit count by the approximate number
// of times that weekday occurred in the window, ceil(count/7).
func weeklyAverages(records []visitor.Record) []WeekdayAverage {
	counts := make([]int, 7)
	for _, rec := range records {
		// time.Weekday is Sunday-based; shift to Monday-first.
		day := (int(rec.Checkin.Weekday()) + 6) % 7
		counts[day]++
	}

	out := make([]WeekdayAverage, 7)
	for i, name := range weekdayNames {
		out[i] = WeekdayAverage{Name: name}
		if counts[i] == 0 {
			continue
		}
		weeks := (counts[i] + 6) / 7
		out[i].Average = math.Round(float64(counts[i])/float64(weeks)*10) / 10
	}
	return out
}

// wordFrequencies counts tokens across the free-text fields.
func wordFrequencies(records []visitor.Record) map[string]int {
	freq := make(map[string]int)
	for _, rec := range records {
		for _, text := range []string{rec.Purpose, rec.WhereFrom, rec.WhereTo} {
			for _, word := range tokenize(text) {
				freq[word]++
			}
		}
	}
	return freq
}

// tokenize lowercases, strips punctuation, splits on whitespace, and drops
// stop words and single-character tokens.
func tokenize(sentence string) []string {
	cleaned := strings.ToLower(sentence)
	cleaned = strings.Map(func(r rune) rune {
		if strings.ContainsRune(".,/#!$%^&*;:{}=-_`~()", r) {
			return -1
		}
		return r
	}, cleaned)

	var words []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		words = append(words, word)
	}
	return words
}
