package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tahfidz/internal/model"
)

var (
	monthNames      = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
	shortMonthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}
)

// Period is an inclusive range of record dates.
type Period struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// ParsePeriod accepts a month (YYYY-MM) or an ISO week (YYYY-Www).
func ParsePeriod(key string) (Period, error) {
	key = strings.TrimSpace(key)
	if year, week, ok := strings.Cut(key, "-W"); ok {
		y, err1 := strconv.Atoi(year)
		w, err2 := strconv.Atoi(week)
		if err1 != nil || err2 != nil || w < 1 || w > 53 {
			return Period{}, model.Invalid("period %q is not YYYY-Www", key)
		}
		return weekPeriod(y, w), nil
	}
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return Period{}, model.Invalid("period %q is not YYYY-MM or YYYY-Www", key)
	}
	end := t.AddDate(0, 1, -1)
	return Period{
		Key:   key,
		Start: t,
		End:   end,
		Label: fmt.Sprintf("Bulan %s %d", monthNames[t.Month()-1], t.Year()),
	}, nil
}

func weekPeriod(year, week int) Period {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, -offset+(week-1)*7)
	end := start.AddDate(0, 0, 6)
	return Period{
		Key:   fmt.Sprintf("%d-W%02d", year, week),
		Start: start,
		End:   end,
		Label: fmt.Sprintf("Pekan ke-%d (%d %s - %d %s %d)", week,
			start.Day(), shortMonthNames[start.Month()-1],
			end.Day(), shortMonthNames[end.Month()-1], end.Year()),
	}
}

// CurrentMonth is the monthly period key containing now.
func CurrentMonth(now time.Time) string {
	return now.Format("2006-01")
}

// CurrentWeek is the ISO week period key containing now.
func CurrentWeek(now time.Time) string {
	y, w := now.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// Contains reports whether a record date falls inside the period.
func (p Period) Contains(date string) bool {
	t, ok := model.ParseDate(date)
	if !ok {
		return false
	}
	return !t.Before(p.Start) && !t.After(p.End)
}

// LongDate formats t the way signatures are dated, e.g. "4 Maret 2025".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}
