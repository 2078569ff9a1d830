package textmatch

import (
	"fmt"
	"regexp"
	"time"
)

var (
	isoDateRe     = regexp.MustCompile(`\b(20\d{2}-\d{2}-\d{2})\b`)
	frenchDateRe  = regexp.MustCompile(`\b(\d{1,2}) (janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre) (20\d{2})\b`)
	frenchMonthRe = regexp.MustCompile(`\b(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre) (20\d{2})\b`)
)

var frenchMonths = map[string]string{
	"janvier":   "01",
	"fevrier":   "02",
	"mars":      "03",
	"avril":     "04",
	"mai":       "05",
	"juin":      "06",
	"juillet":   "07",
	"aout":      "08",
	"septembre": "09",
	"octobre":   "10",
	"novembre":  "11",
	"decembre":  "12",
}

// FrenchMonthNumber maps a French month name (any casing, with or without
// accents) to its zero-padded two-digit number. Returns "" when the value is
// not a month name.
func FrenchMonthNumber(value string) string {
	return frenchMonths[Fold(value)]
}

// ExtractDateISO finds the first date in text and returns it as YYYY-MM-DD.
// ISO-formatted dates win over French "12 mars 2024" forms. Returns "" when
// no date is present.
func ExtractDateISO(text string) string {
	folded := Fold(text)
	if m := isoDateRe.FindStringSubmatch(folded); m != nil {
		return m[1]
	}
	if m := frenchDateRe.FindStringSubmatch(folded); m != nil {
		month := frenchMonths[m[2]]
		if month == "" {
			return ""
		}
		day := m[1]
		if len(day) == 1 {
			day = "0" + day
		}
		return fmt.Sprintf("%s-%s-%s", m[3], month, day)
	}
	return ""
}

// ExtractMonthKey finds a French "mars 2024" style month reference in text
// and returns it as YYYYMM. Returns "" when none is present.
func ExtractMonthKey(text string) string {
	m := frenchMonthRe.FindStringSubmatch(Fold(text))
	if m == nil {
		return ""
	}
	month := frenchMonths[m[1]]
	if month == "" {
		return ""
	}
	return m[2] + month
}

// CurrentMonthKey returns now's month as YYYYMM.
func CurrentMonthKey(now time.Time) string {
	return now.Format("200601")
}

// MonthStartISO returns the first day of now's month as YYYY-MM-DD.
func MonthStartISO(now time.Time) string {
	return now.Format("2006-01") + "-01"
}
