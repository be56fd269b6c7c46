// Package dateutil computes note names, period boundaries, and reminder instants.
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// tokens is ordered longest-first so that greedy matching picks "MMMM" over "MM".
var tokens = []string{
	"YYYY", "GGGG", "gggg",
	"MMMM", "DDDD", "dddd", "DDDo",
	"MMM", "DDD", "ddd",
	"YY", "GG", "gg", "MM", "Mo", "DD", "Do", "dd", "do",
	"WW", "Wo", "ww", "wo", "HH", "hh", "mm", "ss", "Qo",
	"M", "D", "d", "W", "w", "H", "h", "m", "s", "A", "a", "Q", "X", "x",
}

var (
	monthNames   = []string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}
	weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// Format renders t with a moment-style template.
//
// Text inside [brackets] and characters preceded by a backslash are copied
// verbatim. Any other run of letters is rendered only when it splits
// entirely into known tokens, so plain words such as "Year" survive
// unescaped while "Do" or "YYYYMMDD" are formatted. Week tokens use
// Sunday-start weeks (w, ww, gggg) or ISO weeks (W, WW, GGGG); names are
// English. Nothing depends on process-wide locale state.
func Format(template string, t time.Time) string {
	var b strings.Builder
	rs := []rune(template)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == '\\':
			if i+1 < len(rs) {
				b.WriteRune(rs[i+1])
			}
			i += 2
		case r == '[':
			end := i + 1
			for end < len(rs) && rs[end] != ']' {
				end++
			}
			if end == len(rs) {
				b.WriteString(string(rs[i:]))
				return b.String()
			}
			b.WriteString(string(rs[i+1 : end]))
			i = end + 1
		case isLetter(r):
			end := i
			for end < len(rs) && isLetter(rs[end]) {
				end++
			}
			b.WriteString(formatWord(string(rs[i:end]), t))
			i = end
		default:
			b.WriteRune(r)
			i++
		}
	}
	return b.String()
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func formatWord(word string, t time.Time) string {
	parts, ok := splitTokens(word)
	if !ok {
		return word
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(formatToken(p, t))
	}
	return b.String()
}

func splitTokens(word string) ([]string, bool) {
	var out []string
	for len(word) > 0 {
		matched := ""
		for _, tok := range tokens {
			if strings.HasPrefix(word, tok) {
				matched = tok
				break
			}
		}
		if matched == "" {
			return nil, false
		}
		out = append(out, matched)
		word = word[len(matched):]
	}
	return out, true
}

func formatToken(tok string, t time.Time) string {
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "Q":
		return strconv.Itoa(quarter(t))
	case "Qo":
		return Ordinal(quarter(t))
	case "MMMM":
		return monthNames[t.Month()-1]
	case "MMM":
		return monthNames[t.Month()-1][:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "Mo":
		return Ordinal(int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DDDD":
		return fmt.Sprintf("%03d", t.YearDay())
	case "DDDo":
		return Ordinal(t.YearDay())
	case "DDD":
		return strconv.Itoa(t.YearDay())
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "Do":
		return Ordinal(t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "dddd":
		return weekdayNames[t.Weekday()]
	case "ddd":
		return weekdayNames[t.Weekday()][:3]
	case "dd":
		return weekdayNames[t.Weekday()][:2]
	case "do":
		return Ordinal(int(t.Weekday()))
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "WW":
		_, w := t.ISOWeek()
		return fmt.Sprintf("%02d", w)
	case "Wo":
		_, w := t.ISOWeek()
		return Ordinal(w)
	case "W":
		_, w := t.ISOWeek()
		return strconv.Itoa(w)
	case "GGGG":
		y, _ := t.ISOWeek()
		return fmt.Sprintf("%04d", y)
	case "GG":
		y, _ := t.ISOWeek()
		return fmt.Sprintf("%02d", y%100)
	case "ww":
		_, w := Week(t)
		return fmt.Sprintf("%02d", w)
	case "wo":
		_, w := Week(t)
		return Ordinal(w)
	case "w":
		_, w := Week(t)
		return strconv.Itoa(w)
	case "gggg":
		y, _ := Week(t)
		return fmt.Sprintf("%04d", y)
	case "gg":
		y, _ := Week(t)
		return fmt.Sprintf("%02d", y%100)
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12(t))
	case "h":
		return strconv.Itoa(hour12(t))
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return tok
}

// Ordinal renders n with its English ordinal suffix (1st, 2nd, 11th, 23rd).
func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

// Week returns the week-year and week number of t for Sunday-start weeks
// where week 1 is the week containing January 1st.
func Week(t time.Time) (year, week int) {
	start := StartOfPeriod(t, GranularityWeek)
	year = start.AddDate(0, 0, 6).Year()
	first := StartOfPeriod(time.Date(year, time.January, 1, 0, 0, 0, 0, t.Location()), GranularityWeek)
	days := dayNumber(start) - dayNumber(first)
	return year, days/7 + 1
}

// dayNumber counts calendar days without being skewed by DST transitions.
func dayNumber(t time.Time) int {
	return int(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
