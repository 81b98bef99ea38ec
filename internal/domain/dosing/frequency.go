package dosing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	hoursPerDay  = 24
	hoursPerWeek = 168
)

// Frequency is a dosing schedule expressed as the interval between doses.
type Frequency struct {
	IntervalHours float64
}

var everyNHours = regexp.MustCompile(`^(?:every|each|cada|q)\s*(\d+)\s*(?:h|hr|hrs|hours?|horas?)$`)

// frequencySynonyms covers common clinical shorthands in English and
// Spanish, the languages the ingested guidelines come in.
var frequencySynonyms = map[string]float64{
	"daily":             hoursPerDay,
	"once daily":        hoursPerDay,
	"once a day":        hoursPerDay,
	"qd":                hoursPerDay,
	"od":                hoursPerDay,
	"every day":         hoursPerDay,
	"twice daily":       12,
	"twice a day":       12,
	"bid":               12,
	"three times daily": 8,
	"three times a day": 8,
	"tid":               8,
	"four times daily":  6,
	"qid":               6,
	"weekly":            hoursPerWeek,
	"once weekly":       hoursPerWeek,
	"once a week":       hoursPerWeek,
	"every week":        hoursPerWeek,
	"qw":                hoursPerWeek,
	"biweekly":          2 * hoursPerWeek,
	"every other week":  2 * hoursPerWeek,
	"every two weeks":   2 * hoursPerWeek,
	"q2w":               2 * hoursPerWeek,

	"diario":              hoursPerDay,
	"cada dia":            hoursPerDay,
	"cada día":            hoursPerDay,
	"una vez al dia":      hoursPerDay,
	"una vez al día":      hoursPerDay,
	"dos veces al dia":    12,
	"dos veces al día":    12,
	"tres veces al dia":   8,
	"tres veces al día":   8,
	"semanal":             hoursPerWeek,
	"una vez a la semana": hoursPerWeek,
	"cada semana":         hoursPerWeek,
	"cada dos semanas":    2 * hoursPerWeek,
}

// ParseFrequency normalizes a free-text dosing schedule. Accepted forms are
// the common clinical shorthands (daily, bid, tid, weekly, q2w, semanal, ...)
// plus "every N hours" and "cada N horas".
func ParseFrequency(s string) (Frequency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if h, ok := frequencySynonyms[key]; ok {
		return Frequency{IntervalHours: h}, nil
	}
	if m := everyNHours.FindStringSubmatch(key); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Frequency{}, fmt.Errorf("invalid hour interval %q", s)
		}
		return Frequency{IntervalHours: float64(n)}, nil
	}
	return Frequency{}, fmt.Errorf("unrecognized dosing frequency %q", s)
}

// DosesPerDay returns how many doses the schedule yields per day.
func (f Frequency) DosesPerDay() float64 {
	return hoursPerDay / f.IntervalHours
}

// DosesPerWeek returns how many doses the schedule yields per week.
func (f Frequency) DosesPerWeek() float64 {
	return hoursPerWeek / f.IntervalHours
}

// DosesPer returns the dose count for the given reference period.
func (f Frequency) DosesPer(p Period) float64 {
	if p == PerWeek {
		return f.DosesPerWeek()
	}
	return f.DosesPerDay()
}

func (f Frequency) String() string {
	switch f.IntervalHours {
	case hoursPerDay:
		return "daily"
	case hoursPerWeek:
		return "weekly"
	case 2 * hoursPerWeek:
		return "every two weeks"
	default:
		return fmt.Sprintf("every %g hours", f.IntervalHours)
	}
}
