package markethours

import (
	"fmt"
	"sync"
	"time"
)

// Exchange holidays (IST dates). Dates marked ~ were provisional when
// listed; config can add more through AddHolidays.
var builtinHolidays = []string{
	"2026-01-26", // Republic Day
	"2026-02-17", // Mahashivratri ~
	"2026-03-14", // Holi
	"2026-03-31", // Id-ul-Fitr ~
	"2026-04-02", // Ram Navami ~
	"2026-04-06", // Mahavir Jayanti
	"2026-04-10", // Good Friday
	"2026-04-14", // Ambedkar Jayanti
	"2026-05-01", // Maharashtra Day
	"2026-06-07", // Bakri Id ~
	"2026-07-06", // Muharram ~
	"2026-08-15", // Independence Day
	"2026-08-16", // Janmashtami ~
	"2026-09-05", // Milad-un-Nabi ~
	"2026-10-02", // Gandhi Jayanti
	"2026-10-20", // Dussehra
	"2026-10-21", // Dussehra ~
	"2026-11-05", // Diwali Laxmi Pujan ~
	"2026-11-06", // Balipratipada ~
	"2026-11-07", // Bhai Dooj ~
	"2026-11-19", // Guru Nanak Jayanti
	"2026-12-25", // Christmas
}

var (
	holidayMu sync.RWMutex
	closed    = map[string]struct{}{}
)

func init() {
	if err := AddHolidays(builtinHolidays...); err != nil {
		panic(err)
	}
}

// AddHolidays registers extra closed dates given as YYYY-MM-DD.
// Nothing is registered if any date fails to parse.
func AddHolidays(dates ...string) error {
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		t, err := time.ParseInLocation(time.DateOnly, d, IST)
		if err != nil {
			return fmt.Errorf("markethours: holiday %q: %w", d, err)
		}
		keys = append(keys, dayKey(t))
	}

	holidayMu.Lock()
	defer holidayMu.Unlock()
	for _, k := range keys {
		closed[k] = struct{}{}
	}
	return nil
}

// IsHoliday reports whether t falls on an exchange holiday in IST.
func IsHoliday(t time.Time) bool {
	k := dayKey(t.In(IST))
	holidayMu.RLock()
	defer holidayMu.RUnlock()
	_, ok := closed[k]
	return ok
}

func dayKey(t time.Time) string { return t.Format(time.DateOnly) }
