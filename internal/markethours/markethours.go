// Package markethours knows the NSE trading calendar: session hours,
// holidays and the bar-interval arithmetic derived from them
// (annualization factors, session-anchored resampling buckets).
package markethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Market hours in IST
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30

	SessionMinutes      = (CloseHour*60 + CloseMinute) - (OpenHour*60 + OpenMinute) // 375
	TradingDaysPerYear  = 252
	TradingWeeksPerYear = 52
)

// IsMarketOpen reports whether t is inside the cash session on a
// trading day. The close minute itself is outside.
func IsMarketOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	return !t.Before(SessionOpen(t)) && t.Before(SessionClose(t))
}

// IsWeekday reports whether t is Monday to Friday in IST.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay reports whether the exchange trades on t's IST date.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// SessionOpen returns the 9:15 IST open on t's calendar day.
func SessionOpen(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
}

// SessionClose returns the 15:30 IST close on t's calendar day.
func SessionClose(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// NextOpen returns the first session open strictly after t, which is
// today's open when t is before it on a trading day.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)

	todayOpen := SessionOpen(ist)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}

	// Long weekends plus holiday clusters never exceed two weeks.
	for day := ist.AddDate(0, 0, 1); day.Sub(ist) <= 14*24*time.Hour; day = day.AddDate(0, 0, 1) {
		if IsTradingDay(day) {
			return SessionOpen(day)
		}
	}
	return SessionOpen(ist.AddDate(0, 0, 1))
}

// ParseInterval parses bar interval names: Go durations ("5m", "1h"),
// broker style ("ONE_MINUTE", "FIVE_MINUTE", "ONE_DAY") and "1d"/"1w".
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "ONE_MINUTE", "MINUTE":
		return time.Minute, nil
	case "THREE_MINUTE":
		return 3 * time.Minute, nil
	case "FIVE_MINUTE":
		return 5 * time.Minute, nil
	case "TEN_MINUTE":
		return 10 * time.Minute, nil
	case "FIFTEEN_MINUTE":
		return 15 * time.Minute, nil
	case "THIRTY_MINUTE":
		return 30 * time.Minute, nil
	case "ONE_HOUR", "HOUR":
		return time.Hour, nil
	case "ONE_DAY", "DAY", "DAILY":
		return 24 * time.Hour, nil
	case "ONE_WEEK", "WEEK", "WEEKLY":
		return 7 * 24 * time.Hour, nil
	}
	if n := len(s); n > 1 {
		unit := s[n-1]
		if unit == 'd' || unit == 'w' {
			k, err := strconv.Atoi(s[:n-1])
			if err != nil || k <= 0 {
				return 0, fmt.Errorf("markethours: bad interval %q", s)
			}
			d := time.Duration(k) * 24 * time.Hour
			if unit == 'w' {
				d *= 7
			}
			return d, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("markethours: bad interval %q", s)
	}
	return d, nil
}

// PeriodsPerYear parses interval and returns AnnualPeriods for it.
func PeriodsPerYear(interval string) (float64, error) {
	d, err := ParseInterval(interval)
	if err != nil {
		return 0, err
	}
	return AnnualPeriods(d), nil
}

// AnnualPeriods returns how many bars of length d fit in an NSE trading
// year: 252 sessions of 375 minutes for intraday bars, 252/days for
// daily multiples and 52/weeks for weekly ones. Non-positive d yields 0.
func AnnualPeriods(d time.Duration) float64 {
	const day = 24 * time.Hour
	switch {
	case d <= 0:
		return 0
	case d >= 7*day && d%(7*day) == 0:
		return TradingWeeksPerYear / float64(d/(7*day))
	case d >= day:
		return TradingDaysPerYear / (float64(d) / float64(day))
	}
	perSession := float64(SessionMinutes*time.Minute) / float64(d)
	if perSession < 1 {
		perSession = 1
	}
	return TradingDaysPerYear * perSession
}

// BucketStart returns the start of the interval-d bucket holding t.
// Intraday buckets are anchored to the session open so hourly bars run
// 9:15–10:15 and so on; daily buckets start at IST midnight.
func BucketStart(t time.Time, d time.Duration) time.Time {
	ist := t.In(IST)
	if d >= 24*time.Hour {
		midnight := time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
		days := int(d / (24 * time.Hour))
		if days <= 1 {
			return midnight
		}
		epochDays := int(midnight.Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, IST)) / (24 * time.Hour))
		return midnight.AddDate(0, 0, -(epochDays % days))
	}
	open := SessionOpen(ist)
	if ist.Before(open) {
		return ist.Truncate(d)
	}
	return open.Add(ist.Sub(open) / d * d)
}

// Session describes the market at one instant: whether it is open and
// when that changes (today's close, or the next open).
type Session struct {
	Open  bool      `json:"open"`
	Until time.Time `json:"until"`
}

// SessionAt reports the session state at t.
func SessionAt(t time.Time) Session {
	if IsMarketOpen(t) {
		return Session{Open: true, Until: SessionClose(t)}
	}
	return Session{Until: NextOpen(t)}
}

// Describe renders s relative to now, e.g. "open, closes in 2h5m" or
// "closed, opens Mon 09:15 (2d17h)".
func (s Session) Describe(now time.Time) string {
	left := s.Until.Sub(now)
	if s.Open {
		return "open, closes in " + shortDur(left)
	}
	at := s.Until.In(IST)
	return fmt.Sprintf("closed, opens %s %s (%s)", at.Format("Mon"), at.Format("15:04"), shortDur(left))
}

func shortDur(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h, m := int(d/time.Hour), int(d%time.Hour/time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, h)
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
