package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// MinPeriodicSeconds is the shortest interval a Periodic job may use (§4.I).
const MinPeriodicSeconds = 60

var (
	onceInPattern   = regexp.MustCompile(`^once in (\d+) (minute|hour|day)s?$`)
	onceAtPattern   = regexp.MustCompile(`^once at (\d{1,2}):(\d{2})$`)
	dailyPattern    = regexp.MustCompile(`^every day at (\d{1,2}):(\d{2})$`)
	periodicPattern = regexp.MustCompile(`^every (\d+) (minute|hour)s?$`)
)

// dailyCronParser computes each Daily job's next occurrence from a
// minute-hour-only cron expression, so DST transitions are resolved by
// the same field-matching logic the teacher's internal/cron package
// uses rather than by hand-rolled date arithmetic.
var dailyCronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseTrigger parses one of the four scheduler grammar forms (§6) and
// computes the job's first next-fire-epoch relative to now in loc.
func ParseTrigger(spec string, now time.Time, loc *time.Location) (kind models.JobKind, nextFire int64, dailyHour, dailyMinute int, intervalSecs int64, err error) {
	trimmed := strings.ToLower(strings.TrimSpace(spec))

	if m := onceInPattern.FindStringSubmatch(trimmed); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "minute":
			d = time.Duration(n) * time.Minute
		case "hour":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		}
		return models.JobOnce, now.Add(d).Unix(), 0, 0, 0, nil
	}

	if m := onceAtPattern.FindStringSubmatch(trimmed); m != nil {
		hour, minute, perr := parseHHMM(m[1], m[2])
		if perr != nil {
			return "", 0, 0, 0, 0, perr
		}
		next := nextDailyOccurrence(now, loc, hour, minute)
		return models.JobOnce, next.Unix(), 0, 0, 0, nil
	}

	if m := dailyPattern.FindStringSubmatch(trimmed); m != nil {
		hour, minute, perr := parseHHMM(m[1], m[2])
		if perr != nil {
			return "", 0, 0, 0, 0, perr
		}
		next := nextDailyOccurrence(now, loc, hour, minute)
		return models.JobDaily, next.Unix(), hour, minute, 0, nil
	}

	if m := periodicPattern.FindStringSubmatch(trimmed); m != nil {
		n, _ := strconv.Atoi(m[1])
		var secs int64
		switch m[2] {
		case "minute":
			secs = int64(n) * 60
		case "hour":
			secs = int64(n) * 3600
		}
		if secs < MinPeriodicSeconds {
			return "", 0, 0, 0, 0, fmt.Errorf("scheduler: periodic interval must be at least %ds, got %ds", MinPeriodicSeconds, secs)
		}
		return models.JobPeriodic, now.Add(time.Duration(secs) * time.Second).Unix(), 0, 0, secs, nil
	}

	return "", 0, 0, 0, 0, fmt.Errorf("scheduler: unrecognised trigger spec %q", spec)
}

func parseHHMM(hStr, mStr string) (int, int, error) {
	hour, _ := strconv.Atoi(hStr)
	minute, _ := strconv.Atoi(mStr)
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("scheduler: invalid time of day %02d:%02d", hour, minute)
	}
	return hour, minute, nil
}

// nextDailyOccurrence returns the next wall-clock hour:minute in loc
// strictly after now, via a "minute hour * * *" cron schedule so DST
// transitions are resolved by the parser's own field matching rather
// than by hand-rolled date arithmetic (a fall-back day yields an
// occurrence 25 hours later, a spring-forward day 23 hours later,
// without special-casing either).
func nextDailyOccurrence(now time.Time, loc *time.Location, hour, minute int) time.Time {
	sched, err := dailyCronParser.Parse(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		// hour/minute are already range-checked by parseHHMM, so this
		// path is unreachable in practice.
		return now.In(loc).AddDate(0, 0, 1)
	}
	return sched.Next(now.In(loc))
}
