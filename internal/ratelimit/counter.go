// Package ratelimit implements the agent's hourly/daily rolling-window
// admission counter (§4.B, §3 RateCounter). It is intentionally not a
// token bucket: windows align to wall-clock hour/day boundaries rather
// than refilling continuously, per the spec's admit()/snapshot() contract.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the result of an admit() call.
type Decision int

const (
	Allow Decision = iota
	Deny
)

// Config configures the counter's admission thresholds.
type Config struct {
	HourLimit int
	DayLimit  int
	// Now returns the current time; overridable for deterministic tests.
	Now func() time.Time
	// Loc is the location wall-clock hour/day boundaries align to.
	// Defaults to UTC; the device's configured POSIX timezone should be
	// threaded in here so admission windows match the clock the user sees.
	Loc *time.Location
}

// DefaultConfig matches the spec's default policy (§4.B): deny when
// hour>=30 or day>=200.
func DefaultConfig() Config {
	return Config{HourLimit: 30, DayLimit: 200, Now: time.Now}
}

// Counter is the single-writer(agent)/many-reader(health tool) rolling
// window admission counter.
type Counter struct {
	mu sync.RWMutex
	cfg Config

	hourCount      int
	hourWindowStart time.Time
	dayCount       int
	dayWindowStart time.Time

	// ClockSynced reports whether wall-clock time is trustworthy. While
	// false, Admit is conservative and only allows 1/4 of each cap (§4.B).
	clockSynced bool
}

// New creates a Counter with windows anchored to cfg.Now().
func New(cfg Config) *Counter {
	if cfg.HourLimit <= 0 {
		cfg.HourLimit = 30
	}
	if cfg.DayLimit <= 0 {
		cfg.DayLimit = 200
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	now := cfg.Now()
	return &Counter{
		cfg:             cfg,
		hourWindowStart: hourStart(now, cfg.Loc),
		dayWindowStart:  dayStart(now, cfg.Loc),
		clockSynced:     true,
	}
}

// hourStart returns the start of the wall-clock hour now falls in, in loc.
func hourStart(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// dayStart returns the start of the wall-clock calendar day now falls
// in, in loc, so the day window aligns to local midnight rather than
// the UTC epoch boundary time.Truncate(24*time.Hour) would produce.
func dayStart(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SetClockSynced marks whether the real-time clock has been synced. Until
// synced, Admit is conservative (§4.B).
func (c *Counter) SetClockSynced(synced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clockSynced = synced
}

func (c *Counter) rollWindowsLocked(now time.Time) {
	if hs := hourStart(now, c.cfg.Loc); !hs.Equal(c.hourWindowStart) {
		c.hourCount = 0
		c.hourWindowStart = hs
	}
	if ds := dayStart(now, c.cfg.Loc); !ds.Equal(c.dayWindowStart) {
		c.dayCount = 0
		c.dayWindowStart = ds
	}
}

// Admit rolls expired windows forward, then checks and (on allow)
// increments both counters atomically.
func (c *Counter) Admit() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	c.rollWindowsLocked(now)

	hourLimit, dayLimit := c.cfg.HourLimit, c.cfg.DayLimit
	if !c.clockSynced {
		hourLimit /= 4
		dayLimit /= 4
	}

	if c.hourCount >= hourLimit || c.dayCount >= dayLimit {
		return Deny
	}
	c.hourCount++
	c.dayCount++
	return Allow
}

// Snapshot returns the current (hour, day) counts without mutating state,
// rolling expired windows forward first so readers see a consistent view.
func (c *Counter) Snapshot() (hourCount, dayCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollWindowsLocked(c.cfg.Now())
	return c.hourCount, c.dayCount
}
