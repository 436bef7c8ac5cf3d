// Package scheduler implements the durable cron-like engine (§4.I):
// a persistent job table loaded at startup, ticked once per
// SCHEDULER_TICK, that injects synthetic Schedule-origin messages onto
// the shared input queue when a job's next-fire-epoch elapses.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// DefaultTick is SCHEDULER_TICK (§4.I).
const DefaultTick = 60 * time.Second

// MaxScheduledJobs bounds the job table so the persistent store and
// each tick's scan stay within a fixed, statically-sizeable budget.
const MaxScheduledJobs = 32

// countKey is reserved and never holds a job record.
const countKey = "count"

// Clock reports the current epoch and whether it has been synced
// since boot; the scheduler must not act while the clock is unsynced.
type Clock interface {
	Now() time.Time
	Synced() bool
}

// Emitter pushes a synthetic message onto the shared input queue,
// non-blocking; it reports whether the message was accepted.
type Emitter interface {
	TrySend(msg models.Message) bool
}

// Scheduler owns the persistent job table and the tick loop.
type Scheduler struct {
	store  store.Store
	clock  Clock
	emit   Emitter
	loc    *time.Location
	logger *slog.Logger
	tick   time.Duration

	mu     sync.Mutex
	jobs   map[uint64]*models.ScheduledJob
	nextID uint64

	msgSeq atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures a new Scheduler.
type Config struct {
	Store  store.Store
	Clock  Clock
	Emit   Emitter
	Loc    *time.Location
	Tick   time.Duration
	Logger *slog.Logger
}

// New constructs a Scheduler. Call Load before Start to recover the
// persisted job table.
func New(cfg Config) *Scheduler {
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		store:  cfg.Store,
		clock:  cfg.Clock,
		emit:   cfg.Emit,
		loc:    cfg.Loc,
		tick:   cfg.Tick,
		logger: cfg.Logger.With("component", "scheduler"),
		jobs:   make(map[uint64]*models.ScheduledJob),
	}
}

// Load recovers the job table from the persistent store, skipping and
// logging any record that fails to deserialise rather than aborting.
func (s *Scheduler) Load(ctx context.Context) error {
	next, closer, err := s.store.Iterate(ctx, store.NamespaceScheduler)
	if err != nil {
		return fmt.Errorf("scheduler: load: %w", err)
	}
	defer closer()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		key, value, ok := next()
		if !ok {
			break
		}
		if key == countKey {
			continue
		}
		var job models.ScheduledJob
		if err := yaml.Unmarshal(value, &job); err != nil {
			s.logger.Warn("scheduled job record corrupt, skipping", "key", key, "error", err)
			continue
		}
		jobCopy := job
		s.jobs[job.ID] = &jobCopy
		if job.ID >= s.nextID {
			s.nextID = job.ID + 1
		}
	}
	return nil
}

// Create parses a trigger spec (§6), allocates the next monotonic id,
// and persists a new active job.
func (s *Scheduler) Create(ctx context.Context, triggerSpec, action string) (*models.ScheduledJob, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, fmt.Errorf("scheduler: action text required")
	}
	if len(action) > models.MaxActionBytes {
		return nil, fmt.Errorf("scheduler: action exceeds %d bytes", models.MaxActionBytes)
	}

	now := s.clock.Now()
	kind, nextFire, dailyHour, dailyMinute, intervalSecs, err := ParseTrigger(triggerSpec, now, s.loc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if len(s.jobs) >= MaxScheduledJobs {
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduler: job table full (max %d)", MaxScheduledJobs)
	}
	id := s.nextID
	s.nextID++
	job := &models.ScheduledJob{
		ID:            id,
		Kind:          kind,
		TriggerSpec:   triggerSpec,
		Action:        action,
		NextFireEpoch: nextFire,
		CreationEpoch: now.Unix(),
		Active:        true,
		DailyHour:     dailyHour,
		DailyMinute:   dailyMinute,
		IntervalSecs:  intervalSecs,
	}
	s.jobs[id] = job
	s.mu.Unlock()

	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a job's persistent record. A firing already pushed
// onto the input queue still executes (§4.I).
func (s *Scheduler) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: job %d not found", id)
	}
	return s.store.Delete(ctx, store.NamespaceScheduler, strconv.FormatUint(id, 10))
}

// List returns a snapshot of all jobs, ordered by id.
func (s *Scheduler) List() []models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Start begins the tick loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(runCtx)
			}
		}
	}()
}

// Stop cancels the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce fetches the current epoch, aborts if the clock is not yet
// synced, and fires every due active job exactly once (§4.I, step 1-2).
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if !s.clock.Synced() {
		s.logger.Debug("tick skipped: clock not synced")
		return 0
	}
	now := s.clock.Now()

	s.mu.Lock()
	due := make([]*models.ScheduledJob, 0)
	for _, job := range s.jobs {
		if job.Active && job.NextFireEpoch <= now.Unix() {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	fired := 0
	for _, job := range due {
		if s.fire(ctx, job, now) {
			fired++
		}
	}
	return fired
}

func (s *Scheduler) fire(ctx context.Context, job *models.ScheduledJob, now time.Time) bool {
	msg := models.Message{
		Seq:    s.msgSeq.Add(1),
		Origin: models.OriginSchedule,
		Text:   job.Action,
	}
	if !s.emit.TrySend(msg) {
		s.logger.Warn("input queue full, job remains scheduled", "job_id", job.ID)
		return false
	}

	s.mu.Lock()
	switch job.Kind {
	case models.JobOnce:
		job.Active = false
	case models.JobDaily:
		job.NextFireEpoch = advanceDaily(job, s.loc, now)
	case models.JobPeriodic:
		job.NextFireEpoch = advancePeriodic(job, now)
	}
	jobCopy := *job
	s.mu.Unlock()

	if err := s.persist(ctx, &jobCopy); err != nil {
		s.logger.Warn("scheduler: persist after fire failed", "job_id", job.ID, "error", err)
	}
	return true
}

// advanceDaily computes the next occurrence of the job's hour:minute
// strictly after now, via the same cron-based computation ParseTrigger
// uses, honouring DST via the parser's field matching rather than
// hand-rolled date arithmetic (§8 scenario 5). Walking forward from now
// rather than from the stale fire time matches advancePeriodic's
// catch-up behaviour (§4.I step 2c): a Daily job offline for several
// days advances straight to the next future occurrence in one step
// instead of re-firing once per tick until it catches up.
func advanceDaily(job *models.ScheduledJob, loc *time.Location, now time.Time) int64 {
	next := nextDailyOccurrence(now.In(loc), loc, job.DailyHour, job.DailyMinute)
	for next.Unix() <= now.Unix() {
		next = nextDailyOccurrence(next, loc, job.DailyHour, job.DailyMinute)
	}
	return next.Unix()
}

// advancePeriodic walks forward by IntervalSecs from the fired time;
// if several intervals elapsed while offline, it advances to the
// first next-fire-epoch strictly after now (§4.I, step 2c).
func advancePeriodic(job *models.ScheduledJob, now time.Time) int64 {
	next := job.NextFireEpoch + job.IntervalSecs
	for next <= now.Unix() {
		next += job.IntervalSecs
	}
	return next
}

func (s *Scheduler) persist(ctx context.Context, job *models.ScheduledJob) error {
	raw, err := yaml.Marshal(job)
	if err != nil {
		return fmt.Errorf("scheduler: marshal job %d: %w", job.ID, err)
	}
	return s.store.Put(ctx, store.NamespaceScheduler, strconv.FormatUint(job.ID, 10), raw)
}
