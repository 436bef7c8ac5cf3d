// Package supervisor owns boot-health tracking, safe-mode entry, and
// the startup health-check aggregation used by both `concierged run`
// and `concierged doctor` (§4.J), named after the teacher's
// internal/doctor health-aggregation concept but reimplemented at this
// project's much smaller scope.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joaolucaswork/esp32-concierge/internal/config"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// BootSuccessDelay is BOOT_SUCCESS_DELAY_MS (§4.J default 30s): how
// long the runtime must stay up, uninterrupted, before the
// consecutive-failed-boots counter is reset to zero.
const BootSuccessDelay = 30 * time.Second

// Mode is the supervisor's runtime posture.
type Mode string

const (
	// ModeNormal runs every subsystem.
	ModeNormal Mode = "normal"
	// ModeSafe degrades to channels-only: LLM and scheduler disabled,
	// every inbound message gets a fixed informational reply (§4.J).
	ModeSafe Mode = "safe"
)

// SafeModeReply is sent to any input while in ModeSafe.
const SafeModeReply = "Running in safe mode after repeated boot failures; LLM and scheduler are disabled."

// Supervisor tracks consecutive-failed-boots and arms the
// success-delay timer that clears it.
type Supervisor struct {
	store  store.Store
	logger *slog.Logger

	mu   sync.Mutex
	mode Mode

	successDelay time.Duration
	cancelArm    context.CancelFunc
}

// Config configures a Supervisor.
type Config struct {
	Store         store.Store
	Logger        *slog.Logger
	SuccessDelay  time.Duration // 0 = BootSuccessDelay
}

// New constructs a Supervisor. Call Boot once at startup before
// anything else reads or writes the store.
func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SuccessDelay <= 0 {
		cfg.SuccessDelay = BootSuccessDelay
	}
	return &Supervisor{
		store:         cfg.Store,
		logger:        cfg.Logger.With("component", "supervisor"),
		successDelay:  cfg.SuccessDelay,
		mode:          ModeNormal,
	}
}

// Boot increments consecutive-failed-boots and decides whether to
// enter safe mode (§4.J: counter >= models.MaxBootFailures). It does
// not itself clear the counter — call ArmSuccessTimer for that once
// the caller's own startup sequence has completed.
func (sv *Supervisor) Boot(ctx context.Context) (Mode, error) {
	count, err := config.BootCount(ctx, sv.store)
	if err != nil {
		return ModeNormal, err
	}
	count++
	if err := config.SetBootCount(ctx, sv.store, count); err != nil {
		return ModeNormal, err
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()
	if count >= models.MaxBootFailures {
		sv.mode = ModeSafe
		sv.logger.Warn("entering safe mode", "consecutive_failed_boots", count)
	} else {
		sv.mode = ModeNormal
	}
	return sv.mode, nil
}

// ArmSuccessTimer starts a timer that resets consecutive-failed-boots
// to zero after successDelay of uninterrupted operation (ctx not
// cancelled). Calling it again replaces any previously armed timer.
func (sv *Supervisor) ArmSuccessTimer(ctx context.Context) {
	sv.mu.Lock()
	if sv.cancelArm != nil {
		sv.cancelArm()
	}
	armCtx, cancel := context.WithCancel(ctx)
	sv.cancelArm = cancel
	sv.mu.Unlock()

	go func() {
		select {
		case <-armCtx.Done():
			return
		case <-time.After(sv.successDelay):
			if err := config.SetBootCount(armCtx, sv.store, 0); err != nil {
				sv.logger.Warn("failed to reset boot-failure counter", "error", err)
				return
			}
			sv.logger.Info("uninterrupted operation confirmed, boot-failure counter reset")
		}
	}()
}

// Mode returns the current runtime posture.
func (sv *Supervisor) Mode() Mode {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.mode
}

// EnterSafeMode forces safe mode outside of boot accounting, for the
// StoreCorruption failure class (§7: "surface globally (safe mode)
// only for StoreCorruption and repeated boot failures").
func (sv *Supervisor) EnterSafeMode(reason string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.mode = ModeSafe
	sv.logger.Error("forcing safe mode", "reason", reason)
}
