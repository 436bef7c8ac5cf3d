// Command concierged is the on-device AI assistant runtime entry point:
// a cooperative multi-task system wiring the persistent store, vendor
// LLM transport, tool registry, bounded agent loop, local/chat-API
// channels, and durable scheduler into one cobra-driven binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/internal/channel"
	"github.com/joaolucaswork/esp32-concierge/internal/clock"
	"github.com/joaolucaswork/esp32-concierge/internal/config"
	"github.com/joaolucaswork/esp32-concierge/internal/llm"
	"github.com/joaolucaswork/esp32-concierge/internal/llm/providers"
	"github.com/joaolucaswork/esp32-concierge/internal/ratelimit"
	"github.com/joaolucaswork/esp32-concierge/internal/scheduler"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/internal/supervisor"
	"github.com/joaolucaswork/esp32-concierge/internal/telegram"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/gpio"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/i2c"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/memory"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/schedule"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/system"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/timezone"
	"github.com/joaolucaswork/esp32-concierge/internal/tools/usertool"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree; separated from main for testability.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "concierged",
		Short:        "On-device AI assistant runtime",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildDoctorCmd())
	return root
}

// buildRunCmd creates the "run" command: the full startup sequence.
func buildRunCmd() *cobra.Command {
	var storePath string
	var metricsAddr string
	var gpioMin, gpioMax int
	var i2cPins string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the assistant runtime until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, storePath, metricsAddr, gpioMin, gpioMax, i2cPins)
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "concierge.db", "Path to the persistent key-value store")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on (empty disables it)")
	cmd.Flags().IntVar(&gpioMin, "gpio-pin-min", 0, "Lowest GPIO pin number permitted for gpio_set")
	cmd.Flags().IntVar(&gpioMax, "gpio-pin-max", 39, "Highest GPIO pin number permitted for gpio_set")
	cmd.Flags().StringVar(&i2cPins, "i2c-pins", "21,22", "Comma-separated pins permitted as SDA or SCL for i2c_scan")

	return cmd
}

// buildDoctorCmd creates the "doctor" command: offline health checks.
func buildDoctorCmd() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run startup health checks against the persistent store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, storePath)
		},
	}
	cmd.Flags().StringVarP(&storePath, "store", "s", "concierge.db", "Path to the persistent key-value store")
	return cmd
}

func runDoctor(cmd *cobra.Command, storePath string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	clk := clock.New(true, timezone.Load(ctx, s))
	checks := []supervisor.Check{
		supervisor.StoreCheck(s),
		supervisor.ClockCheck(clk),
		supervisor.LLMConfigCheck(s),
		supervisor.ChatConfigCheck(s),
	}
	results := supervisor.RunChecks(ctx, checks, supervisor.DefaultProbeTimeout)

	out := cmd.OutOrStdout()
	allOK := true
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "FAIL: " + r.Error
			allOK = false
		}
		fmt.Fprintf(out, "%-12s %s\n", r.Name, status)
	}
	if !allOK {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func runDaemon(cmd *cobra.Command, storePath, metricsAddr string, gpioMin, gpioMax int, i2cPins string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("component", "concierged")

	s, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	sv := supervisor.New(supervisor.Config{Store: s, Logger: logger})
	mode, err := sv.Boot(ctx)
	if err != nil {
		return fmt.Errorf("boot accounting: %w", err)
	}

	loc := timezone.Load(ctx, s)
	clk := clock.New(true, loc)

	metrics := supervisor.NewMetrics()
	if n, err := config.BootCount(ctx, s); err == nil {
		metrics.BootFailures.Set(float64(n))
	}
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, metrics, logger)
	}

	input := channel.NewQueue("input", channel.DefaultQueueCapacity, logger)
	localOut := channel.NewQueue("local-out", channel.DefaultQueueCapacity, logger)
	localSink := channel.NewSink(localOut)

	if mode == supervisor.ModeSafe {
		logger.Warn("starting in safe mode")
		return runSafeMode(ctx, input, localOut, logger)
	}

	llmCfg, err := config.LoadLLM(ctx, s)
	if err != nil {
		return fmt.Errorf("load llm config: %w", err)
	}
	transport, err := buildTransport(llmCfg)
	if err != nil {
		logger.Warn("llm transport unavailable, assistant replies will fail until configured", "error", err)
	}

	reg := agent.NewRegistry()
	health := registerBuiltins(reg, s, clk, gpioMin, gpioMax, i2cPins)
	if err := usertool.LoadAll(ctx, s, reg); err != nil {
		logger.Warn("failed to load user-defined tools", "error", err)
	}

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.Loc = loc
	rlCfg.Now = clk.Now
	rateLimiter := ratelimit.New(rlCfg)
	rateLimiter.SetClockSynced(clk.Synced())

	outputs := []agent.OutputSink{localSink}
	chatCfg, err := config.LoadChat(ctx, s)
	if err != nil {
		return fmt.Errorf("load chat config: %w", err)
	}
	var poller *telegram.Poller
	if chatCfg.Token != "" {
		egress := telegram.NewEgress(&http.Client{Timeout: 10 * time.Second}, chatCfg.Token, chatCfg.ChatID, logger)
		outputs = append(outputs, egress)
		poller = telegram.New(telegram.Config{
			Store:            s,
			Emit:             input,
			Token:            chatCfg.Token,
			AuthorisedChatID: chatCfg.ChatID,
			Logger:           logger,
		})
	}

	tick, err := config.SchedulerTick(ctx, s)
	if err != nil {
		logger.Warn("failed to read scheduler tick override, using default", "error", err)
		tick = scheduler.DefaultTick
	}
	sched := scheduler.New(scheduler.Config{Store: s, Clock: clk, Emit: input, Loc: loc, Tick: tick, Logger: logger})
	if err := sched.Load(ctx); err != nil {
		logger.Warn("failed to recover scheduled jobs", "error", err)
	}
	reg.RegisterBuiltin(&schedule.CreateTool{Scheduler: sched})
	reg.RegisterBuiltin(&schedule.ListTool{Scheduler: sched})
	reg.RegisterBuiltin(&schedule.DeleteTool{Scheduler: sched})

	loop := agent.NewLoop(agent.Config{
		Registry:    reg,
		Transport:   transport,
		RateLimiter: rateLimiter,
		Outputs:     outputs,
		System:      "You are the on-device assistant for a small embedded system. Be concise.",
	})
	health.Loop = loop

	var tasks []func()
	ingest := channel.NewIngest(os.Stdin, input, logger)
	tasks = append(tasks, func() {
		if err := ingest.Run(ctx); err != nil {
			logger.Warn("local ingest stopped", "error", err)
		}
	})
	egressTask := channel.NewEgress(os.Stdout, localOut, logger)
	tasks = append(tasks, func() { egressTask.Run(ctx) })

	if poller != nil {
		tasks = append(tasks, func() { poller.Run(ctx) })
	}

	sched.Start(ctx)
	defer sched.Stop()

	history := models.NewHistory()
	tasks = append(tasks, func() { runAgentLoop(ctx, loop, history, input, metrics, sched, rateLimiter, logger) })

	for _, t := range tasks {
		go t()
	}

	sv.ArmSuccessTimer(ctx)
	logger.Info("concierged started", "store", storePath)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// runAgentLoop drains the shared input queue one message at a time,
// matching the "at most one concurrent agent turn" invariant, and
// keeps the optional /metrics gauges current.
func runAgentLoop(ctx context.Context, loop *agent.Loop, history *models.History, input *channel.Queue, metrics *supervisor.Metrics, sched *scheduler.Scheduler, rateLimiter *ratelimit.Counter, logger *slog.Logger) {
	for {
		msg, ok := input.Receive(ctx)
		if !ok {
			return
		}
		if err := loop.Run(ctx, history, msg); err != nil {
			logger.Warn("agent turn failed", "error", err)
		}
		hour, day := rateLimiter.Snapshot()
		metrics.RateLimitHour.Set(float64(hour))
		metrics.RateLimitDay.Set(float64(day))
		metrics.SchedulerJobs.Set(float64(len(sched.List())))
	}
}

// runSafeMode answers every inbound message with the fixed safe-mode
// reply and never starts the LLM or scheduler (§4.J).
func runSafeMode(ctx context.Context, input *channel.Queue, localOut *channel.Queue, logger *slog.Logger) error {
	sink := channel.NewSink(localOut)
	ingest := channel.NewIngest(os.Stdin, input, logger)
	egress := channel.NewEgress(os.Stdout, localOut, logger)
	go func() {
		if err := ingest.Run(ctx); err != nil {
			logger.Warn("local ingest stopped", "error", err)
		}
	}()
	go egress.Run(ctx)

	for {
		msg, ok := input.Receive(ctx)
		if !ok {
			<-ctx.Done()
			return nil
		}
		_ = msg
		if err := sink.Send(ctx, supervisor.SafeModeReply); err != nil {
			logger.Warn("safe-mode reply failed", "error", err)
		}
	}
}

func serveMetrics(addr string, metrics *supervisor.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}

// buildTransport never returns a bare nil Transport: an unconfigured or
// failed-to-construct vendor still yields a Router with no underlying
// transport, which answers every Complete call with an error instead of
// leaving callers to guard against a nil interface.
func buildTransport(cfg config.LLM) (llm.Transport, error) {
	switch cfg.Provider {
	case models.VendorAnthropic:
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return llm.NewRouter(cfg.Provider, nil), err
		}
		return llm.NewRouter(cfg.Provider, p), nil
	case models.VendorOpenAI:
		p, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return llm.NewRouter(cfg.Provider, nil), err
		}
		return llm.NewRouter(cfg.Provider, p), nil
	case models.VendorOpenRouter:
		p, err := providers.NewOpenRouterProvider(providers.OpenAIConfig{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return llm.NewRouter(cfg.Provider, nil), err
		}
		return llm.NewRouter(cfg.Provider, p), nil
	default:
		return llm.NewRouter(cfg.Provider, nil), fmt.Errorf("no llm vendor configured")
	}
}

// registerBuiltins wires every built-in tool into reg and returns the
// get_health tool so the caller can attach the agent loop once it
// exists (registration happens before the loop that health reports on
// is constructed).
func registerBuiltins(reg *agent.Registry, s store.Store, clk *clock.SystemClock, gpioMin, gpioMax int, i2cPins string) *system.HealthTool {
	health := &system.HealthTool{Memory: system.RuntimeMemoryReporter{}, Clock: clk}
	reg.RegisterBuiltin(system.VersionTool{})
	reg.RegisterBuiltin(health)
	reg.RegisterBuiltin(&system.TimeTool{Clock: clk})

	reg.RegisterBuiltin(&memory.PutTool{Store: s})
	reg.RegisterBuiltin(&memory.GetTool{Store: s})
	reg.RegisterBuiltin(&memory.ListTool{Store: s})
	reg.RegisterBuiltin(&memory.DeleteTool{Store: s})

	reg.RegisterBuiltin(&timezone.SetTool{Store: s})

	reg.RegisterBuiltin(gpio.New(gpio.NewSimulatedController(), gpio.Allowlist{Min: gpioMin, Max: gpioMax}))
	reg.RegisterBuiltin(i2c.New(&i2c.SimulatedScanner{}, i2c.Allowlist{Allowed: parsePins(i2cPins)}))

	reg.RegisterBuiltin(&usertool.CreateTool{Store: s, Registry: reg})
	reg.RegisterBuiltin(&usertool.ListTool{Store: s})
	reg.RegisterBuiltin(&usertool.DeleteTool{Store: s, Registry: reg})

	return health
}

func parsePins(csv string) []int {
	parts := strings.Split(csv, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err == nil {
			out = append(out, n)
		}
	}
	return out
}
