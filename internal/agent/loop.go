package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joaolucaswork/esp32-concierge/internal/llm"
	"github.com/joaolucaswork/esp32-concierge/internal/ratelimit"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

var nestedSeq atomic.Uint64

// Phase names the agent's state machine position (§4.F), exposed
// through CurrentPhase so get_health can report whether the loop is
// idle or mid-turn.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAdmitting     Phase = "admitting"
	PhaseThinking      Phase = "thinking"
	PhaseToolExecuting Phase = "tool_executing"
	PhaseResponding    Phase = "responding"
)

// MaxToolIterations is the outer loop's bounded-reasoning cap (§4.F).
const MaxToolIterations = 5

// NestedMaxToolIterations bounds a user-defined tool's sub-loop (§9),
// deliberately smaller than the outer cap so worst-case nested fan-out
// stays bounded.
const NestedMaxToolIterations = 3

// OutputSink is one egress destination the loop emits final replies to
// (local channel egress, chat-API egress, ...).
type OutputSink interface {
	Send(ctx context.Context, text string) error
}

// UserDefinedTool marks a Tool whose invocation should re-submit its
// action text as a fresh directive inside a nested bounded loop, rather
// than running a handler directly (§3, §9 resolved open question).
type UserDefinedTool interface {
	Tool
	ActionText() string
}

// Loop is the bounded tool-calling reasoning cycle (§4.F).
type Loop struct {
	registry    *Registry
	transport   llm.Transport
	rateLimiter *ratelimit.Counter
	outputs     []OutputSink
	system      string
	logger      *slog.Logger

	maxIterations int
	phase         atomic.Value // Phase
}

// CurrentPhase reports the loop's state-machine position. Safe to call
// concurrently from get_health while a turn is in flight elsewhere.
func (l *Loop) CurrentPhase() string {
	if v, ok := l.phase.Load().(Phase); ok {
		return string(v)
	}
	return string(PhaseIdle)
}

func (l *Loop) setPhase(p Phase) {
	l.phase.Store(p)
}

// Config configures a Loop.
type Config struct {
	Registry    *Registry
	Transport   llm.Transport
	RateLimiter *ratelimit.Counter
	Outputs     []OutputSink
	System      string
	MaxIterations int // 0 = MaxToolIterations
}

// NewLoop constructs the outer agent loop.
func NewLoop(cfg Config) *Loop {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = MaxToolIterations
	}
	return &Loop{
		registry:      cfg.Registry,
		transport:     cfg.Transport,
		rateLimiter:   cfg.RateLimiter,
		outputs:       cfg.Outputs,
		system:        cfg.System,
		maxIterations: maxIter,
		logger:        slog.Default().With("component", "agent.loop"),
	}
}

func (l *Loop) nested() *Loop {
	return &Loop{
		registry:      l.registry,
		transport:     l.transport,
		rateLimiter:   l.rateLimiter,
		outputs:       nil, // nested sub-loop never emits to egress directly
		system:        "You are completing a single user-defined action. Be concise.",
		maxIterations: NestedMaxToolIterations,
		logger:        l.logger.With("nested", true),
	}
}

// Run processes one inbound Message to completion: at most one concurrent
// agent turn, returning only once a final reply (or the iteration-limit
// message) has been emitted to every output sink.
func (l *Loop) Run(ctx context.Context, history *models.History, msg models.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("agent: invalid message: %w", err)
	}

	turnID := uuid.NewString()
	logger := l.logger.With("turn_id", turnID)
	defer l.setPhase(PhaseIdle)

	l.setPhase(PhaseAdmitting)
	if l.rateLimiter != nil && l.rateLimiter.Admit() == ratelimit.Deny {
		hour, day := l.rateLimiter.Snapshot()
		logger.Info("turn denied by rate limiter", "hour", hour, "day", day)
		return l.emit(ctx, fmt.Sprintf("Quota reached (%d/hr, %d/day), try again later.", hour, day))
	}

	history.Append(models.Turn{Role: models.RoleUser, Content: msg.Text})

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		l.setPhase(PhaseThinking)
		reply, err := l.think(ctx, history)
		if err != nil {
			logger.Warn("transport error", "iteration", iteration, "error", err)
			return l.emit(ctx, "LLM unavailable")
		}

		switch reply.Kind {
		case models.ReplyAssistantText:
			l.setPhase(PhaseResponding)
			history.Append(models.Turn{Role: models.RoleAssistant, Content: reply.Text})
			return l.emit(ctx, reply.Text)

		case models.ReplyToolCall:
			l.setPhase(PhaseToolExecuting)
			resultText := l.executeTool(ctx, logger, reply)
			history.Append(models.Turn{
				Role:    models.RoleTool,
				Content: models.TruncateResult(resultText),
				Tool:    &models.ToolCallMeta{CallID: reply.ToolCallID, Name: reply.ToolName},
			})
			continue

		case models.ReplyError:
			l.setPhase(PhaseResponding)
			return l.emit(ctx, userFacingError(reply.Err))
		}
	}

	logger.Warn("reached iteration limit", "max_iterations", l.maxIterations)
	l.setPhase(PhaseResponding)
	final := "Reached iteration limit; stopping."
	history.Append(models.Turn{Role: models.RoleAssistant, Content: final})
	return l.emit(ctx, final)
}

func (l *Loop) think(ctx context.Context, history *models.History) (models.Reply, error) {
	manifest := make([]llm.ToolManifestEntry, 0)
	if l.registry != nil {
		for _, t := range l.registry.DescribeAll() {
			manifest = append(manifest, llm.ToolManifestEntry{
				Name:        t.Name(),
				Description: t.Description(),
				Schema:      t.Schema(),
			})
		}
	}
	turns := llm.FitRequest(history.Turns(), l.system, manifest)
	return l.transport.Complete(ctx, llm.Request{History: turns, System: l.system, Tools: manifest})
}

// executeTool looks up and runs a single tool call, returning the Tool
// turn's content. Unknown tools and schema-invalid input are reported as
// Tool-turn text rather than aborting the loop (§4.F invariants).
func (l *Loop) executeTool(ctx context.Context, logger *slog.Logger, reply models.Reply) string {
	if l.registry == nil {
		return "Unknown tool: " + reply.ToolName
	}
	tool, ok := l.registry.Get(reply.ToolName)
	if !ok {
		logger.Warn("unknown tool requested", "tool", reply.ToolName, "call_id", reply.ToolCallID)
		return "Unknown tool: " + reply.ToolName
	}

	var args interface{}
	if reply.ToolArgsJSON != "" {
		if err := json.Unmarshal([]byte(reply.ToolArgsJSON), &args); err != nil {
			return fmt.Sprintf("Tool %s failed: invalid JSON arguments", reply.ToolName)
		}
	}
	if err := l.registry.ValidateInput(reply.ToolName, args); err != nil {
		return fmt.Sprintf("Tool %s failed: %v", reply.ToolName, err)
	}

	if ud, ok := tool.(UserDefinedTool); ok {
		return l.runUserDefinedTool(ctx, ud)
	}

	result, err := tool.Execute(ctx, json.RawMessage(reply.ToolArgsJSON))
	if err != nil {
		logger.Warn("tool execution failed", "tool", reply.ToolName, "call_id", reply.ToolCallID, "error", err)
		return fmt.Sprintf("Tool %s failed: %v", reply.ToolName, err)
	}
	if result.IsError {
		return fmt.Sprintf("Tool %s failed: %s", reply.ToolName, result.Content)
	}
	return result.Content
}

// runUserDefinedTool re-submits the tool's action text as a user-level
// directive inside a fresh, more tightly bounded loop (§9).
func (l *Loop) runUserDefinedTool(ctx context.Context, ud UserDefinedTool) string {
	sub := l.nested()
	subHistory := models.NewHistory()
	msg := models.Message{
		Seq:    nestedSeq.Add(1),
		Origin: models.OriginSchedule,
		Text:   ud.ActionText(),
	}
	var captured string
	sub.outputs = []OutputSink{captureSink(func(text string) { captured = text })}
	if err := sub.Run(ctx, subHistory, msg); err != nil {
		return fmt.Sprintf("user tool %s failed: %v", ud.Name(), err)
	}
	return captured
}

func (l *Loop) emit(ctx context.Context, text string) error {
	var firstErr error
	for _, sink := range l.outputs {
		if err := sink.Send(ctx, text); err != nil && firstErr == nil {
			firstErr = err
			l.logger.Warn("output sink failed", "error", err)
		}
	}
	return firstErr
}

func userFacingError(kind models.ErrorKind) string {
	switch kind {
	case models.ErrAuth:
		return "LLM unavailable: not configured"
	case models.ErrRateLimitedByVendor:
		return "LLM unavailable: rate limited, try again shortly"
	case models.ErrTruncated:
		return "LLM unavailable: response truncated"
	default:
		return "LLM unavailable"
	}
}

// captureSink is a OutputSink used by the nested user-tool sub-loop to
// capture its final text instead of writing to real egress.
type captureSinkFunc func(text string)

func captureSink(f captureSinkFunc) OutputSink { return sinkAdapter{f} }

type sinkAdapter struct{ f captureSinkFunc }

func (s sinkAdapter) Send(_ context.Context, text string) error {
	s.f(text)
	return nil
}
