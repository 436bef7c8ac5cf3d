// Package telegram implements the chat-API long-poll Poller (§4.H):
// replay-safe ingestion via raw net/http rather than a high-level SDK,
// since the flush sequence, truncation recovery, and big-int-safe id
// handling all require owning the request/response bytes directly.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joaolucaswork/esp32-concierge/internal/backoff"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// DefaultPollTimeoutSeconds is POLL_TIMEOUT (§4.H); the transport
// timeout given to each long-poll request is this plus 10s.
const DefaultPollTimeoutSeconds = 25

// defaultAPIBase is the production Telegram Bot API origin; tests
// override it to point at an httptest server.
const defaultAPIBase = "https://api.telegram.org"

// MaxResponseBytes bounds the getUpdates response buffer (§4.H).
const MaxResponseBytes = 4 * 1024

const lastUpdateKey = "last_upd"

// Emitter pushes an inbound message onto the shared agent input queue,
// non-blocking.
type Emitter interface {
	TrySend(msg models.Message) bool
}

// update_id and chat.id exceed 2^53 in the wild; json.Number preserves
// them as strings rather than lossy float64 (§6 JSON-number trap).
type apiUpdate struct {
	UpdateID json.Number  `json:"update_id"`
	Message  *apiMessage  `json:"message"`
}

type apiMessage struct {
	Chat apiChat `json:"chat"`
	Text string  `json:"text"`
}

type apiChat struct {
	ID json.Number `json:"id"`
}

type getUpdatesResponse struct {
	OK     bool        `json:"ok"`
	Result []apiUpdate `json:"result"`
}

// Poller owns last-seen-update-id, the authorised chat id, and the
// long-poll loop.
type Poller struct {
	httpClient *http.Client
	store      store.Store
	emit       Emitter
	token      string
	chatID     string // decimal string; "" until authorised
	logger     *slog.Logger
	apiBase    string

	pollTimeoutSeconds int
	retryBackoff       backoff.BackoffPolicy

	lastSeenUpdateID string // decimal string, json.Number-safe
	consecutiveFails int

	msgSeq atomic.Uint64
}

// Config configures a new Poller.
type Config struct {
	HTTPClient         *http.Client
	Store              store.Store
	Emit               Emitter
	Token              string
	AuthorisedChatID   string
	Logger             *slog.Logger
	PollTimeoutSeconds int
}

// New constructs a Poller. Call Run to run flush + steady-state poll.
func New(cfg Config) *Poller {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PollTimeoutSeconds <= 0 {
		cfg.PollTimeoutSeconds = DefaultPollTimeoutSeconds
	}
	return &Poller{
		httpClient:         cfg.HTTPClient,
		store:              cfg.Store,
		emit:               cfg.Emit,
		token:              cfg.Token,
		chatID:             cfg.AuthorisedChatID,
		logger:             cfg.Logger.With("component", "telegram.poller"),
		pollTimeoutSeconds: cfg.PollTimeoutSeconds,
		retryBackoff:       backoff.BackoffPolicy{InitialMs: 5000, MaxMs: 300000, Factor: 2, Jitter: 0},
		apiBase:            defaultAPIBase,
	}
}

// Run loads persisted poll state, performs the flush sequence if no
// last-seen-update-id was recovered, then polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if err := p.loadState(ctx); err != nil {
		p.logger.Warn("failed to load poller state, starting fresh", "error", err)
	}
	if p.lastSeenUpdateID == "" {
		if err := p.flush(ctx); err != nil {
			p.logger.Warn("flush sequence failed", "error", err)
		}
	}

	for ctx.Err() == nil {
		if err := p.pollOnce(ctx); err != nil {
			p.consecutiveFails++
			p.logger.Warn("poll failed", "error", err, "consecutive_fails", p.consecutiveFails)
			if sleepErr := backoff.SleepWithBackoff(ctx, p.retryBackoff, p.consecutiveFails); sleepErr != nil {
				return
			}
			continue
		}
		p.consecutiveFails = 0
	}
}

func (p *Poller) loadState(ctx context.Context) error {
	value, err := p.store.Get(ctx, store.NamespaceChatConfig, lastUpdateKey)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	p.lastSeenUpdateID = string(value)
	return nil
}

func (p *Poller) persistLastSeen(ctx context.Context, id string) error {
	p.lastSeenUpdateID = id
	return p.store.Put(ctx, store.NamespaceChatConfig, lastUpdateKey, []byte(id))
}

// flush discovers the highest pending update id without delivering
// any of it to the agent, then persists past it so boot never replays
// queued-before-boot messages (§4.H).
func (p *Poller) flush(ctx context.Context) error {
	peek, err := p.callGetUpdates(ctx, -1, 1, 0)
	if err != nil {
		return fmt.Errorf("telegram: flush peek: %w", err)
	}
	if len(peek.Result) == 0 {
		return p.persistLastSeen(ctx, "0")
	}
	highest := peek.Result[len(peek.Result)-1].UpdateID.String()
	highestN, err := strconv.ParseInt(highest, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: flush parse id: %w", err)
	}
	// Acknowledge by requesting strictly-after, discarding any result.
	if _, err := p.callGetUpdates(ctx, highestN+1, 1, 0); err != nil {
		return fmt.Errorf("telegram: flush ack: %w", err)
	}
	return p.persistLastSeen(ctx, strconv.FormatInt(highestN, 10))
}

func (p *Poller) pollOnce(ctx context.Context) error {
	lastN, err := strconv.ParseInt(p.lastSeenUpdateID, 10, 64)
	if err != nil {
		lastN = 0
	}
	resp, err := p.callGetUpdates(ctx, lastN+1, 1, p.pollTimeoutSeconds)
	if err != nil {
		return err
	}
	for _, upd := range resp.Result {
		idStr := upd.UpdateID.String()
		if upd.Message != nil && upd.Message.Text != "" && p.chatID != "" && upd.Message.Chat.ID.String() == p.chatID {
			msg := models.Message{Seq: p.msgSeq.Add(1), Origin: models.OriginChat, Text: upd.Message.Text}
			if err := p.persistLastSeen(ctx, idStr); err != nil {
				return err
			}
			p.emit.TrySend(msg)
		} else {
			p.logger.Debug("discarding update from unauthorised or textless source", "update_id", idStr)
			if err := p.persistLastSeen(ctx, idStr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Poller) callGetUpdates(ctx context.Context, offset int64, limit, timeoutSeconds int) (*getUpdatesResponse, error) {
	body, err := json.Marshal(map[string]any{
		"offset":  offset,
		"limit":   limit,
		"timeout": timeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates", p.apiBase, p.token)
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds+10)*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, truncated, err := readBounded(resp.Body, MaxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("telegram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: getUpdates returned status %d", resp.StatusCode)
	}

	var decoded getUpdatesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if truncated {
			return p.recoverFromTruncation(ctx, raw)
		}
		return nil, fmt.Errorf("telegram: decode response: %w", err)
	}
	return &decoded, nil
}

var updateIDPattern = regexp.MustCompile(`"update_id"\s*:\s*(\d+)`)

// recoverFromTruncation scans a truncated body for the highest
// update_id it can find and advances past it rather than reprocessing
// (§4.H). If no id is recoverable the poll is a hard failure.
func (p *Poller) recoverFromTruncation(ctx context.Context, raw []byte) (*getUpdatesResponse, error) {
	matches := updateIDPattern.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("telegram: truncated response, no recoverable update_id")
	}
	highest := int64(0)
	for _, m := range matches {
		n, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	if err := p.persistLastSeen(ctx, strconv.FormatInt(highest, 10)); err != nil {
		return nil, err
	}
	return &getUpdatesResponse{OK: true, Result: nil}, nil
}

func readBounded(r io.Reader, limit int) (data []byte, truncated bool, err error) {
	buf := make([]byte, limit+1)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, false, err
	}
	if n > limit {
		return buf[:limit], true, nil
	}
	return buf[:n], false, nil
}

// Egress POSTs agent replies to the chat `sendMessage` endpoint; it
// implements agent.OutputSink (§4.H egress path).
type Egress struct {
	httpClient *http.Client
	token      string
	chatID     string
	logger     *slog.Logger
	apiBase    string
}

// NewEgress constructs a chat-API egress sink.
func NewEgress(client *http.Client, token, chatID string, logger *slog.Logger) *Egress {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Egress{httpClient: client, token: token, chatID: chatID, logger: logger.With("component", "telegram.egress"), apiBase: defaultAPIBase}
}

// Send posts text to sendMessage; a non-200 response is logged and
// never retried (§4.H: a missed reply is preferable to a duplicate).
func (e *Egress) Send(ctx context.Context, text string) error {
	if e.chatID == "" {
		return fmt.Errorf("telegram: no authorised chat id configured")
	}
	body, err := json.Marshal(map[string]any{"chat_id": e.chatID, "text": text})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", e.apiBase, e.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("sendMessage request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("sendMessage returned non-200", "status", resp.StatusCode)
	}
	return nil
}

// SetAuthorisedChatID updates the chat id allowed to originate messages.
func (p *Poller) SetAuthorisedChatID(id string) { p.chatID = strings.TrimSpace(id) }
