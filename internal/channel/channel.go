// Package channel implements the local text Channel Ingest/Egress
// subsystem (§4.G): two bounded FIFO queues of fixed-size Message
// records, fed by a line-oriented local transport.
package channel

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// DefaultQueueCapacity bounds each queue so memory stays fixed-size.
const DefaultQueueCapacity = 16

// BlockingSendTimeout bounds the ingest task's enqueue attempt (§4.G).
const BlockingSendTimeout = 100 * time.Millisecond

// Queue is a bounded FIFO of Message records shared between tasks.
// Non-blocking producers (scheduler, chat poller) use TrySend;
// blocking producers (local ingest) use SendBlocking to honour the
// 100ms bound before falling back to drop-with-log.
type Queue struct {
	ch     chan models.Message
	name   string
	logger *slog.Logger
}

// NewQueue constructs a bounded queue with the given capacity.
func NewQueue(name string, capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{ch: make(chan models.Message, capacity), name: name, logger: logger.With("queue", name)}
}

// TrySend enqueues without blocking; overflow is drop-newest with a log.
func (q *Queue) TrySend(msg models.Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		q.logger.Warn("queue full, dropping message")
		return false
	}
}

// SendBlocking enqueues, blocking up to timeout before giving up.
func (q *Queue) SendBlocking(msg models.Message, timeout time.Duration) bool {
	select {
	case q.ch <- msg:
		return true
	case <-time.After(timeout):
		q.logger.Warn("queue full after blocking send timeout, dropping message")
		return false
	}
}

// Receive blocks until a message is available or ctx is cancelled.
func (q *Queue) Receive(ctx context.Context) (models.Message, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	case <-ctx.Done():
		return models.Message{}, false
	}
}

// Ingest reads line-oriented UTF-8 text from r, trims CR/LF, drops
// empty and whitespace-only lines, and enqueues each remaining line as a Local-origin
// Message (§4.G, §6).
type Ingest struct {
	reader io.Reader
	queue  *Queue
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewIngest constructs a local text ingest task.
func NewIngest(r io.Reader, queue *Queue, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{reader: r, queue: queue, logger: logger.With("component", "channel.ingest")}
}

// Run scans lines from the reader until EOF or ctx cancellation,
// enqueuing each with a blocking send bounded by BlockingSendTimeout.
func (in *Ingest) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(in.reader)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		msg := models.Message{Seq: in.seq.Add(1), Origin: models.OriginLocal, Text: line}
		if err := msg.Validate(); err != nil {
			in.logger.Warn("dropping invalid local message", "error", err)
			continue
		}
		if !in.queue.SendBlocking(msg, BlockingSendTimeout) {
			continue
		}
	}
	return scanner.Err()
}

// Egress dequeues agent output and writes each line to w, one message
// per line, appending LF (§6).
type Egress struct {
	writer io.Writer
	queue  *Queue
	logger *slog.Logger
}

// NewEgress constructs a local text egress task.
func NewEgress(w io.Writer, queue *Queue, logger *slog.Logger) *Egress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Egress{writer: w, queue: queue, logger: logger.With("component", "channel.egress")}
}

// Run dequeues until ctx is cancelled, writing each message as a line.
func (e *Egress) Run(ctx context.Context) {
	for {
		msg, ok := e.queue.Receive(ctx)
		if !ok {
			return
		}
		if _, err := io.WriteString(e.writer, msg.Text+"\n"); err != nil {
			e.logger.Warn("local egress write failed", "error", err)
		}
	}
}

// Send implements agent.OutputSink by enqueuing text for the egress
// task, non-blocking (agent output must never block on egress per §5).
type Sink struct {
	queue *Queue
	seq   atomic.Uint64
}

// NewSink wraps a Queue as an agent.OutputSink.
func NewSink(queue *Queue) *Sink { return &Sink{queue: queue} }

func (s *Sink) Send(_ context.Context, text string) error {
	msg := models.Message{Seq: s.seq.Add(1), Origin: models.OriginLocal, Text: text}
	s.queue.TrySend(msg)
	return nil
}
