package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

type fakeEmitter struct{ sent []models.Message }

func (e *fakeEmitter) TrySend(msg models.Message) bool {
	e.sent = append(e.sent, msg)
	return true
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFlushDiscoversHighestAndPersists(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		calls++
		offset := int64(req["offset"].(float64))
		w.Header().Set("Content-Type", "application/json")
		if offset == -1 {
			fmt.Fprint(w, `{"ok":true,"result":[{"update_id":42,"message":{"chat":{"id":100},"text":"hi"}}]}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	}))
	defer server.Close()

	s := newTestStore(t)
	emit := &fakeEmitter{}
	p := New(Config{Store: s, Emit: emit, Token: "TEST"})
	p.httpClient = server.Client()
	p.apiBase = server.URL

	if err := p.flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if p.lastSeenUpdateID != "42" {
		t.Fatalf("got last_seen=%q, want 42", p.lastSeenUpdateID)
	}
	if calls != 2 {
		t.Fatalf("expected peek+ack = 2 calls, got %d", calls)
	}
}

func TestPollOnceEnqueuesAuthorisedChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":[{"update_id":5,"message":{"chat":{"id":900719925474099},"text":"hello"}}]}`)
	}))
	defer server.Close()

	s := newTestStore(t)
	emit := &fakeEmitter{}
	p := New(Config{Store: s, Emit: emit, Token: "TEST", AuthorisedChatID: "900719925474099"})
	p.apiBase = server.URL

	if err := p.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(emit.sent) != 1 || emit.sent[0].Text != "hello" || emit.sent[0].Origin != models.OriginChat {
		t.Fatalf("unexpected emitted messages: %+v", emit.sent)
	}
	if p.lastSeenUpdateID != "5" {
		t.Fatalf("got last_seen=%q, want 5", p.lastSeenUpdateID)
	}
}

func TestPollOnceDiscardsUnauthorisedChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":[{"update_id":9,"message":{"chat":{"id":1},"text":"hello"}}]}`)
	}))
	defer server.Close()

	s := newTestStore(t)
	emit := &fakeEmitter{}
	p := New(Config{Store: s, Emit: emit, Token: "TEST", AuthorisedChatID: "999"})
	p.apiBase = server.URL

	if err := p.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(emit.sent) != 0 {
		t.Fatalf("expected no message delivered from unauthorised chat")
	}
	if p.lastSeenUpdateID != "9" {
		t.Fatalf("expected last_seen advanced past discarded update, got %q", p.lastSeenUpdateID)
	}
}

func TestRecoverFromTruncationFindsHighestID(t *testing.T) {
	s := newTestStore(t)
	p := New(Config{Store: s, Emit: &fakeEmitter{}, Token: "TEST"})
	raw := []byte(`{"ok":true,"result":[{"update_id":10,"message":{"chat":{"id":1},"text":"a"}},{"update_id":11,"message":{"chat`)
	resp, err := p.recoverFromTruncation(context.Background(), raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(resp.Result) != 0 {
		t.Fatalf("expected recovery to discard partial updates, not replay them")
	}
	if p.lastSeenUpdateID != "11" {
		t.Fatalf("got %q, want 11", p.lastSeenUpdateID)
	}
}

func TestRecoverFromTruncationNoRecoverableID(t *testing.T) {
	s := newTestStore(t)
	p := New(Config{Store: s, Emit: &fakeEmitter{}, Token: "TEST"})
	_, err := p.recoverFromTruncation(context.Background(), []byte(`garbage`))
	if err == nil {
		t.Fatalf("expected hard failure when no id is recoverable")
	}
}

func TestEgressSendNon200DoesNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	eg := NewEgress(server.Client(), "TEST", "123", nil)
	eg.apiBase = server.URL
	if err := eg.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send should not return an error on non-200: %v", err)
	}
}
