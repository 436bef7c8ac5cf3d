// Package models holds the shared data types passed between components:
// messages, conversation turns, scheduled jobs, and vendor/rate-limit state.
package models

import (
	"fmt"
	"unicode/utf8"
)

// MaxMessageBytes is the hard ceiling on inbound/outbound message text.
const MaxMessageBytes = 1024

// Origin identifies which ingest path produced a Message.
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginChat     Origin = "chat"
	OriginSchedule Origin = "schedule"
)

// Message is one piece of inbound text, sequenced by arrival order rather
// than content. Seq is assigned by the ingest path that created it.
type Message struct {
	Seq    uint64
	Origin Origin
	Text   string
}

// Validate enforces the UTF-8/size contract on a Message's text.
func (m Message) Validate() error {
	if len(m.Text) == 0 {
		return fmt.Errorf("message text is empty")
	}
	if len(m.Text) > MaxMessageBytes {
		return fmt.Errorf("message text exceeds %d bytes", MaxMessageBytes)
	}
	if !utf8.ValidString(m.Text) {
		return fmt.Errorf("message text is not valid UTF-8")
	}
	return nil
}
