package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

const (
	keyToken  = "token"
	keyChatID = "chat_id"
)

// Chat is the chat-API bot credential and the single authorised chat
// id (§3, §6). ChatID is the decimal string form used throughout
// internal/telegram to stay json.Number/int64-safe above 2^53.
type Chat struct {
	Token  string
	ChatID string
}

// LoadChat reads the chat-API credential pair. ChatID is "" until set
// explicitly; while it is empty the poller discards every update.
func LoadChat(ctx context.Context, s store.Store) (Chat, error) {
	token, err := getOptional(ctx, s, store.NamespaceChatConfig, keyToken)
	if err != nil {
		return Chat{}, err
	}
	chatID, err := getOptional(ctx, s, store.NamespaceChatConfig, keyChatID)
	if err != nil {
		return Chat{}, err
	}
	return Chat{Token: token, ChatID: chatID}, nil
}

// SaveChat persists the chat-API credential pair. chatID must be a
// non-zero decimal integer string (§6: "int64 encoded as decimal
// string, non-zero").
func SaveChat(ctx context.Context, s store.Store, cfg Chat) error {
	if strings.TrimSpace(cfg.Token) == "" {
		return fmt.Errorf("config: chat token is required")
	}
	if cfg.ChatID != "" {
		n, err := strconv.ParseInt(cfg.ChatID, 10, 64)
		if err != nil || n == 0 {
			return fmt.Errorf("config: chat id must be a non-zero decimal integer")
		}
	}
	if err := s.Put(ctx, store.NamespaceChatConfig, keyToken, []byte(cfg.Token)); err != nil {
		return err
	}
	return s.Put(ctx, store.NamespaceChatConfig, keyChatID, []byte(cfg.ChatID))
}
