package medullar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultChatName is used for chats created on demand by Ask.
const DefaultChatName = "automated"

// ListChats returns the first page of chats in a space. An empty spaceID
// returns no chats without calling the API.
func (c *Client) ListChats(ctx context.Context, spaceID string) ([]Chat, error) {
	if spaceID == "" {
		return make([]Chat, 0), nil
	}
	raw, err := c.Request(ctx, http.MethodGet, "/chats/", ServiceAI, nil, pageQuery("space", spaceID))
	if err != nil {
		return nil, err
	}
	chats, err := decodeResults[Chat](raw)
	if err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	return chats, nil
}

// CreateChat creates a chat named name under spaceID.
func (c *Client) CreateChat(ctx context.Context, spaceID, name string) (*Chat, error) {
	if spaceID == "" {
		return nil, required("space id")
	}
	body := map[string]any{
		"name":  name,
		"space": Ref{UUID: spaceID},
	}
	raw, err := c.Request(ctx, http.MethodPost, "/chats/", ServiceAI, body, nil)
	if err != nil {
		return nil, err
	}
	var chat Chat
	if isBlank(raw) || json.Unmarshal(raw, &chat) != nil || chat.UUID == "" {
		return nil, &SemanticError{Message: "chat creation response has no uuid"}
	}
	return &chat, nil
}

// EnsureChat returns chatID when set, otherwise creates a new chat in spaceID
// and returns its id. Repeated calls without a chat id create new chats.
func (c *Client) EnsureChat(ctx context.Context, spaceID, chatID string) (string, error) {
	if chatID != "" {
		return chatID, nil
	}
	chat, err := c.CreateChat(ctx, spaceID, DefaultChatName)
	if err != nil {
		return "", err
	}
	return chat.UUID, nil
}
