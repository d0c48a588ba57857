package medullar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// AskInput is a natural-language question to a space.
type AskInput struct {
	SpaceID string
	// ChatID is optional; a chat is created when it is empty.
	ChatID       string
	Mode         string
	DeepAnalysis bool
	Message      string
}

type askPayload struct {
	Chat                Ref    `json:"chat"`
	Text                string `json:"text"`
	IsBot               bool   `json:"is_bot"`
	IsReasoningSelected bool   `json:"is_reasoning_selected"`
	SelectedMode        string `json:"selected_mode"`
	Source              string `json:"source"`
}

// Ask makes sure a chat exists and posts the message to it, returning the
// get_response body unchanged.
//
// The two calls are not transactional. If posting fails after a chat was
// created here, the chat is left in place.
func (c *Client) Ask(ctx context.Context, in AskInput) (json.RawMessage, error) {
	if in.Message == "" {
		return nil, required("message")
	}
	if in.ChatID == "" && in.SpaceID == "" {
		return nil, required("space id")
	}
	chatID, err := c.EnsureChat(ctx, in.SpaceID, in.ChatID)
	if err != nil {
		return nil, err
	}

	payload := askPayload{
		Chat:                Ref{UUID: chatID},
		Text:                in.Message,
		IsBot:               false,
		IsReasoningSelected: in.DeepAnalysis,
		SelectedMode:        in.Mode,
		Source:              "external_api",
	}
	q := url.Values{}
	q.Set("chat", chatID)

	resp, err := c.Request(ctx, http.MethodPost, "/messages/get_response/", ServiceAI, payload, q)
	if err != nil {
		if in.ChatID == "" {
			c.logger.Warn("message failed after chat creation, chat left in place",
				"space_id", in.SpaceID,
				"chat_id", chatID,
			)
		}
		return nil, err
	}
	return resp, nil
}
