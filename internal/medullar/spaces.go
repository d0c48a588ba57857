package medullar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ListSpaces returns the first page of spaces visible to user.
func (c *Client) ListSpaces(ctx context.Context, user *User) ([]Space, error) {
	if user == nil || user.UUID == "" {
		return nil, required("user")
	}
	raw, err := c.Request(ctx, http.MethodGet, "/spaces/", ServiceAI, nil, pageQuery("user", user.UUID))
	if err != nil {
		return nil, err
	}
	spaces, err := decodeResults[Space](raw)
	if err != nil {
		return nil, fmt.Errorf("decode spaces: %w", err)
	}
	return spaces, nil
}

// CreateSpace creates a space owned by the user's company.
func (c *Client) CreateSpace(ctx context.Context, user *User, name string) (json.RawMessage, error) {
	if name == "" {
		return nil, required("space name")
	}
	if user == nil || user.Company == nil || user.Company.UUID == "" {
		return nil, &SemanticError{Message: "user does not belong to any company"}
	}
	body := map[string]any{
		"name":    name,
		"company": Ref{UUID: user.Company.UUID},
	}
	return c.Request(ctx, http.MethodPost, "/spaces/", ServiceAI, body, nil)
}

func (c *Client) RenameSpace(ctx context.Context, spaceID, name string) (json.RawMessage, error) {
	if spaceID == "" {
		return nil, required("space id")
	}
	if name == "" {
		return nil, required("space name")
	}
	return c.Request(ctx, http.MethodPatch, "/spaces/"+spaceID+"/", ServiceAI, map[string]any{"name": name}, nil)
}

// DeleteSpace removes a space. The API usually answers with an empty body.
func (c *Client) DeleteSpace(ctx context.Context, spaceID string) (json.RawMessage, error) {
	if spaceID == "" {
		return nil, required("space id")
	}
	return c.Request(ctx, http.MethodDelete, "/spaces/"+spaceID+"/", ServiceAI, nil, nil)
}
