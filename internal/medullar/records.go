package medullar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RecordInput describes content to ingest into a space.
type RecordInput struct {
	SpaceID    string
	SourceType string
	Content    string
	URL        string
}

// Validate checks the input without touching the network.
func (in RecordInput) Validate() error {
	if in.SpaceID == "" {
		return required("space id")
	}
	if in.SourceType == "" {
		return required("source type")
	}
	if in.SourceType == SourceText && in.Content == "" {
		return &ValidationError{Field: "content", Message: `is required when source type is "text"`}
	}
	if in.SourceType == SourceURL && in.URL == "" {
		return &ValidationError{Field: "url", Message: `is required when source type is "url"`}
	}
	return nil
}

type recordData struct {
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type recordPayload struct {
	Spaces  []Ref      `json:"spaces"`
	Company Ref        `json:"company"`
	User    Ref        `json:"user"`
	Source  string     `json:"source"`
	Data    recordData `json:"data"`
}

// AddRecord validates the input, resolves the current user for ownership and
// submits one record creation request.
func (c *Client) AddRecord(ctx context.Context, in RecordInput) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	payload := recordPayload{
		Spaces:  []Ref{{UUID: in.SpaceID}},
		Company: Ref{UUID: user.Company.UUID},
		User:    Ref{UUID: user.UUID},
		Source:  in.SourceType,
		Data: recordData{
			Content: in.Content,
			URL:     in.URL,
		},
	}
	raw, err := c.Request(ctx, http.MethodPost, "/records/", ServiceAI, payload, nil)
	if err != nil {
		return nil, err
	}

	var rec Record
	if isBlank(raw) {
		return &rec, nil
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
