package node

import (
	"context"
	"fmt"

	"github.com/af-corp/medullar-gateway/internal/medullar"
)

// OptionValue is one entry of a dynamic dropdown.
type OptionValue struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// LoadOptions serves the node's dynamic parameter lists.
func (e *Executor) LoadOptions(ctx context.Context, method string, p Parameters) ([]OptionValue, error) {
	if p == nil {
		p = NewMapParameters(nil, nil)
	}
	switch method {
	case MethodGetUserSpaces:
		user, err := e.client.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		spaces, err := e.client.ListSpaces(ctx, user)
		if err != nil {
			return nil, err
		}
		opts := make([]OptionValue, 0, len(spaces))
		for _, s := range spaces {
			opts = append(opts, OptionValue{Name: s.Label(), Value: s.UUID, Description: s.Description})
		}
		return opts, nil

	case MethodGetChatsForSpace:
		spaceID, err := String(p, "spaceId", 0)
		if err != nil {
			return nil, err
		}
		chats, err := e.client.ListChats(ctx, spaceID)
		if err != nil {
			return nil, err
		}
		opts := make([]OptionValue, 0, len(chats))
		for _, c := range chats {
			name := c.Name
			if name == "" {
				name = c.UUID
			}
			opts = append(opts, OptionValue{Name: name, Value: c.UUID})
		}
		return opts, nil
	}
	return nil, &medullar.ValidationError{Field: "method", Message: fmt.Sprintf("unknown load options method %q", method)}
}
