package medullar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CurrentUser resolves the account behind the configured credential. The user
// is fetched on every call and must belong to a company.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/users/me/", ServiceAuth, nil, nil)
	if err != nil {
		return nil, err
	}
	if isBlank(raw) {
		return nil, &SemanticError{Message: "user data not found"}
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, &SemanticError{Message: fmt.Sprintf("decode user: %v", err)}
	}
	if user.Company == nil || user.Company.UUID == "" {
		return nil, &SemanticError{Message: "user does not belong to any company"}
	}
	return &user, nil
}

// VerifyCredential performs the credential test against /users/me/ and
// only checks that the API accepted the key.
func (c *Client) VerifyCredential(ctx context.Context) error {
	_, err := c.Request(ctx, http.MethodGet, "/users/me/", ServiceAuth, nil, nil)
	return err
}
