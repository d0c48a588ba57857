package medullar

import "encoding/json"

// Chat modes accepted by the get_response endpoint.
const (
	ModeSingleAgent        = "single_agent"
	ModeChat               = "chat"
	ModeFactCheckAgent     = "fact_check_agent"
	ModeResearchAgent      = "research_agent"
	ModeSalesResearchAgent = "sales_research_agent"
)

// Record source types. The API treats source as an open string; these are the
// values the node offers.
const (
	SourceText  = "text"
	SourceURL   = "url"
	SourceImage = "image"
	SourceFile  = "file"
)

// Ref is the {"uuid": ...} reference object used throughout the API.
type Ref struct {
	UUID string `json:"uuid"`
}

type Company struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
}

// User is the authenticated account behind an API key.
type User struct {
	UUID    string   `json:"uuid"`
	Email   string   `json:"email"`
	Name    string   `json:"name,omitempty"`
	Company *Company `json:"company"`

	raw json.RawMessage
}

func (u *User) UnmarshalJSON(data []byte) error {
	type Alias User
	if err := json.Unmarshal(data, (*Alias)(u)); err != nil {
		return err
	}
	u.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	if len(u.raw) > 0 {
		return u.raw, nil
	}
	type Alias User
	return json.Marshal(Alias(u))
}

// Space is a knowledge container scoping records and chats.
type Space struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`

	raw json.RawMessage
}

func (s *Space) UnmarshalJSON(data []byte) error {
	type Alias Space
	if err := json.Unmarshal(data, (*Alias)(s)); err != nil {
		return err
	}
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (s Space) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	type Alias Space
	return json.Marshal(Alias(s))
}

// Label is the best human-readable name the API returned for the space.
func (s Space) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.DisplayName != "":
		return s.DisplayName
	default:
		return s.UUID
	}
}

// Chat is a conversation thread within a space.
type Chat struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name,omitempty"`
	Space *Ref   `json:"space,omitempty"`

	raw json.RawMessage
}

func (c *Chat) UnmarshalJSON(data []byte) error {
	type Alias Chat
	if err := json.Unmarshal(data, (*Alias)(c)); err != nil {
		return err
	}
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (c Chat) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	type Alias Chat
	return json.Marshal(Alias(c))
}

// Record is an ingested content item attached to one or more spaces.
type Record struct {
	UUID   string `json:"uuid,omitempty"`
	Source string `json:"source,omitempty"`
	Spaces []Ref  `json:"spaces,omitempty"`

	raw json.RawMessage
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type Alias Record
	if err := json.Unmarshal(data, (*Alias)(r)); err != nil {
		return err
	}
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	type Alias Record
	return json.Marshal(Alias(r))
}

// listResponse is the paginated envelope returned by list endpoints.
type listResponse struct {
	Results json.RawMessage `json:"results"`
}

// decodeResults extracts the results collection from a list response. A body
// that is not an object, or whose results field is absent or not an array,
// yields an empty slice.
func decodeResults[T any](raw json.RawMessage) ([]T, error) {
	out := make([]T, 0)

	var env listResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return out, nil
	}
	if len(env.Results) == 0 || env.Results[0] != '[' {
		return out, nil
	}
	if err := json.Unmarshal(env.Results, &out); err != nil {
		return make([]T, 0), err
	}
	return out, nil
}
