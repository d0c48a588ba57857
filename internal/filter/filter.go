package filter

import (
	"context"
	"errors"
	"fmt"
)

// Action is a filter decision.
type Action string

const (
	ActionPass  Action = "pass"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// Request is what a node item is about to send to Medullar. Fields holds the
// free-text parameters (message, content, url, spaceName) that leave the
// gateway.
type Request struct {
	RequestID  string
	Resource   string
	Operation  string
	Credential string
	Fields     map[string]string
}

// Result is returned by each filter.
type Result struct {
	Action     Action
	FilterName string
	Message    string
	Detections int
	Score      float64
}

// Filter screens outbound node requests.
type Filter interface {
	Name() string
	Enabled() bool
	Check(ctx context.Context, req *Request) Result
}

// BlockedError is returned for an item a filter refused to send.
type BlockedError struct {
	Filter  string
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by %s filter: %s", e.Filter, e.Message)
}

func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// Chain runs filters in order, stopping on the first Block.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Run executes all enabled filters in order. Returns all results and a pointer
// to the first blocking result (nil if no filter blocked).
func (c *Chain) Run(ctx context.Context, req *Request) ([]Result, *Result) {
	if c == nil {
		return nil, nil
	}
	var results []Result
	for _, f := range c.filters {
		if !f.Enabled() {
			continue
		}
		r := f.Check(ctx, req)
		results = append(results, r)
		if r.Action == ActionBlock {
			return results, &r
		}
	}
	return results, nil
}
