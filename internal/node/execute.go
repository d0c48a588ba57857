package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/af-corp/medullar-gateway/internal/audit"
	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/af-corp/medullar-gateway/internal/medullar"
	"github.com/af-corp/medullar-gateway/internal/telemetry"
)

// OperationError reports which operation and input item failed.
type OperationError struct {
	Operation string
	Item      int
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s (item %d): %v", e.Operation, e.Item, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Input is one node execution.
type Input struct {
	RequestID      string
	Resource       string
	Operation      string
	Items          []Item
	Params         Parameters
	ContinueOnFail bool
	// Credential is the credential fingerprint recorded in the audit log.
	Credential string
}

// Executor runs node operations against a Medullar client.
type Executor struct {
	client   *medullar.Client
	recorder audit.Recorder
	filters  *filter.Chain
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

type ExecutorOption func(*Executor)

func WithRecorder(r audit.Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithFilters screens every item's free-text parameters before any upstream
// call is made.
func WithFilters(c *filter.Chain) ExecutorOption {
	return func(e *Executor) { e.filters = c }
}

func WithMetrics(m *telemetry.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(client *medullar.Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:   client,
		recorder: audit.Nop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the operation once per input item, in order. With
// ContinueOnFail a failing item yields an {"error": ...} item and execution
// moves on; otherwise the first failure aborts the whole execution.
func (e *Executor) Execute(ctx context.Context, in Input) ([]Item, error) {
	resource := in.Resource
	if resource == "" {
		resource = ResourceSpace
	}
	if resource != ResourceSpace {
		return nil, &OperationError{Operation: in.Operation, Err: &medullar.ValidationError{Field: "resource", Message: fmt.Sprintf("unsupported resource %q", resource)}}
	}
	params := in.Params
	if params == nil {
		params = NewMapParameters(nil, nil)
	}

	count := len(in.Items)
	if count == 0 {
		count = 1
	}

	e.logger.Debug("executing operation", "request_id", in.RequestID, "operation", in.Operation, "resource", resource, "items", count)

	out := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		var result any
		err := e.screen(ctx, in, params, i)
		if err == nil {
			result, err = e.runItem(ctx, in.Operation, params, i)
		}
		duration := time.Since(start)

		var items []Item
		if err == nil {
			items, err = ReturnJSONArray(result, i)
		}
		e.observe(ctx, in, i, duration, err)

		if err != nil {
			if in.ContinueOnFail {
				e.logger.Warn("item failed, continuing",
					"request_id", in.RequestID,
					"operation", in.Operation,
					"item", i,
					"error", err,
				)
				out = append(out, errorItem(err, i))
				continue
			}
			return nil, &OperationError{Operation: in.Operation, Item: i, Err: err}
		}
		out = append(out, items...)
	}
	return out, nil
}

// screenedFields are the parameters whose values leave the gateway as free
// text.
var screenedFields = []string{"message", "content", "url", "spaceName"}

func (e *Executor) screen(ctx context.Context, in Input, p Parameters, i int) error {
	if e.filters == nil {
		return nil
	}
	fields := make(map[string]string, len(screenedFields))
	for _, name := range screenedFields {
		// Type errors surface from the operation itself.
		if v, err := String(p, name, i); err == nil && v != "" {
			fields[name] = v
		}
	}
	results, blocked := e.filters.Run(ctx, &filter.Request{
		RequestID:  in.RequestID,
		Resource:   ResourceSpace,
		Operation:  in.Operation,
		Credential: in.Credential,
		Fields:     fields,
	})
	for _, r := range results {
		if r.Action == filter.ActionPass {
			continue
		}
		if e.metrics != nil {
			e.metrics.RecordFilterAction(r.FilterName, string(r.Action))
		}
		if r.Action == filter.ActionFlag {
			e.logger.Warn("item flagged",
				"request_id", in.RequestID,
				"operation", in.Operation,
				"item", i,
				"filter", r.FilterName,
				"message", r.Message,
				"score", r.Score,
			)
		}
	}
	if blocked != nil {
		e.logger.Warn("item blocked",
			"request_id", in.RequestID,
			"operation", in.Operation,
			"item", i,
			"filter", blocked.FilterName,
			"message", blocked.Message,
		)
		return &filter.BlockedError{Filter: blocked.FilterName, Message: blocked.Message}
	}
	return nil
}

func (e *Executor) runItem(ctx context.Context, op string, p Parameters, i int) (any, error) {
	switch op {
	case OpListSpace:
		user, err := e.client.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		return e.client.ListSpaces(ctx, user)

	case OpCreateSpace:
		name, err := RequiredString(p, "spaceName", i)
		if err != nil {
			return nil, err
		}
		user, err := e.client.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		return e.client.CreateSpace(ctx, user, name)

	case OpRenameSpace:
		spaceID, err := RequiredString(p, "spaceId", i)
		if err != nil {
			return nil, err
		}
		name, err := RequiredString(p, "spaceName", i)
		if err != nil {
			return nil, err
		}
		return e.client.RenameSpace(ctx, spaceID, name)

	case OpDeleteSpace:
		spaceID, err := RequiredString(p, "spaceId", i)
		if err != nil {
			return nil, err
		}
		raw, err := e.client.DeleteSpace(ctx, spaceID)
		if err != nil {
			return nil, err
		}
		if body := strings.TrimSpace(string(raw)); body == "" || body == "null" {
			return map[string]any{"success": true}, nil
		}
		return raw, nil

	case OpAskSpace:
		resp, err := e.askSpace(ctx, p, i)
		if err != nil {
			return nil, fmt.Errorf("ask space failed: %w", err)
		}
		return resp, nil

	case OpAddRecord:
		in, err := recordInput(p, i)
		if err != nil {
			return nil, err
		}
		return e.client.AddRecord(ctx, in)
	}

	return nil, &medullar.ValidationError{Field: "operation", Message: fmt.Sprintf("unsupported operation %q", op)}
}

func (e *Executor) askSpace(ctx context.Context, p Parameters, i int) (json.RawMessage, error) {
	var in medullar.AskInput
	var err error
	if in.SpaceID, err = RequiredString(p, "spaceId", i); err != nil {
		return nil, err
	}
	if in.ChatID, err = String(p, "chatId", i); err != nil {
		return nil, err
	}
	if in.Mode, err = String(p, "chatMode", i); err != nil {
		return nil, err
	}
	if in.DeepAnalysis, err = Bool(p, "deepAnalysis", i); err != nil {
		return nil, err
	}
	if in.Message, err = RequiredString(p, "message", i); err != nil {
		return nil, err
	}
	return e.client.Ask(ctx, in)
}

func recordInput(p Parameters, i int) (medullar.RecordInput, error) {
	var in medullar.RecordInput
	var err error
	if in.SpaceID, err = String(p, "spaceId", i); err != nil {
		return in, err
	}
	if in.SourceType, err = String(p, "sourceType", i); err != nil {
		return in, err
	}
	if in.Content, err = String(p, "content", i); err != nil {
		return in, err
	}
	if in.URL, err = String(p, "url", i); err != nil {
		return in, err
	}
	return in, nil
}

func (e *Executor) observe(ctx context.Context, in Input, item int, duration time.Duration, err error) {
	status := "success"
	var errMsg string
	if err != nil {
		status = classify(err)
		errMsg = err.Error()
	}
	if e.metrics != nil {
		e.metrics.RecordItem(in.Operation, status, float64(duration.Milliseconds()))
	}
	e.recorder.Record(ctx, audit.Entry{
		RequestID:  in.RequestID,
		Operation:  in.Operation,
		ItemIndex:  item,
		Status:     status,
		Error:      errMsg,
		Credential: in.Credential,
		Duration:   duration,
	})
}

// classify names the error category for metrics and the audit log.
func classify(err error) string {
	switch {
	case medullar.IsValidation(err):
		return "validation_error"
	case medullar.IsSemantic(err):
		return "semantic_error"
	case filter.IsBlocked(err):
		return "blocked"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	if _, ok := medullar.AsAPIError(err); ok {
		return "api_error"
	}
	return "error"
}
