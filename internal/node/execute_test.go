package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/af-corp/medullar-gateway/internal/audit"
	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/af-corp/medullar-gateway/internal/medullar"
	"github.com/af-corp/medullar-gateway/internal/telemetry"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const baseURL = "https://medullar.test"

const userBody = `{"uuid":"u-1","email":"ana@example.com","company":{"uuid":"c-1"}}`

// stubTransport answers "METHOD path" with canned bodies and counts calls.
type stubTransport struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []string
	bodies  []json.RawMessage
}

func newStub() *stubTransport {
	return &stubTransport{replies: make(map[string]string)}
}

func (s *stubTransport) on(method, path, body string) *stubTransport {
	s.replies[method+" "+path] = body
	return s
}

func (s *stubTransport) Do(_ context.Context, opts *medullar.RequestOptions) ([]byte, error) {
	key := opts.Method + " " + strings.TrimPrefix(opts.URL, baseURL)
	var body json.RawMessage
	if opts.Body != nil {
		body, _ = json.Marshal(opts.Body)
	}
	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.bodies = append(s.bodies, body)
	s.mu.Unlock()

	reply, ok := s.replies[key]
	if !ok {
		return nil, &medullar.StatusError{StatusCode: http.StatusNotFound, Body: []byte(`{"detail":"Not found."}`)}
	}
	return []byte(reply), nil
}

// memRecorder keeps audit entries in memory.
type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(_ context.Context, e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func newTestExecutor(stub *stubTransport, opts ...ExecutorOption) *Executor {
	return NewExecutor(medullar.NewClient(baseURL, stub), opts...)
}

func itemJSON(t *testing.T, items []Item) []string {
	t.Helper()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, string(it.JSON))
	}
	return out
}

func TestExecute_ListSpaces(t *testing.T) {
	stub := newStub().
		on(http.MethodGet, "/auth/v1/users/me/", userBody).
		on(http.MethodGet, "/ai/v1/spaces/", `{"results":[{"uuid":"s-1","name":"A"},{"uuid":"s-2","name":"B"}]}`)
	ex := newTestExecutor(stub)

	items, err := ex.Execute(context.Background(), Input{Operation: OpListSpace})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{`{"uuid":"s-1","name":"A"}`, `{"uuid":"s-2","name":"B"}`}
	if diff := cmp.Diff(want, itemJSON(t, items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	for _, it := range items {
		if it.PairedItem == nil || it.PairedItem.Item != 0 {
			t.Errorf("expected items paired with input 0, got %+v", it.PairedItem)
		}
	}
}

func TestExecute_CreateSpacePerItem(t *testing.T) {
	stub := newStub().
		on(http.MethodGet, "/auth/v1/users/me/", userBody).
		on(http.MethodPost, "/ai/v1/spaces/", `{"uuid":"s-new"}`)
	ex := newTestExecutor(stub)

	params := NewMapParameters(nil, []map[string]any{
		{"spaceName": "first"},
		{"spaceName": "second"},
	})
	items, err := ex.Execute(context.Background(), Input{
		Operation: OpCreateSpace,
		Items:     []Item{{JSON: json.RawMessage(`{}`)}, {JSON: json.RawMessage(`{}`)}},
		Params:    params,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].PairedItem.Item != 1 {
		t.Errorf("expected second item paired with 1, got %d", items[1].PairedItem.Item)
	}
	if string(stub.bodies[3]) != `{"company":{"uuid":"c-1"},"name":"second"}` {
		t.Errorf("unexpected second create body %s", stub.bodies[3])
	}
}

func TestExecute_RenameSpace(t *testing.T) {
	stub := newStub().on(http.MethodPatch, "/ai/v1/spaces/s-1/", `{"uuid":"s-1","name":"B"}`)
	ex := newTestExecutor(stub)

	items, err := ex.Execute(context.Background(), Input{
		Operation: OpRenameSpace,
		Params:    NewMapParameters(map[string]any{"spaceId": "s-1", "spaceName": "B"}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(items[0].JSON) != `{"uuid":"s-1","name":"B"}` {
		t.Errorf("unexpected item %s", items[0].JSON)
	}
	if diff := cmp.Diff([]string{"PATCH /ai/v1/spaces/s-1/"}, stub.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_DeleteSpaceEmptyBody(t *testing.T) {
	stub := newStub().on(http.MethodDelete, "/ai/v1/spaces/s-1/", "")
	ex := newTestExecutor(stub)

	items, err := ex.Execute(context.Background(), Input{
		Operation: OpDeleteSpace,
		Params:    NewMapParameters(map[string]any{"spaceId": "s-1"}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(items[0].JSON) != `{"success":true}` {
		t.Errorf("expected success item, got %s", items[0].JSON)
	}
}

func TestExecute_DeleteSpaceBlankBodies(t *testing.T) {
	for _, body := range []string{"null", " null\n", "  \n"} {
		stub := newStub().on(http.MethodDelete, "/ai/v1/spaces/s-1/", body)
		items, err := newTestExecutor(stub).Execute(context.Background(), Input{
			Operation: OpDeleteSpace,
			Params:    NewMapParameters(map[string]any{"spaceId": "s-1"}, nil),
		})
		if err != nil {
			t.Fatalf("body %q: unexpected error: %v", body, err)
		}
		if string(items[0].JSON) != `{"success":true}` {
			t.Errorf("body %q: expected success item, got %s", body, items[0].JSON)
		}
	}
}

func TestExecute_SpaceOperationsSkipUserLookup(t *testing.T) {
	stub := newStub().
		on(http.MethodPatch, "/ai/v1/spaces/s-1/", `{"uuid":"s-1"}`).
		on(http.MethodDelete, "/ai/v1/spaces/s-1/", "").
		on(http.MethodPost, "/ai/v1/messages/get_response/", `{"text":"ok"}`)
	ex := newTestExecutor(stub)

	runs := []Input{
		{Operation: OpRenameSpace, Params: NewMapParameters(map[string]any{"spaceId": "s-1", "spaceName": "B"}, nil)},
		{Operation: OpDeleteSpace, Params: NewMapParameters(map[string]any{"spaceId": "s-1"}, nil)},
		{Operation: OpAskSpace, Params: NewMapParameters(map[string]any{"spaceId": "s-1", "chatId": "ch-1", "message": "hi"}, nil)},
	}
	for _, in := range runs {
		if _, err := ex.Execute(context.Background(), in); err != nil {
			t.Errorf("%s: unexpected error: %v", in.Operation, err)
		}
	}
	for _, call := range stub.calls {
		if strings.HasPrefix(call, "GET /auth/") {
			t.Errorf("expected no user lookup, got %s", call)
		}
	}
}

func TestExecute_AskSpaceCreatesChat(t *testing.T) {
	stub := newStub().
		on(http.MethodPost, "/ai/v1/chats/", `{"uuid":"ch-1"}`).
		on(http.MethodPost, "/ai/v1/messages/get_response/", `{"text":"answer"}`)
	ex := newTestExecutor(stub)

	items, err := ex.Execute(context.Background(), Input{
		Operation: OpAskSpace,
		Params: NewMapParameters(map[string]any{
			"spaceId":      map[string]any{"mode": "list", "value": "s-1"},
			"message":      "hello",
			"deepAnalysis": true,
		}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(items[0].JSON) != `{"text":"answer"}` {
		t.Errorf("unexpected item %s", items[0].JSON)
	}
	want := []string{"POST /ai/v1/chats/", "POST /ai/v1/messages/get_response/"}
	if diff := cmp.Diff(want, stub.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	var payload map[string]any
	json.Unmarshal(stub.bodies[1], &payload)
	if payload["is_reasoning_selected"] != true || payload["selected_mode"] != medullar.ModeSingleAgent {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestExecute_NonJSONResponseFails(t *testing.T) {
	stub := newStub().on(http.MethodPost, "/ai/v1/messages/get_response/", "Service temporarily degraded")
	ex := newTestExecutor(stub)

	items, err := ex.Execute(context.Background(), Input{
		Operation: OpAskSpace,
		Params:    NewMapParameters(map[string]any{"spaceId": "s-1", "chatId": "ch-1", "message": "hi"}, nil),
	})
	if !medullar.IsSemantic(err) {
		t.Fatalf("expected semantic error, got %v", err)
	}
	if items != nil {
		t.Errorf("expected no items, got %v", items)
	}
}

func TestExecute_AskSpaceErrorIsWrapped(t *testing.T) {
	ex := newTestExecutor(newStub())

	_, err := ex.Execute(context.Background(), Input{
		Operation: OpAskSpace,
		Params:    NewMapParameters(map[string]any{"spaceId": "s-1", "chatId": "ch-1", "message": "hi"}, nil),
	})
	if err == nil || !strings.Contains(err.Error(), "ask space failed") {
		t.Fatalf("expected wrapped ask error, got %v", err)
	}
	if _, ok := medullar.AsAPIError(err); !ok {
		t.Errorf("expected *APIError in chain, got %T", err)
	}
}

func TestExecute_AddRecordValidationMakesNoCalls(t *testing.T) {
	stub := newStub()
	ex := newTestExecutor(stub)

	_, err := ex.Execute(context.Background(), Input{
		Operation: OpAddRecord,
		Params:    NewMapParameters(map[string]any{"spaceId": "s-1", "sourceType": "text"}, nil),
	})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OperationError, got %v", err)
	}
	if opErr.Operation != OpAddRecord || opErr.Item != 0 {
		t.Errorf("unexpected operation error %+v", opErr)
	}
	if !medullar.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(stub.calls) != 0 {
		t.Errorf("expected no calls, got %v", stub.calls)
	}
}

func TestExecute_AddRecordDefaultsToText(t *testing.T) {
	stub := newStub().
		on(http.MethodGet, "/auth/v1/users/me/", userBody).
		on(http.MethodPost, "/ai/v1/records/", `{"uuid":"r-1","source":"text"}`)
	ex := newTestExecutor(stub)

	items, err := ex.Execute(context.Background(), Input{
		Operation: OpAddRecord,
		Params:    NewMapParameters(map[string]any{"spaceId": "s-1", "content": "notes"}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(items[0].JSON) != `{"uuid":"r-1","source":"text"}` {
		t.Errorf("unexpected item %s", items[0].JSON)
	}
}

func TestExecute_ContinueOnFail(t *testing.T) {
	stub := newStub().on(http.MethodPatch, "/ai/v1/spaces/s-1/", `{"uuid":"s-1"}`)
	rec := &memRecorder{}
	metrics := telemetry.NewMetricsWith(prometheus.NewRegistry())
	ex := newTestExecutor(stub, WithRecorder(rec), WithMetrics(metrics))

	params := NewMapParameters(map[string]any{"spaceName": "renamed"}, []map[string]any{
		{"spaceId": "s-1"},
		{"spaceId": ""},
		{"spaceId": "s-1"},
	})
	items, err := ex.Execute(context.Background(), Input{
		RequestID:      "req-1",
		Operation:      OpRenameSpace,
		Items:          make([]Item, 3),
		Params:         params,
		ContinueOnFail: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		`{"uuid":"s-1"}`,
		`{"error":"invalid spaceId: is required"}`,
		`{"uuid":"s-1"}`,
	}
	if diff := cmp.Diff(want, itemJSON(t, items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if items[1].PairedItem.Item != 1 {
		t.Errorf("expected error item paired with 1, got %d", items[1].PairedItem.Item)
	}

	if len(rec.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(rec.entries))
	}
	if rec.entries[1].Status != "validation_error" || rec.entries[1].RequestID != "req-1" {
		t.Errorf("unexpected audit entry %+v", rec.entries[1])
	}

	counter, _ := metrics.ItemTotal.GetMetricWithLabelValues(OpRenameSpace, "success")
	var m dto.Metric
	counter.Write(&m)
	if *m.Counter.Value != 2 {
		t.Errorf("expected 2 successful items, got %v", *m.Counter.Value)
	}
}

func TestExecute_StopsOnFirstFailure(t *testing.T) {
	stub := newStub().on(http.MethodDelete, "/ai/v1/spaces/s-2/", "")
	ex := newTestExecutor(stub)

	params := NewMapParameters(nil, []map[string]any{
		{"spaceId": "s-1"},
		{"spaceId": "s-2"},
	})
	_, err := ex.Execute(context.Background(), Input{
		Operation: OpDeleteSpace,
		Items:     make([]Item, 2),
		Params:    params,
	})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OperationError, got %v", err)
	}
	if opErr.Item != 0 {
		t.Errorf("expected failure on item 0, got %d", opErr.Item)
	}
	if len(stub.calls) != 1 {
		t.Errorf("expected execution to stop after 1 call, got %v", stub.calls)
	}
}

func TestExecute_UnknownOperation(t *testing.T) {
	ex := newTestExecutor(newStub())
	_, err := ex.Execute(context.Background(), Input{Operation: "archive-space"})
	if !medullar.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestExecute_UnknownResource(t *testing.T) {
	ex := newTestExecutor(newStub())
	_, err := ex.Execute(context.Background(), Input{Resource: "record", Operation: OpListSpace})
	if !medullar.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestExecute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := newTestExecutor(newStub())
	_, err := ex.Execute(ctx, Input{Operation: OpListSpace})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&medullar.ValidationError{Field: "x", Message: "is required"}, "validation_error"},
		{&medullar.SemanticError{Message: "no company"}, "semantic_error"},
		{&medullar.APIError{StatusCode: 500}, "api_error"},
		{&filter.BlockedError{Filter: "secrets", Message: "x"}, "blocked"},
		{context.DeadlineExceeded, "canceled"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
