package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/medullar-gateway/internal/audit"
	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/credentials"
	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/af-corp/medullar-gateway/internal/httputil"
	"github.com/af-corp/medullar-gateway/internal/medullar"
	"github.com/af-corp/medullar-gateway/internal/node"
	"github.com/af-corp/medullar-gateway/internal/telemetry"
	"github.com/af-corp/medullar-gateway/internal/upstream"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 10 << 20

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	cfg        func() *config.Config
	httpClient *http.Client
	tracker    *upstream.Tracker
	filters    *filter.Chain
	recorder   audit.Recorder
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

func NewHandler(cfg func() *config.Config, httpClient *http.Client, tracker *upstream.Tracker, filters *filter.Chain, recorder audit.Recorder, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:        cfg,
		httpClient: httpClient,
		tracker:    tracker,
		filters:    filters,
		recorder:   recorder,
		metrics:    metrics,
		logger:     logger,
	}
}

type executeItem struct {
	JSON       json.RawMessage `json:"json"`
	Parameters map[string]any  `json:"parameters,omitempty"`
}

type executeRequest struct {
	Resource       string         `json:"resource"`
	Operation      string         `json:"operation"`
	Parameters     map[string]any `json:"parameters"`
	Items          []executeItem  `json:"items"`
	ContinueOnFail bool           `json:"continue_on_fail"`
}

type executeResponse struct {
	Data []node.Item `json:"data"`
}

type optionsRequest struct {
	Parameters map[string]any `json:"parameters"`
}

type optionsResponse struct {
	Options []node.OptionValue `json:"options"`
}

// client builds a Medullar client bound to the caller's credential.
func (h *Handler) client(cred *credentials.Credential) *medullar.Client {
	mcfg := h.cfg().Medullar
	var transport medullar.Transport = credentials.NewTransport(h.httpClient, *cred, mcfg.Headers)
	if h.tracker != nil {
		transport = upstream.NewTransport(transport, h.tracker, credentials.Fingerprint(cred.APIKey))
	}
	return medullar.NewClient(mcfg.BaseURL, transport,
		medullar.WithLogger(h.logger),
		medullar.WithMetrics(h.metrics),
	)
}

func (h *Handler) executor(cred *credentials.Credential) *node.Executor {
	return node.NewExecutor(h.client(cred),
		node.WithRecorder(h.recorder),
		node.WithFilters(h.filters),
		node.WithMetrics(h.metrics),
		node.WithLogger(h.logger),
	)
}

// Describe handles GET /v1/nodes/medullar
func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, w.Header().Get("X-Request-ID"), http.StatusOK, node.NodeDescription())
}

// Execute handles POST /v1/nodes/medullar/execute
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	cred, ok := credentials.FromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	var req executeRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}

	items := make([]node.Item, len(req.Items))
	itemParams := make([]map[string]any, len(req.Items))
	for i, it := range req.Items {
		items[i] = node.Item{JSON: it.JSON}
		itemParams[i] = it.Parameters
	}
	params := node.NewMapParameters(req.Parameters, itemParams)

	resource := req.Resource
	if resource == "" {
		resource, _ = node.String(params, "resource", 0)
	}
	operation := req.Operation
	if operation == "" {
		operation, _ = node.String(params, "operation", 0)
	}

	out, err := h.executor(cred).Execute(r.Context(), node.Input{
		RequestID:      reqID,
		Resource:       resource,
		Operation:      operation,
		Items:          items,
		Params:         params,
		ContinueOnFail: req.ContinueOnFail,
		Credential:     credentials.Fingerprint(cred.APIKey),
	})
	duration := time.Since(receivedAt)
	if err != nil {
		h.logger.Warn("execution failed",
			"request_id", reqID,
			"operation", operation,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		httputil.WriteFromError(w, reqID, err)
		return
	}

	h.logger.Info("execution completed",
		"request_id", reqID,
		"operation", operation,
		"input_items", len(req.Items),
		"output_items", len(out),
		"continue_on_fail", req.ContinueOnFail,
		"credential", credentials.SafePrefix(cred.APIKey),
		"duration_ms", duration.Milliseconds(),
	)
	httputil.WriteJSON(w, reqID, http.StatusOK, executeResponse{Data: out})
}

// LoadOptions handles POST /v1/nodes/medullar/options/{method}
func (h *Handler) LoadOptions(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	cred, ok := credentials.FromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	var req optionsRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}

	method := chi.URLParam(r, "method")
	opts, err := h.executor(cred).LoadOptions(r.Context(), method, node.NewMapParameters(req.Parameters, nil))
	if err != nil {
		h.logger.Warn("load options failed", "request_id", reqID, "method", method, "error", err)
		httputil.WriteFromError(w, reqID, err)
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, optionsResponse{Options: opts})
}

// TestCredential handles POST /v1/credentials/medullar/test
func (h *Handler) TestCredential(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	cred, ok := credentials.FromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	if err := h.client(cred).VerifyCredential(r.Context()); err != nil {
		h.logger.Info("credential test failed", "request_id", reqID, "credential", credentials.SafePrefix(cred.APIKey), "error", err)
		httputil.WriteFromError(w, reqID, err)
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, map[string]string{"status": "OK"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, reqID string, dest any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dest); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}
