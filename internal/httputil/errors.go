package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/af-corp/medullar-gateway/internal/medullar"
	"github.com/af-corp/medullar-gateway/internal/upstream"
)

// APIError is the error envelope returned by every gateway endpoint.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message        string          `json:"message"`
	Type           string          `json:"type"`
	Code           string          `json:"code"`
	UpstreamStatus int             `json:"upstream_status,omitempty"`
	Upstream       json.RawMessage `json:"upstream,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
}

// WriteJSON encodes v before writing the status, so an unencodable value
// becomes a 500 instead of a truncated success response.
func WriteJSON(w http.ResponseWriter, requestID string, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "request_id", requestID, "error", err)
		statusCode = http.StatusInternalServerError
		data, _ = json.Marshal(APIError{Error: APIErrorBody{
			Message:   "failed to encode response",
			Type:      "server_error",
			Code:      "internal_error",
			RequestID: requestID,
		}})
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Debug("failed to write response", "request_id", requestID, "error", err)
	}
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	writeBody(w, requestID, statusCode, APIErrorBody{
		Message: message,
		Type:    errType,
		Code:    code,
	})
}

func writeBody(w http.ResponseWriter, requestID string, statusCode int, body APIErrorBody) {
	body.RequestID = requestID
	WriteJSON(w, requestID, statusCode, APIError{Error: body})
}

func WriteAuthError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusUnauthorized, "authentication_error", "invalid_api_key", message)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded", message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}

func WriteContentBlockedError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusForbidden, "content_policy_error", "content_blocked", message)
}

func WriteServiceUnavailableError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusServiceUnavailable, "server_error", "upstream_unavailable", message)
}

func WriteNotFoundError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusNotFound, "invalid_request_error", "not_found", message)
}

// WriteFromError maps the Medullar error taxonomy onto HTTP statuses:
// validation 400, blocked by a filter 403, semantic 422, open circuit 503, upstream 502 with the
// upstream payload attached, anything else 500.
func WriteFromError(w http.ResponseWriter, requestID string, err error) {
	if errors.Is(err, upstream.ErrCircuitOpen) {
		WriteServiceUnavailableError(w, requestID, err.Error())
		return
	}
	if apiErr, ok := medullar.AsAPIError(err); ok {
		writeBody(w, requestID, http.StatusBadGateway, APIErrorBody{
			Message:        err.Error(),
			Type:           "upstream_error",
			Code:           "medullar_api_error",
			UpstreamStatus: apiErr.StatusCode,
			Upstream:       apiErr.Payload,
		})
		return
	}
	if medullar.IsValidation(err) {
		WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "validation_failed", err.Error())
		return
	}
	if filter.IsBlocked(err) {
		WriteContentBlockedError(w, requestID, err.Error())
		return
	}
	if medullar.IsSemantic(err) {
		WriteError(w, requestID, http.StatusUnprocessableEntity, "semantic_error", "unexpected_upstream_data", err.Error())
		return
	}
	if errors.Is(err, http.ErrHandlerTimeout) || errors.Is(err, context.DeadlineExceeded) {
		WriteError(w, requestID, http.StatusGatewayTimeout, "server_error", "timeout", err.Error())
		return
	}
	WriteInternalError(w, requestID, err.Error())
}
