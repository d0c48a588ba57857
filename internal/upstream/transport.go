package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/af-corp/medullar-gateway/internal/medullar"
)

// ErrCircuitOpen is returned without calling the API while a service's
// breaker is open.
var ErrCircuitOpen = errors.New("medullar service unavailable: circuit open")

// Transport wraps a medullar.Transport with the tracker's breakers for one
// scope, normally the caller's credential fingerprint.
// Transport errors, 429 and 5xx responses count as failures. Other 4xx
// responses are caller errors and count as successes.
type Transport struct {
	next    medullar.Transport
	tracker *Tracker
	scope   string
}

func NewTransport(next medullar.Transport, tracker *Tracker, scope string) *Transport {
	return &Transport{next: next, tracker: tracker, scope: scope}
}

func (t *Transport) Do(ctx context.Context, opts *medullar.RequestOptions) ([]byte, error) {
	service := serviceOf(opts.URL)
	if !t.tracker.Allow(t.scope, service) {
		return nil, fmt.Errorf("%w (%s)", ErrCircuitOpen, service)
	}

	body, err := t.next.Do(ctx, opts)
	switch {
	case err == nil:
		t.tracker.RecordSuccess(t.scope, service)
	case errors.Is(err, context.Canceled):
		t.tracker.Release(t.scope, service)
	case isServiceFailure(err):
		t.tracker.RecordFailure(t.scope, service)
	default:
		t.tracker.RecordSuccess(t.scope, service)
	}
	return body, err
}

func isServiceFailure(err error) bool {
	var se *medullar.StatusError
	if !errors.As(err, &se) {
		return true
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}

// serviceOf returns the path segment in front of "/v1/", or the host when the
// URL does not follow the {base}/{service}/v1/ layout.
func serviceOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if segments[i] == "v1" {
			return segments[i-1]
		}
	}
	return u.Host
}
