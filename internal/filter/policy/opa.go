package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/open-policy-agent/opa/v1/rego"
)

// query evaluates both rules of the medullar.policy package at once.
const query = "[data.medullar.policy.allow, data.medullar.policy.reason]"

// Input is the document policies see as `input`.
type Input struct {
	Operation  string            `json:"operation"`
	Resource   string            `json:"resource"`
	Credential string            `json:"credential"`
	Fields     map[string]string `json:"fields"`
	Time       Time              `json:"time"`
}

type Time struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Evaluator decides with OPA whether a credential may run an operation.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyFilterConfig
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyFilterConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Name() string  { return "policy" }
func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles the .rego files found in the configured bundle path.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from module sources keyed by file name.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(query)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Evaluate runs the policy against input. Without compiled policies every
// request is denied.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (bool, string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return false, "no policies loaded", nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Sprintf("policy evaluation error: %v", err), err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	// [allow, reason]
	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return allowed, reason, nil
}

func (e *Evaluator) Check(ctx context.Context, req *filter.Request) filter.Result {
	now := time.Now().UTC()
	input := Input{
		Operation:  req.Operation,
		Resource:   req.Resource,
		Credential: req.Credential,
		Fields:     req.Fields,
		Time: Time{
			Hour: now.Hour(),
			Day:  now.Weekday().String(),
		},
	}

	allowed, reason, err := e.Evaluate(ctx, input)
	if err != nil {
		slog.Error("policy evaluation failed", "error", err, "request_id", req.RequestID)
		return filter.Result{
			Action:     filter.ActionBlock,
			FilterName: "policy",
			Message:    "policy evaluation failed: " + err.Error(),
		}
	}
	if !allowed {
		return filter.Result{
			Action:     filter.ActionBlock,
			FilterName: "policy",
			Message:    "denied by policy: " + reason,
		}
	}
	return filter.Result{Action: filter.ActionPass, FilterName: "policy"}
}
