package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"toolgate/internal/auth"
	"toolgate/internal/registry"
	"toolgate/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrPanic wraps a recovered handler panic.
var ErrPanic = errors.New("tool handler panicked")

// Resolver looks tools up by name. *registry.Registry satisfies it.
type Resolver interface {
	Resolve(name string) (registry.Definition, error)
}

// Authenticator resolves a bearer credential. *auth.Provider satisfies it.
type Authenticator interface {
	Validate(ctx context.Context, bearer string) (*auth.Identity, error)
}

// Invocation is one tool call as received from a transport.
type Invocation struct {
	Tool      string
	Arguments map[string]any
	Bearer    string
}

// Outcome is a successful invocation.
type Outcome struct {
	Tool     string
	Identity *auth.Identity
	Result   registry.Result
	Duration time.Duration
}

// Encode renders the outcome as an MCP tool result.
func (o *Outcome) Encode() *mcp.CallToolResult {
	if o.Result.Structured != nil {
		return mcp.NewToolResultStructured(o.Result.Structured, o.Result.Text)
	}
	return mcp.NewToolResultText(o.Result.Text)
}

// Options configures a Dispatcher.
type Options struct {
	// Registerer receives the invocation metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	// Now overrides the clock used for durations.
	Now func() time.Time
}

// Dispatcher runs invocations through resolve, authenticate, validate and
// execute. It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	tools   Resolver
	authn   Authenticator
	metrics *Metrics
	now     func() time.Time
}

// New creates a dispatcher over tools, authenticating with authn.
func New(tools Resolver, authn Authenticator, opts Options) *Dispatcher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		tools:   tools,
		authn:   authn,
		metrics: NewMetrics(opts.Registerer),
		now:     now,
	}
}

// Dispatch runs one invocation. Every failure is an *Error carrying the
// phase it stopped in; the handler only runs after all earlier phases pass.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (*Outcome, error) {
	start := d.now()
	out, err := d.dispatch(ctx, inv)
	elapsed := d.now().Sub(start)
	d.metrics.observe(inv.Tool, err, elapsed)

	if err != nil {
		var de *Error
		if errors.As(err, &de) && de.Kind == KindHandlerError {
			logging.Error("Dispatcher", err, "Tool %s failed after %v", inv.Tool, elapsed)
		} else {
			logging.Debug("Dispatcher", "Rejected call to %s: %v", inv.Tool, err)
		}
		return nil, err
	}

	out.Duration = elapsed
	logging.Debug("Dispatcher", "Tool %s completed for %s in %v", inv.Tool, out.Identity.Subject, elapsed)
	return out, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, inv Invocation) (*Outcome, error) {
	fail := func(kind Kind, phase Phase, err error) error {
		return &Error{Kind: kind, Phase: phase, Tool: inv.Tool, Err: err}
	}

	def, err := d.tools.Resolve(inv.Tool)
	if err != nil {
		return nil, fail(KindNotFound, PhaseResolving, err)
	}

	identity, err := d.authn.Validate(ctx, inv.Bearer)
	if err == nil && identity == nil {
		err = errors.New("no identity for credential")
	}
	if err != nil {
		return nil, fail(KindUnauthorized, PhaseAuthenticating, err)
	}

	params, err := def.Schema.Validate(inv.Arguments)
	if err != nil {
		de := &Error{Kind: KindBadParameters, Phase: PhaseValidating, Tool: inv.Tool, Err: err}
		var perr *registry.ParamError
		if errors.As(err, &perr) {
			de.Field = perr.Field
		}
		return nil, de
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(KindHandlerError, PhaseExecuting, err)
	}

	result, err := execute(ctx, def, params)
	if err != nil {
		return nil, fail(KindHandlerError, PhaseExecuting, err)
	}

	return &Outcome{Tool: def.Name, Identity: identity, Result: result}, nil
}

type execResult struct {
	result registry.Result
	err    error
}

// execute runs the handler on its own goroutine so a dropped caller is not
// held up by a handler that ignores ctx. Panics become ErrPanic.
func execute(ctx context.Context, def registry.Definition, params registry.Params) (registry.Result, error) {
	done := make(chan execResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Warn("Dispatcher", "Recovered panic in tool %s: %v\n%s", def.Name, r, debug.Stack())
				done <- execResult{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		res, err := def.Handler(ctx, params)
		done <- execResult{result: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && ctx.Err() != nil {
			return registry.Result{}, ctx.Err()
		}
		return r.result, r.err
	case <-ctx.Done():
		return registry.Result{}, ctx.Err()
	}
}

// EncodeError renders a dispatch failure as an MCP tool error result.
func EncodeError(err error) *mcp.CallToolResult {
	var de *Error
	if !errors.As(err, &de) {
		return mcp.NewToolResultError("internal error")
	}

	switch de.Kind {
	case KindUnauthorized:
		return mcp.NewToolResultError("unauthorized: a valid bearer token is required")
	case KindNotFound:
		return mcp.NewToolResultError(fmt.Sprintf("tool %q not found", de.Tool))
	case KindBadParameters:
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters for %s: %v", de.Tool, de.Err))
	default:
		if errors.Is(de.Err, ErrPanic) {
			return mcp.NewToolResultError(fmt.Sprintf("tool %s failed: internal error", de.Tool))
		}
		return mcp.NewToolResultError(fmt.Sprintf("tool %s failed: %v", de.Tool, de.Err))
	}
}
