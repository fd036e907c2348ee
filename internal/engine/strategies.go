package engine

import (
	"context"

	"github.com/ordertask/ordertask/internal/platform/logger"
)

// invocationResult carries what a worker needs to decide the queue's
// terminal transition after running one envelope.
type invocationResult struct {
	output  *Output
	isAsync bool
}

// invoke dispatches on the envelope's shape, isolating any panic/error the
// task raises so it never crosses the worker boundary. A task fault is
// logged and the execution is treated as completed for InOut/Out (the
// post-hook still runs); for In tasks a fault simply drops the envelope.
func invoke(ctx context.Context, log logger.Logger, m *engineMetrics, env *Envelope) *invocationResult {
	switch env.Shape {
	case ShapeIn:
		invokeIn(ctx, log, m, env)
		return nil
	case ShapeOut:
		return invokeOut(ctx, log, m, env)
	case ShapeInOut:
		return invokeInOut(ctx, log, m, env)
	default:
		log.Error("envelope with unknown shape dropped", "identity", env.Context.Identity, "shape", env.Shape)
		return nil
	}
}

func invokeIn(ctx context.Context, log logger.Logger, m *engineMetrics, env *Envelope) {
	defer recoverTaskFault(log, m, env, "in")

	var input interface{}
	if env.InputFactory != nil {
		input = safeFactoryCall(log, env, env.InputFactory)
	}

	if err := env.In.Accept(ctx, input); err != nil {
		m.taskFaults.Inc()
		log.Error("task fault", "identity", env.Context.Identity, "shape", "in", "error", err)
	}
}

// invokeOut runs an Out-shaped task body. The return is named so that a real
// panic from env.Out.Apply — not just an error return — still leaves res
// pointing at the output built so far when the deferred recover runs;
// otherwise a panicking task would return a nil result and skip the
// post-hook entirely, contradicting the "post-hook still runs" guarantee.
func invokeOut(ctx context.Context, log logger.Logger, m *engineMetrics, env *Envelope) (res *invocationResult) {
	output := newOutputOrLogged(log, env)
	res = &invocationResult{output: output}

	defer func() {
		if r := recover(); r != nil {
			m.taskFaults.Inc()
			log.Error("task fault", "identity", env.Context.Identity, "shape", "out", "panic", r)
			res = &invocationResult{output: output}
		}
	}()

	result, err := env.Out.Apply(ctx, output)
	if err != nil {
		m.taskFaults.Inc()
		log.Error("task fault", "identity", env.Context.Identity, "shape", "out", "error", err)
		res = &invocationResult{output: output}
		return res
	}
	if result != nil {
		output = result
	}
	res = &invocationResult{output: output, isAsync: output.IsAsync()}
	return res
}

// invokeInOut mirrors invokeOut for the InOut shape; see its comment for why
// the return is named.
func invokeInOut(ctx context.Context, log logger.Logger, m *engineMetrics, env *Envelope) (res *invocationResult) {
	output := newOutputOrLogged(log, env)
	res = &invocationResult{output: output}

	var input interface{}
	if env.InputFactory != nil {
		input = safeFactoryCall(log, env, env.InputFactory)
	}

	defer func() {
		if r := recover(); r != nil {
			m.taskFaults.Inc()
			log.Error("task fault", "identity", env.Context.Identity, "shape", "inout", "panic", r)
			res = &invocationResult{output: output}
		}
	}()

	result, err := env.InOut.Apply(ctx, input, output)
	if err != nil {
		m.taskFaults.Inc()
		log.Error("task fault", "identity", env.Context.Identity, "shape", "inout", "error", err)
		res = &invocationResult{output: output}
		return res
	}
	if result != nil {
		output = result
	}
	res = &invocationResult{output: output, isAsync: output.IsAsync()}
	return res
}

func newOutputOrLogged(log logger.Logger, env *Envelope) *Output {
	if env.OutputFactory == nil {
		return NewOutput()
	}
	out := safeOutputFactoryCall(log, env, env.OutputFactory)
	if out == nil {
		return NewOutput()
	}
	return out
}

func safeFactoryCall(log logger.Logger, env *Envelope, factory InputFactory) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("input factory fault", "identity", env.Context.Identity, "panic", r)
			result = nil
		}
	}()
	return factory()
}

func safeOutputFactoryCall(log logger.Logger, env *Envelope, factory OutputFactory) (result *Output) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("output factory fault", "identity", env.Context.Identity, "panic", r)
			result = nil
		}
	}()
	return factory()
}

func recoverTaskFault(log logger.Logger, m *engineMetrics, env *Envelope, shape string) {
	if r := recover(); r != nil {
		m.taskFaults.Inc()
		log.Error("task fault", "identity", env.Context.Identity, "shape", shape, "panic", r)
	}
}

// runPostHook invokes ctx.Post with the final output. Any error or panic is
// caught and discarded — it must never prevent the queue from advancing.
func runPostHook(ctx context.Context, log logger.Logger, m *engineMetrics, env *Envelope, output *Output) {
	if env.Context.Post == nil || output == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.postHookFaults.Inc()
			log.Error("post-hook fault", "identity", env.Context.Identity, "panic", r)
		}
	}()

	if err := env.Context.Post(ctx, output); err != nil {
		m.postHookFaults.Inc()
		log.Error("post-hook fault", "identity", env.Context.Identity, "error", err)
	}
}
