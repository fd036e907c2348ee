// Package engine implements a per-identity ordered task executor: a fixed
// pool of workers runs heterogeneous submissions such that tasks sharing an
// identity key execute strictly in submission order while different
// identities run in parallel.
package engine

import (
	"context"
)

// Identity keys the per-identity ordering domain. Equality is byte-equal
// string equality; producers are free to reuse one across many submissions.
type Identity string

// InTask consumes an input and produces no result. Contexts built for an
// In-shaped envelope carry no post-hook.
type InTask interface {
	Accept(ctx context.Context, input interface{}) error
}

// OutTask produces a result into a fresh output object, with no input.
type OutTask interface {
	Apply(ctx context.Context, output *Output) (*Output, error)
}

// InOutTask consumes an input and produces a result into an output object,
// which it may mutate in place or replace outright.
type InOutTask interface {
	Apply(ctx context.Context, input interface{}, output *Output) (*Output, error)
}

// IsolationHandle is an opaque per-task isolation scope that must be
// installed as the executing worker's contextual handle for the duration of
// the task body and its post-hook, and restored on every exit path. It is
// the non-JVM stand-in for a plugin class-loader: see isolation.go.
type IsolationHandle struct {
	Name string
}

// InputFactory produces a fresh input object for one execution. May be nil
// for Out-shaped envelopes.
type InputFactory func() interface{}

// OutputFactory produces a fresh output object for one execution. May be nil
// for In-shaped envelopes. Outputs must never be reused across executions.
type OutputFactory func() *Output

// PostHook is invoked after a completed InOut/Out execution with the final
// output, under the same installed isolation handle the task body ran
// under. Any error it returns is caught and discarded by the worker; it
// never blocks queue advancement.
type PostHook func(ctx context.Context, output *Output) error

// Context is the per-submission metadata bundle shared across consecutive
// executions for the same identity within one submission's lifetime.
type Context struct {
	Identity Identity
	Handle   *IsolationHandle
	Post     PostHook
}

// Shape names the three task capability variants an envelope may carry.
type Shape string

const (
	ShapeIn    Shape = "in"
	ShapeOut   Shape = "out"
	ShapeInOut Shape = "inout"
)

// Envelope is one atomically-submitted unit of work: a context, optional
// factories, and exactly one task shape.
type Envelope struct {
	Context       *Context
	InputFactory  InputFactory
	OutputFactory OutputFactory
	Shape         Shape
	In            InTask
	Out           OutTask
	InOut         InOutTask
}

// NewInEnvelope builds an In-shaped envelope. ctx.Post is ignored for In
// tasks: the spec does not call the post-hook for side-effect-only work.
func NewInEnvelope(ctx *Context, inputFactory InputFactory, task InTask) *Envelope {
	return &Envelope{
		Context:      ctx,
		InputFactory: inputFactory,
		Shape:        ShapeIn,
		In:           task,
	}
}

// NewOutEnvelope builds an Out-shaped envelope.
func NewOutEnvelope(ctx *Context, outputFactory OutputFactory, task OutTask) *Envelope {
	return &Envelope{
		Context:       ctx,
		OutputFactory: outputFactory,
		Shape:         ShapeOut,
		Out:           task,
	}
}

// NewInOutEnvelope builds an InOut-shaped envelope.
func NewInOutEnvelope(ctx *Context, inputFactory InputFactory, outputFactory OutputFactory, task InOutTask) *Envelope {
	return &Envelope{
		Context:       ctx,
		InputFactory:  inputFactory,
		OutputFactory: outputFactory,
		Shape:         ShapeInOut,
		InOut:         task,
	}
}
