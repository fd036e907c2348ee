package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ordertask/ordertask/internal/engine"
)

// echoTask is the demo front end's stand-in for a producer-supplied task
// body: business callbacks are outside this module's scope, so submissions
// are executed by a task that reflects its payload back, optionally after
// simulating async completion so the front end can exercise the
// AsyncCompletionBridge end to end.
type echoTask struct {
	payload json.RawMessage
	async   bool
	delay   time.Duration
}

func (t *echoTask) Apply(ctx context.Context, output *engine.Output) (*engine.Output, error) {
	output.Values["payload"] = t.payload
	output.Values["isolation"] = engineIsolationName(ctx)

	if !t.async {
		return output, nil
	}

	future := engine.NewFuture()
	output.MarkAsAsync(future)
	go func() {
		time.Sleep(t.delay)
		future.Set(true, nil)
	}()
	return output, nil
}

func engineIsolationName(ctx context.Context) string {
	handle := engine.InstalledIsolation(ctx)
	if handle == nil {
		return ""
	}
	return handle.Name
}
