package kafka

import (
	"context"
	"encoding/json"

	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/platform/audit"
)

// ingestTask is the default task body for Kafka-originated submissions: it
// has no business meaning of its own, only an audit trail recording that
// the identity's payload was accepted and ran.
type ingestTask struct {
	identity engine.Identity
	payload  json.RawMessage
	sink     *audit.Sink
}

func (t *ingestTask) Accept(ctx context.Context, _ interface{}) error {
	t.sink.Record(ctx, audit.Event{
		Identity: string(t.identity),
		Shape:    string(engine.ShapeIn),
		Outcome:  audit.OutcomeComplete,
		Detail:   string(t.payload),
	})
	return nil
}

// AuditedIngestBuilder returns a TaskBuilder that records each consumed
// message's payload to sink and otherwise treats it as a fire-and-forget
// ingestion task.
func AuditedIngestBuilder(sink *audit.Sink) TaskBuilder {
	return func(identity engine.Identity, payload json.RawMessage) *engine.Envelope {
		ctx := &engine.Context{
			Identity: identity,
			Handle:   &engine.IsolationHandle{Name: string(identity)},
		}
		return engine.NewInEnvelope(ctx, nil, &ingestTask{identity: identity, payload: payload, sink: sink})
	}
}
