package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/platform/audit"
)

func TestAuditedIngestBuilder_BuildsInShapedEnvelopeWithIdentity(t *testing.T) {
	sink, err := audit.New(nil, nil)
	require.NoError(t, err)

	build := AuditedIngestBuilder(sink)
	env := build(engine.Identity("order-7"), json.RawMessage(`{"a":1}`))

	require.Equal(t, engine.ShapeIn, env.Shape)
	require.NotNil(t, env.In)
	assert.Equal(t, engine.Identity("order-7"), env.Context.Identity)

	ingest, ok := env.In.(*ingestTask)
	require.True(t, ok)
	assert.Equal(t, engine.Identity("order-7"), ingest.identity)

	require.NoError(t, ingest.Accept(context.Background(), nil))
}

func TestMessage_DecodesIdentityAndPayload(t *testing.T) {
	raw := `{"identity":"order-9","payload":{"sku":"abc"}}`

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	assert.Equal(t, "order-9", decoded.Identity)
	assert.JSONEq(t, `{"sku":"abc"}`, string(decoded.Payload))
}
