package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetails_DoesNotMutateSharedSingleton(t *testing.T) {
	before := len(ErrBadRequest.Details)

	withA := ErrBadRequest.WithDetails("field", "a")
	withB := ErrBadRequest.WithDetails("field", "b")

	require.Equal(t, "a", withA.Details["field"])
	require.Equal(t, "b", withB.Details["field"])
	assert.Equal(t, before, len(ErrBadRequest.Details), "package-level error must stay unmodified")
}
