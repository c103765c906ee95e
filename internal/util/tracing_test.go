package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerWithoutEndpointDoesNotSample(t *testing.T) {
	tp, err := InitTracer("ecommerce-api-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.IsRecording())
}
