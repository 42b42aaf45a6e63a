package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 1.0, SampleRate(""))
	assert.Equal(t, 1.0, SampleRate("development"))
	assert.Equal(t, 0.1, SampleRate("production"))
}

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestSpan_WithoutSentry(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "service.test", SpanAttributes{ProjectID: "p", Operation: "test"})
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		span.SetError(errors.New("boom"))
		span.End()
		CaptureError(ctx, errors.New("boom"))
		AddBreadcrumb(ctx, "registry", "reloaded")
	})

	var empty Span
	assert.NotPanics(t, empty.End)
	assert.NotNil(t, empty.Context())
}
