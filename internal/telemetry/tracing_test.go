package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Not parallel: installs global otel state.
func TestInitTracerProviderExportsSpans(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	exp := tracetest.NewInMemoryExporter()
	ctx := context.Background()
	tp, err := InitTracerProvider(ctx, Options{ServiceName: "a11y-crawler-test", Version: "dev", Exporter: exp})
	require.NoError(t, err)

	spanCtx, span := otel.Tracer("test").Start(ctx, "page")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "page", spans[0].Name)
	require.Equal(t, "a11y-crawler-test", serviceName(spans[0]))

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(spanCtx, carrier)
	require.Contains(t, carrier, "traceparent")

	require.NoError(t, tp.Shutdown(ctx))
}

func serviceName(s tracetest.SpanStub) string {
	for _, kv := range s.Resource.Attributes() {
		if kv.Key == "service.name" {
			return kv.Value.AsString()
		}
	}
	return ""
}
