package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "cdfid"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization=Bearer abc, ,novalue,=x,team=cdfi ")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "team": "cdfi"}, headers)
}

func TestExecutionSpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())
	tracer := provider.Tracer(InstrumentationName)

	_, span := StartExecution(context.Background(), tracer, "subscription_buyWithNative")
	RecordSender(span, "0x00000000000000000000000000000000000000b1")
	RecordReceipt(span, 0, 3, "Max supply reached!")
	span.End()

	_, rejected := StartExecution(context.Background(), tracer, "nope")
	RecordRejection(rejected, errors.New("core: unknown method"))
	rejected.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "cdfi.execute", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "Max supply reached!", spans[0].Status().Description)
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	require.Equal(t, "subscription_buyWithNative", attrs[attrMethod].AsString())
	require.Equal(t, int64(3), attrs[attrHeight].AsInt64())
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
}
