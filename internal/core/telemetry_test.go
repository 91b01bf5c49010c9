// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	return rec
}

func TestSetSpanErrorSeparatesRejectionsFromFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantCode   string
	}{
		{name: "business rejection", err: ConflictError("ALREADY_USED", "used"), wantStatus: codes.Unset, wantCode: "ALREADY_USED"},
		{name: "store failure", err: errors.New("connection reset"), wantStatus: codes.Error},
		{name: "unavailable", err: UnavailableError(), wantStatus: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(t)

			ctx, span := StartSpan(context.Background(), "license.Redeem")
			SetSpanError(ctx, tt.err)
			span.End()

			ended := rec.Ended()
			if len(ended) != 1 {
				t.Fatalf("ended spans = %d", len(ended))
			}
			got := ended[0]
			if got.Status().Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", got.Status().Code, tt.wantStatus)
			}

			var code string
			for _, kv := range got.Attributes() {
				if kv.Key == attrErrorCode {
					code = kv.Value.AsString()
				}
			}
			if code != tt.wantCode {
				t.Errorf("error code attribute = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestStartRequestSpanContinuesCallerTrace(t *testing.T) {
	rec := newRecorder(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("POST", "/v1/keys/redeem", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	ctx, span := StartRequestSpan(req)
	if got := TraceIDFromContext(ctx); got != traceID {
		t.Errorf("trace id = %q, want %q", got, traceID)
	}
	span.End()

	if len(rec.Ended()) != 1 {
		t.Fatalf("ended spans = %d", len(rec.Ended()))
	}
	if TraceIDFromContext(context.Background()) != "" {
		t.Error("trace id without a span should be empty")
	}
}
