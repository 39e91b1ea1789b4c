package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: true, ServiceName: "flap-test", Writer: &buf}, nil)
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(ctx, TracingConfig{}, nil)
	})

	_, span := otel.Tracer("flap/test").Start(ctx, "generation")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), `"Name":"generation"`) {
		t.Errorf("span not exported, got %q", buf.String())
	}
}
