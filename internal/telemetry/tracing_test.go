package telemetry

import (
	"context"
	"io"
	"log"
	"testing"
)

func TestSetupTracingDisabled(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	for _, exporter := range []string{"", "none", "NONE", " none "} {
		shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: exporter}, logger)
		if err != nil {
			t.Fatalf("exporter %q: SetupTracing returned error: %v", exporter, err)
		}
		if shutdown == nil {
			t.Fatalf("exporter %q: expected a no-op shutdown", exporter)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("exporter %q: shutdown returned error: %v", exporter, err)
		}
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "jaeger"}, nil); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSetupTracingRequiresOTLPEndpoint(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, nil); err == nil {
		t.Fatal("expected error for otlp without endpoint")
	}
}
