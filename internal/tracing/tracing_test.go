package tracing

import (
	"context"
	"testing"
)

func TestNoop_ReturnsUsableTracer(t *testing.T) {
	p := Noop()
	_, span := p.Tracer().Start(context.Background(), "test-span")
	defer span.End()
	if span.IsRecording() {
		t.Fatal("a no-op tracer's span must not record")
	}
}

func TestNew_RegistersAndShutsDownCleanly(t *testing.T) {
	p := New("flowrun-test")
	ctx, span := p.Tracer().Start(context.Background(), "node.trigger")
	span.End()
	if ctx == nil {
		t.Fatal("Start must return a non-nil context")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestProvider_NilReceiverIsSafe(t *testing.T) {
	var p *Provider
	if p.Tracer() == nil {
		t.Fatal("Tracer on a nil Provider must still return a usable tracer")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on nil Provider must be a no-op, got %v", err)
	}
}
