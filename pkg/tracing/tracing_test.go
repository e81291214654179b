package tracing

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestParseResourceAttributes(t *testing.T) {
	attrs := ParseResourceAttributes("service.namespace=segmentflow, deployment.environment=prod ,malformed")
	if len(attrs) != 2 {
		t.Fatalf("parsed %d attributes, want 2: %v", len(attrs), attrs)
	}
	if attrs["service.namespace"] != "segmentflow" {
		t.Errorf("service.namespace = %q", attrs["service.namespace"])
	}
	if attrs["deployment.environment"] != "prod" {
		t.Errorf("deployment.environment = %q", attrs["deployment.environment"])
	}
}

func TestParseResourceAttributesEmpty(t *testing.T) {
	if attrs := ParseResourceAttributes(""); len(attrs) != 0 {
		t.Errorf("parsed %d attributes from empty input", len(attrs))
	}
}
