package services_test

import (
	"errors"
	"fmt"
	"testing"

	"voxport/internal/services"
)

func TestWrapTagsSentinel(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "export", "resolve", "bad percentage", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "fetch", "get", "", fmt.Errorf("boom"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrNotFound, "export", "resolve", "no matching samples", nil)
	if got := services.Details(err); got != "export: resolve: no matching samples" {
		t.Fatalf("Details = %q", got)
	}
}
