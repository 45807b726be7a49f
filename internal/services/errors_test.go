package services

import (
	"context"
	"errors"
	"testing"
)

func TestWrapPreservesMarker(t *testing.T) {
	err := Wrap(ErrValidation, "wavio", "parse", "bad header", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if got := err.Error(); got != "validation error: wavio: parse: bad header" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "cache", "read", "", errors.New("disk full"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestFatalAndRecoverableMarkers(t *testing.T) {
	cases := []struct {
		marker      error
		fatal       bool
		recoverable bool
	}{
		{ErrValidation, true, false},
		{ErrConfiguration, true, false},
		{ErrTimeout, false, true},
		{ErrTransient, false, true},
		{ErrExternalTool, false, true},
		{ErrNotFound, false, true},
	}
	for _, tc := range cases {
		err := Wrap(tc.marker, "c", "op", "m", nil)
		if IsFatal(err) != tc.fatal {
			t.Errorf("%v: IsFatal = %v, want %v", tc.marker, IsFatal(err), tc.fatal)
		}
		if IsRecoverable(err) != tc.recoverable {
			t.Errorf("%v: IsRecoverable = %v, want %v", tc.marker, IsRecoverable(err), tc.recoverable)
		}
	}
}

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()
	ctx = WithFile(ctx, "/hvsc/MUSICIANS/H/Hubbard_Rob/Commando.sid")
	ctx = WithPhase(ctx, "building")
	ctx = WithThread(ctx, 3)
	ctx = WithRequestID(ctx, "req-1")

	if v, ok := FileFromContext(ctx); !ok || v == "" {
		t.Error("file missing from context")
	}
	if v, ok := PhaseFromContext(ctx); !ok || v != "building" {
		t.Errorf("phase = %q", v)
	}
	if v, ok := ThreadFromContext(ctx); !ok || v != 3 {
		t.Errorf("thread = %d", v)
	}
	if v, ok := RequestIDFromContext(ctx); !ok || v != "req-1" {
		t.Errorf("request id = %q", v)
	}
}

func TestContextMissingValues(t *testing.T) {
	ctx := context.Background()
	if _, ok := FileFromContext(ctx); ok {
		t.Error("unexpected file value")
	}
	if _, ok := ThreadFromContext(ctx); ok {
		t.Error("unexpected thread value")
	}
}
