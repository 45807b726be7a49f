package phase

import (
	"errors"
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

func TestClassifySubstrings(t *testing.T) {
	cases := []struct {
		message   string
		retryable bool
		code      string
	}{
		{"ENOENT: no such file", true, "enoent"},
		{"render Timeout exceeded", true, "timeout"},
		{"device BUSY", true, "busy"},
		{"Invalid header magic", false, "invalid"},
		{"data chunk corrupt", false, "corrupt"},
		{"malformed RIFF container", false, "malformed"},
		{"something unexpected happened", true, "unclassified"},
	}
	for _, tc := range cases {
		cls := Classify(Building, errors.New(tc.message))
		if cls.Retryable != tc.retryable {
			t.Errorf("%q: retryable = %v, want %v", tc.message, cls.Retryable, tc.retryable)
		}
		if cls.Code != tc.code {
			t.Errorf("%q: code = %q, want %q", tc.message, cls.Code, tc.code)
		}
		if cls.Phase != Building {
			t.Errorf("%q: phase = %s", tc.message, cls.Phase)
		}
	}
}

func TestClassifyRecoverableSubstringWinsOverFatal(t *testing.T) {
	// Substring order matters: recoverable matches are checked first.
	cls := Classify(Building, errors.New("timeout while reading invalid stream"))
	if !cls.Retryable {
		t.Error("mixed message should classify as recoverable")
	}
}

func TestClassifyStructuredMarkersTakePrecedence(t *testing.T) {
	// A validation marker is fatal even when the message says "timeout".
	err := services.Wrap(services.ErrValidation, "wavio", "parse", "timeout field bogus", nil)
	cls := Classify(Metadata, err)
	if cls.Retryable {
		t.Error("validation marker should be fatal")
	}
	if cls.Code != "marker_fatal" {
		t.Errorf("code = %q", cls.Code)
	}

	err = services.Wrap(services.ErrTimeout, "engine", "render", "invalid-sounding message", nil)
	cls = Classify(Building, err)
	if !cls.Retryable {
		t.Error("timeout marker should be recoverable")
	}
}

func TestClassifyIdempotent(t *testing.T) {
	cls := Classify(Tagging, errors.New("corrupt"))
	if again := Classify(Tagging, cls); again != cls {
		t.Error("classifying a ClassifyError should return it unchanged")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(Building, nil) != nil {
		t.Error("nil error should classify to nil")
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{Idle, Analyzing},
		{Analyzing, Building},
		{Building, Metadata},
		{Metadata, Tagging},
		{Metadata, Completed},
		{Tagging, Completed},
		{Building, Error},
		{Completed, Idle},
		{Error, Analyzing},
		{Metadata, Paused},
		{Building, Building},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Phase }{
		{Idle, Building},
		{Analyzing, Tagging},
		{Building, Analyzing},
		{Tagging, Metadata},
		{Completed, Tagging},
		{Idle, Phase("rendering")},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestWorkingAndTerminal(t *testing.T) {
	for _, p := range []Phase{Analyzing, Building, Metadata, Tagging} {
		if !Working(p) {
			t.Errorf("Working(%s) = false", p)
		}
	}
	for _, p := range []Phase{Idle, Completed, Error, Paused} {
		if Working(p) {
			t.Errorf("Working(%s) = true", p)
		}
	}
	if !Terminal(Completed) || !Terminal(Error) || Terminal(Paused) {
		t.Error("terminal classification wrong")
	}
}
