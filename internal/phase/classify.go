package phase

import (
	"fmt"
	"strings"

	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

// Kind categorizes a classified failure.
type Kind string

const (
	KindRecoverable Kind = "recoverable"
	KindFatal       Kind = "fatal"
)

// ClassifyError is the structured failure record attached to every phase
// error. Retryable mirrors Kind for callers that only need the boolean.
type ClassifyError struct {
	Kind      Kind
	Phase     Phase
	Code      string
	Message   string
	Retryable bool
	Details   string

	cause error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("%s failure in %s phase (%s): %s", e.Kind, e.Phase, e.Code, e.Message)
}

func (e *ClassifyError) Unwrap() error { return e.cause }

// recoverableSubstrings and fatalSubstrings are matched case-insensitively
// against error messages. The exact set is load-bearing: errors produced by
// external tooling carry no structured marker, and the retry contract
// depends on these strings classifying consistently.
var recoverableSubstrings = []string{"enoent", "timeout", "busy"}

var fatalSubstrings = []string{"invalid", "corrupt", "malformed"}

// Classify derives a structured failure record from err. Structured markers
// (services sentinels) take precedence; otherwise the message substrings
// decide, and anything unrecognized defaults to recoverable.
func Classify(p Phase, err error) *ClassifyError {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*ClassifyError); ok {
		return existing
	}

	msg := err.Error()
	cls := &ClassifyError{
		Phase:   p,
		Message: msg,
		Details: msg,
		cause:   err,
	}

	switch {
	case services.IsFatal(err):
		cls.Kind = KindFatal
		cls.Code = "marker_fatal"
	case services.IsRecoverable(err):
		cls.Kind = KindRecoverable
		cls.Code = "marker_recoverable"
	default:
		lower := strings.ToLower(msg)
		if code, ok := matchSubstring(lower, recoverableSubstrings); ok {
			cls.Kind = KindRecoverable
			cls.Code = code
		} else if code, ok := matchSubstring(lower, fatalSubstrings); ok {
			cls.Kind = KindFatal
			cls.Code = code
		} else {
			cls.Kind = KindRecoverable
			cls.Code = "unclassified"
		}
	}

	cls.Retryable = cls.Kind == KindRecoverable
	return cls
}

func matchSubstring(lower string, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if strings.Contains(lower, candidate) {
			return candidate, true
		}
	}
	return "", false
}
