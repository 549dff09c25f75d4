package validation

import (
	"strings"

	"github.com/goliatone/go-formstate/pkg/item"
)

// Status is the polymorphic outcome of validating one response node.
type Status string

const (
	StatusNotValidated Status = "not-validated"
	StatusValid        Status = "valid"
	StatusInvalid      Status = "invalid"
)

// Result is one validation outcome. Results are plain values returned to
// callers; validation never raises errors for invalid input.
type Result struct {
	Status   Status        `json:"status"`
	Severity item.Severity `json:"severity,omitempty"`
	Key      string        `json:"key,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// Valid is the canonical passing result.
func Valid() Result {
	return Result{Status: StatusValid}
}

// NotValidated marks a node that was skipped, typically because it is hidden.
func NotValidated() Result {
	return Result{Status: StatusNotValidated}
}

// Invalid builds a blocking failure.
func Invalid(key, message string) Result {
	return Result{Status: StatusInvalid, Severity: item.SeverityError, Key: key, Message: message}
}

// Warning builds a non-blocking failure.
func Warning(key, message string) Result {
	return Result{Status: StatusInvalid, Severity: item.SeverityWarning, Key: key, Message: message}
}

// Blocking reports whether any result should block submission: an Invalid
// status with error severity.
func Blocking(results map[string][]Result) bool {
	for _, rs := range results {
		for _, r := range rs {
			if r.Status == StatusInvalid && r.Severity == item.SeverityError {
				return true
			}
		}
	}
	return false
}

// Messages collects the human messages of failing results, de-duplicated and
// trimmed, preserving order.
func Messages(results []Result) []string {
	var out []string
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r.Status != StatusInvalid {
			continue
		}
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			continue
		}
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	return out
}
