package models

import (
	"strings"
	"time"
)

// Class groups routes that share a request budget.
type Class string

const (
	// ClassRead covers GET and HEAD requests.
	ClassRead Class = "read"
	// ClassWrite covers everything that can mutate the registry.
	ClassWrite Class = "write"
)

func (c Class) IsValid() bool {
	return c == ClassRead || c == ClassWrite
}

// ClassForMethod maps an HTTP method onto its budget.
func ClassForMethod(method string) Class {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return ClassRead
	default:
		return ClassWrite
	}
}

// Limit is a number of requests allowed per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the body written with a 429.
type ExceededResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	RetryAfter  int    `json:"retry_after"`
}

// CallerKey builds the bucket key for a caller and class. Delimiters in the
// principal are escaped so one caller cannot address another caller's bucket.
func CallerKey(caller string, class Class) string {
	return "caller:" + SanitizeKeySegment(caller) + ":" + string(class)
}

func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
