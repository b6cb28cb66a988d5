package mcq

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoQuestions means neither the selector nor heuristic detection found a container.
	ErrNoQuestions = errors.New("no questions found")
	// ErrRasterizerUnavailable means the page cannot produce an image of a container.
	ErrRasterizerUnavailable = errors.New("rasterizer unavailable")
	// ErrNoOptions means a container holds no exclusive-choice inputs.
	ErrNoOptions = errors.New("question has no answer options")
	// ErrAnswerOutOfRange means the answer does not map to an existing option.
	ErrAnswerOutOfRange = errors.New("answer out of range")
	// ErrNoAPIKey means no inference credential was supplied or stored.
	ErrNoAPIKey = errors.New("api key is not configured")
)

// Stage names the pipeline step a per-question failure came from.
type Stage string

const (
	StageCapture     Stage = "capture"
	StageInference   Stage = "inference"
	StageApplication Stage = "application"
)

// StageError tags an error with the question and stage it belongs to.
type StageError struct {
	Stage   Stage
	Ordinal int
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("question %d: %s: %v", e.Ordinal, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// InferenceKind classifies inference failures for the retry policy.
type InferenceKind int

const (
	// KindTransient covers 5xx responses and network failures.
	KindTransient InferenceKind = iota
	// KindRateLimited covers 429 and quota exhaustion.
	KindRateLimited
	// KindFatal covers other 4xx responses such as bad credentials.
	KindFatal
	// KindParse covers responses without a usable answer digit.
	KindParse
)

func (k InferenceKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	case KindParse:
		return "parse"
	default:
		return "transient"
	}
}

// InferenceError is returned by inference engines and the answer parser.
type InferenceError struct {
	Kind    InferenceKind
	Status  int
	Message string
	Err     error
}

func (e *InferenceError) Error() string {
	var b strings.Builder
	b.WriteString("inference ")
	b.WriteString(e.Kind.String())
	if e.Status > 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InferenceError) Unwrap() error { return e.Err }

// KindOf returns the inference kind of err. Errors that are not
// InferenceErrors are treated as transient.
func KindOf(err error) InferenceKind {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindTransient
}

// IsRateLimited reports whether err is a rate-limit or quota failure.
func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}

// IsRetryable reports whether another attempt could change the outcome.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) != KindFatal
}

// ClassifyStatus maps an endpoint status code and message to an inference kind.
func ClassifyStatus(status int, message string) InferenceKind {
	if status == 429 || mentionsRateLimit(message) {
		return KindRateLimited
	}
	if status >= 500 {
		return KindTransient
	}
	if status >= 400 {
		return KindFatal
	}
	return KindTransient
}

func mentionsRateLimit(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "rate limit") ||
		strings.Contains(m, "quota") ||
		strings.Contains(m, "resource_exhausted") ||
		strings.Contains(m, "resource exhausted")
}
