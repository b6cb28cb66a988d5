// Package mcq holds the domain types shared by the question-solving pipeline.
package mcq

import (
	"golang.org/x/net/html"
)

// DefaultSelector is used when no question selector has been configured.
const DefaultSelector = ".gcb-question-row"

// MinAnswer and MaxAnswer bound a normalized model answer.
const (
	MinAnswer = 1
	MaxAnswer = 4
)

// Question is one discovered question container.
// Ordinal is 1-based in document order. Options is the ordered option group
// (radio inputs sharing one name) found inside Node.
type Question struct {
	Ordinal  int
	Node     *html.Node
	Ref      string
	GroupKey string
	Options  []*html.Node
}

// Answer is a normalized option position in [MinAnswer, MaxAnswer].
type Answer int

// Valid reports whether a is inside the accepted answer range.
func (a Answer) Valid() bool { return a >= MinAnswer && a <= MaxAnswer }

// Index converts the 1-based answer into a 0-based option index.
func (a Answer) Index() int { return int(a) - 1 }

// SolveRequest carries the per-run inputs of a solve invocation.
type SolveRequest struct {
	APIKey        string `json:"apiKey"`
	Selector      string `json:"selector"`
	DomainContext string `json:"domainContext,omitempty"`
}

// SolveResult is the outcome of one question.
type SolveResult struct {
	Ordinal  int    `json:"ordinal"`
	Success  bool   `json:"success"`
	Answer   Answer `json:"answer,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary aggregates every SolveResult of a run. Success means the run
// completed, not that every answer was applied.
type Summary struct {
	RunID             string        `json:"runId,omitempty"`
	Success           bool          `json:"success"`
	QuestionsCount    int           `json:"questionsCount"`
	SuccessfulAnswers int           `json:"successfulAnswers"`
	FailedAnswers     int           `json:"failedAnswers"`
	Results           []SolveResult `json:"results"`
	Message           string        `json:"message"`
}

// CheckResult reports what discovery found for a selector.
type CheckResult struct {
	Exists       bool   `json:"exists"`
	Count        int    `json:"count"`
	Selector     string `json:"selector"`
	AutoDetected bool   `json:"autoDetected,omitempty"`
	Message      string `json:"message,omitempty"`
}

// CaptureResult reports a single-question capture dry run.
type CaptureResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Path    string `json:"path,omitempty"`
}
