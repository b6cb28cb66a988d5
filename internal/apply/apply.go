// Package apply selects the model's answer among a question's options and
// flashes the container to show the outcome.
package apply

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mcqsolver/internal/dom"
	"mcqsolver/internal/page"
	"mcqsolver/mcq"
)

// Feedback durations.
const (
	SuccessFlash = 2 * time.Second
	FailureFlash = 3 * time.Second
)

// Applier writes answers to the page.
type Applier struct {
	page page.Page
	log  *zap.Logger
}

func New(p page.Page, log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{page: p, log: log.With(zap.String("component", "apply"))}
}

// Apply checks exactly the option at answer's position. An answer outside
// the question's option list is an error; it is never clamped.
func (a *Applier) Apply(ctx context.Context, q mcq.Question, answer mcq.Answer) error {
	if len(q.Options) == 0 {
		return mcq.ErrNoOptions
	}
	idx := answer.Index()
	if !answer.Valid() || idx >= len(q.Options) {
		return fmt.Errorf("%w: answer %d for %d options", mcq.ErrAnswerOutOfRange, answer, len(q.Options))
	}
	refs := make([]string, len(q.Options))
	for i, opt := range q.Options {
		refs[i] = dom.Ref(opt)
	}
	if err := a.page.Select(ctx, refs, idx); err != nil {
		return fmt.Errorf("select option %d: %w", answer, err)
	}
	a.log.Debug("answer applied", zap.Int("ordinal", q.Ordinal), zap.Int("answer", int(answer)))
	return nil
}

// Feedback outlines the container green on success and red on failure. The
// outline reverts on its own; flash errors are only logged.
func (a *Applier) Feedback(ctx context.Context, q mcq.Question, ok bool) {
	color, d := page.SuccessColor, SuccessFlash
	if !ok {
		color, d = page.FailureColor, FailureFlash
	}
	if q.Ref == "" {
		return
	}
	if err := a.page.Flash(ctx, q.Ref, color, d); err != nil {
		a.log.Debug("flash failed", zap.Int("ordinal", q.Ordinal), zap.Error(err))
	}
}
