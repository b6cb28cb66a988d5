// Package solver runs the question pipeline: discovery, then for every
// question concurrently capture, inference with retry and answer application.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcqsolver/internal/apply"
	"mcqsolver/internal/discovery"
	"mcqsolver/internal/inference"
	"mcqsolver/internal/metrics"
	"mcqsolver/internal/page"
	"mcqsolver/internal/progress"
	"mcqsolver/internal/remediate"
	"mcqsolver/internal/retry"
	"mcqsolver/mcq"
)

// Options tunes capture.
type Options struct {
	// SettleDelay plus a random share of SettleJitter is waited between
	// revealing a container and rasterizing it.
	SettleDelay  time.Duration
	SettleJitter time.Duration
	MaxWidth     int
	// DebugDir receives every captured image when set.
	DebugDir string
}

// Deps are the collaborators of a Solver. Page, Remediator, Orchestrator and
// Models are required.
type Deps struct {
	Page         page.Page
	Remediator   *remediate.Remediator
	Orchestrator *retry.Orchestrator
	Models       inference.Factory
	Reporter     progress.Reporter
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

// Solver implements checkQuestions, testCapture and solve against one page.
type Solver struct {
	page     page.Page
	discover *discovery.Discoverer
	remedy   *remediate.Remediator
	retry    *retry.Orchestrator
	models   inference.Factory
	applier  *apply.Applier
	reporter progress.Reporter
	metrics  *metrics.Metrics
	opts     Options
	log      *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
	now    func() time.Time

	// runs are serialized; a page holds one set of answers.
	run sync.Mutex
}

func New(d Deps, opts Options) *Solver {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{
		page:     d.Page,
		discover: discovery.New(log),
		remedy:   d.Remediator,
		retry:    d.Orchestrator,
		models:   d.Models,
		applier:  apply.New(d.Page, log),
		reporter: d.Reporter,
		metrics:  d.Metrics,
		opts:     opts,
		log:      log.With(zap.String("component", "solver")),
		sleep:    sleepContext,
		jitter:   rand.Float64,
		now:      time.Now,
	}
}

func (s *Solver) emit(ctx context.Context, typ, msg string) {
	progress.Emit(s.reporter, typ, msg)
	// The floating notification is best effort.
	_ = s.page.Notify(ctx, msg, typ)
}

func (s *Solver) questions(ctx context.Context, selector string) (discovery.Result, error) {
	doc, err := s.page.Snapshot(ctx)
	if err != nil {
		return discovery.Result{}, fmt.Errorf("read page: %w", err)
	}
	return s.discover.Discover(doc, selector)
}

// CheckQuestions reports how many containers selector resolves to, falling
// back to heuristic detection. Finding nothing is not an error.
func (s *Solver) CheckQuestions(ctx context.Context, selector string) (mcq.CheckResult, error) {
	res, err := s.questions(ctx, selector)
	if errors.Is(err, mcq.ErrNoQuestions) {
		return mcq.CheckResult{Selector: res.Selector, Message: "No questions found"}, nil
	}
	if err != nil {
		return mcq.CheckResult{}, err
	}
	out := mcq.CheckResult{
		Exists:       true,
		Count:        len(res.Questions),
		Selector:     res.Selector,
		AutoDetected: res.AutoDetected,
		Message:      fmt.Sprintf("Found %d questions", len(res.Questions)),
	}
	if res.AutoDetected {
		out.Message += " (auto-detected " + res.Selector + ")"
	}
	return out, nil
}

// TestCapture captures the first question without calling the model.
func (s *Solver) TestCapture(ctx context.Context, selector string) mcq.CaptureResult {
	res, err := s.questions(ctx, selector)
	if err != nil {
		return mcq.CaptureResult{Message: err.Error()}
	}
	q := res.Questions[0]
	shot, path, err := s.capture(ctx, q)
	if err != nil {
		s.emit(ctx, progress.TypeError, "Capture failed: "+err.Error())
		return mcq.CaptureResult{Message: err.Error()}
	}
	msg := fmt.Sprintf("Captured question 1 of %d: %dx%d image (container scroll %dx%d, client %dx%d)",
		len(res.Questions), shot.Width, shot.Height,
		shot.Metrics.ScrollWidth, shot.Metrics.ScrollHeight,
		shot.Metrics.ClientWidth, shot.Metrics.ClientHeight)
	if path != "" {
		msg += ", saved to " + path
	}
	s.emit(ctx, progress.TypeSuccess, "Screenshot captured successfully!")
	return mcq.CaptureResult{Success: true, Message: msg, Width: shot.Width, Height: shot.Height, Path: path}
}

// Solve answers every discovered question. Discovery failure aborts the run
// with an error; per-question failures are reported in the results and the
// run still succeeds.
func (s *Solver) Solve(ctx context.Context, req mcq.SolveRequest) (mcq.Summary, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return mcq.Summary{Message: mcq.ErrNoAPIKey.Error()}, mcq.ErrNoAPIKey
	}
	s.run.Lock()
	defer s.run.Unlock()

	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	start := s.now()
	defer func() { s.metrics.Run(s.now().Sub(start)) }()

	s.emit(ctx, progress.TypeInfo, "Looking for questions...")
	res, err := s.questions(ctx, req.Selector)
	if err != nil {
		s.emit(ctx, progress.TypeError, "No questions found on this page")
		return mcq.Summary{RunID: runID, Message: err.Error()}, fmt.Errorf("discover questions: %w", err)
	}

	model, err := s.models(ctx, req.APIKey)
	if err != nil {
		s.emit(ctx, progress.TypeError, "Inference setup failed: "+err.Error())
		return mcq.Summary{RunID: runID, Message: err.Error()}, fmt.Errorf("create model: %w", err)
	}
	defer model.Close()

	n := len(res.Questions)
	log.Info("solving", zap.Int("questions", n), zap.String("selector", res.Selector),
		zap.Bool("auto_detected", res.AutoDetected), zap.String("model", model.Name()))
	s.emit(ctx, progress.TypeProgress, fmt.Sprintf("Processing %d questions...", n))

	prompt := inference.BuildPrompt(req.DomainContext)
	results := make([]mcq.SolveResult, n)
	var done int
	var doneMu sync.Mutex

	var g errgroup.Group
	for i, q := range res.Questions {
		g.Go(func() error {
			r := s.solveOne(ctx, log, model, prompt, q)
			results[i] = r
			s.metrics.Question(r.Success)

			doneMu.Lock()
			done++
			msg := fmt.Sprintf("Question %d/%d done (%d completed)", q.Ordinal, n, done)
			doneMu.Unlock()
			if !r.Success {
				msg = fmt.Sprintf("Question %d failed: %s", q.Ordinal, r.Error)
			}
			s.emit(ctx, progress.TypeProgress, msg)
			return nil
		})
	}
	_ = g.Wait()

	sum := mcq.Summary{RunID: runID, Success: true, QuestionsCount: n, Results: results}
	for _, r := range results {
		if r.Success {
			sum.SuccessfulAnswers++
		} else {
			sum.FailedAnswers++
		}
	}
	sum.Message = fmt.Sprintf("Solved %d of %d questions", sum.SuccessfulAnswers, n)
	if sum.FailedAnswers > 0 {
		sum.Message += fmt.Sprintf(" (%d failed)", sum.FailedAnswers)
	}
	typ := progress.TypeSuccess
	if sum.SuccessfulAnswers == 0 {
		typ = progress.TypeError
	}
	s.emit(ctx, typ, sum.Message)
	log.Info("solve finished",
		zap.Int("successful", sum.SuccessfulAnswers),
		zap.Int("failed", sum.FailedAnswers),
		zap.Duration("took", s.now().Sub(start)))
	return sum, nil
}

// solveOne runs one question through capture, inference and application.
// It always returns a result carrying q's ordinal.
func (s *Solver) solveOne(ctx context.Context, log *zap.Logger, model inference.Model, prompt string, q mcq.Question) mcq.SolveResult {
	out := mcq.SolveResult{Ordinal: q.Ordinal}
	fail := func(stage mcq.Stage, err error) mcq.SolveResult {
		se := &mcq.StageError{Stage: stage, Ordinal: q.Ordinal, Err: err}
		log.Warn("question failed", zap.Int("ordinal", q.Ordinal), zap.String("stage", string(stage)), zap.Error(err))
		s.applier.Feedback(ctx, q, false)
		out.Error = se.Error()
		return out
	}

	shot, _, err := s.capture(ctx, q)
	if err != nil {
		return fail(mcq.StageCapture, err)
	}

	answer, attempts, err := s.retry.Do(ctx, q.Ordinal, func(ctx context.Context, attempt int) (mcq.Answer, error) {
		a, err := inference.Answer(ctx, model, prompt, shot.Data, shot.MIMEType)
		if err != nil {
			s.metrics.Attempt(mcq.KindOf(err).String())
		} else {
			s.metrics.Attempt("ok")
		}
		return a, err
	})
	out.Attempts = attempts
	if err != nil {
		return fail(mcq.StageInference, err)
	}

	if err := s.applier.Apply(ctx, q, answer); err != nil {
		return fail(mcq.StageApplication, err)
	}
	s.applier.Feedback(ctx, q, true)
	out.Success = true
	out.Answer = answer
	log.Info("question answered", zap.Int("ordinal", q.Ordinal), zap.Int("answer", int(answer)), zap.Int("attempts", attempts))
	return out
}

// capture remediates images, reveals the container, waits for it to settle
// and rasterizes it. The returned path is set when the image was saved to
// the debug directory.
func (s *Solver) capture(ctx context.Context, q mcq.Question) (page.Shot, string, error) {
	if s.remedy != nil {
		rep := s.remedy.Apply(ctx, s.page, q.Node, q.Ordinal)
		s.metrics.Remediated(rep.Relayed, rep.Placeholders)
	}
	if err := s.page.Reveal(ctx, q.Ref); err != nil {
		return page.Shot{}, "", fmt.Errorf("reveal: %w", err)
	}
	settle := s.opts.SettleDelay + time.Duration(float64(s.opts.SettleJitter)*s.jitter())
	if err := s.sleep(ctx, settle); err != nil {
		return page.Shot{}, "", err
	}
	shot, err := s.page.Capture(ctx, q.Ref, page.CaptureOptions{MaxWidth: s.opts.MaxWidth})
	if err != nil {
		return page.Shot{}, "", err
	}
	path, err := s.saveDebug(q.Ordinal, shot)
	if err != nil {
		s.log.Warn("debug image not saved", zap.Int("ordinal", q.Ordinal), zap.Error(err))
	}
	return shot, path, nil
}

func (s *Solver) saveDebug(ordinal int, shot page.Shot) (string, error) {
	if s.opts.DebugDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.opts.DebugDir, 0o755); err != nil {
		return "", err
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(s.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	path := filepath.Join(s.opts.DebugDir, fmt.Sprintf("%s-question-%d.png", stamp, ordinal))
	if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
