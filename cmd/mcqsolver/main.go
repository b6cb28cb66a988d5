package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mcqsolver/internal/config"
	"mcqsolver/internal/inference"
	"mcqsolver/internal/logging"
	"mcqsolver/internal/metrics"
	"mcqsolver/internal/page"
	"mcqsolver/internal/progress"
	"mcqsolver/internal/ratelimit"
	"mcqsolver/internal/relay"
	"mcqsolver/internal/remediate"
	"mcqsolver/internal/retry"
	"mcqsolver/internal/server"
	"mcqsolver/internal/settings"
	"mcqsolver/internal/solver"
	"mcqsolver/mcq"
)

const usage = `usage: mcqsolver <command> [flags]

commands:
  serve    run the control-surface HTTP API
  check    report the question containers found on the page
  capture  capture the first question without calling the model
  solve    answer every question on the page
`

// pageFlags select the page being solved.
type pageFlags struct {
	url      string
	remote   string
	match    string
	file     string
	out      string
	selector string
	headless bool
}

func (p *pageFlags) register(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&p.url, "url", cfg.Browser.PageURL, "page to open in a new browser")
	fs.StringVar(&p.remote, "remote", cfg.Browser.RemoteURL, "DevTools endpoint of a running browser, e.g. http://127.0.0.1:9222")
	fs.StringVar(&p.match, "match", cfg.Browser.Match, "substring of the tab URL to attach to")
	fs.StringVar(&p.file, "file", "", "saved HTML page to solve offline instead of a browser")
	fs.StringVar(&p.out, "out", "", "write the answered document here (with -file)")
	fs.StringVar(&p.selector, "selector", "", "question container selector (default from settings)")
	fs.BoolVar(&p.headless, "headless", cfg.Browser.Headless, "run the launched browser headless")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, log, args)
	case "check", "capture", "solve":
		err = runOnce(ctx, cfg, log, cmd, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", zap.Error(err))
		os.Exit(1)
	}
}

// app is the wired pipeline for one page.
type app struct {
	page    page.Page
	memory  *page.Memory
	solver  *solver.Solver
	relay   *relay.Client
	hub     *progress.Hub
	metrics *metrics.Metrics
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger, pf pageFlags) (*app, error) {
	a := &app{hub: progress.NewHub(64), metrics: metrics.New()}

	if pf.file != "" {
		m, err := page.OpenFile(pf.file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", pf.file, err)
		}
		a.page, a.memory = m, m
	} else {
		cc := cfg.Chrome()
		cc.URL, cc.RemoteURL, cc.Match, cc.Headless = pf.url, pf.remote, pf.match, pf.headless
		if cc.URL == "" && cc.RemoteURL == "" {
			return nil, errors.New("one of -url, -remote or -file is required")
		}
		c, err := page.OpenChrome(ctx, cc, log)
		if err != nil {
			return nil, err
		}
		a.page = c
	}

	a.relay = relay.New(cfg.RelayClient(), log)
	limiter := ratelimit.New(cfg.Limiter(), ratelimit.WithLogger(log), ratelimit.WithObserver(a.metrics.ObserveWait))
	policy := cfg.RetryPolicy()
	policy.OnRetry = func(ordinal, attempt int, err error, delay time.Duration) {
		progress.Emit(a.hub, progress.TypeProgress,
			fmt.Sprintf("Question %d: attempt %d failed (%s), retrying in %s", ordinal, attempt, mcq.KindOf(err), delay.Round(time.Second)))
	}
	a.solver = solver.New(solver.Deps{
		Page:         a.page,
		Remediator:   remediate.New(cfg.Capture.RemediateHosts, a.relay, log),
		Orchestrator: retry.New(limiter, policy, log),
		Models:       inference.NewFactory(cfg.InferenceEngine(), log),
		Reporter:     a.hub,
		Metrics:      a.metrics,
		Log:          log,
	}, solver.Options{
		SettleDelay:  cfg.Capture.SettleDelay,
		SettleJitter: cfg.Capture.SettleJitter,
		MaxWidth:     cfg.Capture.MaxWidth,
		DebugDir:     cfg.Capture.DebugDir,
	})
	return a, nil
}

func runServe(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var pf pageFlags
	pf.register(fs, cfg)
	addr := fs.String("addr", cfg.Server.Addr, "listen address, e.g. :8090 or 127.0.0.1:8090")
	fs.Parse(args)

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return err
	}
	a, err := build(ctx, cfg, log, pf)
	if err != nil {
		return err
	}
	defer a.page.Close()

	api := server.New(server.Config{
		Pipeline: a.solver,
		Settings: store,
		Relay:    a.relay,
		Hub:      a.hub,
		Metrics:  a.metrics,
		Logger:   log,
		APIKey:   cfg.APIKey,
	})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// solve runs answer only when every question is done
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     zap.NewStdLog(log.Named("http")),
	}
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", *addr, err)
	}
	log.Info("listening", zap.String("addr", ln.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}

func runOnce(ctx context.Context, cfg *config.Config, log *zap.Logger, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var pf pageFlags
	pf.register(fs, cfg)
	apiKey := fs.String("api-key", "", "Gemini API key (default from settings or GEMINI_API_KEY)")
	domain := fs.String("context", "", "domain context appended to the prompt")
	fs.Parse(args)

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return err
	}
	stored := store.Load()
	selector := pf.selector
	if selector == "" {
		selector = stored.Selector()
	}

	req := mcq.SolveRequest{
		APIKey:        firstNonEmpty(*apiKey, stored.APIKey, cfg.APIKey),
		Selector:      selector,
		DomainContext: firstNonEmpty(*domain, stored.DomainContext),
	}
	if cmd == "solve" && req.APIKey == "" {
		return errors.New("Please set your Gemini API key first (-api-key, settings or GEMINI_API_KEY)")
	}

	a, err := build(ctx, cfg, log, pf)
	if err != nil {
		return err
	}
	defer a.page.Close()

	events, unsubscribe := a.hub.Subscribe()
	go func() {
		for e := range events {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Type, e.Message)
		}
	}()
	defer unsubscribe()

	var out any
	switch cmd {
	case "check":
		out, err = a.solver.CheckQuestions(ctx, selector)
	case "capture":
		out = a.solver.TestCapture(ctx, selector)
	case "solve":
		out, err = a.solver.Solve(ctx, req)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if pf.out != "" && a.memory != nil {
		f, err := os.Create(pf.out)
		if err != nil {
			return err
		}
		defer f.Close()
		a.memory.Settle()
		return a.memory.Render(f)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
