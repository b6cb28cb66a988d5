package page

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"mcqsolver/internal/raster"
	"mcqsolver/mcq"
)

// ChromeConfig selects how the browser tab is obtained.
type ChromeConfig struct {
	// URL is navigated to when launching a browser, or used to pick a tab
	// when attaching and Match is empty.
	URL string
	// RemoteURL attaches to a running browser (ws:// or http:// debugging
	// endpoint) instead of launching one.
	RemoteURL string
	// Match selects the attached tab whose URL contains it.
	Match     string
	Headless  bool
	Timeout   time.Duration
	UserAgent string
}

// Chrome drives one browser tab through the DevTools protocol.
type Chrome struct {
	ctx    context.Context
	cancel func()
	log    *zap.Logger

	// capture toggles the page-wide background override
	capture sync.Mutex
}

var _ Page = (*Chrome)(nil)

// OpenChrome launches or attaches to a browser and returns the solving tab.
func OpenChrome(ctx context.Context, cfg ChromeConfig, log *zap.Logger) (*Chrome, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "page"), zap.String("driver", "chrome"))
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if remote := strings.TrimSpace(cfg.RemoteURL); remote != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), remote)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("no-default-browser-check", true),
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
			chromedp.Flag("disable-sync", true),
			chromedp.Flag("disable-translate", true),
			chromedp.Flag("disable-extensions", true),
		)
		if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
			opts = append(opts, chromedp.UserAgent(ua))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cancelAll := func() {
		cancelBrowser()
		cancelAlloc()
	}

	tabCtx := browserCtx
	cancelTab := func() {}
	if strings.TrimSpace(cfg.RemoteURL) != "" {
		if err := chromedp.Run(browserCtx); err != nil {
			cancelAll()
			return nil, fmt.Errorf("connect to browser: %w", err)
		}
		id, err := pickTarget(browserCtx, cfg)
		if err != nil {
			cancelAll()
			return nil, err
		}
		var c context.CancelFunc
		tabCtx, c = chromedp.NewContext(browserCtx, chromedp.WithTargetID(id))
		cancelTab = c
	}

	c := &Chrome{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAll()
		},
		log: log,
	}

	if strings.TrimSpace(cfg.RemoteURL) == "" && strings.TrimSpace(cfg.URL) != "" {
		nav, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		err := c.run(nav,
			chromedp.Navigate(cfg.URL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
		if err != nil {
			c.cancel()
			return nil, fmt.Errorf("navigate %s: %w", cfg.URL, err)
		}
		log.Info("page loaded", zap.String("url", cfg.URL))
	} else if err := c.run(ctx); err != nil {
		c.cancel()
		return nil, fmt.Errorf("attach tab: %w", err)
	}
	return c, nil
}

func pickTarget(ctx context.Context, cfg ChromeConfig) (target.ID, error) {
	infos, err := chromedp.Targets(ctx)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	match := strings.TrimSpace(cfg.Match)
	if match == "" {
		match = strings.TrimSpace(cfg.URL)
	}
	for _, t := range infos {
		if t.Type != "page" {
			continue
		}
		if match == "" || strings.Contains(t.URL, match) {
			return t.TargetID, nil
		}
	}
	return "", fmt.Errorf("no browser tab matches %q", match)
}

// run executes actions on the tab, aborting when ctx ends.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-taskCtx.Done():
			}
		}()
	}
	err := chromedp.Run(taskCtx, actions...)
	if err != nil && ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) eval(ctx context.Context, script string, out any) error {
	return c.run(ctx, chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

func (c *Chrome) Snapshot(ctx context.Context) (*html.Node, error) {
	var assigned int
	var outer string
	err := c.run(ctx,
		chromedp.Evaluate(stampScript, &assigned),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(outer))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	c.log.Debug("snapshot taken", zap.Int("stamped", assigned), zap.Int("bytes", len(outer)))
	return doc, nil
}

func (c *Chrome) SetImageSource(ctx context.Context, ref, src string) error {
	var ok bool
	if err := c.eval(ctx, setImageScript(ref, src), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("image %s not found", ref)
	}
	return nil
}

func (c *Chrome) Reveal(ctx context.Context, ref string) error {
	var ok bool
	if err := c.eval(ctx, revealScript(ref), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s not found", ref)
	}
	return nil
}

func (c *Chrome) Capture(ctx context.Context, ref string, opts CaptureOptions) (Shot, error) {
	c.capture.Lock()
	defer c.capture.Unlock()

	var g geometry
	if err := c.eval(ctx, geometryScript(ref), &g); err != nil {
		return Shot{}, fmt.Errorf("%w: %v", mcq.ErrRasterizerUnavailable, err)
	}
	if !g.Found {
		return Shot{}, fmt.Errorf("element %s not found", ref)
	}
	if g.W < 1 || g.H < 1 {
		return Shot{}, fmt.Errorf("element %s has no visible extent", ref)
	}

	var buf []byte
	white := &cdp.RGBA{R: 255, G: 255, B: 255, A: 1}
	err := c.run(ctx,
		emulation.SetDefaultBackgroundColorOverride().WithColor(white),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = cdppage.CaptureScreenshot().
				WithFormat(cdppage.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				WithClip(&cdppage.Viewport{
					X:      math.Floor(g.X),
					Y:      math.Floor(g.Y),
					Width:  math.Ceil(g.W),
					Height: math.Ceil(g.H),
					Scale:  1,
				}).
				Do(ctx)
			return err
		}),
		emulation.SetDefaultBackgroundColorOverride(),
	)
	if err != nil {
		return Shot{}, fmt.Errorf("%w: %v", mcq.ErrRasterizerUnavailable, err)
	}

	data, bounds, err := raster.Normalize(buf, opts.MaxWidth)
	if err != nil {
		return Shot{}, fmt.Errorf("encode capture: %w", err)
	}
	return Shot{
		Data:     data,
		MIMEType: "image/png",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Metrics:  g.Metrics,
	}, nil
}

func (c *Chrome) Select(ctx context.Context, options []string, index int) error {
	var res string
	if err := c.eval(ctx, selectScript(options, index), &res); err != nil {
		return err
	}
	switch res {
	case "ok":
		return nil
	case "range":
		return mcq.ErrAnswerOutOfRange
	default:
		return errors.New("option inputs are no longer on the page")
	}
}

func (c *Chrome) Flash(ctx context.Context, ref, color string, d time.Duration) error {
	var ok bool
	return c.eval(ctx, flashScript(ref, color, d.Milliseconds()), &ok)
}

func (c *Chrome) Notify(ctx context.Context, msg, kind string) error {
	var ok bool
	return c.eval(ctx, notifyScript(msg, kind), &ok)
}

func (c *Chrome) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
