// Package discovery locates question containers in a page snapshot, first by
// selector and then by grouping radio inputs when the selector matches nothing.
package discovery

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"mcqsolver/internal/dom"
	"mcqsolver/mcq"
)

// Result describes one discovery pass.
type Result struct {
	Questions []mcq.Question
	// Selector is the selector that produced Questions.
	Selector     string
	AutoDetected bool
}

// Discoverer resolves question containers.
type Discoverer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Discoverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Discoverer{log: log.With(zap.String("component", "discovery"))}
}

// Select returns the elements below root matching selector in document order.
func Select(root *html.Node, selector string) ([]*html.Node, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("parse selector %q: %w", selector, err)
	}
	return cascadia.QueryAll(root, group), nil
}

// Discover resolves selector against root and falls back to heuristic
// detection when it matches nothing. mcq.ErrNoQuestions is returned when both
// come up empty.
func (d *Discoverer) Discover(root *html.Node, selector string) (Result, error) {
	if selector = strings.TrimSpace(selector); selector == "" {
		selector = mcq.DefaultSelector
	}
	nodes, err := Select(root, selector)
	if err != nil {
		d.log.Warn("invalid selector, falling back to detection", zap.String("selector", selector), zap.Error(err))
	}
	if len(nodes) > 0 {
		return Result{Questions: build(nodes), Selector: selector}, nil
	}

	det, ok := Detect[*html.Node](dom.HTML{}, root)
	if !ok {
		return Result{Selector: selector}, mcq.ErrNoQuestions
	}
	d.log.Info("auto-detected containers",
		zap.String("requested", selector),
		zap.String("derived", det.Selector),
		zap.Int("containers", len(det.Containers)))

	nodes, err = Select(root, det.Selector)
	if err != nil || len(nodes) == 0 {
		// The derived selector could not be re-resolved; use the detected
		// containers directly.
		nodes = det.Containers
	}
	return Result{Questions: build(nodes), Selector: det.Selector, AutoDetected: true}, nil
}

func build(nodes []*html.Node) []mcq.Question {
	out := make([]mcq.Question, 0, len(nodes))
	for i, n := range nodes {
		key, opts := OptionGroup(n)
		out = append(out, mcq.Question{
			Ordinal:  i + 1,
			Node:     n,
			Ref:      dom.Ref(n),
			GroupKey: key,
			Options:  opts,
		})
	}
	return out
}

// OptionGroup returns the grouping key and ordered members of the first
// radio group inside container.
func OptionGroup(container *html.Node) (string, []*html.Node) {
	radios := dom.Radios(container)
	if len(radios) == 0 {
		return "", nil
	}
	key := strings.TrimSpace(dom.GetAttr(radios[0], "name"))
	var opts []*html.Node
	for _, r := range radios {
		if strings.TrimSpace(dom.GetAttr(r, "name")) == key {
			opts = append(opts, r)
		}
	}
	return key, opts
}
