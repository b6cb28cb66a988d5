// Package remediate replaces cross-origin images inside a question container
// with self-contained data URIs so rasterization never meets a tainted image.
package remediate

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"mcqsolver/internal/dom"
	"mcqsolver/internal/raster"
)

// DefaultHosts lists the hosts known to refuse cross-origin reads.
var DefaultHosts = []string{"storage.googleapis.com"}

var questionRe = regexp.MustCompile(`a1q(\d+)`)

// Fetcher returns the resource at url as a data URI.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ImageSetter updates an image source on the live page.
type ImageSetter interface {
	SetImageSource(ctx context.Context, ref, src string) error
}

// Report counts what a pass did.
type Report struct {
	Relayed      int
	Placeholders int
}

type Remediator struct {
	hosts   []string
	fetcher Fetcher
	log     *zap.Logger
}

func New(hosts []string, fetcher Fetcher, log *zap.Logger) *Remediator {
	var clean []string
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			clean = append(clean, h)
		}
	}
	if len(clean) == 0 {
		clean = DefaultHosts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Remediator{hosts: clean, fetcher: fetcher, log: log.With(zap.String("component", "remediate"))}
}

// Matches reports whether src points at a restricted host.
func (r *Remediator) Matches(src string) bool {
	s := strings.ToLower(src)
	if strings.HasPrefix(s, "data:") {
		return false
	}
	for _, h := range r.hosts {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// Apply remediates every restricted image below container. Failures are
// absorbed by substituting a placeholder; nothing is returned as an error.
func (r *Remediator) Apply(ctx context.Context, p ImageSetter, container *html.Node, ordinal int) Report {
	var rep Report
	for _, img := range images(container) {
		src := strings.TrimSpace(dom.GetAttr(img, "src"))
		ref := dom.Ref(img)
		if src == "" || ref == "" || !r.Matches(src) {
			continue
		}
		log := r.log.With(zap.Int("ordinal", ordinal), zap.String("ref", ref))

		if r.fetcher != nil {
			uri, err := r.fetcher.Fetch(ctx, src)
			if err == nil {
				if err = p.SetImageSource(ctx, ref, uri); err == nil {
					rep.Relayed++
					continue
				}
			}
			log.Warn("relay failed, using placeholder", zap.String("src", src), zap.Error(err))
		}

		data, err := raster.PlaceholderPNG(dimension(img, "width"), dimension(img, "height"), QuestionNumber(src))
		if err != nil {
			log.Warn("placeholder encode failed", zap.Error(err))
			continue
		}
		if err := p.SetImageSource(ctx, ref, raster.DataURI("image/png", data)); err != nil {
			log.Warn("placeholder substitution failed", zap.Error(err))
			continue
		}
		rep.Placeholders++
	}
	return rep
}

// QuestionNumber extracts the question number from an image url, "?" when
// the url carries none.
func QuestionNumber(src string) string {
	if m := questionRe.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return "?"
}

func images(n *html.Node) []*html.Node {
	var out []*html.Node
	dom.Walk[*html.Node](dom.HTML{}, n, func(x *html.Node) bool {
		if x.Type == html.ElementNode && strings.EqualFold(x.Data, "img") {
			out = append(out, x)
		}
		return true
	})
	return out
}

func dimension(n *html.Node, attr string) int {
	v := strings.TrimSuffix(strings.TrimSpace(dom.GetAttr(n, attr)), "px")
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return 0
	}
	return i
}
