package page

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"mcqsolver/internal/dom"
	"mcqsolver/mcq"
)

// Event is a synthetic notification dispatched on an element.
type Event struct {
	Ref  string
	Type string
}

// Notice is the last floating notification.
type Notice struct {
	Message string
	Kind    string
}

// Rasterizer turns a container into an image.
type Rasterizer func(n *html.Node, opts CaptureOptions) (Shot, error)

// Memory is a Page over a parsed document. It stands in for a browser when
// solving saved pages and in tests.
type Memory struct {
	mu       sync.Mutex
	doc      *html.Node
	raster   Rasterizer
	events   []Event
	revealed []string
	notice   Notice
	flashes  map[string]*time.Timer
	original map[string]string
}

var _ Page = (*Memory)(nil)

type MemoryOption func(*Memory)

// WithRasterizer replaces the built-in text rasterizer. A nil rasterizer
// makes Capture fail with mcq.ErrRasterizerUnavailable.
func WithRasterizer(r Rasterizer) MemoryOption {
	return func(m *Memory) { m.raster = r }
}

func NewMemory(doc *html.Node, opts ...MemoryOption) *Memory {
	m := &Memory{
		doc:      doc,
		raster:   TextRasterizer,
		flashes:  map[string]*time.Timer{},
		original: map[string]string{},
	}
	for _, o := range opts {
		o(m)
	}
	dom.Stamp(doc)
	return m
}

// ParseMemory parses an HTML document into a Memory page.
func ParseMemory(r io.Reader, opts ...MemoryOption) (*Memory, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return NewMemory(doc, opts...), nil
}

// OpenFile loads a saved page from disk.
func OpenFile(path string, opts ...MemoryOption) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMemory(f, opts...)
}

func (m *Memory) find(ref string) *html.Node {
	sel := goquery.NewDocumentFromNode(m.doc).Find(dom.RefSelector(ref))
	if sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

func (m *Memory) Snapshot(context.Context) (*html.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dom.Stamp(m.doc)
	return cloneTree(m.doc), nil
}

func (m *Memory) SetImageSource(_ context.Context, ref, src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.find(ref)
	if n == nil {
		return fmt.Errorf("image %s not found", ref)
	}
	dom.RemoveAttr(n, "srcset")
	dom.SetAttr(n, "src", src)
	return nil
}

func (m *Memory) Reveal(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(ref) == nil {
		return fmt.Errorf("element %s not found", ref)
	}
	m.revealed = append(m.revealed, ref)
	return nil
}

func (m *Memory) Capture(_ context.Context, ref string, opts CaptureOptions) (Shot, error) {
	m.mu.Lock()
	n := m.find(ref)
	var target *html.Node
	if n != nil {
		target = cloneTree(n)
	}
	r := m.raster
	m.mu.Unlock()

	if target == nil {
		return Shot{}, fmt.Errorf("element %s not found", ref)
	}
	if r == nil {
		return Shot{}, mcq.ErrRasterizerUnavailable
	}
	return r(target, opts)
}

func (m *Memory) Select(_ context.Context, options []string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := make([]*html.Node, len(options))
	for i, ref := range options {
		if nodes[i] = m.find(ref); nodes[i] == nil {
			return fmt.Errorf("option %s not found", ref)
		}
	}
	if index < 0 || index >= len(nodes) {
		return mcq.ErrAnswerOutOfRange
	}
	for _, n := range nodes {
		dom.RemoveAttr(n, "checked")
	}
	dom.SetAttr(nodes[index], "checked", "checked")
	chosen := options[index]
	m.events = append(m.events, Event{Ref: chosen, Type: "change"}, Event{Ref: chosen, Type: "click"})
	return nil
}

// Flash merges an outline into the element's inline style and restores the
// original declarations after d.
func (m *Memory) Flash(_ context.Context, ref, color string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.find(ref)
	if n == nil {
		return fmt.Errorf("element %s not found", ref)
	}
	if t, ok := m.flashes[ref]; ok {
		t.Stop()
	} else {
		m.original[ref] = dom.GetAttr(n, "style")
	}
	dom.SetAttr(n, "style", mergeStyle(m.original[ref], map[string]string{
		"outline":        "3px solid " + color,
		"outline-offset": "2px",
	}))
	var t *time.Timer
	t = time.AfterFunc(d, func() { m.revert(ref, t) })
	m.flashes[ref] = t
	return nil
}

// revert runs when t fires. A timer that was replaced by a later flash or
// stopped by Settle leaves the element alone.
func (m *Memory) revert(ref string, t *time.Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flashes[ref] != t {
		return
	}
	m.restoreLocked(ref)
}

func (m *Memory) restoreLocked(ref string) {
	n := m.find(ref)
	orig := m.original[ref]
	delete(m.flashes, ref)
	delete(m.original, ref)
	if n == nil {
		return
	}
	if orig == "" {
		dom.RemoveAttr(n, "style")
		return
	}
	dom.SetAttr(n, "style", orig)
}

func (m *Memory) Notify(_ context.Context, msg, kind string) error {
	m.mu.Lock()
	m.notice = Notice{Message: msg, Kind: kind}
	m.mu.Unlock()
	return nil
}

// Settle cancels pending flashes and restores every flashed element's
// original inline style at once.
func (m *Memory) Settle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref, t := range m.flashes {
		t.Stop()
		m.restoreLocked(ref)
	}
}

func (m *Memory) Close() error {
	m.Settle()
	return nil
}

// Events returns the synthetic notifications dispatched so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Memory) Revealed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.revealed...)
}

func (m *Memory) LastNotice() Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notice
}

// Style returns the current inline style of ref.
func (m *Memory) Style(ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return dom.GetAttr(m.find(ref), "style")
}

// Checked returns the refs of the checked inputs among options.
func (m *Memory) Checked(options []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ref := range options {
		if n := m.find(ref); n != nil && dom.HasAttr(n, "checked") {
			out = append(out, ref)
		}
	}
	return out
}

// Render writes the live document as HTML without the element references
// stamped by snapshots. Flashes still showing are rendered as they are; call
// Settle first for the page as the user left it.
func (m *Memory) Render(w io.Writer) error {
	m.mu.Lock()
	out := cloneTree(m.doc)
	m.mu.Unlock()
	dom.Walk[*html.Node](dom.HTML{}, out, func(n *html.Node) bool {
		dom.RemoveAttr(n, dom.RefAttr)
		return true
	})
	return html.Render(w, out)
}

// mergeStyle overrides properties in an inline style declaration list,
// keeping the remaining declarations in order.
func mergeStyle(style string, set map[string]string) string {
	// The declaration parser drops the value of a final declaration that
	// is not terminated.
	if style = strings.TrimSpace(style); style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		decls = nil
	}
	var b strings.Builder
	for _, d := range decls {
		if _, ok := set[strings.ToLower(d.Property)]; ok {
			continue
		}
		b.WriteString(d.Property)
		b.WriteString(": ")
		b.WriteString(d.Value)
		if d.Important {
			b.WriteString(" !important")
		}
		b.WriteString("; ")
	}
	for _, prop := range []string{"outline", "outline-offset"} {
		if v, ok := set[prop]; ok {
			b.WriteString(prop)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("; ")
		}
	}
	return strings.TrimSpace(b.String())
}

func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneTree(ch))
	}
	return c
}
