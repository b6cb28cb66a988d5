package dom

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// RefAttr is stamped on every element of a snapshot so that nodes found in
// the parsed copy can be addressed on the live page.
const RefAttr = "data-mcqs-id"

// HTML adapts golang.org/x/net/html nodes to Tree. Only element nodes are
// reported as children.
type HTML struct{}

var _ Tree[*html.Node] = HTML{}

func (HTML) Parent(n *html.Node) (*html.Node, bool) {
	if n == nil || n.Parent == nil {
		return nil, false
	}
	return n.Parent, true
}

func (HTML) Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func (HTML) Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

func (HTML) Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func (HTML) Text(n *html.Node) string { return CollectText(n) }

// GetAttr returns the attribute value or "" if absent.
func GetAttr(n *html.Node, name string) string {
	v, _ := HTML{}.Attr(n, name)
	return v
}

// HasAttr reports whether the attribute is present, whatever its value.
func HasAttr(n *html.Node, name string) bool {
	_, ok := HTML{}.Attr(n, name)
	return ok
}

// SetAttr replaces or appends an attribute.
func SetAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

// RemoveAttr drops every attribute with the given name.
func RemoveAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, name) {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// Classes returns the class list of n in declaration order.
func Classes(n *html.Node) []string {
	return strings.Fields(GetAttr(n, "class"))
}

func HasClass(n *html.Node, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	for _, c := range Classes(n) {
		if c == want {
			return true
		}
	}
	return false
}

// CollectText concatenates the text nodes below n, skipping non-visible
// elements.
func CollectText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if t := strings.TrimSpace(c.Data); t != "" {
					b.WriteString(t)
					b.WriteString(" ")
				}
			case html.ElementNode:
				switch strings.ToLower(c.Data) {
				case "style", "script", "noscript", "template", "link", "meta":
					continue
				}
				if c.FirstChild != nil {
					rec(c)
				}
			}
		}
	}
	rec(n)
	return strings.TrimSpace(b.String())
}

// Abbrev shortens s to at most max runes, marking the cut with "...".
func Abbrev(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// IsRadio reports whether n is an exclusive-choice input.
func IsRadio(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || !strings.EqualFold(n.Data, "input") {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(GetAttr(n, "type")), "radio")
}

// Radios returns every radio input below n in document order.
func Radios(n *html.Node) []*html.Node {
	var out []*html.Node
	Walk[*html.Node](HTML{}, n, func(x *html.Node) bool {
		if IsRadio(x) {
			out = append(out, x)
		}
		return true
	})
	return out
}

// Elements returns every element node below n, n excluded, in document order.
func Elements(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range (HTML{}).Children(n) {
		Walk[*html.Node](HTML{}, c, func(x *html.Node) bool {
			out = append(out, x)
			return true
		})
	}
	return out
}

// Ref returns the snapshot reference stamped on n.
func Ref(n *html.Node) string { return GetAttr(n, RefAttr) }

// Stamp assigns a reference to every element that lacks one and returns the
// number of references assigned. Existing references are kept so that
// stamping is stable across snapshots.
func Stamp(root *html.Node) int {
	next := 0
	for _, el := range Elements(root) {
		if v, err := strconv.Atoi(Ref(el)); err == nil && v >= next {
			next = v + 1
		}
	}
	assigned := 0
	for _, el := range Elements(root) {
		if Ref(el) != "" {
			continue
		}
		SetAttr(el, RefAttr, strconv.Itoa(next))
		next++
		assigned++
	}
	return assigned
}

// RefSelector returns a CSS selector addressing the element with ref.
func RefSelector(ref string) string {
	return "[" + RefAttr + "=" + strconv.Quote(ref) + "]"
}

// FindByRef returns the element carrying ref below root.
func FindByRef(root *html.Node, ref string) *html.Node {
	var found *html.Node
	Walk[*html.Node](HTML{}, root, func(x *html.Node) bool {
		if found != nil {
			return false
		}
		if x.Type == html.ElementNode && Ref(x) == ref {
			found = x
			return false
		}
		return true
	})
	return found
}
