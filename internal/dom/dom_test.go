package dom

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func byID(root *html.Node, id string) *html.Node {
	var found *html.Node
	Walk[*html.Node](HTML{}, root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && GetAttr(n, "id") == id {
			found = n
		}
		return found == nil
	})
	return found
}

func TestLowestCommonAncestorHTML(t *testing.T) {
	doc := parse(t, `<html><body>
		<div id="q"><p>Question text</p>
			<ul id="opts"><li><input id="a" type="radio" name="q1"></li><li><input id="b" type="radio" name="q1"></li></ul>
			<span><input id="c" type="radio" name="q1"></span>
		</div></body></html>`)

	lca, ok := LowestCommonAncestor[*html.Node](HTML{}, []*html.Node{byID(doc, "a"), byID(doc, "b")})
	require.True(t, ok)
	assert.Equal(t, "opts", GetAttr(lca, "id"))

	lca, ok = LowestCommonAncestor[*html.Node](HTML{}, []*html.Node{byID(doc, "a"), byID(doc, "b"), byID(doc, "c")})
	require.True(t, ok)
	assert.Equal(t, "q", GetAttr(lca, "id"))

	single, ok := LowestCommonAncestor[*html.Node](HTML{}, []*html.Node{byID(doc, "c")})
	require.True(t, ok)
	assert.Equal(t, "c", GetAttr(single, "id"))

	_, ok = LowestCommonAncestor[*html.Node](HTML{}, nil)
	assert.False(t, ok)
}

// fixture is a minimal synthetic tree used to show the algorithms do not
// depend on a real page.
type fixture struct {
	parent   map[string]string
	children map[string][]string
}

func (f fixture) Parent(n string) (string, bool) {
	p, ok := f.parent[n]
	return p, ok
}
func (f fixture) Children(n string) []string         { return f.children[n] }
func (f fixture) Tag(string) string                  { return "node" }
func (f fixture) Attr(string, string) (string, bool) { return "", false }
func (f fixture) Text(n string) string               { return n }

func newFixture(edges ...[2]string) fixture {
	f := fixture{parent: map[string]string{}, children: map[string][]string{}}
	for _, e := range edges {
		f.parent[e[1]] = e[0]
		f.children[e[0]] = append(f.children[e[0]], e[1])
	}
	return f
}

func TestLowestCommonAncestorSynthetic(t *testing.T) {
	f := newFixture(
		[2]string{"root", "a"}, [2]string{"root", "b"},
		[2]string{"a", "a1"}, [2]string{"a", "a2"}, [2]string{"a2", "a2x"},
	)
	lca, ok := LowestCommonAncestor[string](f, []string{"a1", "a2x"})
	require.True(t, ok)
	assert.Equal(t, "a", lca)

	lca, ok = LowestCommonAncestor[string](f, []string{"a2x", "b"})
	require.True(t, ok)
	assert.Equal(t, "root", lca)

	assert.Equal(t, []string{"root", "a", "a2", "a2x"}, Ancestors[string](f, "a2x"))
}

func TestAbbrev(t *testing.T) {
	assert.Equal(t, "short", Abbrev("short", 10))
	assert.Equal(t, "abc...", Abbrev("abcdef", 3))
	assert.Equal(t, "héllo wörl...", Abbrev("héllo wörld", 10))
	got := Abbrev("日本語のテキスト", 3)
	assert.Equal(t, "日本語...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "abc", Abbrev("abc", 0))
}

func TestCollectTextSkipsScripts(t *testing.T) {
	doc := parse(t, `<div><p>Hello</p><script>var x = 1;</script><style>p{}</style><b>world</b></div>`)
	assert.Equal(t, "Hello world", CollectText(doc))
}

func TestStampIsStable(t *testing.T) {
	doc := parse(t, `<div><input type="radio" name="x"><input type="radio" name="x"></div>`)
	first := Stamp(doc)
	assert.Greater(t, first, 0)
	assert.Equal(t, 0, Stamp(doc))

	radios := Radios(doc)
	require.Len(t, radios, 2)
	ref := Ref(radios[1])
	require.NotEmpty(t, ref)
	assert.Same(t, radios[1], FindByRef(doc, ref))
	assert.Equal(t, `[data-mcqs-id="`+ref+`"]`, RefSelector(ref))
}

func TestAttrHelpers(t *testing.T) {
	doc := parse(t, `<input id="r" type="RADIO" class="opt  big" checked>`)
	r := byID(doc, "r")
	require.NotNil(t, r)
	assert.True(t, IsRadio(r))
	assert.True(t, HasClass(r, "big"))
	assert.True(t, HasAttr(r, "checked"))
	RemoveAttr(r, "checked")
	assert.False(t, HasAttr(r, "checked"))
	SetAttr(r, "value", "2")
	assert.Equal(t, "2", GetAttr(r, "value"))
	assert.Equal(t, []string{"opt", "big"}, Classes(r))
}
