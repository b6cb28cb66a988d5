package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"mcqsolver/internal/dom"
	"mcqsolver/mcq"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

const twoBlocks = `<html><body>
<div class="page">
  <div class="q-block wide">
    <p>Which planet is known as the red planet?</p>
    <label><input type="radio" name="q1" value="a">Venus</label>
    <label><input type="radio" name="q1" value="b">Mars</label>
    <label><input type="radio" name="q1" value="c">Jupiter</label>
    <label><input type="radio" name="q1" value="d">Saturn</label>
  </div>
  <div class="q-block">
    <p>What is the boiling point of water at sea level?</p>
    <label><input type="radio" name="q2" value="a">90 C</label>
    <label><input type="radio" name="q2" value="b">100 C</label>
  </div>
</div>
</body></html>`

func TestDiscoverBySelector(t *testing.T) {
	doc := parse(t, `<div class="gcb-question-row"><input type="radio" name="a"><input type="radio" name="a"></div>
		<div class="gcb-question-row"><input type="radio" name="b"></div>`)
	res, err := New(nil).Discover(doc, "")
	require.NoError(t, err)
	assert.False(t, res.AutoDetected)
	assert.Equal(t, mcq.DefaultSelector, res.Selector)
	require.Len(t, res.Questions, 2)
	assert.Equal(t, 1, res.Questions[0].Ordinal)
	assert.Equal(t, 2, res.Questions[1].Ordinal)
	assert.Len(t, res.Questions[0].Options, 2)
	assert.Len(t, res.Questions[1].Options, 1)
	assert.Equal(t, "b", res.Questions[1].GroupKey)
}

func TestDiscoverHeuristicFindsSharedClass(t *testing.T) {
	doc := parse(t, twoBlocks)
	res, err := New(nil).Discover(doc, ".does-not-exist")
	require.NoError(t, err)
	assert.True(t, res.AutoDetected)
	assert.Equal(t, ".q-block", res.Selector)
	require.Len(t, res.Questions, 2)
	for i, q := range res.Questions {
		assert.True(t, dom.HasClass(q.Node, "q-block"))
		assert.Equal(t, i+1, q.Ordinal)
	}
	assert.Len(t, res.Questions[0].Options, 4)
	assert.Len(t, res.Questions[1].Options, 2)
}

func TestDiscoverInvalidSelectorFallsBack(t *testing.T) {
	doc := parse(t, twoBlocks)
	res, err := New(nil).Discover(doc, "div[[[")
	require.NoError(t, err)
	assert.True(t, res.AutoDetected)
	assert.Len(t, res.Questions, 2)
}

func TestDiscoverNoRadios(t *testing.T) {
	doc := parse(t, `<div><p>Nothing to answer here at all, just prose.</p></div>`)
	_, err := New(nil).Discover(doc, ".missing")
	assert.ErrorIs(t, err, mcq.ErrNoQuestions)
}

func TestDiscoverIgnoresUnnamedRadios(t *testing.T) {
	doc := parse(t, `<div class="x"><p>Some long question text goes right here</p><input type="radio"><input type="radio"></div>`)
	_, err := New(nil).Discover(doc, ".missing")
	assert.ErrorIs(t, err, mcq.ErrNoQuestions)
}

func TestDeriveSelectorFallsBackToTag(t *testing.T) {
	doc := parse(t, `<body>
		<section class="one"><p>First question text that is long enough</p><input type="radio" name="a"><input type="radio" name="a"></section>
		<section class="two"><p>Second question text that is long enough</p><input type="radio" name="b"><input type="radio" name="b"></section>
		<article><p>Third question text that is long enough</p><input type="radio" name="c"><input type="radio" name="c"></article>
	</body>`)
	det, ok := Detect[*html.Node](dom.HTML{}, doc)
	require.True(t, ok)
	require.Len(t, det.Containers, 3)
	assert.Equal(t, "section", det.Selector)
}

func TestLiftToContainerAbsorbsQuestionText(t *testing.T) {
	doc := parse(t, `<div id="outer"><p>What is the capital city of France?</p>
		<ul id="opts"><li><input type="radio" name="q">A</li><li><input type="radio" name="q">B</li></ul></div>`)
	det, ok := Detect[*html.Node](dom.HTML{}, doc)
	require.True(t, ok)
	require.Len(t, det.Containers, 1)
	assert.Equal(t, "outer", dom.GetAttr(det.Containers[0], "id"))
	assert.Equal(t, "div", det.Selector)
}

func TestOptionGroupUsesFirstName(t *testing.T) {
	doc := parse(t, `<div><input type="radio" name="a"><input type="radio" name="b"><input type="radio" name="a"></div>`)
	key, opts := OptionGroup(doc)
	assert.Equal(t, "a", key)
	assert.Len(t, opts, 2)
}
