package page

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"mcqsolver/internal/dom"
	"mcqsolver/mcq"
)

const questionPage = `<html><body>
<div class="gcb-question-row" id="q1" style="color: red">
  <p>Which gas do plants absorb from the air?</p>
  <img id="pic" src="https://storage.googleapis.com/bucket/a1q1.png" srcset="x 2x">
  <label><input type="radio" name="q1" value="1">Oxygen</label>
  <label><input type="radio" name="q1" value="2" checked>Carbon dioxide</label>
  <label><input type="radio" name="q1" value="3">Nitrogen</label>
</div>
</body></html>`

func newMemory(t *testing.T, opts ...MemoryOption) *Memory {
	t.Helper()
	m, err := ParseMemory(strings.NewReader(questionPage), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func refByID(t *testing.T, doc *html.Node, id string) string {
	t.Helper()
	var ref string
	dom.Walk[*html.Node](dom.HTML{}, doc, func(n *html.Node) bool {
		if dom.GetAttr(n, "id") == id {
			ref = dom.Ref(n)
		}
		return ref == ""
	})
	require.NotEmpty(t, ref, id)
	return ref
}

func optionRefs(doc *html.Node) []string {
	var refs []string
	for _, r := range dom.Radios(doc) {
		refs = append(refs, dom.Ref(r))
	}
	return refs
}

func TestMemorySnapshotIsDetached(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	opts := optionRefs(snap)
	require.Len(t, opts, 3)
	dom.SetAttr(dom.Radios(snap)[0], "checked", "checked")
	assert.Equal(t, []string{opts[1]}, m.Checked(opts), "live page unchanged by snapshot edits")

	again, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opts, optionRefs(again), "references are stable across snapshots")
}

func TestMemorySelectExactlyOne(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	opts := optionRefs(snap)

	require.NoError(t, m.Select(context.Background(), opts, 2))
	assert.Equal(t, []string{opts[2]}, m.Checked(opts))
	require.NoError(t, m.Select(context.Background(), opts, 2))
	assert.Equal(t, []string{opts[2]}, m.Checked(opts))

	events := m.Events()
	require.Len(t, events, 4)
	assert.Equal(t, Event{Ref: opts[2], Type: "change"}, events[0])
	assert.Equal(t, Event{Ref: opts[2], Type: "click"}, events[1])

	assert.ErrorIs(t, m.Select(context.Background(), opts, 3), mcq.ErrAnswerOutOfRange)
}

func TestMemoryFlashReverts(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	ref := refByID(t, snap, "q1")

	require.NoError(t, m.Flash(context.Background(), ref, SuccessColor, 30*time.Millisecond))
	style := m.Style(ref)
	assert.Contains(t, style, "color: red")
	assert.Contains(t, style, "outline: 3px solid #4CAF50")

	require.NoError(t, m.Flash(context.Background(), ref, FailureColor, 30*time.Millisecond))
	assert.Contains(t, m.Style(ref), "#f44336")

	assert.Eventually(t, func() bool { return m.Style(ref) == "color: red" }, time.Second, 5*time.Millisecond)
}

func TestMemorySetImageSource(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	ref := refByID(t, snap, "pic")

	require.NoError(t, m.SetImageSource(context.Background(), ref, "data:image/png;base64,AAAA"))
	snap, err = m.Snapshot(context.Background())
	require.NoError(t, err)
	img := dom.FindByRef(snap, ref)
	require.NotNil(t, img)
	assert.Equal(t, "data:image/png;base64,AAAA", dom.GetAttr(img, "src"))
	assert.False(t, dom.HasAttr(img, "srcset"))

	assert.Error(t, m.SetImageSource(context.Background(), "999999", "x"))
}

func TestMemoryCaptureRendersPNG(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	ref := refByID(t, snap, "q1")

	require.NoError(t, m.Reveal(context.Background(), ref))
	assert.Equal(t, []string{ref}, m.Revealed())

	shot, err := m.Capture(context.Background(), ref, CaptureOptions{MaxWidth: 320})
	require.NoError(t, err)
	assert.Equal(t, "image/png", shot.MIMEType)
	assert.Equal(t, 320, shot.Width)
	img, err := png.Decode(bytes.NewReader(shot.Data))
	require.NoError(t, err)
	assert.Equal(t, shot.Height, img.Bounds().Dy())
}

func TestMemoryCaptureWithoutRasterizer(t *testing.T) {
	m := newMemory(t, WithRasterizer(nil))
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = m.Capture(context.Background(), refByID(t, snap, "q1"), CaptureOptions{})
	assert.True(t, errors.Is(err, mcq.ErrRasterizerUnavailable))
}

func TestContainerLines(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(questionPage))
	require.NoError(t, err)
	lines := containerLines(doc)
	assert.Equal(t, []string{
		"Which gas do plants absorb from the air?",
		"[image]",
		"( ) Oxygen",
		"(o) Carbon dioxide",
		"( ) Nitrogen",
	}, lines)
}

func TestMergeStyle(t *testing.T) {
	set := map[string]string{"outline": "1px solid #000"}
	tests := []struct {
		style string
		want  string
	}{
		{"color: red; outline: none", "color: red; outline: 1px solid #000;"},
		{"color:red", "color: red; outline: 1px solid #000;"},
		{"a:b;c:d", "a: b; c: d; outline: 1px solid #000;"},
		{"color:red;width:10px ", "color: red; width: 10px; outline: 1px solid #000;"},
		{"", "outline: 1px solid #000;"},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeStyle(tt.style, set))
		})
	}
}

func TestMemorySettleRestoresStyles(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	q := refByID(t, snap, "q1")
	opts := optionRefs(snap)

	require.NoError(t, m.Flash(context.Background(), q, SuccessColor, time.Hour))
	require.NoError(t, m.Flash(context.Background(), opts[0], FailureColor, time.Hour))
	m.Settle()

	assert.Equal(t, "color: red", m.Style(q))
	assert.Empty(t, m.Style(opts[0]))

	// Closing again after a settle leaves the restored styles in place.
	require.NoError(t, m.Close())
	assert.Equal(t, "color: red", m.Style(q))
}

func TestMemoryRenderDropsReferences(t *testing.T) {
	m := newMemory(t)
	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	opts := optionRefs(snap)
	require.NoError(t, m.Select(context.Background(), opts, 0))
	require.NoError(t, m.Flash(context.Background(), opts[0], SuccessColor, time.Hour))
	m.Settle()

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf))
	out := buf.String()
	assert.NotContains(t, out, dom.RefAttr)
	assert.NotContains(t, out, "outline")
	assert.Contains(t, out, `style="color: red"`)
	assert.Contains(t, out, `value="1" checked="checked"`)

	// The live page keeps its references for later snapshots.
	again, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opts, optionRefs(again))
}

func TestNotifyLastWriteWins(t *testing.T) {
	m := newMemory(t)
	require.NoError(t, m.Notify(context.Background(), "working", KindProgress))
	require.NoError(t, m.Notify(context.Background(), "done", KindSuccess))
	assert.Equal(t, Notice{Message: "done", Kind: KindSuccess}, m.LastNotice())
}

func TestScriptsEmbedSelectorsSafely(t *testing.T) {
	s := selectScript([]string{"3", "4"}, 1)
	assert.Contains(t, s, `[data-mcqs-id=\"3\"]`)
	assert.Contains(t, s, "dispatchEvent(new Event('change', {bubbles: true}))")
	assert.Contains(t, s, "el.click()")

	n := notifyScript(`say "hi"</script>`, KindError)
	assert.Contains(t, n, FailureColor)
	assert.NotContains(t, n, `</script>`)
}
