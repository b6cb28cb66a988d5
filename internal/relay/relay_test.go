package relay

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcqsolver/internal/raster"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestFetchReturnsDataURI(t *testing.T) {
	img := pngBytes(t)
	var hits atomic.Int32
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotUA.Store(r.UserAgent())
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	c := New(Config{RPS: 0, CacheMB: 1}, nil)
	uri, err := c.Fetch(context.Background(), srv.URL+"/a1q7.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	assert.Equal(t, DefaultUserAgent, gotUA.Load())

	mime, data, err := raster.DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, img, data)

	_, err = c.Fetch(context.Background(), srv.URL+"/a1q7.png")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second fetch is served from cache")
}

func TestFetchReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{Retries: 0}, nil)
	resp := c.Handle(context.Background(), Request{URL: srv.URL + "/x.png"})
	assert.Empty(t, resp.DataURL)
	assert.Contains(t, resp.Error, "403")
}

func TestFetchStopsAtBodyLimit(t *testing.T) {
	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.URL.Path == "/small.png" {
			_, _ = w.Write(img)
			return
		}
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 64<<10))
	}))
	defer srv.Close()

	c := New(Config{MaxBytes: int64(len(img)) + 16}, nil)
	_, _, err := c.FetchBytes(context.Background(), srv.URL+"/huge.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)

	data, mime, err := c.FetchBytes(context.Background(), srv.URL+"/small.png")
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, "image/png", mime)
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	c := New(DefaultConfig(), nil)
	for _, u := range []string{"", "file:///etc/passwd", "/relative.png", "javascript:alert(1)"} {
		_, err := c.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := newLRU(10)
	c.put("a", []byte("12345"), "x")
	c.put("b", []byte("12345"), "x")
	_, _, ok := c.get("a")
	require.True(t, ok)
	c.put("c", []byte("12345"), "x")

	_, _, ok = c.get("b")
	assert.False(t, ok, "b was least recently used")
	_, _, ok = c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())

	c.put("huge", make([]byte, 11), "x")
	_, _, ok = c.get("huge")
	assert.False(t, ok)

	var disabled *lru
	disabled.put("a", []byte("1"), "x")
	_, _, ok = disabled.get("a")
	assert.False(t, ok)
}

func TestMediaTypeFallsBackToHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "image/svg+xml; charset=utf-8")
	assert.Equal(t, "image/png", mediaType(h, pngBytes(t)))
	assert.Equal(t, "image/x-custom", mediaType(http.Header{"Content-Type": {"image/x-custom"}}, []byte{0x00, 0x01, 0x02, 0x03}))
}
