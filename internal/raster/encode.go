package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Clamp scales img down to maxWidth keeping the aspect ratio. Images already
// narrow enough are returned as is.
func Clamp(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= 0 || h <= 0 || w <= maxWidth {
		return img
	}
	scaledH := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if scaledH < 1 {
		scaledH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, scaledH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Flatten composites img over an opaque white background.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func EncodePNG(img image.Image) ([]byte, error) {
	var out bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Normalize decodes a captured image, clamps it to maxWidth and re-encodes it
// as an opaque PNG.
func Normalize(data []byte, maxWidth int) ([]byte, image.Rectangle, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	out := Flatten(Clamp(img, maxWidth))
	enc, err := EncodePNG(out)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	return enc, out.Bounds(), nil
}

// DataURI returns a base64 data URI for data.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var errNotDataURI = errors.New("not a data uri")

// DecodeDataURI splits data:[<mediatype>][;base64],<data>.
func DecodeDataURI(uri string) (string, []byte, error) {
	comma := strings.IndexByte(uri, ',')
	if !strings.HasPrefix(uri, "data:") || comma == -1 {
		return "", nil, errNotDataURI
	}
	meta := uri[len("data:"):comma]
	payload := uri[comma+1:]
	mime := meta
	if i := strings.IndexByte(meta, ';'); i >= 0 {
		mime = meta[:i]
	}
	if strings.Contains(meta, ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, err
		}
		return mime, raw, nil
	}
	return mime, []byte(payload), nil
}
