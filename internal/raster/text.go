// Package raster draws the placeholder and text images used when a real
// browser rasterizer is not available, and normalizes captured screenshots.
package raster

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder geometry used when the image element carries no size.
const (
	PlaceholderWidth  = 400
	PlaceholderHeight = 300
)

var (
	placeholderFill   = MustHex("#f0f0f0")
	placeholderBorder = MustHex("#ccc")
	placeholderTitle  = MustHex("#666")
	placeholderNote   = MustHex("#999")
)

// Placeholder draws the stand-in for an image that could not be fetched.
func Placeholder(w, h int, question string) *image.RGBA {
	if w <= 0 {
		w = PlaceholderWidth
	}
	if h <= 0 {
		h = PlaceholderHeight
	}
	if question == "" {
		question = "?"
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBorder), image.Point{}, draw.Src)
	if w > 4 && h > 4 {
		draw.Draw(img, image.Rect(2, 2, w-2, h-2), image.NewUniform(placeholderFill), image.Point{}, draw.Src)
	}
	drawCentered(img, "Question "+question, h*40/100, placeholderTitle)
	drawCentered(img, "Image not accessible", h*60/100, placeholderNote)
	return img
}

// PlaceholderPNG is Placeholder encoded as PNG.
func PlaceholderPNG(w, h int, question string) ([]byte, error) {
	return EncodePNG(Placeholder(w, h, question))
}

func drawCentered(dst draw.Image, s string, y int, c color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s).Ceil()
	x := (dst.Bounds().Dx() - width) / 2
	if x < 0 {
		x = 0
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face, Dot: fixed.P(x, y)}
	d.DrawString(s)
}

// TextOptions controls RenderText.
type TextOptions struct {
	Width   int
	Padding int
	// Border is drawn around the image when set.
	Border color.Color
}

const lineHeight = 16

// RenderText lays out lines with word wrapping on a white canvas. It stands in
// for a layout engine when only the document tree is available.
func RenderText(lines []string, opts TextOptions) *image.RGBA {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	face := basicfont.Face7x13
	maxText := opts.Width - 2*opts.Padding
	var wrapped []string
	for _, l := range lines {
		wrapped = append(wrapped, wrap(face, l, maxText)...)
	}
	if len(wrapped) == 0 {
		wrapped = []string{""}
	}
	h := 2*opts.Padding + len(wrapped)*lineHeight
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(White), image.Point{}, draw.Src)
	if opts.Border != nil {
		strokeRect(img, opts.Border)
	}
	d := &font.Drawer{Dst: img, Src: image.NewUniform(Black), Face: face}
	for i, l := range wrapped {
		d.Dot = fixed.P(opts.Padding, opts.Padding+(i+1)*lineHeight-4)
		d.DrawString(l)
	}
	return img
}

func strokeRect(img *image.RGBA, c color.Color) {
	b := img.Bounds()
	u := image.NewUniform(c)
	draw.Draw(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+1), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Min.X, b.Max.Y-1, b.Max.X, b.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Max.X-1, b.Min.Y, b.Max.X, b.Max.Y), u, image.Point{}, draw.Src)
}

func wrap(face font.Face, s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	line := ""
	for _, w := range words {
		next := w
		if line != "" {
			next = line + " " + w
		}
		if line != "" && font.MeasureString(face, next).Ceil() > width {
			out = append(out, line)
			line = w
			continue
		}
		line = next
	}
	return append(out, line)
}
