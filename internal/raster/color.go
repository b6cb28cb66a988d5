package raster

import (
	"image/color"
	"strconv"
	"strings"
)

var (
	White = color.RGBA{0xff, 0xff, 0xff, 0xff}
	Black = color.RGBA{0, 0, 0, 0xff}
)

// ParseHex parses #rgb and #rrggbb colors.
func ParseHex(value string) (color.RGBA, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

// MustHex is ParseHex for constant inputs; invalid values yield black.
func MustHex(value string) color.RGBA {
	c, ok := ParseHex(value)
	if !ok {
		return Black
	}
	return c
}
