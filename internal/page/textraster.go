package page

import (
	"strings"

	"golang.org/x/net/html"

	"mcqsolver/internal/dom"
	"mcqsolver/internal/raster"
)

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "label": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tr": true, "ul": true,
}

var hiddenTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

// TextRasterizer renders the visible text of a container, one block per
// line, with radio inputs drawn as "( )" or "(o)" and images as markers.
func TextRasterizer(n *html.Node, opts CaptureOptions) (Shot, error) {
	lines := containerLines(n)
	width := 640
	if opts.MaxWidth > 0 && opts.MaxWidth < width {
		width = opts.MaxWidth
	}
	img := raster.RenderText(lines, raster.TextOptions{Width: width, Padding: 12})
	data, err := raster.EncodePNG(img)
	if err != nil {
		return Shot{}, err
	}
	b := img.Bounds()
	return Shot{
		Data:     data,
		MIMEType: "image/png",
		Width:    b.Dx(),
		Height:   b.Dy(),
		Metrics:  Metrics{ScrollWidth: b.Dx(), ScrollHeight: b.Dy(), ClientWidth: b.Dx(), ClientHeight: b.Dy()},
	}, nil
}

func containerLines(root *html.Node) []string {
	var lines []string
	var cur strings.Builder
	flush := func() {
		if t := strings.Join(strings.Fields(cur.String()), " "); t != "" {
			lines = append(lines, t)
		}
		cur.Reset()
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if hiddenTags[tag] {
				return
			}
			switch {
			case dom.IsRadio(n):
				if dom.HasAttr(n, "checked") {
					cur.WriteString("(o) ")
				} else {
					cur.WriteString("( ) ")
				}
				return
			case tag == "img":
				alt := strings.TrimSpace(dom.GetAttr(n, "alt"))
				if alt == "" {
					alt = "image"
				}
				cur.WriteString("[" + alt + "] ")
				return
			}
			if blockTags[tag] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	flush()
	return lines
}
