// Package page is the boundary to the document being solved. Nodes are
// addressed by the reference attribute stamped on every element when a
// snapshot is taken.
package page

import (
	"context"
	"time"

	"golang.org/x/net/html"
)

// Notification kinds shown by Notify.
const (
	KindInfo     = "info"
	KindProgress = "progress"
	KindSuccess  = "success"
	KindError    = "error"
)

// Feedback colors used by answer application.
const (
	SuccessColor = "#4CAF50"
	FailureColor = "#f44336"
)

// Metrics reports the geometry of a captured container.
type Metrics struct {
	ScrollWidth  int `json:"scrollWidth"`
	ScrollHeight int `json:"scrollHeight"`
	ClientWidth  int `json:"clientWidth"`
	ClientHeight int `json:"clientHeight"`
}

// Shot is an encoded capture of one container.
type Shot struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	Metrics  Metrics
}

// CaptureOptions tunes rasterization.
type CaptureOptions struct {
	// MaxWidth clamps the encoded image width; 0 keeps the native width.
	MaxWidth int
}

// Page is a document that can be inspected and mutated.
type Page interface {
	// Snapshot stamps references on the live document and returns a parsed
	// copy. Mutating the copy does not affect the page.
	Snapshot(ctx context.Context) (*html.Node, error)
	// SetImageSource replaces the source of the image with ref.
	SetImageSource(ctx context.Context, ref, src string) error
	// Reveal scrolls the element into the viewport.
	Reveal(ctx context.Context, ref string) error
	// Capture rasterizes the element's full scrollable extent on white.
	Capture(ctx context.Context, ref string, opts CaptureOptions) (Shot, error)
	// Select checks exactly options[index] after clearing every option and
	// emits change and click notifications on it.
	Select(ctx context.Context, options []string, index int) error
	// Flash outlines the element with color and reverts after d.
	Flash(ctx context.Context, ref, color string, d time.Duration) error
	// Notify shows msg in the floating status box, replacing the previous one.
	Notify(ctx context.Context, msg, kind string) error
	Close() error
}
