// Package capture provides the screen capture leaf used by the
// advice cycle.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"github.com/kbinani/screenshot"
)

// DefaultMinBytes is the smallest buffer accepted as a plausible
// screenshot. Anything under it is a capture failure, not a valid
// empty screen.
const DefaultMinBytes = 1000

// ErrNoDisplay is returned when no display is available to capture.
var ErrNoDisplay = errors.New("no active display to capture")

// Capturer produces a raw PNG snapshot of the user's screen on demand.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Display captures the primary display through the OS capture primitive.
type Display struct{}

func NewDisplay() *Display {
	return &Display{}
}

func (d *Display) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if screenshot.NumActiveDisplays() < 1 {
		return nil, ErrNoDisplay
	}
	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return nil, fmt.Errorf("capture display: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Static returns fixed bytes, used by tests.
type Static struct {
	Data []byte
	Err  error
}

func (s Static) Capture(ctx context.Context) ([]byte, error) {
	return s.Data, s.Err
}

// Valid reports whether buf is a plausible screenshot.
func Valid(buf []byte, minBytes int) bool {
	if minBytes < 1 {
		minBytes = DefaultMinBytes
	}
	return len(buf) >= minBytes
}
