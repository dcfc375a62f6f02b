// Package image provides image format probes that surface pixel metadata
// without decoding pixel data.
package image

import (
	"context"
	"fmt"
	"image/png"
	"io"

	"github.com/glyphic/descry/format"
)

// PNG probes PNG images for their dimensions.
type PNG struct{}

func (PNG) Name() string      { return "png" }
func (PNG) MediaType() string { return "image/png" }
func (PNG) Extension() string { return "png" }
func (PNG) Signature() []byte {
	return []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
}
func (PNG) BinaryOnly() bool { return true }

func (PNG) CheckHeader(h format.Header) bool { return true }

func (PNG) Match(ctx context.Context, r io.Reader, mc *format.MatchContext) (any, error) {
	cfg, err := png.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}
	return &Metadata{Width: cfg.Width, Height: cfg.Height}, nil
}

// Metadata is the parsed value of an image match.
type Metadata struct {
	Width  int
	Height int
}
