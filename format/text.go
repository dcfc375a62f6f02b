package format

import (
	"context"
	"io"
)

// Refined lets a parsed value narrow the media type and extension recorded
// for its match, e.g. an XML document claimed by a vocabulary handler.
type Refined interface {
	RefineMatch() (mediaType, extension string, ok bool)
}

// Text is the signatureless plain-text format. It claims any non-binary
// object and runs last among candidates.
type Text struct{}

// TextContent is the parsed value of a plain-text match.
type TextContent struct {
	Charset string
}

func (Text) Name() string      { return "text" }
func (Text) MediaType() string { return "text/plain" }
func (Text) Extension() string { return "txt" }
func (Text) Signature() []byte { return nil }
func (Text) BinaryOnly() bool  { return false }

func (Text) CheckHeader(h Header) bool {
	return !h.Binary && len(h.Bytes) > 0
}

func (Text) Match(ctx context.Context, r io.Reader, mc *MatchContext) (any, error) {
	return &TextContent{}, nil
}
