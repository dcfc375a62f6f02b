// Package format declares the file-format plug-in contract and the header
// matcher that narrows an unknown byte stream to candidate formats without
// reading the stream once per detector. Detectors are indexed by their byte
// signature in a prefix trie; signatureless catch-all formats run last.
package format

import (
	"context"
	"io"
	"sort"

	"github.com/glyphic/descry/entity"
)

// Header is the inspected head window of a data object.
type Header struct {
	Bytes   []byte
	Short   bool
	Binary  bool
	Charset string
}

// MatchContext carries per-attempt state shared by all detectors probing one
// data object: the accumulated path, the enclosing format, harvested XML
// namespaces, and a factory for opening fresh readers over the same bytes.
type MatchContext struct {
	Path       string
	Parent     entity.FormatRef
	Namespaces map[string]string
	Open       entity.StreamFactory
	Size       int64
}

// Format is the detector contract. Signature may be nil for formats that are
// recognized by content inspection only; those advertise acceptance through
// CheckHeader and are queried after every signature match.
type Format interface {
	entity.FormatRef

	// Signature returns the leading magic bytes, or nil.
	Signature() []byte

	// BinaryOnly reports whether the format only claims binary objects.
	// Binary-only formats are dropped for non-binary heads; other formats
	// are offered for every head, and text formats veto binary heads in
	// CheckHeader.
	BinaryOnly() bool

	// CheckHeader may veto a candidate cheaply before Match runs.
	CheckHeader(h Header) bool

	// Match parses the object. A nil value with a nil error means the
	// detector does not claim the data.
	Match(ctx context.Context, r io.Reader, mc *MatchContext) (any, error)
}

// Registry indexes formats by signature for O(|header|) candidate lookup.
type Registry struct {
	root     *trieNode
	catchall []Format
}

type trieNode struct {
	children map[byte]*trieNode
	formats  []Format
}

// NewRegistry builds a registry over the given formats.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{root: &trieNode{}}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// Register adds a format to the index.
func (r *Registry) Register(f Format) {
	sig := f.Signature()
	if len(sig) == 0 {
		r.catchall = append(r.catchall, f)
		return
	}
	node := r.root
	for _, b := range sig {
		if node.children == nil {
			node.children = map[byte]*trieNode{}
		}
		next := node.children[b]
		if next == nil {
			next = &trieNode{}
			node.children[b] = next
		}
		node = next
	}
	node.formats = append(node.formats, f)
}

// Candidates returns the formats whose signature prefixes the header, ordered
// by specificity: longer signatures first, then signatureless formats in
// registration order. Candidates vetoed by CheckHeader or by the binary/text
// gate are dropped.
func (r *Registry) Candidates(h Header) []Format {
	type ranked struct {
		f     Format
		depth int
	}
	var sigged []ranked
	node := r.root
	for depth := 0; node != nil; depth++ {
		for _, f := range node.formats {
			sigged = append(sigged, ranked{f, depth})
		}
		if depth >= len(h.Bytes) || node.children == nil {
			break
		}
		node = node.children[h.Bytes[depth]]
	}
	sort.SliceStable(sigged, func(i, j int) bool { return sigged[i].depth > sigged[j].depth })

	var out []Format
	for _, c := range sigged {
		if r.admit(c.f, h) {
			out = append(out, c.f)
		}
	}
	for _, f := range r.catchall {
		if r.admit(f, h) {
			out = append(out, f)
		}
	}
	return out
}

func (r *Registry) admit(f Format, h Header) bool {
	if f.BinaryOnly() && !h.Binary {
		return false
	}
	return f.CheckHeader(h)
}
