package analysis

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/glyphic/descry/digest"
	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
	"github.com/glyphic/descry/graph"
	"github.com/glyphic/descry/stream"
)

// DefaultValueLimit is the size up to which an object's content is also
// embedded as a literal.
const DefaultValueLimit = 256

// ErrNoStream is returned for data objects without a byte source.
var ErrNoStream = errors.New("analysis: data object has no stream")

// CharsetDetector names the character encoding of a textual head window.
// It is a pluggable step reading the same bytes as format detection.
type CharsetDetector func(head []byte) string

// DataAnalyzer describes an opaque byte blob: it multiplexes one read over
// the configured digest sinks, detects the format candidates from the head
// window, invokes each candidate in specificity order, and emits the
// object's identity, size, encoding, digest and format triples.
type DataAnalyzer struct {
	Registry     *format.Registry
	Algorithms   []digest.Algorithm
	ValueLimit   int
	Observer     Observer
	Materializer Materializer
	Charset      CharsetDetector

	log *logrus.Entry
}

// NewDataAnalyzer builds the analyzer over a registry and algorithm set.
// The first algorithm mints the content node identity.
func NewDataAnalyzer(reg *format.Registry, algos []digest.Algorithm, obs Observer) *DataAnalyzer {
	if len(algos) == 0 {
		algos = digest.Default()
	}
	return &DataAnalyzer{
		Registry:   reg,
		Algorithms: algos,
		ValueLimit: DefaultValueLimit,
		Observer:   obs,
		Charset:    format.DetectCharset,
		log:        logrus.WithField("component", "data"),
	}
}

type matchFailure struct {
	format string
	err    error
}

func (a *DataAnalyzer) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	do, ok := v.(*entity.DataObject)
	if !ok {
		return nil, nil
	}
	var raw io.Reader
	switch {
	case do.Open != nil:
		rc, err := do.Open(ctx.Ctx)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		raw = rc
	case do.Stream != nil:
		raw = do.Stream
	default:
		return nil, ErrNoStream
	}
	src := stream.New(raw, a.Algorithms)
	head, short, err := src.Head(stream.MaxHeaderBytes)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	hdr := format.Header{Bytes: head, Short: short, Binary: format.IsBinary(head)}
	if !hdr.Binary && a.Charset != nil {
		hdr.Charset = a.Charset(head)
	}

	matches, failures := a.matchFormats(ctx, do, src, hdr)

	digests, total, err := src.Finalize(ctx.Ctx)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	if a.Observer != nil {
		a.Observer.BytesHashed(total)
	}

	do.IsBinary = hdr.Binary
	do.Charset = hdr.Charset
	do.Length = total
	do.Digests = digests
	do.Formats = matches

	primary := a.Algorithms[0]
	node := ctx.Factory.ContentNode(primary, digests[string(primary.ID())])

	// Content-addressed dedup: a subject already described (for example by
	// an overlapping format's child tree) is linked but not re-described.
	if !ctx.Factory.Once(node.URI) {
		return &Result{Node: node}, nil
	}
	if err := a.emit(ctx, node, do, failures); err != nil {
		return &Result{Node: node}, err
	}

	// Per-format children, after the object's own triples.
	for _, m := range matches {
		fo := &entity.FormatObject{Match: m, Data: do}
		if _, err := d.Analyze(ctx.WithParentLink(node, graph.HasFormat), fo); err != nil {
			a.log.WithField("format", m.Format.Name()).WithError(err).Warn("format analysis failed")
		}
	}
	if len(matches) == 0 && total > 0 {
		if imp := format.Improvise(hdr); imp != nil {
			fo := &entity.FormatObject{
				Match: entity.FormatMatch{
					Format:    imp,
					Value:     imp,
					MediaType: imp.MediaType(),
					Extension: imp.Extension(),
				},
				Data: do,
			}
			if _, err := d.Analyze(ctx.WithParentLink(node, graph.HasFormat), fo); err != nil {
				a.log.WithError(err).Warn("improvised format analysis failed")
			}
		}
	}
	if a.Materializer != nil && ctx.Depth > 0 {
		if err := a.Materializer.Materialize(ctx, node, do); err != nil {
			a.log.WithError(err).Warn("materialization failed")
		}
	}
	return &Result{Node: node}, nil
}

// matchFormats runs every candidate over the object. Matching over the one
// shared cursor is serialized; when the object has a stream factory each
// candidate gets a fresh cursor instead so random-access parsers can work
// while the multiplexer hashes independently.
func (a *DataAnalyzer) matchFormats(ctx Context, do *entity.DataObject, src *stream.Source, hdr format.Header) ([]entity.FormatMatch, []matchFailure) {
	mc := format.MatchContext{}
	if ctx.Match != nil {
		mc = *ctx.Match
	}
	if mc.Namespaces == nil {
		mc.Namespaces = map[string]string{}
	}
	mc.Open = do.Open
	mc.Size = do.Length

	var matches []entity.FormatMatch
	var failures []matchFailure
	for _, f := range a.Registry.Candidates(hdr) {
		if ctx.Cancelled() {
			break
		}
		var r io.Reader
		var closer io.Closer
		if do.Open != nil {
			fresh, err := do.Open(ctx.Ctx)
			if err != nil {
				failures = append(failures, matchFailure{f.Name(), err})
				continue
			}
			r = fresh
			closer = fresh
		} else {
			if err := src.Rewind(); err != nil {
				// A previous matcher consumed past the head window and
				// the source is not reopenable; stop probing.
				break
			}
			r = src.Reader()
		}
		val, err := safeMatch(ctx, f, r, &mc)
		if closer != nil {
			closer.Close()
		}
		if err != nil {
			failures = append(failures, matchFailure{f.Name(), err})
			continue
		}
		if val == nil {
			continue
		}
		m := entity.FormatMatch{
			Format:    f,
			Value:     val,
			MediaType: f.MediaType(),
			Extension: f.Extension(),
		}
		if refined, ok := val.(format.Refined); ok {
			if mt, ext, ok := refined.RefineMatch(); ok {
				m.MediaType, m.Extension = mt, ext
			}
		}
		if tc, ok := val.(*format.TextContent); ok {
			tc.Charset = hdr.Charset
		}
		matches = append(matches, m)
	}
	return matches, failures
}

// safeMatch contains detector panics so one faulty matcher cannot take the
// rest of the candidate list down with it.
func safeMatch(ctx Context, f format.Format, r io.Reader, mc *format.MatchContext) (val any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			val = nil
			err = fmt.Errorf("matcher panic: %v", rec)
		}
	}()
	return f.Match(ctx.Ctx, r, mc)
}

// emit writes the object's triples in pipeline order: identity class, size
// and encoding, embedded value, digests, then contained match failures.
func (a *DataAnalyzer) emit(ctx Context, node graph.Node, do *entity.DataObject, failures []matchFailure) error {
	f := ctx.Factory
	class := graph.ClassTextContent
	if do.IsBinary {
		class = graph.ClassBinaryContent
	}
	if err := f.EmitType(node, graph.ClassContent); err != nil {
		return err
	}
	if err := f.EmitType(node, class); err != nil {
		return err
	}
	if err := f.Emit(node, graph.Extent, do.Length); err != nil {
		return err
	}
	if len(do.Formats) > 0 {
		if err := f.EmitURI(node, graph.EncodingFormat, graph.MediaTypeURI(do.Formats[0].MediaType)); err != nil {
			return err
		}
	}
	if do.Charset != "" {
		if err := f.Emit(node, graph.CharacterEncoding, do.Charset); err != nil {
			return err
		}
	}
	if do.Length > 0 && do.Length <= int64(a.valueLimit()) {
		if err := a.emitValue(ctx, node, do); err != nil {
			return err
		}
	}
	for _, alg := range a.Algorithms {
		sum := do.Digests[string(alg.ID())]
		digestNode := f.ContentNode(alg, sum)
		if digestNode.URI != node.URI {
			if err := f.EmitNode(node, graph.HasDigest, digestNode); err != nil {
				return err
			}
		}
		if err := f.Emit(digestNode, graph.DigestAlgorithm, string(alg.ID())); err != nil {
			return err
		}
		if err := f.EmitLiteral(digestNode, graph.DigestValue, graph.Literal{Kind: graph.LitBase64, Bytes: sum}); err != nil {
			return err
		}
	}
	for _, fail := range failures {
		a.log.WithFields(logrus.Fields{"format": fail.format, "path": matchPath(ctx)}).
			WithError(fail.err).Warn("format parser failed; object described without it")
		if a.Observer != nil {
			a.Observer.EntityFailed("match:" + fail.format)
		}
		if err := f.Emit(node, graph.Description, fmt.Sprintf("format %s: %v", fail.format, fail.err)); err != nil {
			return err
		}
		if ctx.Input.Valid() {
			if err := f.EmitNode(node, graph.WasDerivedFrom, ctx.Input); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitValue embeds small content as a literal: text as characters, binary
// as base64 bytes. The content is read again through the object's stream
// factory; objects without one are not embedded.
func (a *DataAnalyzer) emitValue(ctx Context, node graph.Node, do *entity.DataObject) error {
	if do.Open == nil {
		return nil
	}
	rc, err := do.Open(ctx.Ctx)
	if err != nil {
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, do.Length))
	if err != nil || int64(len(data)) != do.Length {
		return nil
	}
	if do.IsBinary {
		return ctx.Factory.Emit(node, graph.Value, data)
	}
	return ctx.Factory.Emit(node, graph.Value, string(data))
}

func (a *DataAnalyzer) valueLimit() int {
	if a.ValueLimit > 0 {
		return a.ValueLimit
	}
	return DefaultValueLimit
}
