package analysis

import (
	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
	"github.com/glyphic/descry/format/image"
	"github.com/glyphic/descry/graph"
)

// FormatAnalyzer describes a successful format match and dispatches the
// parsed value so format-specific analyzers and container descent run over
// it. The format node hangs under the content node.
type FormatAnalyzer struct{}

func (FormatAnalyzer) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	fo, ok := v.(*entity.FormatObject)
	if !ok {
		return nil, nil
	}
	f := ctx.Factory
	node := f.Child(ctx.Parent, fo.Match.Format.Name())

	class := graph.ClassFormat
	if _, improvised := fo.Match.Value.(*format.Improvised); improvised {
		class = graph.ClassImprovisedFormat
	}
	if err := f.EmitType(node, class); err != nil {
		return nil, err
	}
	if err := f.Emit(node, graph.PrefLabel, fo.Match.Format.Name()); err != nil {
		return nil, err
	}
	if fo.Match.MediaType != "" {
		if err := f.EmitURI(node, graph.EncodingFormat, graph.MediaTypeURI(fo.Match.MediaType)); err != nil {
			return nil, err
		}
	}
	if fo.Match.Extension != "" {
		if err := f.Emit(node, graph.Extension, fo.Match.Extension); err != nil {
			return nil, err
		}
	}

	// The parsed value is analyzed with the format node as its primary
	// node, so value analyzers attach their properties here and container
	// descent links members to this node.
	res := &Result{Node: node, Label: fo.Match.Format.Name()}
	vctx := ctx
	vctx.Parent = node
	vctx.HasParent = true
	vctx.ParentLink = graph.Term{}
	vctx.Node = node
	vctx.HasNode = true
	inner, err := d.Analyze(vctx, fo.Match.Value)
	if err != nil {
		return res, err
	}
	if inner != nil {
		res.Directive = Combine(res.Directive, inner.Directive)
	}
	return res, nil
}

// XMLAnalyzer attaches declaration attributes and the root namespace of a
// parsed XML document to its format node.
type XMLAnalyzer struct{}

var xmlFields = FieldMap{
	"Version":  graph.XMLVersion,
	"Encoding": graph.XMLEncoding,
}

func (XMLAnalyzer) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	doc, ok := v.(*format.Document)
	if !ok {
		return nil, nil
	}
	node := ctx.Node
	f := ctx.Factory
	if err := f.EmitType(node, graph.ClassXMLDocument); err != nil {
		return nil, err
	}
	if err := EmitFields(f, node, xmlFields, map[string]any{
		"Version":  doc.Version,
		"Encoding": doc.Encoding,
	}); err != nil {
		return nil, err
	}
	if doc.Root.Space != "" {
		if err := f.EmitURI(node, graph.RootNamespace, doc.Root.Space); err != nil {
			return nil, err
		}
	}
	if doc.PublicID != "" {
		if err := f.Emit(node, graph.PublicID, doc.PublicID); err != nil {
			return nil, err
		}
	}
	return &Result{Node: node}, nil
}

// ImageAnalyzer surfaces pixel metadata through a static field table.
type ImageAnalyzer struct{}

var imageFields = FieldMap{
	"Width":  graph.Width,
	"Height": graph.Height,
}

func (ImageAnalyzer) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	meta, ok := v.(*image.Metadata)
	if !ok {
		return nil, nil
	}
	node := ctx.Node
	f := ctx.Factory
	if err := f.EmitType(node, graph.ClassImage); err != nil {
		return nil, err
	}
	if err := EmitFields(f, node, imageFields, map[string]any{
		"Width":  meta.Width,
		"Height": meta.Height,
	}); err != nil {
		return nil, err
	}
	return &Result{Node: node}, nil
}
