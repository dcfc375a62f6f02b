package analysis

import (
	"net/url"
	"path/filepath"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/graph"
)

// FileAnalyzer describes a file node and hands its data object on to the
// data analyzer under a content link.
type FileAnalyzer struct{}

func (FileAnalyzer) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	fn, ok := v.(*entity.FileNode)
	if !ok {
		return nil, nil
	}
	node := fileNodeIdentity(ctx, fn)
	f := ctx.Factory
	if err := f.EmitType(node, classForKind(fn.Kind)); err != nil {
		return nil, err
	}
	if err := f.Emit(node, graph.FileName, fn.Name); err != nil {
		return nil, err
	}
	if !fn.Created.IsZero() {
		if err := f.Emit(node, graph.Created, fn.Created); err != nil {
			return nil, err
		}
	}
	if !fn.Modified.IsZero() {
		if err := f.Emit(node, graph.Modified, fn.Modified); err != nil {
			return nil, err
		}
	}
	if !fn.Accessed.IsZero() {
		if err := f.Emit(node, graph.Accessed, fn.Accessed); err != nil {
			return nil, err
		}
	}
	if fn.Revision != "" {
		if err := f.Emit(node, graph.Revision, fn.Revision); err != nil {
			return nil, err
		}
	}
	if fn.Data != nil {
		childCtx := ctx.WithParentLink(node, graph.Content).WithPath(fn.Name)
		if !ctx.Input.Valid() {
			childCtx.Input = node
		}
		if _, err := d.Analyze(childCtx, fn.Data); err != nil {
			return &Result{Node: node, Label: fn.Name}, err
		}
	}
	return &Result{Node: node, Label: fn.Name}, nil
}

// DirectoryAnalyzer describes a directory node and dispatches its ordered
// children under hasPart links.
type DirectoryAnalyzer struct{}

func (DirectoryAnalyzer) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	dir, ok := v.(*entity.DirectoryNode)
	if !ok {
		return nil, nil
	}
	node := fileNodeIdentity(ctx, &dir.FileNode)
	f := ctx.Factory
	if err := f.EmitType(node, graph.ClassFolder); err != nil {
		return nil, err
	}
	if err := f.Emit(node, graph.FileName, dir.Name); err != nil {
		return nil, err
	}
	for _, child := range dir.Children {
		if ctx.Cancelled() {
			return &Result{Node: node, Directive: Cancelled}, nil
		}
		childCtx := ctx.WithParentLink(node, graph.HasPart).WithPath(child.Name).Deeper()
		res, err := d.Analyze(childCtx, child)
		if err != nil {
			continue
		}
		if res != nil && res.Node.Valid() {
			if err := f.EmitNode(res.Node, graph.BelongsToContainer, node); err != nil {
				return nil, err
			}
		}
	}
	return &Result{Node: node, Label: dir.Name}, nil
}

// fileNodeIdentity mints the structural node for a file: container-relative
// under a parent, file URL at the pipeline edge.
func fileNodeIdentity(ctx Context, fn *entity.FileNode) graph.Node {
	if ctx.HasParent {
		return ctx.Factory.Child(ctx.Parent, fn.Name)
	}
	abs := fn.Path
	if a, err := filepath.Abs(abs); err == nil {
		abs = a
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return ctx.Factory.Node(u.String())
}

func classForKind(k entity.Kind) graph.Term {
	switch k {
	case entity.KindArchiveItem:
		return graph.ClassArchiveItem
	case entity.KindEmbedded:
		return graph.ClassEmbedded
	case entity.KindDirectory:
		return graph.ClassFolder
	}
	return graph.ClassFileDataObject
}
