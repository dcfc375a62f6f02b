package analysis

import (
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
	"github.com/glyphic/descry/graph"
)

var errSkipSiblings = errors.New("analysis: skip remaining siblings")

// ContainerEngine descends a parsed container: every member re-enters the
// pipeline as a child entity with correct parent linkage, missing
// intermediate directories are synthesized, and back-references on the
// current descent stack short-circuit to their existing nodes.
type ContainerEngine struct {
	Observer Observer

	log *logrus.Entry
}

// NewContainerEngine builds the engine.
func NewContainerEngine(obs Observer) *ContainerEngine {
	return &ContainerEngine{
		Observer: obs,
		log:      logrus.WithField("component", "container"),
	}
}

func (e *ContainerEngine) Analyze(ctx Context, v any, d *Dispatcher) (*Result, error) {
	c, ok := v.(format.Container)
	if !ok {
		return nil, nil
	}
	node := ctx.Node
	if !ctx.HasNode {
		node = ctx.Parent
	}
	if ctx.MaxDepth > 0 && ctx.Depth >= ctx.MaxDepth {
		e.log.WithField("depth", ctx.Depth).Debug("max depth reached; skipping members")
		return &Result{Node: node, Directive: SkipChildren}, nil
	}
	if err := ctx.Factory.EmitType(node, graph.ClassArchive); err != nil {
		return nil, err
	}
	if e.Observer != nil {
		e.Observer.ContainerDescended()
	}
	if ctx.Keys == nil {
		ctx.Keys = NewKeyStack()
	}

	walk := &descent{
		engine: e,
		ctx:    ctx,
		d:      d,
		node:   node,
		dirs:   map[string]graph.Node{},
	}
	if pc, ok := c.(format.ParallelContainer); ok && pc.Parallel() && ctx.Burst > 1 {
		return walk.burst(c)
	}
	return walk.sequential(c)
}

// descent is the per-container walk state: the path to directory-node map
// and the directive accumulated across members.
type descent struct {
	engine *ContainerEngine
	ctx    Context
	d      *Dispatcher
	node   graph.Node
	dirs   map[string]graph.Node

	mu       sync.Mutex
	skipped  []string
	combined Directive
}

func (w *descent) sequential(c format.Container) (*Result, error) {
	w.combined = None
	err := c.Entries(w.ctx.Ctx, func(entry format.ContainerEntry) error {
		if w.ctx.Cancelled() {
			w.combined = Combine(w.combined, Cancelled)
			return w.ctx.Ctx.Err()
		}
		dir, err := w.child(entry)
		if err != nil {
			return err
		}
		w.combined = Combine(w.combined, dir)
		if dir == SkipSiblings {
			return errSkipSiblings
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSkipSiblings) {
		if w.ctx.Cancelled() {
			return &Result{Node: w.node, Directive: Cancelled}, nil
		}
		return &Result{Node: w.node, Directive: w.combined}, err
	}
	return &Result{Node: w.node, Directive: w.combined}, nil
}

// burst collects the member list, synthesizes directories in order, then
// descends file members concurrently.
func (w *descent) burst(c format.Container) (*Result, error) {
	var files []format.ContainerEntry
	err := c.Entries(w.ctx.Ctx, func(entry format.ContainerEntry) error {
		if entry.Dir {
			_, err := w.child(entry)
			return err
		}
		files = append(files, entry)
		return nil
	})
	if err != nil {
		return &Result{Node: w.node, Directive: w.combined}, err
	}
	g, gctx := errgroup.WithContext(w.ctx.Ctx)
	g.SetLimit(w.ctx.Burst)
	for _, entry := range files {
		entry := entry
		g.Go(func() error {
			ctx := w.ctx
			ctx.Ctx = gctx
			dir, err := w.childIn(ctx, entry)
			w.mu.Lock()
			w.combined = Combine(w.combined, dir)
			w.mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errSkipSiblings) {
		return &Result{Node: w.node, Directive: w.combined}, err
	}
	return &Result{Node: w.node, Directive: w.combined}, nil
}

func (w *descent) child(entry format.ContainerEntry) (Directive, error) {
	return w.childIn(w.ctx, entry)
}

func (w *descent) childIn(ctx Context, entry format.ContainerEntry) (Directive, error) {
	if w.isSkipped(entry.Path) {
		return None, nil
	}
	f := ctx.Factory

	// Back-reference on the current stack: link the existing node, no
	// recursion.
	if existing, ok := ctx.Keys.Lookup(entry.Key); ok {
		if err := f.EmitNode(w.node, graph.HasPart, existing); err != nil {
			return None, err
		}
		return SkipChildren, nil
	}

	parentNode := w.parentFor(entry.Path)

	if entry.Dir {
		dirNode := f.Child(parentNode, entry.Name)
		w.recordDir(entry.Path, dirNode)
		if err := f.EmitType(dirNode, graph.ClassFolder); err != nil {
			return None, err
		}
		if err := f.Emit(dirNode, graph.FileName, entry.Name); err != nil {
			return None, err
		}
		if err := w.link(parentNode, dirNode); err != nil {
			return None, err
		}
		return FollowChildren, nil
	}

	fn := &entity.FileNode{
		Name:     entry.Name,
		Path:     entry.Path,
		Modified: entry.Modified,
		Kind:     entity.KindArchiveItem,
		Key:      entry.Key,
	}
	if entry.Open != nil {
		fn.Data = &entity.DataObject{Open: entry.Open, Length: entry.Size}
	}

	childNode := f.Child(parentNode, entry.Name)
	entered := ctx.Keys.Enter(entry.Key, childNode)
	if entered {
		defer ctx.Keys.Leave(entry.Key)
	}

	childCtx := ctx.Deeper()
	childCtx.Parent = parentNode
	childCtx.HasParent = true
	childCtx.ParentLink = graph.Term{}
	childCtx.Node = graph.Node{}
	childCtx.HasNode = false
	res, err := w.d.Analyze(childCtx, fn)
	if err != nil {
		w.engine.log.WithFields(logrus.Fields{"member": entry.Path}).
			WithError(err).Warn("member analysis failed")
	}
	directive := FollowChildren
	if res != nil {
		if res.Directive != None {
			directive = res.Directive
		}
		if res.Node.Valid() {
			if err := w.link(parentNode, res.Node); err != nil {
				return directive, err
			}
		}
	}
	if directive == SkipChildren {
		w.markSkipped(entry.Path)
	}
	return directive, nil
}

// link emits the structural pair between a container level and a member.
func (w *descent) link(parentNode, childNode graph.Node) error {
	if err := w.ctx.Factory.EmitNode(parentNode, graph.HasPart, childNode); err != nil {
		return err
	}
	return w.ctx.Factory.EmitNode(childNode, graph.BelongsToContainer, parentNode)
}

// parentFor resolves the node a member hangs under, synthesizing the
// intermediate directories that archives omit.
func (w *descent) parentFor(path string) graph.Node {
	dir := parentPath(path)
	if dir == "" {
		return w.node
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureDirLocked(dir)
}

func (w *descent) ensureDirLocked(dir string) graph.Node {
	if n, ok := w.dirs[dir]; ok {
		return n
	}
	parent := w.node
	if up := parentPath(dir); up != "" {
		parent = w.ensureDirLocked(up)
	}
	name := dir
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		name = dir[i+1:]
	}
	node := w.ctx.Factory.Child(parent, name)
	w.dirs[dir] = node
	w.ctx.Factory.EmitType(node, graph.ClassFolder)
	w.ctx.Factory.Emit(node, graph.FileName, name)
	w.ctx.Factory.EmitNode(parent, graph.HasPart, node)
	w.ctx.Factory.EmitNode(node, graph.BelongsToContainer, parent)
	return node
}

func (w *descent) recordDir(path string, node graph.Node) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirs[path] = node
}

func (w *descent) markSkipped(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skipped = append(w.skipped, path+"/")
}

func (w *descent) isSkipped(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, prefix := range w.skipped {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}
