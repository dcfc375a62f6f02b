package analysis

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/graph"
)

// Result is what one analyzer produced for an entity.
type Result struct {
	Node      graph.Node
	Label     string
	Directive Directive
}

// Analyzer is the plug-in contract: analyze an entity under a context,
// recursing through the dispatcher for derived entities. A nil result with
// a nil error means "not applicable".
type Analyzer interface {
	Analyze(ctx Context, v any, d *Dispatcher) (*Result, error)
}

// Materializer decides whether a contained entity's bytes are written out
// to disk and performs the write. The data analyzer consults it for every
// nested data object after the object's triples are emitted.
type Materializer interface {
	Materialize(ctx Context, node graph.Node, do *entity.DataObject) error
}

// Observer receives pipeline events for metrics. A nil observer is valid.
type Observer interface {
	EntityProcessed()
	EntityFailed(stage string)
	ContainerDescended()
	BytesHashed(n int64)
}

type registration struct {
	typ reflect.Type
	a   Analyzer
}

// Dispatcher routes an entity to every analyzer whose registered type
// matches, most specific first: exact concrete types, then interfaces.
// Multiple analyzers per type run in registration order; the first produced
// node is the entity's primary node and later analyzers receive it through
// the context.
type Dispatcher struct {
	concrete   []registration
	interfaces []registration
	obs        Observer
	log        *logrus.Entry
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher(obs Observer) *Dispatcher {
	return &Dispatcher{
		obs: obs,
		log: logrus.WithField("component", "dispatcher"),
	}
}

// Register binds an analyzer to the concrete type of sample (a pointer
// value, e.g. (*entity.FileNode)(nil)).
func (d *Dispatcher) Register(sample any, a Analyzer) {
	d.concrete = append(d.concrete, registration{typ: reflect.TypeOf(sample), a: a})
}

// RegisterInterface binds an analyzer to an interface type given as a
// pointer-to-interface sample, e.g. (*format.Container)(nil).
func (d *Dispatcher) RegisterInterface(sample any, a Analyzer) {
	typ := reflect.TypeOf(sample).Elem()
	d.interfaces = append(d.interfaces, registration{typ: typ, a: a})
}

// Analyze runs every claiming analyzer over v, merging results. Analyzer
// errors and panics are contained: they are reported, attached to the
// entity when a node exists, and remaining analyzers still run.
func (d *Dispatcher) Analyze(ctx Context, v any) (*Result, error) {
	if ctx.Cancelled() {
		return &Result{Directive: Cancelled}, ctx.Ctx.Err()
	}
	if v == nil {
		return nil, nil
	}
	vt := reflect.TypeOf(v)
	var claimed []registration
	for _, r := range d.concrete {
		if r.typ == vt {
			claimed = append(claimed, r)
		}
	}
	for _, r := range d.interfaces {
		if vt.Implements(r.typ) {
			claimed = append(claimed, r)
		}
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	merged := &Result{}
	havePrimary := false
	for _, r := range claimed {
		if ctx.Cancelled() {
			merged.Directive = Combine(merged.Directive, Cancelled)
			break
		}
		res, err := d.invoke(ctx, v, r.a)
		if err != nil {
			d.report(ctx, vt, err)
			continue
		}
		if res == nil {
			continue
		}
		merged.Directive = Combine(merged.Directive, res.Directive)
		if res.Label != "" && merged.Label == "" {
			merged.Label = res.Label
		}
		if res.Node.Valid() && !havePrimary {
			merged.Node = res.Node
			havePrimary = true
			ctx.Node = res.Node
			ctx.HasNode = true
		}
	}
	if havePrimary && ctx.HasParent && !ctx.ParentLink.Zero() {
		if err := ctx.Factory.EmitNode(ctx.Parent, ctx.ParentLink, merged.Node); err != nil {
			return merged, err
		}
	}
	if d.obs != nil {
		d.obs.EntityProcessed()
	}
	return merged, nil
}

// invoke runs a single analyzer with panic containment.
func (d *Dispatcher) invoke(ctx Context, v any, a Analyzer) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return a.Analyze(ctx, v, d)
}

// report logs a contained failure, counts it, and describes it on the
// entity's node with a provenance link to the pipeline input.
func (d *Dispatcher) report(ctx Context, vt reflect.Type, err error) {
	stage := vt.String()
	d.log.WithFields(logrus.Fields{
		"stage": stage,
		"path":  matchPath(ctx),
	}).WithError(err).Warn("analyzer failed; entity partially described")
	if d.obs != nil {
		d.obs.EntityFailed(stage)
	}
	node := ctx.Node
	if !ctx.HasNode {
		if !ctx.HasParent {
			return
		}
		node = ctx.Parent
	}
	ctx.Factory.Emit(node, graph.Description, fmt.Sprintf("%s: %v", stage, err))
	if ctx.Input.Valid() {
		ctx.Factory.EmitNode(node, graph.WasDerivedFrom, ctx.Input)
	}
}

func matchPath(ctx Context) string {
	if ctx.Match == nil {
		return ""
	}
	return ctx.Match.Path
}
