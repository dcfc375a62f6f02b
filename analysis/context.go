// Package analysis drives the extraction pipeline: it dispatches entities to
// the analyzers claiming them, runs format detection and hashing over data
// objects in a single pass, and descends parsed containers recursively while
// preserving parent linkage and avoiding cycles.
package analysis

import (
	"context"
	"sync"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
	"github.com/glyphic/descry/graph"
)

// Context carries the state of one analysis call: the parent node, the match
// context, the node factory and cancellation. Values are derived, never
// mutated; every descent works on its own copy.
type Context struct {
	Ctx     context.Context
	Factory *graph.Factory

	// Parent is the node the current entity hangs under.
	Parent     graph.Node
	HasParent  bool
	ParentLink graph.Term

	// Node is the primary node of the entity under analysis; the dispatcher
	// sets it before invoking secondary analyzers.
	Node    graph.Node
	HasNode bool

	// Input is the pipeline-level input node, used for provenance links on
	// contained failures.
	Input graph.Node

	Match *format.MatchContext

	Depth    int
	MaxDepth int
	Burst    int

	Keys *KeyStack
}

// WithParentLink derives a context whose entity will be linked from parent
// via the given property.
func (c Context) WithParentLink(parent graph.Node, link graph.Term) Context {
	c.Parent = parent
	c.HasParent = true
	c.ParentLink = link
	c.Node = graph.Node{}
	c.HasNode = false
	return c
}

// WithPath derives a context whose match path is extended by one segment.
func (c Context) WithPath(segment string) Context {
	mc := format.MatchContext{}
	if c.Match != nil {
		mc = *c.Match
	}
	if mc.Path == "" {
		mc.Path = segment
	} else {
		mc.Path = mc.Path + "/" + segment
	}
	c.Match = &mc
	return c
}

// Deeper derives a context one container level down.
func (c Context) Deeper() Context {
	c.Depth++
	return c
}

// Cancelled reports whether the run's cancellation token fired.
func (c Context) Cancelled() bool {
	return c.Ctx != nil && c.Ctx.Err() != nil
}

// KeyStack tracks the persistent keys on the current descent stack so
// back-references short-circuit to the existing node instead of recursing.
// It is shared by concurrent sibling descents.
type KeyStack struct {
	mu    sync.Mutex
	nodes map[entity.Key]graph.Node
}

// NewKeyStack returns an empty stack.
func NewKeyStack() *KeyStack {
	return &KeyStack{nodes: map[entity.Key]graph.Node{}}
}

// Enter records a key with its node. It returns false when the key is
// already on the stack, i.e. the descent would recurse into itself.
func (k *KeyStack) Enter(key entity.Key, node graph.Node) bool {
	if key.Zero() {
		return true
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.nodes[key]; ok {
		return false
	}
	k.nodes[key] = node
	return true
}

// Lookup returns the node recorded for a key on the stack.
func (k *KeyStack) Lookup(key entity.Key) (graph.Node, bool) {
	if key.Zero() {
		return graph.Node{}, false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	n, ok := k.nodes[key]
	return n, ok
}

// Leave removes a key when its descent frame pops.
func (k *KeyStack) Leave(key entity.Key) {
	if key.Zero() {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.nodes, key)
}
