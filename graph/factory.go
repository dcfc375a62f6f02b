package graph

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/glyphic/descry/digest"
)

// URIFormatter mints a structural URI from a typed key. An empty return
// means no identity is available for the value.
type URIFormatter interface {
	FormatURI(v any) string
}

// URIFormatterFunc adapts a function to URIFormatter.
type URIFormatterFunc func(v any) string

func (f URIFormatterFunc) FormatURI(v any) string { return f(v) }

// Factory mints and deduplicates node identities and routes triples to the
// registered graph handlers. It holds only a graph-URI to handler-id
// back-index; handlers are looked up at emit time.
type Factory struct {
	mu sync.Mutex

	def       Sink
	handlers  map[string]Sink   // handler id -> sink
	graphs    map[string]string // graph URI -> handler id
	intercept Interceptor

	prefixes  map[string]string // namespace URI -> prefix
	nsCounter int
	seen      map[string]struct{}
}

// NewFactory builds a factory emitting to the default sink.
func NewFactory(def Sink) *Factory {
	return &Factory{
		def:      def,
		handlers: map[string]Sink{},
		graphs:   map[string]string{},
		prefixes: map[string]string{},
		seen:     map[string]struct{}{},
	}
}

// SetInterceptor installs a triple interceptor consulted before every emit.
func (f *Factory) SetInterceptor(i Interceptor) { f.intercept = i }

// RouteGraph routes triples targeted at graphURI to the given handler.
// Namespaces already registered are propagated to the new handler.
func (f *Factory) RouteGraph(graphURI, handlerID string, s Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[handlerID] = s
	f.graphs[graphURI] = handlerID
	for uri, prefix := range f.prefixes {
		if err := s.Namespace(prefix, uri); err != nil {
			return err
		}
	}
	return nil
}

// Node wraps a raw URI as a node in the default graph.
func (f *Factory) Node(uri string) Node { return Node{URI: uri} }

// GraphNode wraps a raw URI as a node routed to a named graph.
func (f *Factory) GraphNode(uri, graphURI string) Node {
	return Node{URI: uri, Graph: graphURI}
}

// ContentNode mints the content-addressed node for a digest.
func (f *Factory) ContentNode(a digest.Algorithm, sum []byte) Node {
	return Node{URI: digest.URIFor(a, sum)}
}

// Child appends a relative fragment under the parent's URI: the first
// descent uses a fragment, deeper ones extend the path so the URI stays
// parseable.
func (f *Factory) Child(parent Node, fragment string) Node {
	esc := url.PathEscape(fragment)
	sep := "#"
	if strings.ContainsRune(parent.URI, '#') {
		sep = "/"
	}
	return Node{URI: parent.URI + sep + esc, Graph: parent.Graph}
}

// FromValue mints a structural node via the formatter. The second result is
// false when the formatter yields no identity.
func (f *Factory) FromValue(fmtr URIFormatter, v any) (Node, bool) {
	uri := fmtr.FormatURI(v)
	if uri == "" {
		return Node{}, false
	}
	return Node{URI: uri}, true
}

// Once records a URI and reports whether this is its first appearance.
// Descents use it to avoid re-describing a subject that another format's
// overlapping child tree already produced.
func (f *Factory) Once(uri string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[uri]; ok {
		return false
	}
	f.seen[uri] = struct{}{}
	return true
}

// EmitNode emits subject --predicate--> object-node.
func (f *Factory) EmitNode(subject Node, predicate Term, object Node) error {
	return f.emit(Triple{
		Graph:     subject.Graph,
		Subject:   subject.URI,
		Predicate: predicate.URI(),
		Object:    NodeObject(object.URI),
	}, predicate.NS)
}

// EmitURI emits subject --predicate--> <uri>.
func (f *Factory) EmitURI(subject Node, predicate Term, uri string) error {
	return f.emit(Triple{
		Graph:     subject.Graph,
		Subject:   subject.URI,
		Predicate: predicate.URI(),
		Object:    NodeObject(uri),
	}, predicate.NS)
}

// Emit converts the value through the literal table, applies string safety,
// and routes the triple. Unsupported value types return
// *ErrUnsupportedLiteral.
func (f *Factory) Emit(subject Node, predicate Term, value any) error {
	lit, err := NewLiteral(value)
	if err != nil {
		return err
	}
	return f.EmitLiteral(subject, predicate, lit)
}

// EmitLiteral emits a pre-built literal with string safety applied.
func (f *Factory) EmitLiteral(subject Node, predicate Term, lit Literal) error {
	return f.emit(Triple{
		Graph:     subject.Graph,
		Subject:   subject.URI,
		Predicate: predicate.URI(),
		Object:    LiteralObject(SafeLiteral(lit)),
	}, predicate.NS)
}

// EmitType emits an rdf:type triple.
func (f *Factory) EmitType(subject Node, class Term) error {
	if err := f.ensureNamespace(class.NS); err != nil {
		return err
	}
	return f.EmitNode(subject, Type, Node{URI: class.URI(), Graph: subject.Graph})
}

func (f *Factory) emit(t Triple, ns NS) error {
	if err := f.ensureNamespace(ns); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intercept != nil && !f.intercept.Intercept(&t) {
		return nil
	}
	return f.sinkFor(t.Graph).Triple(t)
}

// sinkFor resolves the handler for a graph URI; callers hold f.mu.
func (f *Factory) sinkFor(graphURI string) Sink {
	if graphURI != "" {
		if id, ok := f.graphs[graphURI]; ok {
			if s, ok := f.handlers[id]; ok {
				return s
			}
		}
	}
	return f.def
}

// ensureNamespace assigns a prefix on first use of a namespace and
// propagates it to every handler.
func (f *Factory) ensureNamespace(ns NS) error {
	if ns.URI == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prefixes[ns.URI]; ok {
		return nil
	}
	prefix := ns.Prefix
	if prefix == "" {
		for _, known := range KnownNamespaces {
			if known.URI == ns.URI {
				prefix = known.Prefix
				break
			}
		}
	}
	if prefix == "" {
		prefix = fmt.Sprintf("ns%d", f.nsCounter)
		f.nsCounter++
	}
	f.prefixes[ns.URI] = prefix
	if err := f.def.Namespace(prefix, ns.URI); err != nil {
		return err
	}
	for _, s := range f.handlers {
		if err := s.Namespace(prefix, ns.URI); err != nil {
			return err
		}
	}
	return nil
}

// End signals end of output to the default sink and every handler.
func (f *Factory) End() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.def.End(); err != nil {
		return err
	}
	for _, s := range f.handlers {
		if err := s.End(); err != nil {
			return err
		}
	}
	return nil
}
