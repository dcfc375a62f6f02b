// Package rdfio adapts the graph sink contract to the rdf-go streaming
// encoders. The core never sees the serializer: it emits through graph.Sink
// and this package translates terms at the boundary.
package rdfio

import (
	"fmt"
	"io"

	rdf "github.com/geoknoesis/rdf-go"

	"github.com/glyphic/descry/graph"
)

// Syntax names an output serialization.
type Syntax string

const (
	Turtle   Syntax = "turtle"
	NTriples Syntax = "ntriples"
	RDFXML   Syntax = "rdfxml"
	JSONLD   Syntax = "json-ld"
	NQuads   Syntax = "nq"
)

// Sink streams triples into an rdf-go encoder.
type Sink struct {
	triples *rdf.TripleEncoder
	quads   *rdf.QuadEncoder
}

// New builds a sink writing the chosen syntax to w.
func New(w io.Writer, syntax Syntax) (*Sink, error) {
	switch syntax {
	case Turtle, NTriples, RDFXML, JSONLD, "":
		format, err := tripleFormat(syntax)
		if err != nil {
			return nil, err
		}
		enc, err := rdf.NewTripleEncoder(w, format)
		if err != nil {
			return nil, err
		}
		return &Sink{triples: enc}, nil
	case NQuads:
		enc, err := rdf.NewQuadEncoder(w, rdf.QuadFormatNQuads)
		if err != nil {
			return nil, err
		}
		return &Sink{quads: enc}, nil
	default:
		return nil, fmt.Errorf("rdfio: unsupported syntax %q", syntax)
	}
}

func tripleFormat(syntax Syntax) (rdf.TripleFormat, error) {
	switch syntax {
	case Turtle, "":
		return rdf.TripleFormatTurtle, nil
	case NTriples:
		return rdf.TripleFormatNTriples, nil
	case RDFXML:
		return rdf.TripleFormatRDFXML, nil
	case JSONLD:
		return rdf.TripleFormatJSONLD, nil
	}
	return rdf.TripleFormatTurtle, fmt.Errorf("rdfio: unsupported triple syntax %q", syntax)
}

// Namespace registrations are collected by the encoders themselves; the
// sink accepts them for interface completeness.
func (s *Sink) Namespace(prefix, uri string) error { return nil }

func (s *Sink) Triple(t graph.Triple) error {
	subject := rdf.NewIRI(t.Subject)
	predicate := rdf.NewIRI(t.Predicate)
	object := objectTerm(t.Object)
	if s.quads != nil {
		g := rdf.Term(nil)
		if t.Graph != "" {
			g = rdf.NewIRI(t.Graph)
		}
		return s.quads.Encode(rdf.Quad{S: subject, P: predicate, O: object, G: g})
	}
	return s.triples.Encode(rdf.Triple{S: subject, P: predicate, O: object})
}

func objectTerm(o graph.Object) rdf.Term {
	if !o.IsLiteral {
		return rdf.NewIRI(o.IRI)
	}
	lit := o.Literal
	if lit.Lang != "" {
		return rdf.NewLangLiteral(lit.Lexical(), lit.Lang)
	}
	if dt := lit.Datatype(); dt != "" {
		return rdf.NewTypedLiteral(lit.Lexical(), rdf.NewIRI(dt))
	}
	return rdf.NewLiteral(lit.Lexical())
}

// End flushes and closes the underlying encoder.
func (s *Sink) End() error {
	if s.quads != nil {
		return s.quads.Close()
	}
	return s.triples.Close()
}
