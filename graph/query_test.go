package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphic/descry/graph"
)

func lit(s string) graph.Object {
	l, _ := graph.NewLiteral(s)
	return graph.LiteralObject(l)
}

func TestParseQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "select unsupported", src: "SELECT ?s WHERE { ?s ?p ?o }"},
		{name: "missing braces", src: "ASK ?s ?p ?o"},
		{name: "undeclared prefix", src: "ASK { ?s nfo:fileName \"a\" . }"},
		{name: "two terms", src: "ASK { ?s ?p . }"},
		{name: "empty pattern", src: "ASK { }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.ParseQuery(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestAskJoinsBindings(t *testing.T) {
	triples := []graph.Triple{
		{Subject: "urn:x:file", Predicate: graph.Type.URI(), Object: graph.NodeObject(graph.ClassArchiveItem.URI())},
		{Subject: "urn:x:file", Predicate: graph.Content.URI(), Object: graph.NodeObject("urn:md5:AA")},
		{Subject: "urn:md5:AA", Predicate: graph.Extent.URI(), Object: lit("2")},
	}

	q, err := graph.ParseQuery(`
PREFIX ds: <https://w3id.org/descry#>
PREFIX dcterms: <http://purl.org/dc/terms/>
ASK {
  ?file ds:content ?data .
  ?data dcterms:extent "2" .
}`)
	require.NoError(t, err)
	assert.True(t, q.Ask(triples))

	q2, err := graph.ParseQuery(`
PREFIX dcterms: <http://purl.org/dc/terms/>
ASK { ?data dcterms:extent "3" . }`)
	require.NoError(t, err)
	assert.False(t, q2.Ask(triples))
}

func TestAskTypeShorthand(t *testing.T) {
	triples := []graph.Triple{
		{Subject: "urn:x:f", Predicate: graph.Type.URI(), Object: graph.NodeObject(graph.ClassFolder.URI())},
	}
	q, err := graph.ParseQuery(`ASK { ?s a <` + graph.ClassFolder.URI() + `> . }`)
	require.NoError(t, err)
	assert.True(t, q.Ask(triples))
}
