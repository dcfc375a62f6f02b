package analysis_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphic/descry/analysis"
	"github.com/glyphic/descry/digest"
	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
	"github.com/glyphic/descry/graph"
)

type panickingFormat struct{}

func (panickingFormat) Name() string                     { return "broken" }
func (panickingFormat) MediaType() string                { return "application/x-broken" }
func (panickingFormat) Extension() string                { return "broken" }
func (panickingFormat) Signature() []byte                { return nil }
func (panickingFormat) BinaryOnly() bool                 { return false }
func (panickingFormat) CheckHeader(h format.Header) bool { return true }
func (panickingFormat) Match(ctx context.Context, r io.Reader, mc *format.MatchContext) (any, error) {
	panic("injected matcher panic")
}

func dataObject(data []byte) *entity.DataObject {
	return &entity.DataObject{
		Length: int64(len(data)),
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestMatcherPanicContained(t *testing.T) {
	mem := graph.NewMemory()
	factory := graph.NewFactory(mem)
	algos, err := digest.ByIDs([]string{"md5"})
	require.NoError(t, err)

	registry := format.NewRegistry(panickingFormat{}, format.Text{})
	data := analysis.NewDataAnalyzer(registry, algos, nil)

	d := analysis.NewDispatcher(nil)
	d.Register((*entity.DataObject)(nil), data)
	d.Register((*entity.FormatObject)(nil), analysis.FormatAnalyzer{})

	do := dataObject([]byte("survivors intact"))
	ctx := analysis.Context{Ctx: context.Background(), Factory: factory}
	res, err := d.Analyze(ctx, do)
	require.NoError(t, err)
	require.NotNil(t, res)
	node := res.Node.URI

	// The healthy matcher's output is intact.
	var formats []string
	for _, o := range mem.Matching(node, graph.HasFormat.URI()) {
		formats = append(formats, o.Object.IRI)
	}
	assert.Len(t, formats, 1)

	// The failure is recorded on the entity, not fatal.
	descriptions := mem.Matching(node, graph.Description.URI())
	require.Len(t, descriptions, 1)
	assert.Contains(t, descriptions[0].Object.Literal.Lexical(), "broken")

	extents := mem.Matching(node, graph.Extent.URI())
	require.Len(t, extents, 1)
	assert.Equal(t, "16", extents[0].Object.Literal.Lexical())
}

func TestStreamOnlyDataObject(t *testing.T) {
	mem := graph.NewMemory()
	factory := graph.NewFactory(mem)
	algos, err := digest.ByIDs([]string{"md5"})
	require.NoError(t, err)

	data := analysis.NewDataAnalyzer(format.NewRegistry(format.Text{}), algos, nil)
	d := analysis.NewDispatcher(nil)
	d.Register((*entity.DataObject)(nil), data)
	d.Register((*entity.FormatObject)(nil), analysis.FormatAnalyzer{})

	do := &entity.DataObject{Stream: bytes.NewReader([]byte("hi\n"))}
	res, err := d.Analyze(analysis.Context{Ctx: context.Background(), Factory: factory}, do)
	require.NoError(t, err)
	assert.Equal(t, "urn:md5:764EFA883DDA1E11DB47671C4A3BBD9E", res.Node.URI)
	assert.Equal(t, int64(3), do.Length)
	assert.Len(t, do.Formats, 1, "head-window matching still works without a factory")
}

func TestDataObjectWithoutStream(t *testing.T) {
	algos, err := digest.ByIDs([]string{"md5"})
	require.NoError(t, err)
	data := analysis.NewDataAnalyzer(format.NewRegistry(), algos, nil)
	d := analysis.NewDispatcher(nil)
	d.Register((*entity.DataObject)(nil), data)

	factory := graph.NewFactory(graph.NewMemory())
	res, err := d.Analyze(analysis.Context{Ctx: context.Background(), Factory: factory}, &entity.DataObject{})
	require.NoError(t, err, "the dispatcher contains analyzer errors")
	require.NotNil(t, res)
	assert.False(t, res.Node.Valid())
}
