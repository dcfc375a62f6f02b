package describe_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphic/descry/describe"
	"github.com/glyphic/descry/graph"
)

func run(t *testing.T, dir string, mutate func(cfg *describe.Config)) (*graph.Memory, *describe.Summary) {
	t.Helper()
	cfg := describe.DefaultConfig()
	cfg.Algorithms = []string{"md5"}
	if mutate != nil {
		mutate(cfg)
	}
	mem := graph.NewMemory()
	d, err := describe.New(cfg, mem)
	require.NoError(t, err)
	summary, err := d.Run(context.Background(), dir)
	require.NoError(t, err)
	return mem, summary
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func contentURI(data []byte) string {
	sum := md5.Sum(data)
	return "urn:md5:" + strings.ToUpper(fmt.Sprintf("%x", sum))
}

func objects(mem *graph.Memory, subject, predicate string) []graph.Object {
	var out []graph.Object
	for _, tr := range mem.Matching(subject, predicate) {
		out = append(out, tr.Object)
	}
	return out
}

func hasType(mem *graph.Memory, subject string, class graph.Term) bool {
	for _, o := range objects(mem, subject, graph.Type.URI()) {
		if o.IRI == class.URI() {
			return true
		}
	}
	return false
}

func TestHashURIs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hi.bin", []byte{0x68, 0x69, 0x0a})
	mem, summary := run(t, dir, nil)
	assert.Zero(t, summary.Failures)

	node := "urn:md5:764EFA883DDA1E11DB47671C4A3BBD9E"
	values := objects(mem, node, graph.DigestValue.URI())
	require.Len(t, values, 1)
	assert.Equal(t, "dk76iD3aHhHbR2ccSjvCng==", values[0].Literal.Lexical())
	assert.Equal(t, graph.XSDBase64Binary.URI(), values[0].Literal.Datatype())

	algos := objects(mem, node, graph.DigestAlgorithm.URI())
	require.Len(t, algos, 1)
	assert.Equal(t, "md5", algos[0].Literal.Lexical())

	extents := objects(mem, node, graph.Extent.URI())
	require.Len(t, extents, 1)
	assert.Equal(t, "3", extents[0].Literal.Lexical())
}

func TestZipDescent(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("hello.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	dir := t.TempDir()
	writeFile(t, dir, "test.zip", buf.Bytes())
	mem, summary := run(t, dir, nil)
	assert.Zero(t, summary.Failures)

	archiveContent := contentURI(buf.Bytes())
	formats := objects(mem, archiveContent, graph.HasFormat.URI())
	require.NotEmpty(t, formats)
	archiveNode := formats[0].IRI
	assert.True(t, hasType(mem, archiveNode, graph.ClassArchive))

	// The member hangs under the archive with its own content description.
	members := objects(mem, archiveNode, graph.HasPart.URI())
	require.Len(t, members, 1)
	member := members[0].IRI
	back := objects(mem, member, graph.BelongsToContainer.URI())
	require.Len(t, back, 1)
	assert.Equal(t, archiveNode, back[0].IRI)

	names := objects(mem, member, graph.FileName.URI())
	require.Len(t, names, 1)
	assert.Equal(t, "hello.txt", names[0].Literal.Lexical())

	memberContent := contentURI([]byte("hi"))
	contents := objects(mem, member, graph.Content.URI())
	require.Len(t, contents, 1)
	assert.Equal(t, memberContent, contents[0].IRI)

	extents := objects(mem, memberContent, graph.Extent.URI())
	require.Len(t, extents, 1)
	assert.Equal(t, "2", extents[0].Literal.Lexical())

	encodings := objects(mem, memberContent, graph.EncodingFormat.URI())
	require.Len(t, encodings, 1)
	assert.Equal(t, graph.MediaTypeURI("text/plain"), encodings[0].IRI)
}

func TestXMLFormatDispatch(t *testing.T) {
	dir := t.TempDir()
	svg := []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`)
	writeFile(t, dir, "image.svg", svg)
	mem, summary := run(t, dir, nil)
	assert.Zero(t, summary.Failures)

	content := contentURI(svg)
	var xmlNode string
	for _, o := range objects(mem, content, graph.HasFormat.URI()) {
		if hasType(mem, o.IRI, graph.ClassXMLDocument) {
			xmlNode = o.IRI
		}
	}
	require.NotEmpty(t, xmlNode, "expected an XML format node")

	versions := objects(mem, xmlNode, graph.XMLVersion.URI())
	require.Len(t, versions, 1)
	assert.Equal(t, "1.0", versions[0].Literal.Lexical())

	namespaces := objects(mem, xmlNode, graph.RootNamespace.URI())
	require.Len(t, namespaces, 1)
	assert.Equal(t, "http://www.w3.org/2000/svg", namespaces[0].IRI)

	encodings := objects(mem, xmlNode, graph.EncodingFormat.URI())
	require.Len(t, encodings, 1)
	assert.Equal(t, graph.MediaTypeURI("image/svg+xml"), encodings[0].IRI)
}

func TestImprovisedFormat(t *testing.T) {
	dir := t.TempDir()
	data := append([]byte("WASM"), 0x00, 0x00, 0x01, 0x02)
	writeFile(t, dir, "mystery.bin", data)
	mem, summary := run(t, dir, nil)
	assert.Zero(t, summary.Failures)

	content := contentURI(data)
	formats := objects(mem, content, graph.HasFormat.URI())
	require.Len(t, formats, 1)
	improvised := formats[0].IRI
	assert.True(t, hasType(mem, improvised, graph.ClassImprovisedFormat))

	exts := objects(mem, improvised, graph.Extension.URI())
	require.Len(t, exts, 1)
	assert.Equal(t, "WASM", exts[0].Literal.Lexical())

	encodings := objects(mem, improvised, graph.EncodingFormat.URI())
	require.Len(t, encodings, 1)
	assert.Equal(t, graph.MediaTypeURI("application/x.sig.wasm"), encodings[0].IRI)
}

func TestEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty", nil)
	mem, summary := run(t, dir, nil)
	assert.Zero(t, summary.Failures)

	content := contentURI(nil)
	extents := objects(mem, content, graph.Extent.URI())
	require.Len(t, extents, 1)
	assert.Equal(t, "0", extents[0].Literal.Lexical())

	values := objects(mem, content, graph.DigestValue.URI())
	require.Len(t, values, 1)
	sum := md5.Sum(nil)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), values[0].Literal.Lexical())

	assert.True(t, hasType(mem, content, graph.ClassTextContent))
	assert.Empty(t, objects(mem, content, graph.HasFormat.URI()), "no format links for empty data")
}

func TestNestedArchiveDescent(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 3, 2))))

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "pixel.png",
		Mode:     0o644,
		Size:     int64(pngBuf.Len()),
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	entry, err := zw.Create("inner.tar")
	require.NoError(t, err)
	_, err = entry.Write(tarBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	writeFile(t, dir, "nested.zip", zipBuf.Bytes())
	mem, summary := run(t, dir, nil)
	assert.Zero(t, summary.Failures)
	assert.GreaterOrEqual(t, summary.Containers, int64(2))

	// Three-level chain: png file -> tar archive node, tar file -> zip
	// archive node.
	chain := mem.Matching("", graph.BelongsToContainer.URI())
	assert.GreaterOrEqual(t, len(chain), 2)

	pngContent := contentURI(pngBuf.Bytes())
	var imageNode string
	for _, o := range objects(mem, pngContent, graph.HasFormat.URI()) {
		if hasType(mem, o.IRI, graph.ClassImage) {
			imageNode = o.IRI
		}
	}
	require.NotEmpty(t, imageNode, "expected the png format node under the innermost content")

	widths := objects(mem, imageNode, graph.Width.URI())
	require.Len(t, widths, 1)
	assert.Equal(t, "3", widths[0].Literal.Lexical())
	heights := objects(mem, imageNode, graph.Height.URI())
	require.Len(t, heights, 1)
	assert.Equal(t, "2", heights[0].Literal.Lexical())
}

func TestIdempotentIdentity(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("same content"))
	writeFile(t, dir, "b.bin", []byte{0x00, 0x01, 0x02})

	first, _ := run(t, dir, nil)
	second, _ := run(t, dir, nil)
	assert.ElementsMatch(t, first.Triples, second.Triples)
}

func TestDuplicateContentDescribedOnce(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"one.txt", "two.txt"} {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte("hi"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	dir := t.TempDir()
	writeFile(t, dir, "dupes.zip", buf.Bytes())
	mem, _ := run(t, dir, nil)

	content := contentURI([]byte("hi"))
	extents := objects(mem, content, graph.Extent.URI())
	assert.Len(t, extents, 1, "shared content must be described exactly once")

	var links int
	for _, tr := range mem.Triples {
		if tr.Predicate == graph.Content.URI() && tr.Object.IRI == content {
			links++
		}
	}
	assert.Equal(t, 2, links, "both members still link the shared content")
}

func TestIncludeExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", []byte("keep"))
	writeFile(t, dir, "drop.log", []byte("drop"))

	mem, _ := run(t, dir, func(cfg *describe.Config) {
		cfg.Exclude = []string{"**/*.log"}
	})
	names := objects(mem, "", graph.FileName.URI())
	var seen []string
	for _, o := range names {
		seen = append(seen, o.Literal.Lexical())
	}
	assert.Contains(t, seen, "keep.txt")
	assert.NotContains(t, seen, "drop.log")
}

func TestConfigValidation(t *testing.T) {
	cfg := describe.DefaultConfig()
	cfg.Algorithms = []string{"whirlpool"}
	_, err := describe.New(cfg, graph.NewMemory())
	assert.Error(t, err)

	cfg = describe.DefaultConfig()
	cfg.Format = "csv"
	_, err = describe.New(cfg, graph.NewMemory())
	assert.Error(t, err)
}
