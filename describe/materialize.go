package describe

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/glyphic/descry/analysis"
	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/graph"
)

// extractor materializes contained entities whose emitted triples satisfy
// the configured ASK query. It observes the run through a recording sink so
// the query sees exactly what the entity produced.
type extractor struct {
	query *graph.Query
	dir   string
	tee   *graph.Memory
}

func newExtractor(query *graph.Query, dir string, tee *graph.Memory) *extractor {
	return &extractor{query: query, dir: dir, tee: tee}
}

func (e *extractor) Materialize(ctx analysis.Context, node graph.Node, do *entity.DataObject) error {
	if do.Open == nil {
		return nil
	}
	if !e.query.Ask(e.tee.Matching(node.URI, "")) {
		return nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}
	name := url.QueryEscape(node.URI)
	target := filepath.Join(e.dir, name)
	if _, err := os.Stat(target); err == nil {
		// Content-addressed name: the bytes are already on disk.
		return nil
	}
	rc, err := do.Open(ctx.Ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("describe: materialize %s: %w", node.URI, err)
	}
	return out.Close()
}

// teeSink duplicates triples into a memory buffer for query evaluation
// while forwarding everything to the real sink.
type teeSink struct {
	out graph.Sink
	mem *graph.Memory
}

func (t *teeSink) Namespace(prefix, uri string) error {
	t.mem.Namespace(prefix, uri)
	return t.out.Namespace(prefix, uri)
}

func (t *teeSink) Triple(tr graph.Triple) error {
	t.mem.Triple(tr)
	return t.out.Triple(tr)
}

func (t *teeSink) End() error {
	return t.out.End()
}
