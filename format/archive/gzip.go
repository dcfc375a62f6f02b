package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
)

// Gzip detects gzip streams and surfaces the decompressed payload as a
// container of one derived entity.
type Gzip struct{}

func (Gzip) Name() string      { return "gzip" }
func (Gzip) MediaType() string { return "application/gzip" }
func (Gzip) Extension() string { return "gz" }
func (Gzip) Signature() []byte { return []byte{0x1f, 0x8b} }
func (Gzip) BinaryOnly() bool  { return true }

func (Gzip) CheckHeader(h format.Header) bool { return true }

func (Gzip) Match(ctx context.Context, r io.Reader, mc *format.MatchContext) (any, error) {
	open := mc.Open
	if open == nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		open = func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}
	rc, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	name := gz.Header.Name
	gz.Close()
	if name == "" {
		name = strings.TrimSuffix(baseName(mc.Path), ".gz")
	}
	if name == "" {
		name = "data"
	}
	return &GzipStream{open: open, name: name, ref: "gzip:" + mc.Path, modTime: gz.Header.ModTime}, nil
}

// GzipStream is the parsed value of a gzip match.
type GzipStream struct {
	open    entity.StreamFactory
	name    string
	ref     string
	modTime time.Time
}

func (g *GzipStream) Entries(ctx context.Context, visit func(e format.ContainerEntry) error) error {
	e := format.ContainerEntry{
		Name:     g.name,
		Path:     g.name,
		Size:     -1,
		Modified: g.modTime,
		Key:      entity.Key{Reference: g.ref, Data: g.name},
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			rc, err := g.open(ctx)
			if err != nil {
				return nil, err
			}
			gz, err := gzip.NewReader(rc)
			if err != nil {
				rc.Close()
				return nil, err
			}
			return &gzipPayload{gz: gz, raw: rc}, nil
		},
	}
	return visit(e)
}

type gzipPayload struct {
	gz  *gzip.Reader
	raw io.Closer
}

func (p *gzipPayload) Read(b []byte) (int, error) { return p.gz.Read(b) }

func (p *gzipPayload) Close() error {
	err := p.gz.Close()
	if cerr := p.raw.Close(); err == nil {
		err = cerr
	}
	return err
}
