// Package archive provides the container formats the pipeline descends into:
// ZIP, TAR and gzip. Parsed values implement format.Container; their members
// re-enter the pipeline as child entities.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
)

// Zip detects and parses ZIP archives whose head starts with the
// local-file-header signature, including OOXML style packages.
type Zip struct{}

func (Zip) Name() string      { return "zip" }
func (Zip) MediaType() string { return "application/zip" }
func (Zip) Extension() string { return "zip" }
func (Zip) Signature() []byte { return []byte{'P', 'K', 0x03, 0x04} }
func (Zip) BinaryOnly() bool  { return true }

func (Zip) CheckHeader(h format.Header) bool { return true }

func (Zip) Match(ctx context.Context, r io.Reader, mc *format.MatchContext) (any, error) {
	data, err := readAll(ctx, r, mc)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}
	ref := fmt.Sprintf("zip:%016x", xxhash.Sum64(data))
	return &ZipArchive{reader: zr, ref: ref}, nil
}

// ZipArchive is the parsed value of a ZIP match.
type ZipArchive struct {
	reader *zip.Reader
	ref    string
}

// Parallel reports that ZIP members are random-access and may be descended
// concurrently.
func (*ZipArchive) Parallel() bool { return true }

func (a *ZipArchive) Entries(ctx context.Context, visit func(e format.ContainerEntry) error) error {
	for _, f := range a.reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		file := f
		name := file.Name
		dir := strings.HasSuffix(name, "/") || file.FileInfo().IsDir()
		e := format.ContainerEntry{
			Name:     baseName(name),
			Path:     strings.TrimSuffix(name, "/"),
			Dir:      dir,
			Size:     int64(file.UncompressedSize64),
			Modified: file.Modified,
			Key:      entity.Key{Reference: a.ref, Data: name},
		}
		if !dir {
			e.Open = func(ctx context.Context) (io.ReadCloser, error) {
				return file.Open()
			}
		}
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

func baseName(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// readAll buffers the object's bytes for random access, preferring a fresh
// stream from the match context over draining the shared cursor.
func readAll(ctx context.Context, r io.Reader, mc *format.MatchContext) ([]byte, error) {
	if mc != nil && mc.Open != nil {
		rc, err := mc.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		r = rc
	}
	return io.ReadAll(r)
}
