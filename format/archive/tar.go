package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
)

// tarMagicOffset is where the ustar magic lives inside the first header
// block; TAR has no leading signature, so detection is content-based.
const tarMagicOffset = 257

// Tar detects and parses POSIX and GNU tar archives.
type Tar struct{}

func (Tar) Name() string      { return "tar" }
func (Tar) MediaType() string { return "application/x-tar" }
func (Tar) Extension() string { return "tar" }
func (Tar) Signature() []byte { return nil }
func (Tar) BinaryOnly() bool  { return true }

func (Tar) CheckHeader(h format.Header) bool {
	if len(h.Bytes) < tarMagicOffset+5 {
		return false
	}
	return bytes.Equal(h.Bytes[tarMagicOffset:tarMagicOffset+5], []byte("ustar"))
}

func (Tar) Match(ctx context.Context, r io.Reader, mc *format.MatchContext) (any, error) {
	open := mc.Open
	if open == nil {
		// No reopenable source: capture the remaining bytes now so the
		// archive can be iterated after the cursor is gone.
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		open = func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}
	// Validate the first header block before claiming the data.
	rc, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if _, err := tar.NewReader(rc).Next(); err != nil {
		return nil, fmt.Errorf("tar: %w", err)
	}
	return &TarArchive{open: open, ref: "tar:" + mc.Path}, nil
}

// TarArchive is the parsed value of a TAR match. Members are sequential;
// each visited entry's content is buffered so the child can be reopened
// independently of the archive cursor.
type TarArchive struct {
	open entity.StreamFactory
	ref  string
}

func (a *TarArchive) Entries(ctx context.Context, visit func(e format.ContainerEntry) error) error {
	rc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	tr := tar.NewReader(rc)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		e := format.ContainerEntry{
			Name:     baseName(hdr.Name),
			Path:     normalizePath(hdr.Name),
			Dir:      hdr.Typeflag == tar.TypeDir,
			Size:     hdr.Size,
			Modified: hdr.ModTime,
			Key:      entity.Key{Reference: a.ref, Data: hdr.Name},
		}
		switch hdr.Typeflag {
		case tar.TypeReg:
			data, err := io.ReadAll(tr)
			if err != nil {
				return err
			}
			e.Open = func(ctx context.Context) (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			}
		case tar.TypeDir:
		default:
			// Links, devices and other special members are named but
			// carry no descendable content.
		}
		if err := visit(e); err != nil {
			return err
		}
	}
}

func normalizePath(p string) string {
	for len(p) > 2 && p[:2] == "./" {
		p = p[2:]
	}
	if len(p) > 0 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}
