package format

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Improvised is a synthetic descriptor for data no registered format claimed,
// derived from the object's own magic bytes or shebang interpreter so that
// downstream tooling can still group similar objects.
type Improvised struct {
	name      string
	mediaType string
	extension string
}

func (f *Improvised) Name() string      { return f.name }
func (f *Improvised) MediaType() string { return f.mediaType }
func (f *Improvised) Extension() string { return f.extension }
func (f *Improvised) Signature() []byte { return nil }
func (f *Improvised) BinaryOnly() bool  { return false }

func (f *Improvised) CheckHeader(Header) bool { return true }

func (f *Improvised) Match(ctx context.Context, r io.Reader, mc *MatchContext) (any, error) {
	return f, nil
}

// Improvise derives a synthetic format from a head window, or nil when the
// data carries no usable magic: binary objects yield the leading printable
// ASCII run as the signature token, text objects yield the shebang
// interpreter if present.
func Improvise(h Header) *Improvised {
	if len(h.Bytes) == 0 {
		return nil
	}
	if h.Binary {
		token := leadingToken(h.Bytes)
		if token == "" {
			return nil
		}
		return &Improvised{
			name:      token,
			mediaType: "application/x.sig." + strings.ToLower(token),
			extension: token,
		}
	}
	if interp := shebangInterpreter(h.Bytes); interp != "" {
		return &Improvised{
			name:      interp,
			mediaType: "application/x.interp." + strings.ToLower(interp),
			extension: interp,
		}
	}
	return nil
}

// leadingToken extracts the printable ASCII run at the start of a binary
// header, capped at 8 bytes. Runs shorter than 2 bytes are not significant.
func leadingToken(head []byte) string {
	n := 0
	for n < len(head) && n < 8 {
		b := head[n]
		if b < 0x21 || b > 0x7E {
			break
		}
		n++
	}
	if n < 2 {
		return ""
	}
	return string(head[:n])
}

func shebangInterpreter(head []byte) string {
	if !bytes.HasPrefix(head, []byte("#!")) {
		return ""
	}
	line := head[2:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return ""
	}
	interp := fields[0]
	if i := strings.LastIndexByte(interp, '/'); i >= 0 {
		interp = interp[i+1:]
	}
	// "#!/usr/bin/env python" names the interpreter in the next field.
	if interp == "env" && len(fields) > 1 {
		interp = fields[1]
	}
	return interp
}
