package format_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphic/descry/format"
)

type fakeFormat struct {
	name      string
	signature []byte
	binary    bool
	veto      bool
}

func (f *fakeFormat) Name() string      { return f.name }
func (f *fakeFormat) MediaType() string { return "application/x-" + f.name }
func (f *fakeFormat) Extension() string { return f.name }
func (f *fakeFormat) Signature() []byte { return f.signature }
func (f *fakeFormat) BinaryOnly() bool  { return f.binary }

func (f *fakeFormat) CheckHeader(h format.Header) bool { return !f.veto }

func (f *fakeFormat) Match(ctx context.Context, r io.Reader, mc *format.MatchContext) (any, error) {
	return f.name, nil
}

func names(formats []format.Format) []string {
	var out []string
	for _, f := range formats {
		out = append(out, f.Name())
	}
	return out
}

func TestRegistryOrdersBySpecificity(t *testing.T) {
	registry := format.NewRegistry(
		&fakeFormat{name: "short", signature: []byte("PK")},
		&fakeFormat{name: "long", signature: []byte("PK\x03\x04")},
		&fakeFormat{name: "any", binary: true},
	)
	header := format.Header{Bytes: []byte("PK\x03\x04rest"), Binary: true}
	assert.Equal(t, []string{"long", "short", "any"}, names(registry.Candidates(header)))
}

func TestRegistryFiltersCandidates(t *testing.T) {
	registry := format.NewRegistry(
		&fakeFormat{name: "zip", signature: []byte("PK\x03\x04")},
		&fakeFormat{name: "vetoed", signature: []byte("PK"), veto: true},
		&fakeFormat{name: "binary-any", binary: true},
		&fakeFormat{name: "text-any"},
	)
	tests := []struct {
		name   string
		header format.Header
		want   []string
	}{
		{
			name:   "binary zip header",
			header: format.Header{Bytes: []byte("PK\x03\x04"), Binary: true},
			want:   []string{"zip", "binary-any", "text-any"},
		},
		{
			name:   "text header drops binary-only",
			header: format.Header{Bytes: []byte("plain"), Binary: false},
			want:   []string{"text-any"},
		},
		{
			name:   "unrelated binary header",
			header: format.Header{Bytes: []byte{0x7F, 'E', 'L', 'F'}, Binary: true},
			want:   []string{"binary-any", "text-any"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(registry.Candidates(tt.header)))
		})
	}
}

func TestIsBinary(t *testing.T) {
	assert.False(t, format.IsBinary(nil))
	assert.False(t, format.IsBinary([]byte("hello world")))
	assert.True(t, format.IsBinary([]byte{'W', 'A', 'S', 'M', 0x00, 0x01}))
	// Trailing NUL padding alone is not conclusive.
	assert.False(t, format.IsBinary([]byte{'a', 'b', 0x00, 0x00}))
}

func TestImprovise(t *testing.T) {
	tests := []struct {
		name      string
		header    format.Header
		wantNil   bool
		wantExt   string
		wantMedia string
	}{
		{
			name:      "binary magic token",
			header:    format.Header{Bytes: []byte{'W', 'A', 'S', 'M', 0x00, 0x00, 0x01}, Binary: true},
			wantExt:   "WASM",
			wantMedia: "application/x.sig.wasm",
		},
		{
			name:      "shebang interpreter",
			header:    format.Header{Bytes: []byte("#!/usr/bin/python\nprint(1)\n")},
			wantExt:   "python",
			wantMedia: "application/x.interp.python",
		},
		{
			name:      "env shebang",
			header:    format.Header{Bytes: []byte("#!/usr/bin/env bash\n")},
			wantExt:   "bash",
			wantMedia: "application/x.interp.bash",
		},
		{
			name:    "binary without printable run",
			header:  format.Header{Bytes: []byte{0x01, 0x00, 0xFF}, Binary: true},
			wantNil: true,
		},
		{
			name:    "plain text without shebang",
			header:  format.Header{Bytes: []byte("just text")},
			wantNil: true,
		},
		{
			name:    "empty",
			header:  format.Header{},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := format.Improvise(tt.header)
			if tt.wantNil {
				assert.Nil(t, imp)
				return
			}
			require.NotNil(t, imp)
			assert.Equal(t, tt.wantExt, imp.Extension())
			assert.Equal(t, tt.wantMedia, imp.MediaType())
		})
	}
}
