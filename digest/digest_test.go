package digest_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphic/descry/digest"
)

func TestMD5ContentURI(t *testing.T) {
	a, err := digest.ByID(digest.MD5)
	require.NoError(t, err)

	sum := digest.Sum(a, []byte("hi\n"))
	assert.Equal(t, "dk76iD3aHhHbR2ccSjvCng==", base64.StdEncoding.EncodeToString(sum))
	assert.Equal(t, "urn:md5:764EFA883DDA1E11DB47671C4A3BBD9E", digest.URIFor(a, sum))
}

func TestEncodings(t *testing.T) {
	sum := []byte{0x00, 0x01, 0xFF}
	tests := []struct {
		name     string
		encoding digest.Encoding
		want     string
	}{
		{name: "hex uppercase", encoding: digest.Hex, want: "0001FF"},
		{name: "base32 unpadded", encoding: digest.Base32, want: "AAA76"},
		{name: "base64url unpadded", encoding: digest.Base64URL, want: "AAH_"},
		{name: "decimal", encoding: digest.Decimal, want: "511"},
		{name: "base58 preserves leading zero", encoding: digest.Base58, want: "19p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.encoding.Format(sum))
		})
	}
}

func TestAlgorithmRegistry(t *testing.T) {
	for _, id := range []digest.AlgoID{digest.MD5, digest.SHA1, digest.SHA256, digest.Blake3, digest.XXH64, digest.Highway64} {
		a, err := digest.ByID(id)
		require.NoError(t, err)
		assert.Equal(t, id, a.ID())
		h := a.New()
		h.Write([]byte("descry"))
		assert.NotEmpty(t, h.Sum(nil))
		assert.NotEmpty(t, a.URIPrefix())
	}
	_, err := digest.ByID("whirlpool")
	assert.Error(t, err)
}

func TestDigestsAreDeterministic(t *testing.T) {
	for _, id := range []digest.AlgoID{digest.Blake3, digest.XXH64, digest.Highway64} {
		a, err := digest.ByID(id)
		require.NoError(t, err)
		assert.Equal(t, digest.Sum(a, []byte("same")), digest.Sum(a, []byte("same")))
	}
}

func TestSHA256URIUsesNiScheme(t *testing.T) {
	a, err := digest.ByID(digest.SHA256)
	require.NoError(t, err)
	uri := digest.URIFor(a, digest.Sum(a, []byte("hi\n")))
	assert.Contains(t, uri, "ni:///sha-256;")
}
