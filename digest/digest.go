// Package digest declares the hash-algorithm contract used by the pipeline
// and the content-addressed URI construction derived from digests.
package digest

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strings"
)

// AlgoID names a registered hash algorithm.
type AlgoID string

const (
	MD5       AlgoID = "md5"
	SHA1      AlgoID = "sha1"
	SHA256    AlgoID = "sha256"
	Blake3    AlgoID = "blake3"
	XXH64     AlgoID = "xxh64"
	Highway64 AlgoID = "highway64"
)

// Encoding selects how a digest is rendered inside a URI.
type Encoding int

const (
	Hex Encoding = iota
	Base32
	Base58
	Base64URL
	Decimal
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Format renders a digest under the encoding. Hex is uppercase, base32 is
// unpadded standard alphabet, base64url is unpadded, decimal is the big-endian
// integer value of the digest bytes.
func (e Encoding) Format(sum []byte) string {
	switch e {
	case Hex:
		return strings.ToUpper(hex.EncodeToString(sum))
	case Base32:
		return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum)
	case Base58:
		return encodeBase58(sum)
	case Base64URL:
		return base64.RawURLEncoding.EncodeToString(sum)
	case Decimal:
		return new(big.Int).SetBytes(sum).String()
	}
	return hex.EncodeToString(sum)
}

func encodeBase58(sum []byte) string {
	n := new(big.Int).SetBytes(sum)
	radix := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for _, b := range sum {
		if b != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Algorithm is the hash-algorithm plug-in contract. Size is a hint in bytes;
// New returns a fresh sink, never shared between streams.
type Algorithm interface {
	ID() AlgoID
	URIPrefix() string
	Encoding() Encoding
	Size() int
	New() hash.Hash
}

// URIFor builds the content-addressed URI for a digest produced by a.
func URIFor(a Algorithm, sum []byte) string {
	return a.URIPrefix() + a.Encoding().Format(sum)
}

// Sum hashes a byte slice with a single fresh sink.
func Sum(a Algorithm, data []byte) []byte {
	h := a.New()
	h.Write(data)
	return h.Sum(nil)
}

type algo struct {
	id       AlgoID
	prefix   string
	encoding Encoding
	size     int
	factory  func() hash.Hash
}

func (a *algo) ID() AlgoID         { return a.id }
func (a *algo) URIPrefix() string  { return a.prefix }
func (a *algo) Encoding() Encoding { return a.encoding }
func (a *algo) Size() int          { return a.size }
func (a *algo) New() hash.Hash     { return a.factory() }

// ByID resolves a registered algorithm by identifier.
func ByID(id AlgoID) (Algorithm, error) {
	a, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("digest: unknown algorithm %q", id)
	}
	return a, nil
}

// ByIDs resolves a list of identifiers, failing on the first unknown one.
func ByIDs(ids []string) ([]Algorithm, error) {
	out := make([]Algorithm, 0, len(ids))
	for _, id := range ids {
		a, err := ByID(AlgoID(id))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Default returns the algorithm set used when none is configured.
func Default() []Algorithm {
	return mustByIDs(MD5, SHA1, SHA256)
}

func mustByIDs(ids ...AlgoID) []Algorithm {
	out := make([]Algorithm, 0, len(ids))
	for _, id := range ids {
		a, err := ByID(id)
		if err != nil {
			panic(err)
		}
		out = append(out, a)
	}
	return out
}

var registry = map[AlgoID]Algorithm{}

func register(a Algorithm) {
	registry[a.ID()] = a
}
