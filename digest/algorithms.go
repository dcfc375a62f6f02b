package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/minio/highwayhash"
	"lukechampine.com/blake3"
)

// highwayKey is the fixed key for the keyed 64-bit HighwayHash variant; the
// identity scheme requires every run to derive the same digests, so the key
// is a constant rather than per-run material.
var highwayKey = []byte("0123456789ABCDEF0123456789ABCDEF")

func init() {
	register(&algo{
		id:       MD5,
		prefix:   "urn:md5:",
		encoding: Hex,
		size:     md5.Size,
		factory:  func() hash.Hash { return md5.New() },
	})
	register(&algo{
		id:       SHA1,
		prefix:   "urn:sha1:",
		encoding: Base32,
		size:     sha1.Size,
		factory:  func() hash.Hash { return sha1.New() },
	})
	register(&algo{
		id:       SHA256,
		prefix:   "ni:///sha-256;",
		encoding: Base64URL,
		size:     sha256.Size,
		factory:  func() hash.Hash { return sha256.New() },
	})
	register(&algo{
		id:       Blake3,
		prefix:   "urn:blake3:",
		encoding: Base32,
		size:     32,
		factory:  func() hash.Hash { return blake3.New(32, nil) },
	})
	register(&algo{
		id:       XXH64,
		prefix:   "urn:xxh64:",
		encoding: Decimal,
		size:     8,
		factory:  func() hash.Hash { return xxhash.New() },
	})
	register(&algo{
		id:       Highway64,
		prefix:   "urn:highway:",
		encoding: Decimal,
		size:     8,
		factory: func() hash.Hash {
			h, err := highwayhash.New64(highwayKey)
			if err != nil {
				panic(err)
			}
			return h
		},
	})
}
