package stream_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/glyphic/descry/digest"
	"github.com/glyphic/descry/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func algos(t *testing.T, ids ...digest.AlgoID) []digest.Algorithm {
	t.Helper()
	var out []digest.Algorithm
	for _, id := range ids {
		a, err := digest.ByID(id)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

// countingReader fails the one-pass invariant if any byte is served twice.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestFinalizeWithoutConsumer(t *testing.T) {
	data := bytes.Repeat([]byte("descry"), 4096)
	cr := &countingReader{r: bytes.NewReader(data)}
	src := stream.New(cr, algos(t, digest.MD5, digest.SHA256))

	digests, total, err := src.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), total)
	assert.Equal(t, len(data), cr.read, "source must be read exactly once")

	wantMD5 := md5.Sum(data)
	wantSHA := sha256.Sum256(data)
	assert.Equal(t, wantMD5[:], digests["md5"])
	assert.Equal(t, wantSHA[:], digests["sha256"])
}

func TestHeadThenFinalize(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10000)
	cr := &countingReader{r: bytes.NewReader(data)}
	src := stream.New(cr, algos(t, digest.MD5))

	head, short, err := src.Head(64)
	require.NoError(t, err)
	assert.False(t, short)
	assert.Equal(t, data[:64], head)

	// Head is idempotent.
	again, _, err := src.Head(64)
	require.NoError(t, err)
	assert.Equal(t, head, again)

	digests, total, err := src.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), total)
	assert.Equal(t, len(data), cr.read)
	want := md5.Sum(data)
	assert.Equal(t, want[:], digests["md5"])
}

func TestSequentialReadFeedsSinksOnce(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	src := stream.New(bytes.NewReader(data), algos(t, digest.MD5))

	_, _, err := src.Head(8)
	require.NoError(t, err)

	got, err := io.ReadAll(src.Reader())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	digests, total, err := src.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), total)
	want := md5.Sum(data)
	assert.Equal(t, want[:], digests["md5"])
}

func TestRewindWithinHead(t *testing.T) {
	data := bytes.Repeat([]byte("x"), stream.MaxHeaderBytes*2)
	src := stream.New(bytes.NewReader(data), algos(t, digest.MD5))

	_, _, err := src.Head(stream.MaxHeaderBytes)
	require.NoError(t, err)

	buf := make([]byte, 100)
	_, err = io.ReadFull(src.Reader(), buf)
	require.NoError(t, err)
	require.NoError(t, src.Rewind())

	// Consuming past the head forbids further rewinds.
	_, err = io.ReadAll(src.Reader())
	require.NoError(t, err)
	assert.ErrorIs(t, src.Rewind(), stream.ErrRewind)

	digests, _, err := src.Finalize(context.Background())
	require.NoError(t, err)
	want := md5.Sum(data)
	assert.Equal(t, want[:], digests["md5"], "rewound bytes must still hash exactly once")
}

func TestShortHead(t *testing.T) {
	src := stream.New(bytes.NewReader([]byte("hi")), algos(t, digest.MD5))
	head, short, err := src.Head(64)
	require.NoError(t, err)
	assert.True(t, short)
	assert.Equal(t, []byte("hi"), head)
}

func TestEmptySource(t *testing.T) {
	src := stream.New(bytes.NewReader(nil), algos(t, digest.MD5))
	head, short, err := src.Head(16)
	require.NoError(t, err)
	assert.True(t, short)
	assert.Empty(t, head)

	digests, total, err := src.Finalize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
	want := md5.Sum(nil)
	assert.Equal(t, want[:], digests["md5"])
}

func TestFinalizeIdempotent(t *testing.T) {
	src := stream.New(bytes.NewReader([]byte("abc")), algos(t, digest.MD5))
	first, total, err := src.Finalize(context.Background())
	require.NoError(t, err)
	second, total2, err := src.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, total, total2)
}
