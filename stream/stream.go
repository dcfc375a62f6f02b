// Package stream implements the single-pass hash multiplexer. A Source wraps
// a raw byte stream, exposes an idempotent head window for format detection,
// and feeds every byte to each attached digest sink exactly once, regardless
// of how far the consumer reads before the stream is finalized.
package stream

import (
	"context"
	"errors"
	"hash"
	"io"

	"github.com/glyphic/descry/digest"
)

// MaxHeaderBytes caps the head window. It must be at least as long as the
// longest registered format signature.
const MaxHeaderBytes = 4096

// ErrRewind is returned when a consumer attempts to rewind past the head
// buffer on a source that has no seekable backing.
var ErrRewind = errors.New("stream: cannot rewind past head buffer")

// ErrFinalized is returned for reads after Finalize.
var ErrFinalized = errors.New("stream: source already finalized")

// Source multiplexes one underlying reader to N digest sinks while serving a
// sequential consumer. It owns the underlying reader for its lifetime.
type Source struct {
	src   io.Reader
	algos []digest.Algorithm
	sinks []hash.Hash

	head     []byte
	srcDone  bool
	consumed int
	hashed   int64

	finalized bool
	digests   map[string][]byte
	total     int64
}

// New attaches one fresh sink per algorithm to r.
func New(r io.Reader, algos []digest.Algorithm) *Source {
	s := &Source{src: r, algos: algos}
	s.sinks = make([]hash.Hash, len(algos))
	for i, a := range algos {
		s.sinks[i] = a.New()
	}
	return s
}

// Head returns a non-destructive view of the first n bytes, capped at
// MaxHeaderBytes. The second result reports whether the source ended before
// n bytes were available. Head is idempotent; it only grows the buffer while
// no sequential read has happened yet.
func (s *Source) Head(n int) ([]byte, bool, error) {
	if s.finalized {
		return nil, false, ErrFinalized
	}
	if n > MaxHeaderBytes {
		n = MaxHeaderBytes
	}
	if s.consumed == 0 {
		if err := s.fill(n); err != nil {
			return nil, false, err
		}
	}
	if n > len(s.head) {
		return s.head, true, nil
	}
	return s.head[:n], false, nil
}

func (s *Source) fill(n int) error {
	for len(s.head) < n && !s.srcDone {
		buf := make([]byte, n-len(s.head))
		m, err := s.src.Read(buf)
		s.head = append(s.head, buf[:m]...)
		if err == io.EOF {
			s.srcDone = true
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Reader returns the consuming sequential view. Bytes served to the consumer
// advance the digest sinks in order, each byte exactly once.
func (s *Source) Reader() io.Reader {
	return (*sequential)(s)
}

type sequential Source

func (q *sequential) Read(p []byte) (int, error) {
	s := (*Source)(q)
	if s.finalized {
		return 0, ErrFinalized
	}
	var n int
	var err error
	if s.consumed < len(s.head) {
		n = copy(p, s.head[s.consumed:])
	} else if s.srcDone {
		return 0, io.EOF
	} else {
		n, err = s.src.Read(p)
		if err == io.EOF {
			s.srcDone = true
		}
	}
	if high := int64(s.consumed + n); high > s.hashed {
		s.feed(p[:n][int(s.hashed)-s.consumed:])
	}
	s.consumed += n
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (s *Source) feed(p []byte) {
	for _, sink := range s.sinks {
		sink.Write(p)
	}
	s.hashed += int64(len(p))
}

// Rewind resets the sequential cursor to the start. It only succeeds while
// the consumer has not read past the head buffer.
func (s *Source) Rewind() error {
	if s.finalized {
		return ErrFinalized
	}
	if int64(s.consumed) > int64(len(s.head)) || s.hashed > int64(len(s.head)) {
		return ErrRewind
	}
	s.consumed = 0
	return nil
}

// Finalize drains the remainder of the source through the sinks, closes the
// stream for further reads and returns the digests keyed by algorithm id
// along with the total byte length. It is idempotent.
func (s *Source) Finalize(ctx context.Context) (map[string][]byte, int64, error) {
	if s.finalized {
		return s.digests, s.total, nil
	}
	// Unconsumed head bytes never reached the sinks; feed them first.
	if rest := int64(len(s.head)) - s.hashed; rest > 0 {
		s.feed(s.head[len(s.head)-int(rest):])
	}
	if !s.srcDone {
		buf := make([]byte, 32*1024)
		for {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			n, err := s.src.Read(buf)
			if n > 0 {
				s.feed(buf[:n])
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, 0, err
			}
		}
	}
	s.finalized = true
	s.total = s.hashed
	s.digests = make(map[string][]byte, len(s.algos))
	for i, a := range s.algos {
		s.digests[string(a.ID())] = s.sinks[i].Sum(nil)
	}
	if c, ok := s.src.(io.Closer); ok {
		c.Close()
	}
	return s.digests, s.total, nil
}
