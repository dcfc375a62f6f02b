// Package entity defines the value types that flow through the description
// pipeline: opaque data objects, file and directory nodes, format matches and
// the persistent keys used for cycle avoidance during container descent.
package entity

import (
	"context"
	"io"
	"time"
)

// StreamFactory opens a fresh reader over an entity's bytes. Implementations
// must return an independent cursor on every call so that hashing and format
// parsing can proceed over the same content concurrently.
type StreamFactory func(ctx context.Context) (io.ReadCloser, error)

// Kind classifies a file node within its container.
type Kind int

const (
	KindRegular Kind = iota
	KindArchiveItem
	KindEmbedded
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindArchiveItem:
		return "archive-item"
	case KindEmbedded:
		return "embedded"
	case KindDirectory:
		return "directory"
	}
	return "unknown"
}

// FormatRef identifies a file format descriptor without depending on the
// format package. The format registry's descriptors satisfy it.
type FormatRef interface {
	Name() string
	MediaType() string
	Extension() string
}

// FormatMatch records one successful detector invocation over a data object.
// At most one match per format is recorded; multiple formats per object are
// allowed and each yields its own linked child node.
type FormatMatch struct {
	Format    FormatRef
	Value     any
	MediaType string
	Extension string
}

// DataObject is an opaque byte blob described by the pipeline: its length,
// digests, detected character properties and the formats that claimed it.
// Open yields fresh cursors when the source is reopenable; Stream is the
// one-shot fallback for non-seekable sources: all format candidates share
// one cursor that can only be rewound within the head window, so once a
// matcher reads past it the remaining candidates are not probed.
type DataObject struct {
	IsBinary bool
	Charset  string
	Length   int64
	Digests  map[string][]byte
	Open     StreamFactory
	Stream   io.Reader
	Formats  []FormatMatch
}

// FileNode names a data object inside a file system or container.
type FileNode struct {
	Name     string
	Path     string
	Created  time.Time
	Modified time.Time
	Accessed time.Time
	Revision string
	Kind     Kind
	Key      Key
	Data     *DataObject
}

// DirectoryNode is a file node with ordered children.
type DirectoryNode struct {
	FileNode
	Children []*FileNode
}

// FormatObject wraps a successful format match as an entity of its own so
// format-specific analyzers can be dispatched on the parsed value.
type FormatObject struct {
	Match FormatMatch
	Data  *DataObject
}

// Key is a persistent identity pair used to detect back-references while a
// descent is on the stack. Archive entries use (reader instance, path);
// file systems use (device, inode) or (volume, path).
type Key struct {
	Reference string
	Data      string
}

// Zero reports whether the key carries no identity.
func (k Key) Zero() bool {
	return k.Reference == "" && k.Data == ""
}
