package format

import (
	"context"
	"time"

	"github.com/glyphic/descry/entity"
)

// ContainerEntry is one member of a parsed container, with enough identity
// for cycle avoidance and a factory for opening the member's bytes.
type ContainerEntry struct {
	Name     string
	Path     string
	Dir      bool
	Size     int64
	Modified time.Time
	Key      entity.Key
	Open     entity.StreamFactory
}

// Container is implemented by parsed values whose members should re-enter
// the pipeline as child entities. Entries are visited in container order.
type Container interface {
	Entries(ctx context.Context, visit func(e ContainerEntry) error) error
}

// ParallelContainer marks containers whose members can be descended
// concurrently (random-access archives). Sequential containers such as TAR
// must be walked in order.
type ParallelContainer interface {
	Container
	Parallel() bool
}
