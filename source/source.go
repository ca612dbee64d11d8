// Package source defines the boundary contract Atlas consumes blocks
// through, independent of whether they come from a live substreams
// connection or a mock.
package source

import (
	"context"
	"errors"

	"github.com/atlasxyz/atlas/events"
)

// ErrTerminated is returned by Next when the source has no more blocks to
// offer and the pipeline should exit cleanly (exit code 0).
var ErrTerminated = errors.New("source: terminated")

// Source yields blocks of space-topology events in order. Next blocks until
// a block is available, ctx is cancelled, or the source is exhausted.
type Source interface {
	// Next returns the next block, or ErrTerminated if the source is
	// exhausted. Any other error is a SourceError: fatal, non-zero exit.
	Next(ctx context.Context) (*events.Block, error)

	// HandleUndo is called when the source signals a reorg invalidating
	// blocks back to the given block number. Atlas does not rewind graph
	// state; implementations should treat this as an unrecoverable
	// condition for the caller to act on.
	HandleUndo(ctx context.Context, backToBlock uint64) error
}
