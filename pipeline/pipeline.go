// Package pipeline is the event-loop runtime: it drives a source.Source,
// applies events to a graph.GraphState, keeps the transitive cache and
// canonical processor current, persists a checkpoint, and emits canonical
// updates — in that order, so a crash between persist and emit only risks a
// redundant (idempotent) re-emit, never a lost or out-of-order one.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/atlasxyz/atlas/events"
	"github.com/atlasxyz/atlas/graph"
	"github.com/atlasxyz/atlas/ipfscache"
	"github.com/atlasxyz/atlas/source"
)

// Sink is the narrow interface pipeline needs from kafkasink.Emitter,
// allowing the pipeline to be exercised in tests without a broker.
type Sink interface {
	Emit(ctx context.Context, g *graph.CanonicalGraph, meta events.BlockMetadata) error
}

// Checkpointer is the narrow interface pipeline needs from postgres.Store.
type Checkpointer interface {
	LoadCheckpoint(ctx context.Context) (cursor string, blockNumber uint64, state []byte, found bool, err error)
	PersistCheckpoint(ctx context.Context, cursor string, blockNumber uint64, state []byte) error
}

// Pipeline owns the single-writer core: GraphState, the transitive cache,
// and the canonical processor all mutate on the same goroutine that calls
// Run, with no internal locking of its own.
type Pipeline struct {
	source     source.Source
	sink       Sink
	checkpoint Checkpointer
	prefetch   *ipfscache.Sink
	log        *zerolog.Logger

	state      *graph.GraphState
	transitive *graph.TransitiveProcessor
	canonical  *graph.CanonicalProcessor

	lastCanonicalSet map[events.SpaceId]struct{}
}

// New builds a Pipeline rooted at rootSpaceID. prefetch may be nil, in
// which case blocks are applied without any IPFS pre-fetch gate (used by
// tests and any deployment without a configured cache store).
func New(src source.Source, sink Sink, checkpoint Checkpointer, prefetch *ipfscache.Sink, rootSpaceID events.SpaceId, log *zerolog.Logger) *Pipeline {
	return &Pipeline{
		source:     src,
		sink:       sink,
		checkpoint: checkpoint,
		prefetch:   prefetch,
		log:        log,
		state:      graph.New(),
		transitive: graph.NewTransitiveProcessor(),
		canonical:  graph.NewCanonicalProcessor(rootSpaceID),
	}
}

// Restore loads a prior checkpoint, if any, into the pipeline's state. It
// must be called before Run. Returns the last persisted block number (zero
// if there was no checkpoint) so the caller can configure its source to
// resume from there.
func (p *Pipeline) Restore(ctx context.Context) (blockNumber uint64, err error) {
	if p.checkpoint == nil {
		return 0, nil
	}
	_, blockNumber, state, found, err := p.checkpoint.LoadCheckpoint(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: restore: %w", err)
	}
	if !found {
		return 0, nil
	}
	if err := p.state.UnmarshalBinary(state); err != nil {
		return 0, fmt.Errorf("pipeline: restore: decode snapshot: %w", err)
	}
	return blockNumber, nil
}

// ErrBlockUndo names the failure for a source-signalled reorg. Atlas does
// not rewind graph state. Run never returns it: Source.Next has no way to
// signal a reorg, and nothing in this package calls Source.HandleUndo.
var ErrBlockUndo = errors.New("pipeline: block undo signalled, reorg handling is out of scope")

// Run drives the source until it terminates, applying every block's events
// in order and emitting a canonical update whenever the canonical tree
// actually changes. It returns nil on clean termination (source.ErrTerminated)
// and a wrapped error otherwise.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		block, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrTerminated) {
				return nil
			}
			return fmt.Errorf("pipeline: source error: %w", err)
		}

		if err := p.processBlock(ctx, block); err != nil {
			return err
		}
	}
}

func (p *Pipeline) processBlock(ctx context.Context, block *events.Block) error {
	// Per the pending-fetch cursor manager's correctness contract, a block
	// is only applied to graph state once every IPFS URI its events
	// reference has resolved (successfully or as a recorded fetch error)
	// and the pending manager has drained this block to the minimum
	// tracked block. Pipeline processes one block at a time, so waiting
	// here for PrefetchBlock to return is sufficient: no later block's
	// fetches can be registered first.
	if p.prefetch != nil {
		requests := ipfscache.RequestsForBlock(block)
		if err := p.prefetch.PrefetchBlock(ctx, block.BlockNumber, block.Cursor, requests); err != nil {
			return fmt.Errorf("pipeline: prefetch block %d: %w", block.BlockNumber, err)
		}
	}

	snapshot := p.lastCanonicalSet

	for _, e := range block.Events {
		affects := graph.AffectsCanonical(e, snapshot)

		if err := p.state.Apply(e); err != nil {
			if errors.Is(err, graph.ErrSpaceTopicMismatch) {
				panic(fmt.Sprintf("pipeline: decode invariant violated: %v", err))
			}
			return fmt.Errorf("pipeline: apply event: %w", err)
		}
		p.transitive.HandleEvent(e)

		if affects {
			if g := p.canonical.Compute(p.state, p.transitive); g != nil {
				if err := p.persistAndEmit(ctx, g, block); err != nil {
					return err
				}
				snapshot = g.Flat
			}
		}
	}

	p.lastCanonicalSet = snapshot
	return nil
}

func (p *Pipeline) persistAndEmit(ctx context.Context, g *graph.CanonicalGraph, block *events.Block) error {
	if p.checkpoint != nil {
		snapshot, err := p.state.MarshalBinary()
		if err != nil {
			return fmt.Errorf("pipeline: marshal snapshot: %w", err)
		}
		if err := p.checkpoint.PersistCheckpoint(ctx, block.Cursor, block.BlockNumber, snapshot); err != nil {
			return fmt.Errorf("pipeline: persist checkpoint: %w", err)
		}
	}

	meta := events.BlockMetadata{BlockNumber: block.BlockNumber, BlockTimestamp: block.BlockTimestamp, Cursor: block.Cursor}
	if err := p.sink.Emit(ctx, g, meta); err != nil {
		return fmt.Errorf("pipeline: emit: %w", err)
	}
	return nil
}

// Close releases pipeline-owned resources, combining any errors the way the
// teacher's Task.Close does.
func (p *Pipeline) Close() error {
	var err error
	if closer, ok := p.source.(interface{ Close() error }); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
