package ipfscache

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/atlasxyz/atlas/events"
	"github.com/atlasxyz/atlas/pending"
	"github.com/atlasxyz/atlas/postgres"
)

// maxConcurrentFetches bounds how many gateway fetches run at once, the way
// the teacher bounds concurrent work with a fixed-size worker pool.
const maxConcurrentFetches = 20

// FetchRequest is one URI to resolve on behalf of a space, within a block.
type FetchRequest struct {
	URI     string
	SpaceID events.SpaceId
}

// CacheStore is the narrow persistence surface Sink needs from
// postgres.Store, so it can be exercised in tests without a live database.
type CacheStore interface {
	InsertIpfsCacheItem(ctx context.Context, item postgres.CacheItem) error
}

// Sink fetches content for every requested URI in a block with bounded
// concurrency, caches results (or failures) in Postgres, and reports
// completions to a pending.Manager so the pipeline knows when it's safe to
// advance its persisted cursor past a block.
type Sink struct {
	gateway   Gateway
	store     CacheStore
	pending   *pending.Manager
	log       *zerolog.Logger
	sem       *semaphore.Weighted
	onAdvance func(block uint64, cursor string)
}

// New builds a Sink. onAdvance is called whenever a completed fetch brings
// the pending manager's minimum tracked block to zero-pending, with the
// most advanced (block, cursor) pair now safe to persist. It may be nil.
// The pipeline does not use it (it persists its checkpoint itself);
// cmd/atlas only logs it.
func New(gateway Gateway, store CacheStore, pendingMgr *pending.Manager, log *zerolog.Logger, onAdvance func(block uint64, cursor string)) *Sink {
	return &Sink{
		gateway:   gateway,
		store:     store,
		pending:   pendingMgr,
		log:       log,
		sem:       semaphore.NewWeighted(maxConcurrentFetches),
		onAdvance: onAdvance,
	}
}

// PrefetchBlock registers block's fetch requests with the pending manager
// and launches them with bounded concurrency. It returns once every fetch
// for this block has either succeeded or recorded a non-fatal
// IpfsFetchError — a broken URI is cached as errored=true rather than
// retried indefinitely, and does not fail the block. A failure to persist
// the cache row itself (a real Postgres error, not a gateway error) does
// fail the block: that fetch is never reported complete to the pending
// manager, so its block's pending count never drains and the cursor can
// never advance past it on an unconfirmed write.
func (s *Sink) PrefetchBlock(ctx context.Context, blockNumber uint64, cursor string, requests []FetchRequest) error {
	s.pending.AddBlock(blockNumber, cursor, len(requests))
	if len(requests) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("ipfscache: acquire: %w", err)
			}
			defer s.sem.Release(1)

			return s.fetchOne(ctx, blockNumber, req)
		})
	}
	return g.Wait()
}

func (s *Sink) fetchOne(ctx context.Context, blockNumber uint64, req FetchRequest) error {
	content, err := s.gateway.Fetch(ctx, req.URI)
	item := postgres.CacheItem{
		URI:     req.URI,
		Block:   fmt.Sprintf("%d", blockNumber),
		SpaceID: hex.EncodeToString(req.SpaceID[:]),
	}
	if err != nil {
		item.IsErrored = true
	} else {
		item.Content = content
	}

	if err := s.store.InsertIpfsCacheItem(ctx, item); err != nil {
		if s.log != nil {
			s.log.Error().Err(err).Str("uri", req.URI).Uint64("block_number", blockNumber).
				Msg("ipfscache: cache write failed, not advancing cursor past this block")
		}
		return fmt.Errorf("ipfscache: persist cache item %q: %w", req.URI, err)
	}

	if block, cursor, advanced := s.pending.CompleteOne(blockNumber); advanced && s.onAdvance != nil {
		s.onAdvance(block, cursor)
	}
	return nil
}

// RequestsForBlock derives the IPFS fetch requests a block's events imply:
// one per SpaceCreated event that announces a non-empty MetadataURI.
func RequestsForBlock(block *events.Block) []FetchRequest {
	var requests []FetchRequest
	for _, e := range block.Events {
		created, ok := e.Payload.(events.SpaceCreated)
		if !ok || created.MetadataURI == "" {
			continue
		}
		requests = append(requests, FetchRequest{URI: created.MetadataURI, SpaceID: created.SpaceID})
	}
	return requests
}

// Close releases resources owned by the sink. It currently has none of its
// own (the semaphore and pending.Manager are stateless to close), but
// exists so callers can multierr.Append it alongside other owned resources
// uniformly.
func (s *Sink) Close() error {
	return multierr.Combine()
}
