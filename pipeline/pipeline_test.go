package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/atlasxyz/atlas/events"
	"github.com/atlasxyz/atlas/graph"
	"github.com/atlasxyz/atlas/ipfscache"
	"github.com/atlasxyz/atlas/pending"
	"github.com/atlasxyz/atlas/pipeline"
	"github.com/atlasxyz/atlas/postgres"
	"github.com/atlasxyz/atlas/source"
)

type stubSource struct {
	blocks []*events.Block
	i      int
}

func (s *stubSource) Next(ctx context.Context) (*events.Block, error) {
	if s.i >= len(s.blocks) {
		return nil, source.ErrTerminated
	}
	b := s.blocks[s.i]
	s.i++
	return b, nil
}

func (s *stubSource) HandleUndo(ctx context.Context, backToBlock uint64) error { return nil }

type stubSink struct {
	emitted []*graph.CanonicalGraph
}

func (s *stubSink) Emit(ctx context.Context, g *graph.CanonicalGraph, meta events.BlockMetadata) error {
	s.emitted = append(s.emitted, g)
	return nil
}

type stubCheckpoint struct {
	cursor      string
	blockNumber uint64
	state       []byte
	found       bool
}

func (c *stubCheckpoint) LoadCheckpoint(ctx context.Context) (string, uint64, []byte, bool, error) {
	return c.cursor, c.blockNumber, c.state, c.found, nil
}

func (c *stubCheckpoint) PersistCheckpoint(ctx context.Context, cursor string, blockNumber uint64, state []byte) error {
	c.cursor, c.blockNumber, c.state, c.found = cursor, blockNumber, state, true
	return nil
}

type fakeGateway struct {
	fetched []string
}

func (g *fakeGateway) Fetch(ctx context.Context, uri string) ([]byte, error) {
	g.fetched = append(g.fetched, uri)
	return []byte("content"), nil
}

type fakeCacheStore struct {
	failURIs map[string]bool
	inserted []postgres.CacheItem
}

func (s *fakeCacheStore) InsertIpfsCacheItem(ctx context.Context, item postgres.CacheItem) error {
	if s.failURIs[item.URI] {
		return errors.New("fake: insert failed")
	}
	s.inserted = append(s.inserted, item)
	return nil
}

func sid(b byte) events.SpaceId {
	var id events.SpaceId
	id[15] = b
	return id
}

func tid(b byte) events.TopicId {
	var id events.TopicId
	id[15] = b
	return id
}

func TestPipelineEmitsOnCanonicalChangeAndPersists(t *testing.T) {
	root, a := sid(1), sid(2)

	block := &events.Block{
		BlockNumber: 100,
		Cursor:      "cursor_100",
		Events: []events.Event{
			{Payload: events.SpaceCreated{SpaceID: root, TopicID: tid(1)}},
			{Payload: events.SpaceCreated{SpaceID: a, TopicID: tid(2)}},
			{Payload: events.TrustExtended{SourceSpaceID: root, Kind: events.ExtensionVerified, TargetSpaceID: a}},
		},
	}

	src := &stubSource{blocks: []*events.Block{block}}
	sink := &stubSink{}
	checkpoint := &stubCheckpoint{}

	p := pipeline.New(src, sink, checkpoint, nil, root, silentLogger())
	assert.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 1, len(sink.emitted))
	assert.True(t, sink.emitted[0].Contains(a))
	assert.True(t, checkpoint.found)
	assert.Equal(t, uint64(100), checkpoint.blockNumber)
}

func TestPipelineSkipsEmitWhenEventDoesNotAffectCanonical(t *testing.T) {
	root, island := sid(1), sid(9)

	block := &events.Block{
		BlockNumber: 1,
		Cursor:      "cursor_1",
		Events: []events.Event{
			{Payload: events.SpaceCreated{SpaceID: root, TopicID: tid(1)}},
			{Payload: events.SpaceCreated{SpaceID: island, TopicID: tid(9)}},
		},
	}

	src := &stubSource{blocks: []*events.Block{block}}
	sink := &stubSink{}

	p := pipeline.New(src, sink, nil, nil, root, silentLogger())
	assert.NoError(t, p.Run(context.Background()))

	// SpaceCreated events never affect the canonical graph, so a block of
	// only SpaceCreated events triggers no compute and no emit.
	assert.Equal(t, 0, len(sink.emitted))
}

func TestPipelineRestoreLoadsSnapshot(t *testing.T) {
	root, a := sid(1), sid(2)
	state := graph.New()
	assert.NoError(t, state.Apply(events.Event{Payload: events.SpaceCreated{SpaceID: root, TopicID: tid(1)}}))
	assert.NoError(t, state.Apply(events.Event{Payload: events.SpaceCreated{SpaceID: a, TopicID: tid(2)}}))
	assert.NoError(t, state.Apply(events.Event{Payload: events.TrustExtended{SourceSpaceID: root, Kind: events.ExtensionVerified, TargetSpaceID: a}}))
	snapshot, err := state.MarshalBinary()
	assert.NoError(t, err)

	checkpoint := &stubCheckpoint{cursor: "cursor_50", blockNumber: 50, state: snapshot, found: true}
	src := &stubSource{}
	sink := &stubSink{}

	p := pipeline.New(src, sink, checkpoint, nil, root, silentLogger())
	blockNumber, err := p.Restore(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, uint64(50), blockNumber)
}

func TestPipelineDrivesPrefetchBeforeApplyingBlockEvents(t *testing.T) {
	root, a := sid(1), sid(2)

	block := &events.Block{
		BlockNumber: 100,
		Cursor:      "cursor_100",
		Events: []events.Event{
			{Payload: events.SpaceCreated{SpaceID: root, TopicID: tid(1)}},
			{Payload: events.SpaceCreated{SpaceID: a, TopicID: tid(2), MetadataURI: "ipfs://profile-a"}},
			{Payload: events.TrustExtended{SourceSpaceID: root, Kind: events.ExtensionVerified, TargetSpaceID: a}},
		},
	}

	src := &stubSource{blocks: []*events.Block{block}}
	sink := &stubSink{}
	gateway := &fakeGateway{}
	store := &fakeCacheStore{}
	prefetch := ipfscache.New(gateway, store, pending.New(), nil, nil)

	p := pipeline.New(src, sink, nil, prefetch, root, silentLogger())
	assert.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"ipfs://profile-a"}, gateway.fetched)
	assert.Equal(t, 1, len(store.inserted))
	assert.Equal(t, 1, len(sink.emitted))
}

func TestPipelineFailsBlockWhenPrefetchCacheWriteFails(t *testing.T) {
	root, a := sid(1), sid(2)

	block := &events.Block{
		BlockNumber: 100,
		Cursor:      "cursor_100",
		Events: []events.Event{
			{Payload: events.SpaceCreated{SpaceID: root, TopicID: tid(1)}},
			{Payload: events.SpaceCreated{SpaceID: a, TopicID: tid(2), MetadataURI: "ipfs://unwritable"}},
			{Payload: events.TrustExtended{SourceSpaceID: root, Kind: events.ExtensionVerified, TargetSpaceID: a}},
		},
	}

	src := &stubSource{blocks: []*events.Block{block}}
	sink := &stubSink{}
	store := &fakeCacheStore{failURIs: map[string]bool{"ipfs://unwritable": true}}
	prefetch := ipfscache.New(&fakeGateway{}, store, pending.New(), nil, nil)

	p := pipeline.New(src, sink, nil, prefetch, root, silentLogger())
	err := p.Run(context.Background())

	assert.Error(t, err)
	// The block never applied: no event reached GraphState, so nothing emitted.
	assert.Equal(t, 0, len(sink.emitted))
}
