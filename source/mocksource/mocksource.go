// Package mocksource provides a deterministic, hand-built space topology
// used by tests and the demo entry point, grounded on the named-space
// topology the original substream mock built for its own demo: a root with
// two canonical islands of explicit edges, two disconnected non-canonical
// islands, one isolated non-canonical space, and a handful of topic edges
// exercising both the canonical-attachment and the filtered-out cases.
package mocksource

import (
	"context"

	"github.com/atlasxyz/atlas/events"
	"github.com/atlasxyz/atlas/source"
)

func space(n byte) events.SpaceId {
	var id events.SpaceId
	id[15] = n
	return id
}

func topic(n byte) events.TopicId {
	var id events.TopicId
	id[15] = n
	return id
}

// Named spaces, matching the demo topology's labels.
var (
	Root = space(0x01)
	A    = space(0x02)
	B    = space(0x03)
	C    = space(0x04)
	D    = space(0x05)
	E    = space(0x06)
	F    = space(0x07)
	G    = space(0x08)
	H    = space(0x09)
	I    = space(0x0A)
	J    = space(0x0B)
	X    = space(0x0C)
	Y    = space(0x0D)
	Z    = space(0x0E)
	W    = space(0x0F)
	P    = space(0x10)
	Q    = space(0x11)
	S    = space(0x12)
)

// Named topics, one per space, plus the shared topics used by subtopic
// edges below.
var (
	TopicRoot = topic(0x01)
	TopicA    = topic(0x02)
	TopicB    = topic(0x03)
	TopicC    = topic(0x04)
	TopicD    = topic(0x05)
	TopicE    = topic(0x06)
	TopicF    = topic(0x07)
	TopicG    = topic(0x08)
	TopicH    = topic(0x09)
	TopicI    = topic(0x0A)
	TopicJ    = topic(0x0B)
	TopicX    = topic(0x0C)
	TopicY    = topic(0x0D)
	TopicZ    = topic(0x0E)
	TopicW    = topic(0x0F)
	TopicP    = topic(0x10)
	TopicQ    = topic(0x11)
	TopicS    = topic(0x12)
)

var allSpaces = []struct {
	id    events.SpaceId
	topic events.TopicId
}{
	{Root, TopicRoot}, {A, TopicA}, {B, TopicB}, {C, TopicC}, {D, TopicD},
	{E, TopicE}, {F, TopicF}, {G, TopicG}, {H, TopicH}, {I, TopicI}, {J, TopicJ},
	{X, TopicX}, {Y, TopicY}, {Z, TopicZ}, {W, TopicW},
	{P, TopicP}, {Q, TopicQ}, {S, TopicS},
}

var explicitEdges = []struct {
	from, to events.SpaceId
	kind     events.ExtensionKind
}{
	// Canonical tree: 11 spaces (Root + A..J) reachable from Root.
	{Root, A, events.ExtensionVerified},
	{Root, B, events.ExtensionVerified},
	{Root, H, events.ExtensionRelated},
	{A, C, events.ExtensionVerified},
	{A, D, events.ExtensionRelated},
	{B, E, events.ExtensionVerified},
	{C, F, events.ExtensionVerified},
	{C, G, events.ExtensionRelated},
	{H, I, events.ExtensionVerified},
	{H, J, events.ExtensionVerified},

	// Non-canonical island 1: X -> Y -> Z, X -> W (4 spaces).
	{X, Y, events.ExtensionVerified},
	{Y, Z, events.ExtensionVerified},
	{X, W, events.ExtensionVerified},

	// Non-canonical island 2: P -> Q (2 spaces).
	{P, Q, events.ExtensionVerified},

	// S is isolated: no explicit edges at all.
}

// metadataURIs supplies a MetadataURI for a couple of spaces, so the demo
// topology exercises the IPFS pre-fetch cache instead of leaving it
// permanently idle; every other space announces no profile content.
var metadataURIs = map[events.SpaceId]string{
	Root: "ipfs://bafybeigroottopologyprofile",
	A:    "ipfs://bafybeiaspaceaprofile",
}

var subtopicEdges = []struct {
	from  events.SpaceId
	topic events.TopicId
}{
	// H picks up B's canonical subtree via a shared topic: both are
	// canonical, so this duplicates B's filtered subtree under H.
	{H, TopicB},
	// C points at X's topic; X is not canonical, so this contributes
	// nothing to the canonical tree.
	{C, TopicX},
	// Root points at P's topic; P is not canonical either.
	{Root, TopicP},
	// G points at S's topic; S is isolated and not canonical.
	{G, TopicS},
	// I picks up J's (canonical, leaf) subtree via a shared topic.
	{I, TopicJ},
}

// DeterministicTopology returns every event needed to build the topology
// described above, in a valid apply order: every SpaceCreated before any
// TrustExtended that references it.
func DeterministicTopology() []events.Event {
	var out []events.Event
	blockNumber := uint64(1_000_000)
	cursor := 0
	nextMeta := func() events.BlockMetadata {
		cursor++
		m := events.BlockMetadata{
			BlockNumber:    blockNumber,
			BlockTimestamp: blockNumber * 12,
			Cursor:         cursorLabel(cursor),
		}
		blockNumber++
		return m
	}

	for _, sp := range allSpaces {
		out = append(out, events.Event{
			Meta: nextMeta(),
			Payload: events.SpaceCreated{
				SpaceID:     sp.id,
				TopicID:     sp.topic,
				SpaceType:   events.SpaceTypeDao,
				MetadataURI: metadataURIs[sp.id],
			},
		})
	}
	for _, e := range explicitEdges {
		out = append(out, events.Event{
			Meta: nextMeta(),
			Payload: events.TrustExtended{
				SourceSpaceID: e.from,
				Kind:          e.kind,
				TargetSpaceID: e.to,
			},
		})
	}
	for _, e := range subtopicEdges {
		out = append(out, events.Event{
			Meta: nextMeta(),
			Payload: events.TrustExtended{
				SourceSpaceID: e.from,
				Kind:          events.ExtensionSubtopic,
				TargetTopicID: e.topic,
			},
		})
	}

	return out
}

func cursorLabel(n int) string {
	const digits = "0123456789"
	if n == 0 {
		return "cursor_0"
	}
	buf := []byte("cursor_")
	var digitsBuf []byte
	for n > 0 {
		digitsBuf = append([]byte{digits[n%10]}, digitsBuf...)
		n /= 10
	}
	return string(append(buf, digitsBuf...))
}

// Source replays DeterministicTopology as a single block, then terminates.
// It is the integration-test seam: a real substream connection is swapped
// in behind the same source.Source interface in production.
type Source struct {
	done bool
}

// New builds a mock Source over the deterministic topology.
func New() *Source {
	return &Source{}
}

func (s *Source) Next(ctx context.Context) (*events.Block, error) {
	if s.done {
		return nil, source.ErrTerminated
	}
	s.done = true

	evts := DeterministicTopology()
	last := evts[len(evts)-1].Meta
	return &events.Block{
		BlockNumber:    last.BlockNumber,
		BlockTimestamp: last.BlockTimestamp,
		Cursor:         last.Cursor,
		Events:         evts,
	}, nil
}

func (s *Source) HandleUndo(ctx context.Context, backToBlock uint64) error {
	return nil
}
