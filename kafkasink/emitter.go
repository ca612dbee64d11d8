package kafkasink

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/atlasxyz/atlas/events"
	"github.com/atlasxyz/atlas/graph"
	"github.com/atlasxyz/atlas/pb"
)

// Emitter converts a computed CanonicalGraph into the wire-format
// CanonicalGraphUpdated message and publishes it, keyed by root_id so all
// updates for a given root land on the same partition. It owns the
// monotonically increasing sequence number.
type Emitter struct {
	producer *Producer
	log      *zerolog.Logger
	seq      uint64
}

// NewEmitter builds an Emitter around producer.
func NewEmitter(producer *Producer, log *zerolog.Logger) *Emitter {
	return &Emitter{producer: producer, log: log}
}

// Emit serializes g and meta and publishes them, then advances the
// sequence number. Sequence numbers restart from zero on process restart;
// downstream consumers are expected to be idempotent on (root_id, tree
// hash), not on sequence number alone.
func (e *Emitter) Emit(ctx context.Context, g *graph.CanonicalGraph, meta events.BlockMetadata) error {
	update := &pb.CanonicalGraphUpdated{
		RootID:            g.Root[:],
		Tree:              toProtoTree(g.Tree),
		CanonicalSpaceIDs: sortedIDBytes(g.Flat),
		SequenceNumber:    e.seq,
		Meta: &pb.BlockchainMetadata{
			BlockNumber:    meta.BlockNumber,
			BlockTimestamp: meta.BlockTimestamp,
			Cursor:         meta.Cursor,
		},
	}

	payload := pb.MarshalCanonicalGraphUpdated(update)
	if err := e.producer.Send(ctx, g.Root[:], payload); err != nil {
		return fmt.Errorf("kafkasink: emit sequence %d: %w", e.seq, err)
	}

	e.log.Info().
		Uint64("sequence", e.seq).
		Int("canonical_size", len(g.Flat)).
		Uint64("block_number", meta.BlockNumber).
		Msg("canonical graph updated")

	e.seq++
	return nil
}

func toProtoTree(n *graph.TreeNode) *pb.CanonicalTreeNode {
	if n == nil {
		return nil
	}
	out := &pb.CanonicalTreeNode{
		SpaceID:  append([]byte(nil), n.SpaceID[:]...),
		EdgeType: toProtoEdgeType(n.EdgeType),
	}
	if n.EdgeType == graph.EdgeTopic {
		out.TopicID = append([]byte(nil), n.TopicID[:]...)
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, toProtoTree(c))
	}
	return out
}

func toProtoEdgeType(t graph.EdgeType) pb.EdgeType {
	switch t {
	case graph.EdgeRoot:
		return pb.EdgeTypeRoot
	case graph.EdgeVerified:
		return pb.EdgeTypeVerified
	case graph.EdgeRelated:
		return pb.EdgeTypeRelated
	case graph.EdgeTopic:
		return pb.EdgeTypeTopic
	default:
		return pb.EdgeTypeUnspecified
	}
}

func sortedIDBytes(flat map[events.SpaceId]struct{}) [][]byte {
	ids := make([]events.SpaceId, 0, len(flat))
	for id := range flat {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		for k := 0; k < len(ids[i]); k++ {
			if ids[i][k] != ids[j][k] {
				return ids[i][k] < ids[j][k]
			}
		}
		return false
	})
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = append([]byte(nil), id[:]...)
	}
	return out
}
