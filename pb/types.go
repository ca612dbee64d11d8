// Package pb hand-encodes and decodes the CanonicalGraphUpdated wire
// message using google.golang.org/protobuf/encoding/protowire directly,
// rather than generated code, so the field numbers and wire types stay
// pinned exactly to the documented contract regardless of toolchain
// availability.
package pb

// EdgeType mirrors the wire enum carried on CanonicalTreeNode.edge_type.
type EdgeType int32

const (
	EdgeTypeUnspecified EdgeType = 0
	EdgeTypeRoot        EdgeType = 1
	EdgeTypeVerified    EdgeType = 2
	EdgeTypeRelated     EdgeType = 3
	EdgeTypeTopic       EdgeType = 4
)

// CanonicalTreeNode is one node of the canonical tree on the wire.
//
//	message CanonicalTreeNode {
//	  bytes space_id = 1;
//	  EdgeType edge_type = 2;
//	  bytes topic_id = 3;   // empty unless edge_type == TOPIC
//	  repeated CanonicalTreeNode children = 4;
//	}
type CanonicalTreeNode struct {
	SpaceID  []byte
	EdgeType EdgeType
	TopicID  []byte
	Children []*CanonicalTreeNode
}

// BlockchainMetadata carries the provenance of the block that produced an
// update.
//
//	message BlockchainMetadata {
//	  uint64 block_number = 1;
//	  uint64 block_timestamp = 2;
//	  string cursor = 3;
//	}
type BlockchainMetadata struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	Cursor         string
}

// CanonicalGraphUpdated is the top-level message emitted to the message bus
// on every canonical-tree change.
//
//	message CanonicalGraphUpdated {
//	  bytes root_id = 1;
//	  CanonicalTreeNode tree = 2;
//	  repeated bytes canonical_space_ids = 3;
//	  uint64 sequence_number = 4;
//	  BlockchainMetadata meta = 5;
//	}
type CanonicalGraphUpdated struct {
	RootID            []byte
	Tree              *CanonicalTreeNode
	CanonicalSpaceIDs [][]byte
	SequenceNumber    uint64
	Meta              *BlockchainMetadata
}
