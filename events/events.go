// Package events defines the wire-level shape of blockchain-sourced space
// topology events consumed by the Atlas pipeline.
package events

import "encoding/hex"

// SpaceId identifies a space. Opaque, 16 bytes.
type SpaceId [16]byte

func (s SpaceId) String() string { return hex.EncodeToString(s[:]) }

// TopicId identifies a topic. Opaque, 16 bytes.
type TopicId [16]byte

func (t TopicId) String() string { return hex.EncodeToString(t[:]) }

// Address is a blockchain address. 20 bytes for EVM-style addresses, 32
// bytes for the rest; callers that need a fixed width should not rely on
// len(Address) staying constant across chains.
type Address []byte

// SpaceType distinguishes how a space's initial membership is established.
type SpaceType int

const (
	SpaceTypeUnspecified SpaceType = iota
	SpaceTypePersonal
	SpaceTypeDao
)

// BlockMetadata is carried on every event and identifies its provenance.
type BlockMetadata struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	TxHash         string
	Cursor         string
}

// Payload is the sum type of space-topology event bodies. SpaceCreated and
// TrustExtended are its only implementations; callers type-switch on it.
type Payload interface {
	isPayload()
}

// SpaceCreated announces a new space and the topic it announces at creation.
type SpaceCreated struct {
	SpaceID   SpaceId
	TopicID   TopicId
	SpaceType SpaceType
	// Owner is set when SpaceType == SpaceTypePersonal.
	Owner Address
	// InitialEditors/InitialMembers are set when SpaceType == SpaceTypeDao.
	InitialEditors []SpaceId
	InitialMembers []SpaceId
	// MetadataURI is the space's content-addressed profile (an ipfs://
	// URI), resolved out-of-band by the IPFS pre-fetch cache. Empty when
	// the space announced no profile content.
	MetadataURI string
}

func (SpaceCreated) isPayload() {}

// ExtensionKind distinguishes the three trust-extension variants.
type ExtensionKind int

const (
	ExtensionVerified ExtensionKind = iota
	ExtensionRelated
	ExtensionSubtopic
)

func (k ExtensionKind) String() string {
	switch k {
	case ExtensionVerified:
		return "verified"
	case ExtensionRelated:
		return "related"
	case ExtensionSubtopic:
		return "subtopic"
	default:
		return "unknown"
	}
}

// TrustExtended records a space extending trust to another space (Verified,
// Related) or to a topic (Subtopic). Exactly one of TargetSpaceID /
// TargetTopicID is meaningful, selected by Kind.
type TrustExtended struct {
	SourceSpaceID SpaceId
	Kind          ExtensionKind
	TargetSpaceID SpaceId // valid iff Kind is Verified or Related
	TargetTopicID TopicId // valid iff Kind is Subtopic
}

func (TrustExtended) isPayload() {}

// Event pairs a payload with the block metadata it was observed in.
type Event struct {
	Meta    BlockMetadata
	Payload Payload
}

// Block groups the events observed within a single source block, along with
// the cursor the source wants persisted once the block is fully processed.
type Block struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	Cursor         string
	Events         []Event
}
