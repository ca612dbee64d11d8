package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MarshalCanonicalGraphUpdated encodes m into its protobuf wire bytes.
func MarshalCanonicalGraphUpdated(m *CanonicalGraphUpdated) []byte {
	var b []byte
	if len(m.RootID) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.RootID)
	}
	if m.Tree != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTreeNode(m.Tree))
	}
	for _, id := range m.CanonicalSpaceIDs {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, id)
	}
	if m.SequenceNumber != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, m.SequenceNumber)
	}
	if m.Meta != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalMetadata(m.Meta))
	}
	return b
}

func marshalTreeNode(n *CanonicalTreeNode) []byte {
	var b []byte
	if len(n.SpaceID) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, n.SpaceID)
	}
	if n.EdgeType != EdgeTypeUnspecified {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(n.EdgeType))
	}
	if len(n.TopicID) > 0 {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, n.TopicID)
	}
	for _, c := range n.Children {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTreeNode(c))
	}
	return b
}

func marshalMetadata(m *BlockchainMetadata) []byte {
	var b []byte
	if m.BlockNumber != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.BlockNumber)
	}
	if m.BlockTimestamp != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, m.BlockTimestamp)
	}
	if m.Cursor != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.Cursor)
	}
	return b
}

// UnmarshalCanonicalGraphUpdated decodes data into a CanonicalGraphUpdated.
func UnmarshalCanonicalGraphUpdated(data []byte) (*CanonicalGraphUpdated, error) {
	m := &CanonicalGraphUpdated{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: consume tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("pb: root_id: %w", protowire.ParseError(n))
			}
			m.RootID = append([]byte(nil), v...)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("pb: tree: %w", protowire.ParseError(n))
			}
			tree, err := unmarshalTreeNode(v)
			if err != nil {
				return nil, err
			}
			m.Tree = tree
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("pb: canonical_space_ids: %w", protowire.ParseError(n))
			}
			m.CanonicalSpaceIDs = append(m.CanonicalSpaceIDs, append([]byte(nil), v...))
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pb: sequence_number: %w", protowire.ParseError(n))
			}
			m.SequenceNumber = v
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("pb: meta: %w", protowire.ParseError(n))
			}
			meta, err := unmarshalMetadata(v)
			if err != nil {
				return nil, err
			}
			m.Meta = meta
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return m, nil
}

func unmarshalTreeNode(data []byte) (*CanonicalTreeNode, error) {
	n := &CanonicalTreeNode{}
	for len(data) > 0 {
		num, typ, consumed := protowire.ConsumeTag(data)
		if consumed < 0 {
			return nil, fmt.Errorf("pb: tree node: consume tag: %w", protowire.ParseError(consumed))
		}
		data = data[consumed:]

		switch num {
		case 1:
			v, c := protowire.ConsumeBytes(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: tree node space_id: %w", protowire.ParseError(c))
			}
			n.SpaceID = append([]byte(nil), v...)
			data = data[c:]
		case 2:
			v, c := protowire.ConsumeVarint(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: tree node edge_type: %w", protowire.ParseError(c))
			}
			n.EdgeType = EdgeType(v)
			data = data[c:]
		case 3:
			v, c := protowire.ConsumeBytes(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: tree node topic_id: %w", protowire.ParseError(c))
			}
			n.TopicID = append([]byte(nil), v...)
			data = data[c:]
		case 4:
			v, c := protowire.ConsumeBytes(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: tree node child: %w", protowire.ParseError(c))
			}
			child, err := unmarshalTreeNode(v)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
			data = data[c:]
		default:
			c := protowire.ConsumeFieldValue(num, typ, data)
			if c < 0 {
				return nil, fmt.Errorf("pb: tree node skip unknown field %d: %w", num, protowire.ParseError(c))
			}
			data = data[c:]
		}
	}
	return n, nil
}

func unmarshalMetadata(data []byte) (*BlockchainMetadata, error) {
	m := &BlockchainMetadata{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: metadata: consume tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1:
			v, c := protowire.ConsumeVarint(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: metadata block_number: %w", protowire.ParseError(c))
			}
			m.BlockNumber = v
			data = data[c:]
		case 2:
			v, c := protowire.ConsumeVarint(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: metadata block_timestamp: %w", protowire.ParseError(c))
			}
			m.BlockTimestamp = v
			data = data[c:]
		case 3:
			v, c := protowire.ConsumeString(data)
			if c < 0 {
				return nil, fmt.Errorf("pb: metadata cursor: %w", protowire.ParseError(c))
			}
			m.Cursor = v
			data = data[c:]
		default:
			c := protowire.ConsumeFieldValue(num, typ, data)
			if c < 0 {
				return nil, fmt.Errorf("pb: metadata skip unknown field %d: %w", num, protowire.ParseError(c))
			}
			data = data[c:]
		}
	}
	return m, nil
}
