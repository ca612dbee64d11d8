package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/atlasxyz/atlas/events"
)

// snapshotVersion guards the binary layout written by MarshalBinary. Bump it
// if the layout changes; UnmarshalBinary refuses anything else.
const snapshotVersion uint32 = 1

// MarshalBinary serializes the minimal state needed to reconstruct s:
// spaces (with their announced topic) plus explicit and topic edges.
// topicSpaces and topicEdgeSources are pure inverse indices of those and are
// rebuilt by UnmarshalBinary, so they are not written. Everything is sorted
// before encoding, so two calls against equal states produce identical
// bytes.
func (s *GraphState) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	writeUint32(&buf, snapshotVersion)

	spaceIds := make([]events.SpaceId, 0, len(s.spaces))
	for id := range s.spaces {
		spaceIds = append(spaceIds, id)
	}
	sortSpaceIds(spaceIds)

	writeUint32(&buf, uint32(len(spaceIds)))
	for _, id := range spaceIds {
		buf.Write(id[:])
		topic := s.spaces[id]
		buf.Write(topic[:])
	}

	writeUint32(&buf, uint32(len(spaceIds)))
	for _, id := range spaceIds {
		edges := s.ExplicitChildren(id)
		buf.Write(id[:])
		writeUint32(&buf, uint32(len(edges)))
		for _, e := range edges {
			buf.Write(e.Target[:])
			buf.WriteByte(byte(e.Kind))
		}
	}

	writeUint32(&buf, uint32(len(spaceIds)))
	for _, id := range spaceIds {
		topics := s.TopicChildren(id)
		buf.Write(id[:])
		writeUint32(&buf, uint32(len(topics)))
		for _, t := range topics {
			buf.Write(t[:])
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary replaces s's contents with the snapshot encoded in data,
// rebuilding the topicSpaces/topicEdgeSources inverse indices from scratch.
func (s *GraphState) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	version, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("graph: read snapshot version: %w", err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("graph: unsupported snapshot version %d", version)
	}

	fresh := New()

	numSpaces, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("graph: read space count: %w", err)
	}
	for i := uint32(0); i < numSpaces; i++ {
		var id events.SpaceId
		var topic events.TopicId
		if _, err := r.Read(id[:]); err != nil {
			return fmt.Errorf("graph: read space id: %w", err)
		}
		if _, err := r.Read(topic[:]); err != nil {
			return fmt.Errorf("graph: read space topic: %w", err)
		}
		fresh.spaces[id] = topic
		if fresh.topicSpaces[topic] == nil {
			fresh.topicSpaces[topic] = make(map[events.SpaceId]struct{})
		}
		fresh.topicSpaces[topic][id] = struct{}{}
	}

	numExplicitSources, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("graph: read explicit edge source count: %w", err)
	}
	for i := uint32(0); i < numExplicitSources; i++ {
		var id events.SpaceId
		if _, err := r.Read(id[:]); err != nil {
			return fmt.Errorf("graph: read explicit edge source: %w", err)
		}
		numEdges, err := readUint32(r)
		if err != nil {
			return fmt.Errorf("graph: read explicit edge count: %w", err)
		}
		for j := uint32(0); j < numEdges; j++ {
			var target events.SpaceId
			if _, err := r.Read(target[:]); err != nil {
				return fmt.Errorf("graph: read explicit edge target: %w", err)
			}
			kindByte, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("graph: read explicit edge kind: %w", err)
			}
			fresh.explicitEdges[id] = append(fresh.explicitEdges[id], ExplicitEdge{
				Target: target,
				Kind:   events.ExtensionKind(kindByte),
			})
		}
	}

	numTopicSources, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("graph: read topic edge source count: %w", err)
	}
	for i := uint32(0); i < numTopicSources; i++ {
		var id events.SpaceId
		if _, err := r.Read(id[:]); err != nil {
			return fmt.Errorf("graph: read topic edge source: %w", err)
		}
		numTopics, err := readUint32(r)
		if err != nil {
			return fmt.Errorf("graph: read topic edge topic count: %w", err)
		}
		for j := uint32(0); j < numTopics; j++ {
			var topic events.TopicId
			if _, err := r.Read(topic[:]); err != nil {
				return fmt.Errorf("graph: read topic edge topic: %w", err)
			}
			if fresh.topicEdges[id] == nil {
				fresh.topicEdges[id] = make(map[events.TopicId]struct{})
			}
			fresh.topicEdges[id][topic] = struct{}{}

			if fresh.topicEdgeSources[topic] == nil {
				fresh.topicEdgeSources[topic] = make(map[events.SpaceId]struct{})
			}
			fresh.topicEdgeSources[topic][id] = struct{}{}
		}
	}

	*s = *fresh
	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
