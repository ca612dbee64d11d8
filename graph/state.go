package graph

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/atlasxyz/atlas/events"
)

// ErrSpaceTopicMismatch is returned when a SpaceCreated event announces a
// different topic for a space that already exists with a different one.
// GraphState.Apply must never silently overwrite it.
var ErrSpaceTopicMismatch = errors.New("graph: space already exists with a different topic")

// ExplicitEdge is one outgoing explicit (Verified or Related) edge.
type ExplicitEdge struct {
	Target events.SpaceId
	Kind   events.ExtensionKind // ExtensionVerified or ExtensionRelated
}

// GraphState is the total, append-only view of every space, topic and edge
// observed so far. It owns no goroutine-safety of its own: the pipeline's
// single-writer model is what makes concurrent access to it unnecessary.
type GraphState struct {
	spaces           map[events.SpaceId]events.TopicId
	topicSpaces      map[events.TopicId]map[events.SpaceId]struct{}
	explicitEdges    map[events.SpaceId][]ExplicitEdge
	topicEdges       map[events.SpaceId]map[events.TopicId]struct{}
	topicEdgeSources map[events.TopicId]map[events.SpaceId]struct{}
}

// New builds an empty GraphState.
func New() *GraphState {
	return &GraphState{
		spaces:           make(map[events.SpaceId]events.TopicId),
		topicSpaces:      make(map[events.TopicId]map[events.SpaceId]struct{}),
		explicitEdges:    make(map[events.SpaceId][]ExplicitEdge),
		topicEdges:       make(map[events.SpaceId]map[events.TopicId]struct{}),
		topicEdgeSources: make(map[events.TopicId]map[events.SpaceId]struct{}),
	}
}

// Apply mutates the state for a single event. It is total (every valid
// Payload is handled) and idempotent (replaying an already-applied event is
// a no-op). Anything other than ErrSpaceTopicMismatch indicates a bug in the
// caller, not a data problem, and panics.
func (s *GraphState) Apply(e events.Event) error {
	switch p := e.Payload.(type) {
	case events.SpaceCreated:
		return s.applySpaceCreated(p)
	case events.TrustExtended:
		return s.applyTrustExtended(p)
	default:
		panic(fmt.Sprintf("graph: unknown event payload type %T", e.Payload))
	}
}

func (s *GraphState) applySpaceCreated(p events.SpaceCreated) error {
	if existing, ok := s.spaces[p.SpaceID]; ok {
		if existing != p.TopicID {
			return fmt.Errorf("%w: space %s has topic %s, event announces %s",
				ErrSpaceTopicMismatch, p.SpaceID, existing, p.TopicID)
		}
		return nil // idempotent replay
	}

	s.spaces[p.SpaceID] = p.TopicID
	if s.topicSpaces[p.TopicID] == nil {
		s.topicSpaces[p.TopicID] = make(map[events.SpaceId]struct{})
	}
	s.topicSpaces[p.TopicID][p.SpaceID] = struct{}{}
	return nil
}

func (s *GraphState) applyTrustExtended(p events.TrustExtended) error {
	switch p.Kind {
	case events.ExtensionVerified, events.ExtensionRelated:
		edges := s.explicitEdges[p.SourceSpaceID]
		for _, e := range edges {
			if e.Target == p.TargetSpaceID && e.Kind == p.Kind {
				return nil // idempotent replay
			}
		}
		s.explicitEdges[p.SourceSpaceID] = append(edges, ExplicitEdge{Target: p.TargetSpaceID, Kind: p.Kind})
	case events.ExtensionSubtopic:
		if s.topicEdges[p.SourceSpaceID] == nil {
			s.topicEdges[p.SourceSpaceID] = make(map[events.TopicId]struct{})
		}
		s.topicEdges[p.SourceSpaceID][p.TargetTopicID] = struct{}{}

		if s.topicEdgeSources[p.TargetTopicID] == nil {
			s.topicEdgeSources[p.TargetTopicID] = make(map[events.SpaceId]struct{})
		}
		s.topicEdgeSources[p.TargetTopicID][p.SourceSpaceID] = struct{}{}
	default:
		panic(fmt.Sprintf("graph: unknown extension kind %d", p.Kind))
	}
	return nil
}

// HasSpace reports whether a space has been created.
func (s *GraphState) HasSpace(id events.SpaceId) bool {
	_, ok := s.spaces[id]
	return ok
}

// SpaceTopic returns the topic a space announced at creation.
func (s *GraphState) SpaceTopic(id events.SpaceId) (events.TopicId, bool) {
	t, ok := s.spaces[id]
	return t, ok
}

// ExplicitChildren returns space's outgoing explicit edges, sorted by
// target SpaceId byte order for deterministic BFS traversal.
func (s *GraphState) ExplicitChildren(space events.SpaceId) []ExplicitEdge {
	edges := append([]ExplicitEdge(nil), s.explicitEdges[space]...)
	sort.Slice(edges, func(i, j int) bool {
		return bytes.Compare(edges[i].Target[:], edges[j].Target[:]) < 0
	})
	return edges
}

// TopicChildren returns the topics space has a Subtopic edge to, sorted by
// TopicId byte order.
func (s *GraphState) TopicChildren(space events.SpaceId) []events.TopicId {
	set := s.topicEdges[space]
	topics := make([]events.TopicId, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sortTopicIds(topics)
	return topics
}

// TopicMembers returns the spaces that announced topic at creation, sorted
// by SpaceId byte order.
func (s *GraphState) TopicMembers(topic events.TopicId) []events.SpaceId {
	set := s.topicSpaces[topic]
	members := make([]events.SpaceId, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sortSpaceIds(members)
	return members
}

// TopicEdgeSources returns the spaces with a Subtopic edge pointing at
// topic, sorted by SpaceId byte order. Cache invalidation does not use it;
// TransitiveProcessor.HandleEvent works from its reverse-dependency index.
func (s *GraphState) TopicEdgeSources(topic events.TopicId) []events.SpaceId {
	set := s.topicEdgeSources[topic]
	sources := make([]events.SpaceId, 0, len(set))
	for src := range set {
		sources = append(sources, src)
	}
	sortSpaceIds(sources)
	return sources
}

func sortSpaceIds(ids []events.SpaceId) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}

func sortTopicIds(ids []events.TopicId) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}
