package graph

import (
	"github.com/atlasxyz/atlas/events"
)

// CanonicalGraph is the result of a canonical-processor compute: the full
// canonical tree (explicit membership plus topic-edge subtree attachments)
// and the flat set of canonical SpaceIds.
type CanonicalGraph struct {
	Root events.SpaceId
	Tree *TreeNode
	Flat map[events.SpaceId]struct{}
}

// Contains reports whether id is a canonical member.
func (g *CanonicalGraph) Contains(id events.SpaceId) bool {
	_, ok := g.Flat[id]
	return ok
}

// CanonicalProcessor computes the canonical tree rooted at a single
// configured root space and tracks the hash of the last tree it emitted, so
// repeated computes that don't actually change the shape are detected and
// suppressed by the caller.
type CanonicalProcessor struct {
	root     events.SpaceId
	lastHash *uint64
}

// NewCanonicalProcessor builds a processor for the given configured root.
func NewCanonicalProcessor(root events.SpaceId) *CanonicalProcessor {
	return &CanonicalProcessor{root: root}
}

// Root returns the configured canonical root.
func (p *CanonicalProcessor) Root() events.SpaceId { return p.root }

// AffectsCanonical is the O(1) gate deciding whether an event could possibly
// change the canonical tree, without doing any BFS work. SpaceCreated never
// does (a brand-new space cannot already be canonical). TrustExtended only
// does when its source is already a canonical member — canonicalSet is the
// Flat set from the processor's last compute (or nil before the first
// compute, in which case every TrustExtended affects it).
func AffectsCanonical(e events.Event, canonicalSet map[events.SpaceId]struct{}) bool {
	switch p := e.Payload.(type) {
	case events.SpaceCreated:
		return false
	case events.TrustExtended:
		if canonicalSet == nil {
			return true
		}
		_, ok := canonicalSet[p.SourceSpaceID]
		return ok
	default:
		return true
	}
}

// Compute runs the two-phase canonical computation:
//
//  1. Explicit-only BFS from the root gives canonical membership and the
//     base tree shape.
//  2. For every (source, topic) Subtopic edge where source is canonical,
//     every other canonical member of that topic has its own full
//     transitive subtree attached under source, filtered down to only the
//     spaces that are themselves canonical.
//
// The tree is re-hashed unconditionally, since shape or depth can change
// even when the canonical membership set doesn't. Compute returns nil when
// the resulting hash matches the last computed one — callers use this to
// suppress redundant emissions.
func (p *CanonicalProcessor) Compute(state *GraphState, transitive *TransitiveProcessor) *CanonicalGraph {
	rootGraph := transitive.GetExplicitOnly(p.root, state)

	canonicalSet := make(map[events.SpaceId]struct{}, len(rootGraph.Flat))
	for id := range rootGraph.Flat {
		canonicalSet[id] = struct{}{}
	}
	tree := rootGraph.Tree.Clone()

	for _, te := range collectTopicEdges(canonicalSet, state) {
		attachTopicSubtree(tree, te.source, te.topic, canonicalSet, state, transitive)
	}

	newHash := HashTree(tree)
	if p.lastHash != nil && *p.lastHash == newHash {
		return nil
	}
	p.lastHash = &newHash

	return &CanonicalGraph{Root: p.root, Tree: tree, Flat: canonicalSet}
}

type topicEdge struct {
	source events.SpaceId
	topic  events.TopicId
}

// collectTopicEdges returns every (source, topic) Subtopic edge whose
// source is canonical, sorted by (source, topic) for deterministic
// attachment order.
func collectTopicEdges(canonicalSet map[events.SpaceId]struct{}, state *GraphState) []topicEdge {
	sources := make([]events.SpaceId, 0, len(canonicalSet))
	for id := range canonicalSet {
		sources = append(sources, id)
	}
	sortSpaceIds(sources)

	var out []topicEdge
	for _, source := range sources {
		for _, topic := range state.TopicChildren(source) {
			out = append(out, topicEdge{source: source, topic: topic})
		}
	}
	return out
}

// attachTopicSubtree attaches, under every node in tree whose SpaceID
// matches source, a copy of each other canonical topic member's full
// transitive subtree, filtered to canonical members only. The subtree root
// itself is re-tagged EdgeTopic (carrying topic) regardless of how the
// member's own transitive tree reached it.
func attachTopicSubtree(tree *TreeNode, source events.SpaceId, topic events.TopicId, canonicalSet map[events.SpaceId]struct{}, state *GraphState, transitive *TransitiveProcessor) {
	members := state.TopicMembers(topic)
	for _, member := range members {
		if member == source {
			continue
		}
		if _, ok := canonicalSet[member]; !ok {
			continue
		}
		memberGraph := transitive.GetFull(member, state)
		filtered := filterToCanonical(memberGraph.Tree, canonicalSet)
		if filtered == nil {
			continue
		}
		filtered.EdgeType = EdgeTopic
		filtered.TopicID = topic
		attachUnderMatching(tree, source, filtered)
	}
}

// filterToCanonical deep-copies node's subtree, dropping any child (and its
// own subtree) that isn't canonical. node itself is assumed canonical (the
// caller only calls this for canonical members) and is always kept.
func filterToCanonical(node *TreeNode, canonicalSet map[events.SpaceId]struct{}) *TreeNode {
	if node == nil {
		return nil
	}
	clone := &TreeNode{SpaceID: node.SpaceID, EdgeType: node.EdgeType, TopicID: node.TopicID}
	for _, c := range node.Children {
		if _, ok := canonicalSet[c.SpaceID]; !ok {
			continue
		}
		if filteredChild := filterToCanonical(c, canonicalSet); filteredChild != nil {
			clone.Children = append(clone.Children, filteredChild)
		}
	}
	return clone
}

// attachUnderMatching recurses through every node of tree, attaching a deep
// copy of subtree as a new child wherever the node's SpaceID equals target.
// Traversal continues into all children regardless of whether the current
// node matched, since target can legitimately appear more than once (the
// canonical tree is not required to be a simple tree over distinct ids once
// topic-edge attachment runs).
func attachUnderMatching(node *TreeNode, target events.SpaceId, subtree *TreeNode) {
	if node == nil {
		return
	}
	if node.SpaceID == target {
		node.AddChild(subtree.Clone())
	}
	for _, c := range node.Children {
		attachUnderMatching(c, target, subtree)
	}
}
