package graph

import (
	"bytes"
	"sort"

	"github.com/atlasxyz/atlas/events"
)

// TransitiveGraph is the result of a BFS traversal rooted at Root: the tree
// shape, the flat set of reachable SpaceIds, and the tree's structural hash.
type TransitiveGraph struct {
	Root events.SpaceId
	Tree *TreeNode
	Flat map[events.SpaceId]struct{}
	Hash uint64
}

// Contains reports whether id is reachable in this graph.
func (g *TransitiveGraph) Contains(id events.SpaceId) bool {
	_, ok := g.Flat[id]
	return ok
}

// Len returns the number of reachable spaces, including Root.
func (g *TransitiveGraph) Len() int { return len(g.Flat) }

// TransitiveCache memoizes computed TransitiveGraphs for both BFS variants,
// keyed by root, plus the reverse-dependency index used to invalidate them.
type TransitiveCache struct {
	full          map[events.SpaceId]*TransitiveGraph
	explicitOnly  map[events.SpaceId]*TransitiveGraph
	reverseDeps   map[events.SpaceId]map[events.SpaceId]struct{} // member -> set of roots whose cached graph contains member
}

func newTransitiveCache() *TransitiveCache {
	return &TransitiveCache{
		full:         make(map[events.SpaceId]*TransitiveGraph),
		explicitOnly: make(map[events.SpaceId]*TransitiveGraph),
		reverseDeps:  make(map[events.SpaceId]map[events.SpaceId]struct{}),
	}
}

func (c *TransitiveCache) insertFull(g *TransitiveGraph) {
	c.full[g.Root] = g
	c.updateReverseDeps(g)
}

func (c *TransitiveCache) insertExplicitOnly(g *TransitiveGraph) {
	c.explicitOnly[g.Root] = g
	c.updateReverseDeps(g)
}

func (c *TransitiveCache) updateReverseDeps(g *TransitiveGraph) {
	for member := range g.Flat {
		if c.reverseDeps[member] == nil {
			c.reverseDeps[member] = make(map[events.SpaceId]struct{})
		}
		c.reverseDeps[member][g.Root] = struct{}{}
	}
}

// invalidate drops the cached graphs (both variants) for every root in
// roots, and removes their reverse-dependency backreferences.
func (c *TransitiveCache) invalidate(roots map[events.SpaceId]struct{}) {
	for root := range roots {
		if g, ok := c.full[root]; ok {
			c.dropReverseDeps(g)
			delete(c.full, root)
		}
		if g, ok := c.explicitOnly[root]; ok {
			c.dropReverseDeps(g)
			delete(c.explicitOnly, root)
		}
	}
}

func (c *TransitiveCache) dropReverseDeps(g *TransitiveGraph) {
	for member := range g.Flat {
		if set := c.reverseDeps[member]; set != nil {
			delete(set, g.Root)
			if len(set) == 0 {
				delete(c.reverseDeps, member)
			}
		}
	}
}

// CacheStats reports memoized-entry counts for operational visibility.
type CacheStats struct {
	FullEntries         int
	ExplicitOnlyEntries int
	ReverseDepEntries   int
}

// TransitiveProcessor computes and memoizes explicit-only and full
// (explicit + topic) BFS closures rooted at arbitrary spaces.
type TransitiveProcessor struct {
	cache *TransitiveCache
}

// NewTransitiveProcessor builds a processor with an empty cache.
func NewTransitiveProcessor() *TransitiveProcessor {
	return &TransitiveProcessor{cache: newTransitiveCache()}
}

// GetFull returns the explicit+topic closure rooted at root, computing and
// caching it on a miss.
func (p *TransitiveProcessor) GetFull(root events.SpaceId, state *GraphState) *TransitiveGraph {
	if g, ok := p.cache.full[root]; ok {
		return g
	}
	g := compute(root, state, true)
	p.cache.insertFull(g)
	return g
}

// GetExplicitOnly returns the explicit-edges-only closure rooted at root,
// computing and caching it on a miss.
func (p *TransitiveProcessor) GetExplicitOnly(root events.SpaceId, state *GraphState) *TransitiveGraph {
	if g, ok := p.cache.explicitOnly[root]; ok {
		return g
	}
	g := compute(root, state, false)
	p.cache.insertExplicitOnly(g)
	return g
}

// HandleEvent applies the cache invalidation policy for e: a TrustExtended
// from source s invalidates the cached graphs for s and for every space
// whose cached graph currently contains s (its reverse dependents); a
// SpaceCreated invalidates nothing, since a brand-new isolated space cannot
// appear in any already-computed closure.
func (p *TransitiveProcessor) HandleEvent(e events.Event) {
	trust, ok := e.Payload.(events.TrustExtended)
	if !ok {
		return
	}
	toInvalidate := map[events.SpaceId]struct{}{trust.SourceSpaceID: {}}
	for dependent := range p.cache.reverseDeps[trust.SourceSpaceID] {
		toInvalidate[dependent] = struct{}{}
	}
	p.cache.invalidate(toInvalidate)
}

// CacheStats reports the current memoized-entry counts.
func (p *TransitiveProcessor) CacheStats() CacheStats {
	return CacheStats{
		FullEntries:         len(p.cache.full),
		ExplicitOnlyEntries: len(p.cache.explicitOnly),
		ReverseDepEntries:   len(p.cache.reverseDeps),
	}
}

type candidateEdge struct {
	target   events.SpaceId
	edgeType EdgeType
	topicID  events.TopicId
}

// compute runs a deterministic BFS from root. At each node it gathers
// candidate children — explicit edges always, topic-edge-resolved members
// too when includeTopic is set — sorted by target SpaceId so the resulting
// tree shape (and therefore its structural hash) never depends on map
// iteration order. Cycles terminate naturally: a space already present in
// Flat is never re-visited or re-expanded.
func compute(root events.SpaceId, state *GraphState, includeTopic bool) *TransitiveGraph {
	flat := map[events.SpaceId]struct{}{root: {}}
	tree := NewRoot(root)

	type queued struct {
		node   *TreeNode
		spaceID events.SpaceId
	}
	queue := []queued{{node: tree, spaceID: root}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		edges := collectCandidateEdges(cur.spaceID, state, includeTopic)
		for _, edge := range edges {
			if _, seen := flat[edge.target]; seen {
				continue
			}
			flat[edge.target] = struct{}{}

			var child *TreeNode
			if edge.edgeType == EdgeTopic {
				child = NewTopic(edge.target, edge.topicID)
			} else {
				child = NewExplicit(edge.target, edge.edgeType)
			}
			cur.node.AddChild(child)
			queue = append(queue, queued{node: child, spaceID: edge.target})
		}
	}

	return &TransitiveGraph{Root: root, Tree: tree, Flat: flat, Hash: HashTree(tree)}
}

func collectCandidateEdges(space events.SpaceId, state *GraphState, includeTopic bool) []candidateEdge {
	var edges []candidateEdge

	for _, e := range state.ExplicitChildren(space) {
		et := EdgeVerified
		if e.Kind == events.ExtensionRelated {
			et = EdgeRelated
		}
		edges = append(edges, candidateEdge{target: e.Target, edgeType: et})
	}

	if includeTopic {
		for _, topic := range state.TopicChildren(space) {
			for _, member := range state.TopicMembers(topic) {
				if member == space {
					continue
				}
				edges = append(edges, candidateEdge{target: member, edgeType: EdgeTopic, topicID: topic})
			}
		}
	}

	// Stable sort: ties on target (an explicit edge and a topic edge both
	// reaching the same space) keep explicit edges first, since they were
	// appended before topic edges above — making the visited-set winner
	// deterministic across runs instead of depending on sort.Slice's
	// unspecified tie-breaking.
	sort.SliceStable(edges, func(i, j int) bool {
		return bytes.Compare(edges[i].target[:], edges[j].target[:]) < 0
	})
	return edges
}
