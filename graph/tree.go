// Package graph implements the canonical topology graph: the TreeNode shape,
// its order-insensitive structural hash, the mutable GraphState, the
// transitive-closure processor and cache, and the two-phase canonical
// processor.
package graph

import "github.com/atlasxyz/atlas/events"

// EdgeType labels how a TreeNode is attached to its parent.
type EdgeType int32

const (
	EdgeUnspecified EdgeType = iota
	EdgeRoot
	EdgeVerified
	EdgeRelated
	EdgeTopic
)

// TreeNode is a node in an explicit-trust or canonical tree. TopicID is only
// meaningful when EdgeType is EdgeTopic; it names the topic whose
// subtree-attachment produced this node.
type TreeNode struct {
	SpaceID  events.SpaceId
	EdgeType EdgeType
	TopicID  events.TopicId
	Children []*TreeNode
}

// NewRoot builds the root node of a tree.
func NewRoot(id events.SpaceId) *TreeNode {
	return &TreeNode{SpaceID: id, EdgeType: EdgeRoot}
}

// NewExplicit builds a node reached via an explicit (Verified or Related)
// edge.
func NewExplicit(id events.SpaceId, kind EdgeType) *TreeNode {
	if kind != EdgeVerified && kind != EdgeRelated {
		panic("graph: NewExplicit requires EdgeVerified or EdgeRelated")
	}
	return &TreeNode{SpaceID: id, EdgeType: kind}
}

// NewTopic builds a node reached by attaching a subtree via a topic edge.
func NewTopic(id events.SpaceId, topic events.TopicId) *TreeNode {
	return &TreeNode{SpaceID: id, EdgeType: EdgeTopic, TopicID: topic}
}

// AddChild appends c as a child of n.
func (n *TreeNode) AddChild(c *TreeNode) {
	n.Children = append(n.Children, c)
}

// NodeCount returns the number of nodes in the subtree rooted at n,
// including n itself. Duplicate SpaceIDs across branches (introduced by
// topic-edge attachment) are each counted.
func (n *TreeNode) NodeCount() int {
	if n == nil {
		return 0
	}
	count := 1
	for _, c := range n.Children {
		count += c.NodeCount()
	}
	return count
}

// Clone deep-copies the subtree rooted at n.
func (n *TreeNode) Clone() *TreeNode {
	if n == nil {
		return nil
	}
	clone := &TreeNode{SpaceID: n.SpaceID, EdgeType: n.EdgeType, TopicID: n.TopicID}
	if len(n.Children) > 0 {
		clone.Children = make([]*TreeNode, len(n.Children))
		for i, c := range n.Children {
			clone.Children[i] = c.Clone()
		}
	}
	return clone
}
