package graph

import (
	"encoding/binary"
	"hash/fnv"
)

// TreeHasher computes a node's hash given its already-mixed children hash.
// DefaultTreeHasher is grounded on FNV-1a; swapping it only matters for
// tests that want to detect accidental collisions with a different mix.
type TreeHasher interface {
	HashNode(node *TreeNode, childrenMix uint64) uint64
}

// DefaultTreeHasher is the production hasher used by HashTree.
type DefaultTreeHasher struct{}

func (DefaultTreeHasher) HashNode(node *TreeNode, childrenMix uint64) uint64 {
	h := fnv.New64a()
	h.Write(node.SpaceID[:])

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(node.EdgeType))
	h.Write(buf[:4])

	if node.EdgeType == EdgeTopic {
		h.Write(node.TopicID[:])
	}

	binary.BigEndian.PutUint64(buf[:], childrenMix)
	h.Write(buf[:])

	return h.Sum64()
}

// HashTree computes the order-insensitive structural hash of the tree rooted
// at node. Children are combined with a wrapping sum, which is commutative
// and associative, so permuting BFS child order never changes the result;
// only the multiset of child hashes (and this node's own identity) does.
func HashTree(node *TreeNode) uint64 {
	return hashTreeWith(node, DefaultTreeHasher{})
}

func hashTreeWith(node *TreeNode, hasher TreeHasher) uint64 {
	if node == nil {
		return 0
	}
	var mix uint64
	for _, c := range node.Children {
		mix += hashTreeWith(c, hasher) // wrapping add: commutative, order-insensitive
	}
	return hasher.HashNode(node, mix)
}
